package source

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ivlev/wideslider/internal/errs"
	"github.com/ivlev/wideslider/internal/system"
)

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Supported reports whether path has a JPEG or PNG extension (any case).
func Supported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// ImageSource is a directory of images, or a single image file.
// Every regular, non-hidden file is listed so that unsupported ones can be
// reported instead of silently ignored.
type ImageSource struct {
	paths []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	return &ImageSource{paths: paths}, nil
}

func (s *ImageSource) ImageCount() int {
	return len(s.paths)
}

func (s *ImageSource) Path(index int) string {
	return s.paths[index]
}

func (s *ImageSource) Dimensions(index int) (int, int, error) {
	path := s.paths[index]
	if !Supported(path) {
		return 0, 0, &errs.UnsupportedFormatError{Path: path, Ext: filepath.Ext(path)}
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, &errs.UnsupportedImageError{Path: path, Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, &errs.UnsupportedImageError{Path: path, Err: err}
	}
	return cfg.Width, cfg.Height, nil
}

// Load decodes the image, applies its EXIF orientation and returns an opaque
// RGBA copy anchored at the origin.
func (s *ImageSource) Load(index int) (*image.RGBA, error) {
	path := s.paths[index]
	if !Supported(path) {
		return nil, &errs.UnsupportedFormatError{Path: path, Ext: filepath.Ext(path)}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &errs.UnsupportedImageError{Path: path, Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &errs.UnsupportedImageError{Path: path, Err: errors.Errorf("empty raster %dx%d", b.Dx(), b.Dy())}
	}
	return system.ToOpaqueRGBA(img), nil
}

func (s *ImageSource) Close() error {
	return nil
}

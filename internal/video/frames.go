package video

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ivlev/wideslider/internal/config"
)

// FrameDirSink writes every frame as a PNG into a directory named after the
// input, for inspection or for encoding with an external tool.
type FrameDirSink struct{}

func (s *FrameDirSink) Ext() string {
	return ""
}

func (s *FrameDirSink) Open(ctx context.Context, path string, p config.StreamParams) (FrameWriter, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &frameDirWriter{ctx: ctx, dir: path, params: p}, nil
}

type frameDirWriter struct {
	ctx    context.Context
	dir    string
	params config.StreamParams
	frames int
	enc    png.Encoder
}

func FramePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%05d.png", index))
}

func (w *frameDirWriter) WriteFrame(img *image.RGBA) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if err := checkFrame(img, w.params); err != nil {
		return err
	}

	f, err := os.Create(FramePath(w.dir, w.frames))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := w.enc.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode frame %d", w.frames)
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}
	w.frames++
	return nil
}

func (w *frameDirWriter) Close() error {
	if w.frames == 0 {
		return errors.New("no frames written")
	}
	return nil
}

func (w *frameDirWriter) Abort() {
	os.RemoveAll(w.dir)
}

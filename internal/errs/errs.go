// Package errs holds the per-file error taxonomy of a batch run.
package errs

import "fmt"

// UnsupportedFormatError: file extension is not a supported raster format.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: %s", e.Ext, e.Path)
}

// UnsupportedImageError: the file could not be decoded or has an empty raster.
type UnsupportedImageError struct {
	Path string
	Err  error
}

func (e *UnsupportedImageError) Error() string {
	return fmt.Sprintf("unsupported image %s: %v", e.Path, e.Err)
}

func (e *UnsupportedImageError) Unwrap() error { return e.Err }

// EncodingError: the video sink failed to write the output.
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

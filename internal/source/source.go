package source

import (
	"image"
)

// Source enumerates input images for a batch.
type Source interface {
	ImageCount() int
	Path(index int) string
	Dimensions(index int) (width, height int, err error)
	Load(index int) (*image.RGBA, error)
	Close() error
}

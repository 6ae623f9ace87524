package video

import (
	"context"
	"fmt"
	"image"

	"github.com/ivlev/wideslider/internal/config"
)

// Sink turns an ordered sequence of frames into an output file.
type Sink interface {
	// Open starts a new output at path. Frames must then be written in
	// presentation order.
	Open(ctx context.Context, path string, p config.StreamParams) (FrameWriter, error)
	// Ext is appended to the input stem to build the output path.
	Ext() string
}

type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	// Close finishes the output. The file is complete only if Close returns nil.
	Close() error
	// Abort stops the output and removes whatever was written.
	Abort()
}

func NewSink(name string) (Sink, error) {
	switch name {
	case config.SinkFFmpeg, "":
		return &FFmpegSink{}, nil
	case config.SinkFrames:
		return &FrameDirSink{}, nil
	default:
		return nil, fmt.Errorf("unknown sink: %s", name)
	}
}

func checkFrame(img *image.RGBA, p config.StreamParams) error {
	if img.Rect.Dx() != p.Width || img.Rect.Dy() != p.Height {
		return fmt.Errorf("frame is %dx%d, stream is %dx%d", img.Rect.Dx(), img.Rect.Dy(), p.Width, p.Height)
	}
	return nil
}

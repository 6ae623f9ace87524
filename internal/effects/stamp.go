package effects

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

// StampMargin is the gap between the canvas corner and the code.
const StampMargin = 16

// FrameLabel is what the debug stamp encodes for one frame.
func FrameLabel(name string, index, frames int, t float64) string {
	return fmt.Sprintf("%s %d/%d t=%.4f", name, index, frames, t)
}

// StampRect returns where Stamp draws on a canvas of the given size.
func StampRect(canvas image.Rectangle) image.Rectangle {
	side := max(canvas.Dx()/6, 1)
	p := canvas.Min.Add(image.Pt(StampMargin, StampMargin))
	return image.Rectangle{Min: p, Max: p.Add(image.Pt(side, side))}.Intersect(canvas)
}

// Stamp draws label as a QR code in the top-left corner of dst, so every
// frame of a debug render can be identified from a screenshot.
func Stamp(dst *image.RGBA, label string) error {
	q, err := qrcode.New(label, qrcode.Medium)
	if err != nil {
		return errors.Wrap(err, "qr encode")
	}

	r := StampRect(dst.Rect)
	if r.Empty() {
		return nil
	}
	code := q.Image(r.Dx())
	draw.NearestNeighbor.Scale(dst, r, code, code.Bounds(), draw.Src, nil)
	return nil
}

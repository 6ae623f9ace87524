package system

import (
	"image"
	"image/color"
	"image/draw"
)

// ToOpaqueRGBA returns img as an *image.RGBA anchored at the origin with
// transparency flattened onto black. Opaque RGBA input at the origin is
// returned as is.
func ToOpaqueRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == b.Dx()*4 && rgba.Opaque() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

package renderer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// LetterboxRect returns where a srcW x srcH image lands when scaled to fit
// inside dstW x dstH, centred. The image is never cropped.
func LetterboxRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	s := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := int(math.Round(float64(srcW) * s))
	h := int(math.Round(float64(srcH) * s))
	w = min(max(w, 1), dstW)
	h = min(max(h, 1), dstH)

	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Letterbox draws the whole of src, scaled to fit and centred, on a black dst.
func Letterbox(dst *image.RGBA, src image.Image) {
	fillBlack(dst)
	sb := src.Bounds()
	r := LetterboxRect(sb.Dx(), sb.Dy(), dst.Rect.Dx(), dst.Rect.Dy()).Add(dst.Rect.Min)
	draw.BiLinear.Scale(dst, r, src, sb, draw.Src, nil)
}

// CoverWindow fills dst with the window w of src. The window and dst share
// the same aspect ratio, so nothing is stretched.
func CoverWindow(dst *image.RGBA, src image.Image, w Window) {
	fillBlack(dst)
	sb := src.Bounds()
	sx := float64(dst.Rect.Dx()) / w.W
	sy := float64(dst.Rect.Dy()) / w.H
	ox := float64(sb.Min.X) + w.X
	oy := float64(sb.Min.Y) + w.Y
	s2d := f64.Aff3{
		sx, 0, float64(dst.Rect.Min.X) - ox*sx,
		0, sy, float64(dst.Rect.Min.Y) - oy*sy,
	}
	draw.BiLinear.Transform(dst, s2d, src, sb, draw.Src, nil)
}

// Blend writes round((1-alpha)*a + alpha*b) for every sample.
// All three images must have the same size.
func Blend(dst, a, b *image.RGBA, alpha float64) {
	alpha = clamp(alpha, 0, 1)
	inv := 1 - alpha
	rowLen := dst.Rect.Dx() * 4
	for y := 0; y < dst.Rect.Dy(); y++ {
		d := dst.Pix[y*dst.Stride : y*dst.Stride+rowLen]
		pa := a.Pix[y*a.Stride : y*a.Stride+rowLen]
		pb := b.Pix[y*b.Stride : y*b.Stride+rowLen]
		for i := range d {
			v := inv*float64(pa[i]) + alpha*float64(pb[i]) + 0.5
			switch {
			case v >= 255:
				d[i] = 255
			case v <= 0:
				d[i] = 0
			default:
				d[i] = uint8(v)
			}
		}
	}
}

func copyCanvas(dst, src *image.RGBA) {
	rowLen := dst.Rect.Dx() * 4
	for y := 0; y < dst.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[y*src.Stride:y*src.Stride+rowLen])
	}
}

// fillBlack paints opaque black over the whole of dst.
func fillBlack(dst *image.RGBA) {
	rowLen := dst.Rect.Dx() * 4
	for y := 0; y < dst.Rect.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+rowLen]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = 0, 0, 0, 0xff
		}
	}
}

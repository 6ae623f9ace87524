package analyzer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector finds busy regions with a Sobel edge map, dilation and
// connected components. It works on a downscaled grayscale copy and reports
// rectangles in source coordinates.
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in analysis pixels²
	EdgeThreshold float64 // Gradient magnitude threshold
	MaxSide       int     // Longest side of the analysis copy
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  200,
		EdgeThreshold: 30.0,
		MaxSide:       480,
	}
}

// grid is a row-major single-channel raster.
type grid struct {
	w, h int
	pix  []uint8
}

func (g grid) at(x, y int) uint8 { return g.pix[y*g.w+x] }

func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}

	gray, scale := downscaleGray(img, d.MaxSide)
	edges := sobel(gray, d.EdgeThreshold)
	dilated := dilate(edges, 5, 2)
	rects := components(dilated)

	var blocks []Block
	for _, r := range rects {
		if r.Dx()*r.Dy() < d.MinBlockArea {
			continue
		}
		src := image.Rect(
			b.Min.X+int(float64(r.Min.X)/scale),
			b.Min.Y+int(float64(r.Min.Y)/scale),
			b.Min.X+int(math.Ceil(float64(r.Max.X)/scale)),
			b.Min.Y+int(math.Ceil(float64(r.Max.Y)/scale)),
		).Intersect(b)
		blocks = append(blocks, Block{Rect: src, Confidence: 0.7})
	}
	return blocks, nil
}

// FocusY returns the area-weighted vertical centre of the regions det finds in
// img, relative to img.Bounds().Min.Y. Without any detected region it
// returns the geometric centre.
func FocusY(det Detector, img image.Image) float64 {
	b := img.Bounds()
	centre := float64(b.Dy()) / 2

	blocks, err := det.Detect(img)
	if err != nil || len(blocks) == 0 {
		return centre
	}

	var sum, weight float64
	for _, bl := range blocks {
		area := float64(bl.Rect.Dx() * bl.Rect.Dy())
		cy := float64(bl.Rect.Min.Y-b.Min.Y) + float64(bl.Rect.Dy())/2
		sum += cy * area
		weight += area
	}
	if weight == 0 {
		return centre
	}
	return sum / weight
}

// downscaleGray returns a grayscale copy whose longest side is at most
// maxSide, plus the scale factor applied.
func downscaleGray(img image.Image, maxSide int) (grid, float64) {
	b := img.Bounds()
	scale := 1.0
	if longest := max(b.Dx(), b.Dy()); maxSide > 0 && longest > maxSide {
		scale = float64(maxSide) / float64(longest)
	}
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))

	g := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(g, g.Bounds(), img, b, draw.Src, nil)
	return grid{w: w, h: h, pix: g.Pix}, scale
}

func sobel(g grid, threshold float64) grid {
	out := grid{w: g.w, h: g.h, pix: make([]uint8, len(g.pix))}
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			tl, tc, tr := float64(g.at(x-1, y-1)), float64(g.at(x, y-1)), float64(g.at(x+1, y-1))
			ml, mr := float64(g.at(x-1, y)), float64(g.at(x+1, y))
			bl, bc, br := float64(g.at(x-1, y+1)), float64(g.at(x, y+1)), float64(g.at(x+1, y+1))

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			if math.Sqrt(gx*gx+gy*gy) > threshold {
				out.pix[y*g.w+x] = 255
			}
		}
	}
	return out
}

// dilate connects nearby edges with a square max filter.
func dilate(g grid, kernelSize, iterations int) grid {
	half := kernelSize / 2
	cur := g
	for iter := 0; iter < iterations; iter++ {
		next := grid{w: g.w, h: g.h, pix: make([]uint8, len(g.pix))}
		for y := 0; y < g.h; y++ {
			for x := 0; x < g.w; x++ {
				var v uint8
				for ky := max(0, y-half); ky <= min(g.h-1, y+half) && v == 0; ky++ {
					for kx := max(0, x-half); kx <= min(g.w-1, x+half); kx++ {
						if cur.at(kx, ky) != 0 {
							v = 255
							break
						}
					}
				}
				next.pix[y*g.w+x] = v
			}
		}
		cur = next
	}
	return cur
}

// components returns bounding rectangles of 4-connected set pixels.
func components(g grid) []image.Rectangle {
	visited := make([]bool, len(g.pix))
	var rects []image.Rectangle
	var stack []int

	for start := range g.pix {
		if g.pix[start] == 0 || visited[start] {
			continue
		}
		minX, minY := g.w, g.h
		maxX, maxY := -1, -1

		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%g.w, i/g.w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
					continue
				}
				j := ny*g.w + nx
				if g.pix[j] != 0 && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
		rects = append(rects, image.Rect(minX, minY, maxX+1, maxY+1))
	}
	return rects
}

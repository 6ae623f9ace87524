package renderer

import (
	"github.com/ivlev/wideslider/internal/config"
)

// Window is the visible part of the source image, in source pixels.
// Coordinates are fractional so the 9:16 ratio stays exact at every zoom.
type Window struct {
	X, Y, W, H float64
}

func (w Window) Aspect() float64 {
	return w.W / w.H
}

// Contains reports whether w lies inside a srcW x srcH image.
func (w Window) Contains(srcW, srcH float64) bool {
	const eps = 1e-9
	return w.X >= -eps && w.Y >= -eps && w.X+w.W <= srcW+eps && w.Y+w.H <= srcH+eps
}

// Easing maps pan progress in [0,1] onto [0,1]. f(0) = 0 and f(1) = 1 exactly.
type Easing func(p float64) float64

func EasingByName(name string) Easing {
	switch name {
	case config.EasingSmoothstep:
		return smoothstep
	case config.EasingCubic:
		return easeInOutCubic
	default:
		return linear
	}
}

// Camera computes the pan window for a given time.
type Camera struct {
	srcW, srcH   float64
	baseW, baseH float64 // largest 9:16 window, zoom 1
	startZoom    float64
	endX         float64
	focusY       float64
	panEnd       float64
	ease         Easing
	static       bool
}

// NewCamera builds the pan trajectory for a srcW x srcH image. focusY is the
// vertical centre the zoomed window starts on.
func NewCamera(srcW, srcH int, p config.FrameParams, focusY float64) Camera {
	c := Camera{
		srcW:      float64(srcW),
		srcH:      float64(srcH),
		startZoom: p.StartZoom,
		focusY:    focusY,
		panEnd:    p.PanEnd,
		ease:      EasingByName(p.Easing),
	}
	if c.startZoom < 1 {
		c.startZoom = 1
	}

	// 9:16 или уже: панорамировать нечего, показываем всё изображение.
	if srcW*p.Height <= srcH*p.Width {
		c.static = true
		c.baseW, c.baseH = c.srcW, c.srcH
		return c
	}

	c.baseH = c.srcH
	c.baseW = c.srcH * float64(p.Width) / float64(p.Height)
	switch p.PanTarget {
	case config.PanTargetRight:
		c.endX = c.srcW - c.baseW
	default:
		c.endX = (c.srcW - c.baseW) / 2
	}
	return c
}

// Static is true when the source is 9:16 or taller.
func (c Camera) Static() bool {
	return c.static
}

// Progress is the linear pan progress at t, clamped to [0,1].
func (c Camera) Progress(t float64) float64 {
	if c.panEnd <= 0 {
		return 1
	}
	return clamp(t/c.panEnd, 0, 1)
}

func (c Camera) Window(t float64) Window {
	if c.static {
		return Window{W: c.srcW, H: c.srcH}
	}
	e := c.ease(c.Progress(t))

	zoom := lerp(c.startZoom, 1, e)
	w := c.baseW / zoom
	h := c.baseH / zoom
	x := lerp(0, c.endX, e)
	cy := lerp(c.focusY, c.srcH/2, e)
	y := clamp(cy-h/2, 0, c.srcH-h)

	return Window{X: x, Y: y, W: w, H: h}
}

// lerp is exact at both ends: lerp(a, b, 0) == a, lerp(a, b, 1) == b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func linear(p float64) float64 {
	return p
}

func smoothstep(p float64) float64 {
	return p * p * (3 - 2*p)
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

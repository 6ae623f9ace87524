package renderer

import (
	"image"

	"github.com/pkg/errors"

	"github.com/ivlev/wideslider/internal/analyzer"
	"github.com/ivlev/wideslider/internal/config"
	"github.com/ivlev/wideslider/internal/errs"
	"github.com/ivlev/wideslider/internal/system"
)

// Phase of the animation at a given time.
type Phase int

const (
	PhasePan Phase = iota
	PhaseFade
	PhaseHold
)

func (p Phase) String() string {
	switch p {
	case PhasePan:
		return "pan"
	case PhaseFade:
		return "fade"
	default:
		return "hold"
	}
}

// Renderer is the precomputed, read-only form of the frame composer for one
// source image. Frame and RenderFrame are pure functions of t and may be
// called from several goroutines.
type Renderer struct {
	params    config.FrameParams
	src       *image.RGBA
	cam       Camera
	letterbox *image.RGBA
	panEnd    *image.RGBA
}

// New prepares a renderer. It fails with *errs.UnsupportedImageError when the
// image has no pixels.
func New(img image.Image, p config.FrameParams) (*Renderer, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &errs.UnsupportedImageError{Err: errors.Errorf("empty raster %dx%d", b.Dx(), b.Dy())}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, errors.Errorf("invalid canvas %dx%d", p.Width, p.Height)
	}

	src := system.ToOpaqueRGBA(img)

	focusY := float64(b.Dy()) / 2
	if p.Focus != config.FocusCenter && p.Focus != "" {
		det, err := analyzer.NewDetector(p.Focus)
		if err != nil {
			return nil, err
		}
		focusY = analyzer.FocusY(det, src)
	}

	r := &Renderer{
		params: p,
		src:    src,
		cam:    NewCamera(b.Dx(), b.Dy(), p, focusY),
	}

	r.letterbox = r.NewCanvas()
	Letterbox(r.letterbox, src)

	r.panEnd = r.NewCanvas()
	r.renderPan(r.panEnd, r.cam.Window(1))

	return r, nil
}

// Compose renders a single frame of img at time t.
func Compose(img image.Image, t float64, p config.FrameParams) (*image.RGBA, error) {
	r, err := New(img, p)
	if err != nil {
		return nil, err
	}
	return r.Frame(t), nil
}

func (r *Renderer) NewCanvas() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, r.params.Width, r.params.Height))
}

func (r *Renderer) Camera() Camera {
	return r.cam
}

func (r *Renderer) Phase(t float64) Phase {
	t = clamp(t, 0, 1)
	switch {
	case t <= r.params.PanEnd:
		return PhasePan
	case t < r.params.FadeEnd:
		return PhaseFade
	default:
		return PhaseHold
	}
}

// Window returns the visible source region at t. During the fade the pan end
// window stays frozen; once the fade is over the whole image is visible.
func (r *Renderer) Window(t float64) Window {
	switch r.Phase(t) {
	case PhasePan:
		return r.cam.Window(clamp(t, 0, 1))
	case PhaseFade:
		return r.cam.Window(1)
	default:
		b := r.src.Bounds()
		return Window{W: float64(b.Dx()), H: float64(b.Dy())}
	}
}

// Alpha is the weight of the letterboxed image at t.
func (r *Renderer) Alpha(t float64) float64 {
	switch r.Phase(t) {
	case PhasePan:
		return 0
	case PhaseFade:
		return (clamp(t, 0, 1) - r.params.PanEnd) / (r.params.FadeEnd - r.params.PanEnd)
	default:
		return 1
	}
}

func (r *Renderer) Frame(t float64) *image.RGBA {
	dst := r.NewCanvas()
	r.RenderFrame(dst, t)
	return dst
}

// RenderFrame overwrites every pixel of dst, which must be Width x Height.
func (r *Renderer) RenderFrame(dst *image.RGBA, t float64) {
	t = clamp(t, 0, 1)
	switch r.Phase(t) {
	case PhasePan:
		r.renderPan(dst, r.cam.Window(t))
	case PhaseFade:
		Blend(dst, r.panEnd, r.letterbox, r.Alpha(t))
	default:
		copyCanvas(dst, r.letterbox)
	}
}

// PanEndFrame and LetterboxFrame expose the two fade inputs.
func (r *Renderer) PanEndFrame() *image.RGBA {
	dst := r.NewCanvas()
	copyCanvas(dst, r.panEnd)
	return dst
}

func (r *Renderer) LetterboxFrame() *image.RGBA {
	dst := r.NewCanvas()
	copyCanvas(dst, r.letterbox)
	return dst
}

func (r *Renderer) renderPan(dst *image.RGBA, w Window) {
	if r.cam.Static() {
		copyCanvas(dst, r.letterbox)
		return
	}
	CoverWindow(dst, r.src, w)
}

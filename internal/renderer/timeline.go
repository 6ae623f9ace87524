package renderer

import (
	"math"

	"github.com/ivlev/wideslider/internal/config"
)

// Timeline maps output frame indexes to normalized time.
type Timeline struct {
	Frames int
}

// NewTimeline returns round(duration*fps) frames, at least one.
func NewTimeline(duration float64, fps int) Timeline {
	return Timeline{Frames: config.FrameCount(duration, fps)}
}

// At returns t = i/(Frames-1). A single-frame timeline is t = 0.
func (tl Timeline) At(i int) float64 {
	if tl.Frames <= 1 {
		return 0
	}
	return clamp(float64(i)/float64(tl.Frames-1), 0, 1)
}

func (tl Timeline) Samples() []float64 {
	out := make([]float64, tl.Frames)
	for i := range out {
		out[i] = tl.At(i)
	}
	return out
}

// FrameAt returns the first frame index whose time is >= t.
func (tl Timeline) FrameAt(t float64) int {
	if tl.Frames <= 1 {
		return 0
	}
	i := int(math.Ceil(t * float64(tl.Frames-1)))
	if i < 0 {
		return 0
	}
	if i >= tl.Frames {
		return tl.Frames - 1
	}
	return i
}

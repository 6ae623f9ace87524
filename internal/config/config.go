package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Выходной кадр всегда вертикальный 9:16.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
)

const (
	PanTargetCenter = "center"
	PanTargetRight  = "right"

	EasingLinear     = "linear"
	EasingSmoothstep = "smoothstep"
	EasingCubic      = "cubic"

	FocusCenter   = "center"
	FocusContrast = "contrast"

	SinkFFmpeg = "ffmpeg"
	SinkFrames = "frames"

	EncoderAuto = "auto"
)

// Config holds every recognized option of a batch run.
type Config struct {
	InputDir        string  `yaml:"input_dir"`
	OutputDir       string  `yaml:"output_dir"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	FrameRate       int     `yaml:"frame_rate"`
	PanEndFraction  float64 `yaml:"pan_end_fraction"`
	FadeEndFraction float64 `yaml:"fade_end_fraction"`
	StartZoom       float64 `yaml:"start_zoom"`
	PanTarget       string  `yaml:"pan_target"`
	Easing          string  `yaml:"easing"`
	Focus           string  `yaml:"focus"`
	Workers         int     `yaml:"workers"`
	Sink            string  `yaml:"sink"`
	VideoEncoder    string  `yaml:"video_encoder"`
	Quality         int     `yaml:"quality"`
	Verify          bool    `yaml:"verify"`
	Debug           bool    `yaml:"debug"`
	ShowStats       bool    `yaml:"show_stats"`
	BuildVersion    string  `yaml:"-"`
}

// FrameParams is everything the frame composer needs.
type FrameParams struct {
	Width, Height int
	PanEnd        float64
	FadeEnd       float64
	StartZoom     float64
	PanTarget     string
	Easing        string
	Focus         string
}

// StreamParams describes one output video for a sink.
type StreamParams struct {
	Width, Height int
	FPS           int
	Frames        int
	Encoder       string
	Quality       int
}

func Default() *Config {
	return &Config{
		InputDir:        "input",
		OutputDir:       "output",
		DurationSeconds: 4,
		FrameRate:       30,
		PanEndFraction:  0.6,
		FadeEndFraction: 1.0,
		StartZoom:       1.5,
		PanTarget:       PanTargetCenter,
		Easing:          EasingLinear,
		Focus:           FocusCenter,
		Sink:            SinkFFmpeg,
		VideoEncoder:    EncoderAuto,
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Write stores the config as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var problems []string
	if c.InputDir == "" {
		problems = append(problems, "input_dir is empty")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is empty")
	}
	if c.DurationSeconds <= 0 {
		problems = append(problems, fmt.Sprintf("duration_seconds must be > 0, got %v", c.DurationSeconds))
	}
	if c.FrameRate <= 0 {
		problems = append(problems, fmt.Sprintf("frame_rate must be > 0, got %d", c.FrameRate))
	}
	if c.PanEndFraction < 0 || c.PanEndFraction > 1 {
		problems = append(problems, fmt.Sprintf("pan_end_fraction must be in [0,1], got %v", c.PanEndFraction))
	}
	if c.FadeEndFraction < c.PanEndFraction || c.FadeEndFraction > 1 {
		problems = append(problems, fmt.Sprintf("fade_end_fraction must be in [pan_end_fraction,1], got %v", c.FadeEndFraction))
	}
	if c.StartZoom < 1 || c.StartZoom > 8 {
		problems = append(problems, fmt.Sprintf("start_zoom must be in [1,8], got %v", c.StartZoom))
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must be >= 0, got %d", c.Workers))
	}
	if c.VideoEncoder == "" {
		problems = append(problems, "video_encoder is empty")
	}
	if c.Quality < 0 {
		problems = append(problems, fmt.Sprintf("quality must be >= 0, got %d", c.Quality))
	}
	problems = append(problems, oneOf("pan_target", c.PanTarget, PanTargetCenter, PanTargetRight)...)
	problems = append(problems, oneOf("easing", c.Easing, EasingLinear, EasingSmoothstep, EasingCubic)...)
	problems = append(problems, oneOf("focus", c.Focus, FocusCenter, FocusContrast)...)
	problems = append(problems, oneOf("sink", c.Sink, SinkFFmpeg, SinkFrames)...)

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(key, value string, allowed ...string) []string {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []string{fmt.Sprintf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)}
}

// TotalFrames is duration_seconds × frame_rate, at least one frame.
func (c *Config) TotalFrames() int {
	return FrameCount(c.DurationSeconds, c.FrameRate)
}

// FrameCount is round(duration*fps), at least one frame.
func FrameCount(duration float64, fps int) int {
	n := int(math.Round(duration * float64(fps)))
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Config) FrameParams() FrameParams {
	return FrameParams{
		Width:     CanvasWidth,
		Height:    CanvasHeight,
		PanEnd:    c.PanEndFraction,
		FadeEnd:   c.FadeEndFraction,
		StartZoom: c.StartZoom,
		PanTarget: c.PanTarget,
		Easing:    c.Easing,
		Focus:     c.Focus,
	}
}

// StreamParams needs a resolved encoder name (see system.BestH264Encoder).
func (c *Config) StreamParams(encoder string) StreamParams {
	return StreamParams{
		Width:   CanvasWidth,
		Height:  CanvasHeight,
		FPS:     c.FrameRate,
		Frames:  c.TotalFrames(),
		Encoder: encoder,
		Quality: QualityFor(encoder, c.Quality),
	}
}

// QualityFor returns q, or the per-encoder default when q is 0.
func QualityFor(encoder string, q int) int {
	if q > 0 {
		return q
	}
	switch encoder {
	case "h264_videotoolbox":
		return 75 // битрейт = Q*100 кбит/с
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}

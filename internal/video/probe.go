package video

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/wideslider/internal/config"
)

// Info is what ffprobe reports about an encoded video.
type Info struct {
	Codec    string
	Width    int
	Height   int
	Frames   int
	Duration float64
}

// Probe runs ffprobe on path.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, errors.Wrapf(err, "probe %s", path)
	}
	return ParseProbe(out)
}

// ParseProbe reads ffprobe's JSON (-show_format -show_streams).
func ParseProbe(js string) (Info, error) {
	if !gjson.Valid(js) {
		return Info{}, errors.New("probe output is not valid JSON")
	}
	stream := gjson.Get(js, `streams.#(codec_type=="video")`)
	if !stream.Exists() {
		return Info{}, errors.New("no video stream found")
	}

	info := Info{
		Codec:  stream.Get("codec_name").String(),
		Width:  int(stream.Get("width").Int()),
		Height: int(stream.Get("height").Int()),
		Frames: int(stream.Get("nb_frames").Int()),
	}
	info.Duration = gjson.Get(js, "format.duration").Float()
	if info.Duration == 0 {
		info.Duration = stream.Get("duration").Float()
	}
	return info, nil
}

// Verify checks an encoded video against the stream it was written for.
// A missing frame count is not an error: some containers do not store it.
func Verify(info Info, p config.StreamParams) error {
	if info.Width != p.Width || info.Height != p.Height {
		return fmt.Errorf("video is %dx%d, expected %dx%d", info.Width, info.Height, p.Width, p.Height)
	}
	if info.Frames > 0 && info.Frames != p.Frames {
		return fmt.Errorf("video has %d frames, expected %d", info.Frames, p.Frames)
	}
	return nil
}

// Verifier is implemented by sinks whose output can be checked after Close.
type Verifier interface {
	VerifyOutput(path string, p config.StreamParams) error
}

func (s *FFmpegSink) VerifyOutput(path string, p config.StreamParams) error {
	info, err := Probe(path)
	if err != nil {
		return err
	}
	return Verify(info, p)
}

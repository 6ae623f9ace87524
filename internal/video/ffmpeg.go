package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/ivlev/wideslider/internal/config"
)

// FFmpegSink streams raw RGBA frames into an ffmpeg process over stdin and
// produces an H.264 MP4.
type FFmpegSink struct {
	Binary string // "ffmpeg" when empty
}

func (s *FFmpegSink) Ext() string {
	return ".mp4"
}

func (s *FFmpegSink) Open(ctx context.Context, path string, p config.StreamParams) (FrameWriter, error) {
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, buildFFmpegArgs(path, p)...)
	w := &ffmpegWriter{cmd: cmd, path: path, params: p}
	cmd.Stdout = &w.out
	cmd.Stderr = &w.out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "ffmpeg start")
	}
	w.stdin = stdin
	return w, nil
}

func buildFFmpegArgs(videoPath string, p config.StreamParams) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
		"-an",
		"-c:v", p.Encoder,
	}

	// Качество в зависимости от энкодера
	switch p.Encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", "medium")
	}

	args = append(args, "-pix_fmt", "yuv420p", "-movflags", "+faststart", videoPath)
	return args
}

type ffmpegWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer // пишется горутинами exec до возврата Wait
	path   string
	params config.StreamParams
	frames int

	waited  bool
	waitErr error
}

// wait closes stdin and reaps ffmpeg once. w.out may be read only after it.
func (w *ffmpegWriter) wait() error {
	if !w.waited {
		w.stdin.Close()
		w.waitErr = w.cmd.Wait()
		w.waited = true
	}
	return w.waitErr
}

func (w *ffmpegWriter) WriteFrame(img *image.RGBA) error {
	if w.waited {
		return errors.New("ffmpeg already finished")
	}
	if err := checkFrame(img, w.params); err != nil {
		return err
	}
	if err := writeRawRGBA(w.stdin, img); err != nil {
		// Запись в stdin падает, когда ffmpeg уже завершился: забираем его вывод.
		w.wait()
		return errors.Wrapf(err, "write frame %d: %s", w.frames, tail(w.out.String()))
	}
	w.frames++
	return nil
}

func (w *ffmpegWriter) Close() error {
	if err := w.wait(); err != nil {
		return errors.Wrapf(err, "ffmpeg wait: %s", tail(w.out.String()))
	}
	if w.frames == 0 {
		return errors.New("no frames written")
	}
	return nil
}

func (w *ffmpegWriter) Abort() {
	if !w.waited && w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.wait()
	os.Remove(w.path)
}

// writeRawRGBA writes the pixel rows of img without stride padding.
func writeRawRGBA(wr io.Writer, img *image.RGBA) error {
	rowLen := img.Rect.Dx() * 4
	if img.Stride == rowLen {
		_, err := wr.Write(img.Pix[:rowLen*img.Rect.Dy()])
		return err
	}
	for y := 0; y < img.Rect.Dy(); y++ {
		if _, err := wr.Write(img.Pix[y*img.Stride : y*img.Stride+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

// tail keeps the last lines of ffmpeg output for error messages.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}

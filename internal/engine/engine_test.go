package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ivlev/wideslider/internal/config"
	"github.com/ivlev/wideslider/internal/errs"
	"github.com/ivlev/wideslider/internal/source"
	"github.com/ivlev/wideslider/internal/system"
	"github.com/ivlev/wideslider/internal/video"
)

// fakeSink records what the batch writes instead of running ffmpeg.
type fakeSink struct {
	mu      sync.Mutex
	frames  map[string][]uint32 // checksum per frame
	closed  map[string]bool
	aborted map[string]bool
	failAt  int // frame index that fails, -1 never
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		frames:  make(map[string][]uint32),
		closed:  make(map[string]bool),
		aborted: make(map[string]bool),
		failAt:  -1,
	}
}

func (s *fakeSink) Ext() string { return ".mp4" }

func (s *fakeSink) Open(ctx context.Context, path string, p config.StreamParams) (video.FrameWriter, error) {
	return &fakeWriter{sink: s, path: path, params: p}, nil
}

type fakeWriter struct {
	sink   *fakeSink
	path   string
	params config.StreamParams
	n      int
}

func (w *fakeWriter) WriteFrame(img *image.RGBA) error {
	if img.Rect.Dx() != w.params.Width || img.Rect.Dy() != w.params.Height {
		return fmt.Errorf("bad frame size %v", img.Rect)
	}
	if w.n == w.sink.failAt {
		return errors.New("pipe broken")
	}
	var sum uint32
	for _, v := range img.Pix {
		sum = sum*31 + uint32(v)
	}
	w.sink.mu.Lock()
	w.sink.frames[w.path] = append(w.sink.frames[w.path], sum)
	w.sink.mu.Unlock()
	w.n++
	return nil
}

func (w *fakeWriter) Close() error {
	w.sink.mu.Lock()
	w.sink.closed[w.path] = true
	w.sink.mu.Unlock()
	return nil
}

func (w *fakeWriter) Abort() {
	w.sink.mu.Lock()
	w.sink.aborted[w.path] = true
	w.sink.mu.Unlock()
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	encode := png.Encode
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		encode = func(out io.Writer, m image.Image) error { return jpeg.Encode(out, m, nil) }
	}
	if err := encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DurationSeconds = 0.4
	cfg.FrameRate = 10 // 4 кадра
	cfg.Workers = 2
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func newTestBatch(t *testing.T, cfg *config.Config, dir string, sink video.Sink) (*Batch, *test.Hook) {
	t.Helper()
	src, err := source.NewImageSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger, hook := test.NewNullLogger()
	cfg.InputDir = dir
	b := NewBatch(cfg, src, sink, "libx264", logger)
	b.StatsPath = filepath.Join(t.TempDir(), "benchmark.log")
	return b, hook
}

func TestBatchMixedInputs(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "wide.png"), 320, 180)
	os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("definitely not a jpeg"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644)

	cfg := testConfig(t)
	sink := newFakeSink()
	b, hook := newTestBatch(t, cfg, dir, sink)

	rep, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Файлы идут в отсортированном порядке.
	want := map[string]Status{
		"broken.jpg": StatusFailed,
		"notes.txt":  StatusSkipped,
		"wide.png":   StatusDone,
	}
	if len(rep.Results) != len(want) {
		t.Fatalf("Expected %d results, got %d", len(want), len(rep.Results))
	}
	for _, res := range rep.Results {
		name := filepath.Base(res.Input)
		if res.Status != want[name] {
			t.Errorf("%s: status %v, want %v (err %v)", name, res.Status, want[name], res.Err)
		}
	}
	if rep.Failed() != 1 || rep.Skipped() != 1 || rep.Done() != 1 {
		t.Errorf("Unexpected counts: done %d skipped %d failed %d", rep.Done(), rep.Skipped(), rep.Failed())
	}

	var uie *errs.UnsupportedImageError
	if !errors.As(rep.Results[0].Err, &uie) {
		t.Errorf("broken.jpg should fail with UnsupportedImageError, got %v", rep.Results[0].Err)
	}
	var ufe *errs.UnsupportedFormatError
	if !errors.As(rep.Results[1].Err, &ufe) {
		t.Errorf("notes.txt should be skipped with UnsupportedFormatError, got %v", rep.Results[1].Err)
	}

	out := filepath.Join(cfg.OutputDir, "wide.mp4")
	if rep.Results[2].Output != out {
		t.Errorf("Output = %s, want %s", rep.Results[2].Output, out)
	}
	if got := len(sink.frames[out]); got != 4 {
		t.Errorf("Expected 4 frames, got %d", got)
	}
	if !sink.closed[out] {
		t.Error("Writer was not closed")
	}
	if rep.Frames() != 4 {
		t.Errorf("Report frames = %d", rep.Frames())
	}

	var warned, failed bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["file"] == "notes.txt" {
			warned = true
		}
		if e.Level == logrus.ErrorLevel && e.Data["file"] == "broken.jpg" {
			failed = true
		}
	}
	if !warned || !failed {
		t.Errorf("Expected a warning for notes.txt and an error for broken.jpg (warn %v, error %v)", warned, failed)
	}
}

func TestBatchFramesDiffer(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 400, 100)

	cfg := testConfig(t)
	sink := newFakeSink()
	b, _ := newTestBatch(t, cfg, dir, sink)
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	sums := sink.frames[filepath.Join(cfg.OutputDir, "a.mp4")]
	if len(sums) != 4 {
		t.Fatalf("Expected 4 frames, got %d", len(sums))
	}
	if sums[0] == sums[1] {
		t.Error("Pan frames should move")
	}
}

func TestBatchDebugStamp(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 400, 100)

	plain := newFakeSink()
	cfg := testConfig(t)
	b, _ := newTestBatch(t, cfg, dir, plain)
	b.Run(context.Background())

	stamped := newFakeSink()
	cfg = testConfig(t)
	cfg.Debug = true
	b, _ = newTestBatch(t, cfg, dir, stamped)
	b.Run(context.Background())

	a, s := onlyOutput(t, plain), onlyOutput(t, stamped)
	if len(a) != len(s) {
		t.Fatalf("frame counts differ: %d vs %d", len(a), len(s))
	}
	for k := range a {
		if a[k] == s[k] {
			t.Errorf("frame %d: debug stamp did not change the frame", k)
		}
	}
}

func onlyOutput(t *testing.T, s *fakeSink) []uint32 {
	t.Helper()
	if len(s.frames) != 1 {
		t.Fatalf("Expected one output, got %d", len(s.frames))
	}
	for _, sums := range s.frames {
		return sums
	}
	return nil
}

func TestBatchEncodingFailure(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 320, 180)

	cfg := testConfig(t)
	sink := newFakeSink()
	sink.failAt = 2
	b, _ := newTestBatch(t, cfg, dir, sink)

	rep, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed() != 1 {
		t.Fatalf("Expected one failure, got %d", rep.Failed())
	}
	var ee *errs.EncodingError
	if !errors.As(rep.Results[0].Err, &ee) {
		t.Errorf("Expected EncodingError, got %v", rep.Results[0].Err)
	}
	out := filepath.Join(cfg.OutputDir, "a.mp4")
	if !sink.aborted[out] {
		t.Error("Failed output should be aborted")
	}
	if sink.closed[out] {
		t.Error("Failed output should not be closed")
	}
}

func TestBatchEmptyInput(t *testing.T) {
	cfg := testConfig(t)
	b, hook := newTestBatch(t, cfg, t.TempDir(), newFakeSink())

	rep, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Empty input should not fail: %v", err)
	}
	if len(rep.Results) != 0 || rep.Failed() != 0 {
		t.Errorf("Unexpected report: %+v", rep)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Errorf("Expected a warning, got %v", e)
	}
}

func TestBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 320, 180)
	writeImage(t, filepath.Join(dir, "b.png"), 320, 180)

	cfg := testConfig(t)
	sink := newFakeSink()
	b, _ := newTestBatch(t, cfg, dir, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := b.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if rep == nil || rep.Failed() != 2 {
		t.Errorf("Cancelled images should be reported as failed: %+v", rep)
	}
	if len(sink.closed) != 0 {
		t.Error("No output should be finished after cancellation")
	}
}

func TestBatchStats(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 320, 180)

	cfg := testConfig(t)
	cfg.ShowStats = true
	cfg.BuildVersion = "test"
	b, _ := newTestBatch(t, cfg, dir, newFakeSink())
	if _, err := b.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(b.StatsPath)
	if err != nil {
		t.Fatalf("benchmark log not written: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "Build: test") || !strings.Contains(line, "Frames: 4") {
		t.Errorf("Unexpected benchmark line: %s", line)
	}
}

func TestOutputPath(t *testing.T) {
	b := &Batch{Config: &config.Config{OutputDir: "out"}, Sink: newFakeSink()}
	tests := []struct {
		in   string
		want string
	}{
		{"input/photo.jpg", filepath.Join("out", "photo.mp4")},
		{"input/Pano.Final.PNG", filepath.Join("out", "Pano.Final.mp4")},
		{"noext", filepath.Join("out", "noext.mp4")},
	}
	for _, tt := range tests {
		if got := b.OutputPath(tt.in); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	frames := &Batch{Config: &config.Config{OutputDir: "out"}, Sink: &video.FrameDirSink{}}
	if got := frames.OutputPath("input/photo.jpg"); got != filepath.Join("out", "photo") {
		t.Errorf("Frame sink output = %q", got)
	}
}

func TestReportStats(t *testing.T) {
	rep := &Report{
		Results: []Result{
			{Status: StatusDone, Frames: 120},
			{Status: StatusSkipped},
			{Status: StatusFailed},
		},
		Workers: 2,
		Elapsed: 2 * time.Second,
	}
	if rep.FPS() != 60 {
		t.Errorf("FPS = %v, want 60", rep.FPS())
	}
	s := rep.Stats("dev", system.Snapshot{LogicalCPUs: 8})
	for _, want := range []string{"Build: dev", "1 done, 1 skipped, 1 failed", "Frames: 120", "Workers: 2"} {
		if !strings.Contains(s, want) {
			t.Errorf("Stats missing %q:\n%s", want, s)
		}
	}
	t.Logf("\n%s", s)
}

func TestBatchSameStemGetsDistinctOutputs(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "pic.jpeg"), 320, 180)
	writeImage(t, filepath.Join(dir, "pic.png"), 400, 100)
	writeImage(t, filepath.Join(dir, "shot.jpg.png"), 320, 180)
	os.WriteFile(filepath.Join(dir, "pic.txt"), []byte("x"), 0644)

	cfg := testConfig(t)
	sink := newFakeSink()
	b, _ := newTestBatch(t, cfg, dir, sink)

	rep, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Done() != 3 || rep.Skipped() != 1 {
		t.Fatalf("Unexpected counts: done %d skipped %d failed %d", rep.Done(), rep.Skipped(), rep.Failed())
	}

	// Порядок: pic.jpeg, pic.png, pic.txt, shot.jpg.png
	want := []string{
		filepath.Join(cfg.OutputDir, "pic.mp4"),
		filepath.Join(cfg.OutputDir, "pic_png.mp4"),
		"",
		filepath.Join(cfg.OutputDir, "shot.jpg.mp4"),
	}
	seen := make(map[string]bool)
	for i, res := range rep.Results {
		if res.Output != want[i] {
			t.Errorf("%s: output %q, want %q", filepath.Base(res.Input), res.Output, want[i])
		}
		if res.Output == "" {
			continue
		}
		if seen[res.Output] {
			t.Errorf("output %s used twice", res.Output)
		}
		seen[res.Output] = true
		if got := len(sink.frames[res.Output]); got != 4 {
			t.Errorf("%s: %d frames recorded, want 4", res.Output, got)
		}
	}
}

// pathSource lists names without touching the filesystem.
type pathSource []string

func (s pathSource) ImageCount() int                  { return len(s) }
func (s pathSource) Path(i int) string                { return s[i] }
func (s pathSource) Dimensions(int) (int, int, error) { return 0, 0, errors.New("not loaded") }
func (s pathSource) Load(int) (*image.RGBA, error)    { return nil, errors.New("not loaded") }
func (s pathSource) Close() error                     { return nil }

func TestPlanOutputs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"unique", []string{"a.jpg", "b.png"}, []string{"a.mp4", "b.mp4"}},
		{"same stem", []string{"shot.jpg", "shot.png"}, []string{"shot.mp4", "shot_png.mp4"}},
		{"case only", []string{"Pic.jpg", "pic.jpg"}, []string{"Pic.mp4", "pic_jpg.mp4"}},
		{"counter", []string{"b.PNG", "b.pNg", "b.png"}, []string{"b.mp4", "b_png.mp4", "b_png_2.mp4"}},
		{"suffix taken", []string{"a.jpg", "a.png", "a_png.png"}, []string{"a.mp4", "a_png.mp4", "a_png_png.mp4"}},
		{"unsupported ignored", []string{"c.txt", "c.jpg"}, []string{"", "c.mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			b := NewBatch(&config.Config{OutputDir: "out"}, pathSource(tt.in), newFakeSink(), "libx264", logger)
			got := b.planOutputs(len(tt.in))
			for i := range tt.want {
				want := tt.want[i]
				if want != "" {
					want = filepath.Join("out", want)
				}
				if got[i] != want {
					t.Errorf("%s -> %q, want %q", tt.in[i], got[i], want)
				}
			}
		})
	}
}

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/wideslider/internal/config"
	"github.com/ivlev/wideslider/internal/effects"
	"github.com/ivlev/wideslider/internal/errs"
	"github.com/ivlev/wideslider/internal/renderer"
	"github.com/ivlev/wideslider/internal/source"
	"github.com/ivlev/wideslider/internal/system"
	"github.com/ivlev/wideslider/internal/video"
)

// Batch converts every image of a source into one vertical video each.
type Batch struct {
	Config  *config.Config
	Source  source.Source
	Sink    video.Sink
	Encoder string
	Log     logrus.FieldLogger

	// StatsPath is where show_stats appends its line.
	StatsPath string
}

func NewBatch(cfg *config.Config, src source.Source, sink video.Sink, encoder string, log logrus.FieldLogger) *Batch {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Batch{
		Config:    cfg,
		Source:    src,
		Sink:      sink,
		Encoder:   encoder,
		Log:       log,
		StatsPath: "benchmark.log",
	}
}

// Run processes all images. Per-file problems end up in the report; the
// returned error is reserved for setup failures and cancellation.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	count := b.Source.ImageCount()
	if count == 0 {
		b.Log.Warnf("[!] Нет файлов во входной папке: %s", b.Config.InputDir)
		return &Report{}, nil
	}

	if err := os.MkdirAll(b.Config.OutputDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create output dir")
	}

	workers := b.workers(count)
	p := b.Config.StreamParams(b.Encoder)
	tl := renderer.NewTimeline(b.Config.DurationSeconds, b.Config.FrameRate)
	outputs := b.planOutputs(count)

	b.Log.Infof("[*] Источник: %s | Файлов: %d", b.Config.InputDir, count)
	b.Log.Infof("[*] Кадр: %dx%d @ %d FPS | %d кадров на видео | Энкодер: %s | Воркеров: %d",
		p.Width, p.Height, p.FPS, p.Frames, p.Encoder, workers)
	b.Log.Debugf("[*] Переход начинается с кадра %d", tl.FrameAt(b.Config.PanEndFraction))

	rep := &Report{Results: make([]Result, count), Workers: workers}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			rep.Results[i] = b.process(ctx, i, outputs[i], tl, p)
			return nil
		})
	}
	g.Wait()
	rep.Elapsed = time.Since(start)

	b.Log.Infof("[*] Готово: %d | Пропущено: %d | Ошибок: %d | %.2fs",
		rep.Done(), rep.Skipped(), rep.Failed(), rep.Elapsed.Seconds())

	if b.Config.ShowStats {
		b.Log.Info("\n" + rep.Stats(b.Config.BuildVersion, system.TakeSnapshot()))
		if err := rep.AppendBenchmark(b.StatsPath, b.Config.BuildVersion, b.Config.InputDir, time.Now()); err != nil {
			b.Log.Warnf("[!] Не удалось записать %s: %v", b.StatsPath, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// OutputPath is the input stem plus the sink extension inside OutputDir.
func (b *Batch) OutputPath(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(b.Config.OutputDir, stem+b.Sink.Ext())
}

// planOutputs assigns every supported input its own output path. The first
// input of a stem keeps OutputPath; later ones with the same stem (shot.jpg
// and shot.png, or pic.png and pic.PNG) get the extension appended to the
// stem, then a counter. Names are compared case-insensitively.
func (b *Batch) planOutputs(count int) []string {
	outputs := make([]string, count)
	taken := make(map[string]bool)
	for i := 0; i < count; i++ {
		in := b.Source.Path(i)
		if !source.Supported(in) {
			continue
		}

		out := b.OutputPath(in)
		if taken[strings.ToLower(out)] {
			base := filepath.Base(in)
			ext := filepath.Ext(base)
			stem := strings.TrimSuffix(base, ext) + "_" + strings.ToLower(strings.TrimPrefix(ext, "."))
			out = filepath.Join(b.Config.OutputDir, stem+b.Sink.Ext())
			for n := 2; taken[strings.ToLower(out)]; n++ {
				out = filepath.Join(b.Config.OutputDir, fmt.Sprintf("%s_%d%s", stem, n, b.Sink.Ext()))
			}
			b.Log.WithField("file", base).Warnf("[!] Имя занято другим файлом, вывод: %s", out)
		}
		taken[strings.ToLower(out)] = true
		outputs[i] = out
	}
	return outputs
}

func (b *Batch) workers(count int) int {
	// Бюджет памяти считаем по самому большому исходнику.
	var srcPixels int
	for i := 0; i < count; i++ {
		if w, h, err := b.Source.Dimensions(i); err == nil {
			srcPixels = max(srcPixels, w*h)
		}
	}
	perWorker := system.WorkerBytes(srcPixels, config.CanvasWidth*config.CanvasHeight)
	return min(system.SuggestWorkers(b.Config.Workers, perWorker), count)
}

func (b *Batch) process(ctx context.Context, i int, out string, tl renderer.Timeline, p config.StreamParams) Result {
	start := time.Now()
	in := b.Source.Path(i)
	res := Result{Input: in}
	log := b.Log.WithField("file", filepath.Base(in))

	frames, err := b.convert(ctx, in, i, out, tl, p)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		var ufe *errs.UnsupportedFormatError
		if errors.As(err, &ufe) {
			res.Status = StatusSkipped
			log.Warnf("[!] Пропуск: %v", err)
		} else {
			res.Status = StatusFailed
			log.Errorf("[!] Ошибка: %v", err)
		}
		return res
	}

	res.Status = StatusDone
	res.Output = out
	res.Frames = frames
	log.WithFields(logrus.Fields{"frames": frames, "output": out}).
		Infof("[>] Готово за %.2fs", res.Elapsed.Seconds())
	return res
}

func (b *Batch) convert(ctx context.Context, in string, i int, out string, tl renderer.Timeline, p config.StreamParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	img, err := b.Source.Load(i)
	if err != nil {
		return 0, err
	}

	r, err := renderer.New(img, b.Config.FrameParams())
	if err != nil {
		var uie *errs.UnsupportedImageError
		if errors.As(err, &uie) && uie.Path == "" {
			uie.Path = in
		}
		return 0, err
	}

	w, err := b.Sink.Open(ctx, out, p)
	if err != nil {
		return 0, &errs.EncodingError{Path: out, Err: err}
	}

	canvas := system.GetImage(p.Width, p.Height)
	defer system.PutImage(canvas)

	name := filepath.Base(in)
	for k, t := range tl.Samples() {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return 0, err
		}

		r.RenderFrame(canvas, t)
		if b.Config.Debug {
			if err := effects.Stamp(canvas, effects.FrameLabel(name, k, tl.Frames, t)); err != nil {
				b.Log.WithField("file", name).Debugf("[!] Штамп кадра %d: %v", k, err)
			}
		}
		if err := w.WriteFrame(canvas); err != nil {
			w.Abort()
			return 0, &errs.EncodingError{Path: out, Err: err}
		}
	}

	if err := w.Close(); err != nil {
		w.Abort()
		return 0, &errs.EncodingError{Path: out, Err: err}
	}

	if v, ok := b.Sink.(video.Verifier); ok && b.Config.Verify {
		if err := v.VerifyOutput(out, p); err != nil {
			os.RemoveAll(out)
			return 0, &errs.EncodingError{Path: out, Err: errors.Wrap(err, "verify")}
		}
	}
	return tl.Frames, nil
}

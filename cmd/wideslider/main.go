package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivlev/wideslider/internal/config"
	"github.com/ivlev/wideslider/internal/engine"
	"github.com/ivlev/wideslider/internal/source"
	"github.com/ivlev/wideslider/internal/system"
	"github.com/ivlev/wideslider/internal/video"
)

// version задаётся при сборке: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := config.Default()
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "wideslider",
		Short:         "Turns wide images into 1080x1920 pan-and-reveal videos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)

			cfg, err := resolveConfig(cmd.Flags(), configPath, flags)
			if err != nil {
				log.Errorf("[-] %v", err)
				return err
			}
			cfg.BuildVersion = version

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, log); err != nil {
				log.Errorf("[-] %v", err)
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "YAML-файл с настройками (флаги имеют приоритет)")
	root.Flags().BoolVar(&verbose, "verbose", false, "Подробный лог")
	bindConfigFlags(root.Flags(), flags)

	root.AddCommand(newInitConfigCmd())
	return root
}

// bindConfigFlags binds one flag per config key; defaults come from cfg.
func bindConfigFlags(f *pflag.FlagSet, cfg *config.Config) {
	f.StringVar(&cfg.InputDir, "input", cfg.InputDir, "Папка с изображениями (или один файл)")
	f.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Папка для видео")
	f.Float64Var(&cfg.DurationSeconds, "duration", cfg.DurationSeconds, "Длительность видео (сек)")
	f.IntVar(&cfg.FrameRate, "fps", cfg.FrameRate, "FPS")
	f.Float64Var(&cfg.PanEndFraction, "pan-end", cfg.PanEndFraction, "Конец панорамы, доля длительности [0,1]")
	f.Float64Var(&cfg.FadeEndFraction, "fade-end", cfg.FadeEndFraction, "Конец перехода, доля длительности [pan-end,1]")
	f.Float64Var(&cfg.StartZoom, "start-zoom", cfg.StartZoom, "Начальный зум окна (>= 1)")
	f.StringVar(&cfg.PanTarget, "pan-target", cfg.PanTarget, "Куда едет окно: center, right")
	f.StringVar(&cfg.Easing, "easing", cfg.Easing, "Сглаживание: linear, smoothstep, cubic")
	f.StringVar(&cfg.Focus, "focus", cfg.Focus, "Вертикальный фокус зума: center, contrast")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Параллельных изображений (0 - авто)")
	f.StringVar(&cfg.Sink, "sink", cfg.Sink, "Выход: ffmpeg (mp4), frames (PNG-кадры)")
	f.StringVar(&cfg.VideoEncoder, "encoder", cfg.VideoEncoder, "H.264 энкодер (auto - аппаратный, если есть)")
	f.IntVar(&cfg.Quality, "quality", cfg.Quality, "Качество (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	f.BoolVar(&cfg.Verify, "verify", cfg.Verify, "Проверять готовое видео через ffprobe")
	f.BoolVar(&cfg.Debug, "debug", cfg.Debug, "QR-метка с номером кадра в углу")
	f.BoolVar(&cfg.ShowStats, "stats", cfg.ShowStats, "Отчет о производительности + benchmark.log")
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "wideslider.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Default().Write(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Настройки записаны: %s\n", path)
			return nil
		},
	}
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// resolveConfig loads the YAML file when given and lets explicitly set flags
// override it.
func resolveConfig(fs *pflag.FlagSet, path string, flags *config.Config) (*config.Config, error) {
	cfg := flags
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		for name, apply := range flagOverrides {
			if fs.Changed(name) {
				apply(loaded, flags)
			}
		}
		cfg = loaded
	}
	return cfg, cfg.Validate()
}

var flagOverrides = map[string]func(dst, src *config.Config){
	"input":      func(d, s *config.Config) { d.InputDir = s.InputDir },
	"output":     func(d, s *config.Config) { d.OutputDir = s.OutputDir },
	"duration":   func(d, s *config.Config) { d.DurationSeconds = s.DurationSeconds },
	"fps":        func(d, s *config.Config) { d.FrameRate = s.FrameRate },
	"pan-end":    func(d, s *config.Config) { d.PanEndFraction = s.PanEndFraction },
	"fade-end":   func(d, s *config.Config) { d.FadeEndFraction = s.FadeEndFraction },
	"start-zoom": func(d, s *config.Config) { d.StartZoom = s.StartZoom },
	"pan-target": func(d, s *config.Config) { d.PanTarget = s.PanTarget },
	"easing":     func(d, s *config.Config) { d.Easing = s.Easing },
	"focus":      func(d, s *config.Config) { d.Focus = s.Focus },
	"workers":    func(d, s *config.Config) { d.Workers = s.Workers },
	"sink":       func(d, s *config.Config) { d.Sink = s.Sink },
	"encoder":    func(d, s *config.Config) { d.VideoEncoder = s.VideoEncoder },
	"quality":    func(d, s *config.Config) { d.Quality = s.Quality },
	"verify":     func(d, s *config.Config) { d.Verify = s.Verify },
	"debug":      func(d, s *config.Config) { d.Debug = s.Debug },
	"stats":      func(d, s *config.Config) { d.ShowStats = s.ShowStats },
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	// Создаем нужные директории, если их нет
	for _, d := range []string{cfg.InputDir, cfg.OutputDir} {
		if st, err := os.Stat(d); err == nil && !st.IsDir() {
			continue // одиночный файл на входе
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return errors.Wrapf(err, "create %s", d)
		}
	}

	src, err := source.NewImageSource(cfg.InputDir)
	if err != nil {
		return errors.Wrap(err, "ошибка инициализации источника")
	}
	defer src.Close()

	sink, err := video.NewSink(cfg.Sink)
	if err != nil {
		return err
	}

	encoder := cfg.VideoEncoder
	if cfg.Sink == config.SinkFFmpeg && encoder == config.EncoderAuto {
		encoder = system.BestH264Encoder(ctx)
		if encoder != "libx264" {
			log.Infof("[*] Обнаружено аппаратное ускорение: %s", encoder)
		}
	}

	rep, err := engine.NewBatch(cfg, src, sink, encoder, log).Run(ctx)
	if err != nil {
		return err
	}
	if n := rep.Failed(); n > 0 {
		return errors.Errorf("не удалось обработать файлов: %d", n)
	}
	if rep.Done() > 0 {
		log.Infof("[+++] Успех! Результат: %s", cfg.OutputDir)
	}
	return nil
}

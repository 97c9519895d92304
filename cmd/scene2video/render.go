package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/history"
	"github.com/ivlev/scene2video/internal/router"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
)

type renderFlags struct {
	scene       string
	latest      string
	pageSeconds float64
	fade        float64
	camera      string
	width       int
	height      int
	preset      string
	frames      int
	duration    float64
	fps         float64
	bitrate     int
	keyframe    float64
	start       float64
	end         float64
	output      string
	encoder     string
	previews    bool
	stats       bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Отрендерить сцену в WebM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRender(runCtx, cfg, logger, f, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.scene, "scene", "", "Сцена (canvas, solid:#ff8800, timecode, document:<pdf>)")
	flags.StringVar(&f.latest, "latest", "", "Папка: взять самый свежий PDF/изображение как сцену document")
	flags.Float64Var(&f.pageSeconds, "page-seconds", 0, "Длительность страницы для --latest (сек)")
	flags.Float64Var(&f.fade, "fade", 0, "Переход между страницами для --latest (сек)")
	flags.StringVar(&f.camera, "camera", "", "Камера для --latest: auto или файл сценария")
	flags.IntVar(&f.width, "width", 0, "Ширина")
	flags.IntVar(&f.height, "height", 0, "Высота")
	flags.StringVar(&f.preset, "preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	flags.IntVar(&f.frames, "frames", 0, "Количество кадров")
	flags.Float64Var(&f.duration, "duration", 5, "Длительность (сек), если --frames не задан")
	flags.Float64Var(&f.fps, "fps", 0, "FPS")
	flags.IntVar(&f.bitrate, "bitrate", 0, "Битрейт (бит/с)")
	flags.Float64Var(&f.keyframe, "keyframe-interval", 0, "Интервал ключевых кадров (сек)")
	flags.Float64Var(&f.start, "start", 0, "Время сцены первого кадра (сек)")
	flags.Float64Var(&f.end, "end", -1, "Время сцены, дальше которого кадры не идут (сек)")
	flags.StringVarP(&f.output, "output", "o", "", "Путь к видео (если пусто, генерируется автоматически)")
	flags.StringVar(&f.encoder, "encoder", "", "VP9 энкодер: auto, libvpx-vp9, vp9_vaapi, vp9_qsv")
	flags.BoolVar(&f.previews, "previews", false, "Отправлять превью каждого кадра")
	flags.BoolVar(&f.stats, "stats", false, "Показать отчёт о производительности")
	return cmd
}

// apply merges flags into cfg. Only flags that were set override the file.
func (f *renderFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.latest != "" {
		path, err := system.FindLatest(f.latest, system.DocumentExtensions...)
		if err != nil {
			return err
		}
		f.scene = "document:" + path
		if f.pageSeconds > 0 {
			f.scene += fmt.Sprintf(",seconds=%g", f.pageSeconds)
		}
		if f.fade > 0 {
			f.scene += fmt.Sprintf(",fade=%g", f.fade)
		}
		if f.camera != "" {
			f.scene += ",camera=" + f.camera
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[*] Выбран файл: %s\n", path)
	}
	if f.scene != "" {
		cfg.Surface.Scene = f.scene
	}
	if w, h, ok := presetSize(f.preset); ok {
		cfg.Surface.Width, cfg.Surface.Height = w, h
	} else if f.preset != "" {
		return fmt.Errorf("unknown preset %q", f.preset)
	}
	if f.width > 0 {
		cfg.Surface.Width = f.width
	}
	if f.height > 0 {
		cfg.Surface.Height = f.height
	}
	if f.fps > 0 {
		cfg.Encode.FPS = f.fps
	}
	if f.bitrate > 0 {
		cfg.Encode.Bitrate = f.bitrate
	}
	if f.keyframe > 0 {
		cfg.Encode.KeyframeIntervalSec = f.keyframe
	}
	if f.encoder != "" {
		cfg.Encode.Encoder = f.encoder
	}
	if f.previews {
		cfg.Preview.EveryFrame = true
	}
	if f.stats {
		cfg.Encode.ShowStats = true
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	return cfg.Validate()
}

// presetSize maps the aspect presets of the old CLI to sizes.
func presetSize(preset string) (int, int, bool) {
	switch preset {
	case "16:9":
		return 1280, 720, true
	case "9:16":
		return 720, 1280, true
	case "4:5":
		return 1080, 1350, true
	}
	return 0, 0, false
}

// totalFrames returns --frames, or the duration converted at fps.
func (f *renderFlags) totalFrames(fps float64) int {
	if f.frames > 0 {
		return f.frames
	}
	return max(1, int(f.duration*fps))
}

// defaultOutputName builds "<scene>_<timestamp>.webm" inside dir.
func defaultOutputName(dir, sceneRef string, now time.Time) string {
	name, arg := scene.ParseRef(sceneRef)
	if name == "document" {
		if path := scene.ParseArgs(arg, "path").String("path", ""); path != "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '/', '\\', '#', ',', '=':
			return '_'
		}
		return r
	}, name)
	return filepath.Join(dir, fmt.Sprintf("%s_%s.webm", clean, now.Format("2006-01-02_15-04-05")))
}

func runRender(ctx context.Context, cfg *config.Config, logger *slog.Logger, f renderFlags, stderr io.Writer) error {
	sink := newCLISink(stderr)
	a, err := newApp(ctx, cfg, logger, sink, appOptions{History: true, PreviewMaxWidth: -1})
	if err != nil {
		return err
	}
	defer a.Close()

	output := f.output
	if output == "" {
		output = defaultOutputName(cfg.Paths.OutputDir, cfg.Surface.Scene, time.Now())
	}
	var end *float64
	if f.end >= 0 {
		end = &f.end
	}
	frames := f.totalFrames(cfg.Encode.FPS)

	s := a.startSession(ctx, sink)
	ev, err := s.send(router.Init{SceneRef: cfg.Surface.Scene, Width: cfg.Surface.Width, Height: cfg.Surface.Height})
	if err != nil {
		return err
	}
	ready, ok := ev.(event.Ready)
	if !ok {
		s.close()
		return resultError(ev)
	}
	fmt.Fprintf(stderr, "[*] Сцена %s %dx%d, энкодер %s, кадров: %d\n", ready.SceneRef, ready.Width, ready.Height, a.encoder, frames)

	ev, err = s.send(router.Render{
		TotalFrames:         frames,
		FPS:                 cfg.Encode.FPS,
		Bitrate:             cfg.Encode.Bitrate,
		KeyframeIntervalSec: cfg.Encode.KeyframeIntervalSec,
		StartSec:            f.start,
		EndSec:              end,
		OutputPath:          output,
		PreviewEveryFrame:   cfg.Preview.EveryFrame,
	})
	if err != nil {
		return err
	}
	// Дожидаемся записи истории.
	if err := s.close(); err != nil {
		logger.Warn("router stopped with error", "error", err)
	}

	done, ok := ev.(event.Done)
	if !ok {
		if c, cancelled := ev.(event.Cancelled); cancelled {
			fmt.Fprintf(stderr, "\n[!] Рендер %s отменён\n", c.JobID)
		}
		return resultError(ev)
	}
	fmt.Fprintf(stderr, "[+++] Успех! Результат: %s (%s)\n", done.OutputPath, humanize.IBytes(uint64(done.SizeBytes)))

	if cfg.Encode.ShowStats && a.history != nil {
		entry, err := a.history.Get(context.WithoutCancel(ctx), done.JobID)
		if err == nil && entry != nil {
			fmt.Fprint(stderr, history.Report(*entry))
		}
		if st, err := system.ReadMemory(); err == nil {
			fmt.Fprintln(stderr, system.MemoryReport(st))
		}
	}
	return nil
}

// resultError turns a non-success result event into an error.
func resultError(ev event.Event) error {
	switch e := ev.(type) {
	case event.Error:
		return errors.New(e.Message)
	case event.Cancelled:
		return fmt.Errorf("render %s cancelled: %w", e.JobID, context.Canceled)
	}
	return fmt.Errorf("unexpected %s event", ev.Type())
}

package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/router"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		sceneRef string
		at       float64
		width    int
		height   int
		maxWidth int
		output   string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Сохранить один кадр сцены в PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if sceneRef != "" {
				cfg.Surface.Scene = sceneRef
			}
			if width > 0 {
				cfg.Surface.Width = width
			}
			if height > 0 {
				cfg.Surface.Height = height
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			sink := newCLISink(nil)
			a, err := newApp(cmd.Context(), cfg, logger, sink, appOptions{PreviewMaxWidth: maxWidth})
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.startSession(cmd.Context(), sink)
			defer s.close()
			ev, err := s.send(router.Init{SceneRef: cfg.Surface.Scene, Width: cfg.Surface.Width, Height: cfg.Surface.Height})
			if err != nil {
				return err
			}
			if _, ok := ev.(event.Ready); !ok {
				return resultError(ev)
			}
			ev, err = s.send(router.Preview{TimeSec: at})
			if err != nil {
				return err
			}
			pv, ok := ev.(event.Preview)
			if !ok {
				return resultError(ev)
			}
			if output == "" {
				output = filepath.Join(cfg.Paths.OutputDir, fmt.Sprintf("preview_%.3f.png", at))
			}
			if err := writePNG(output, pv); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[+++] Кадр t=%.3f (%dx%d) сохранён: %s\n", pv.TimeSec, pv.Width, pv.Height, output)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&sceneRef, "scene", "", "Сцена")
	flags.Float64Var(&at, "at", 0, "Время кадра (сек)")
	flags.IntVar(&width, "width", 0, "Ширина")
	flags.IntVar(&height, "height", 0, "Высота")
	flags.IntVar(&maxWidth, "max-width", -1, "Уменьшить превью до этой ширины (0 - исходный размер)")
	flags.StringVarP(&output, "output", "o", "", "Путь к PNG")
	return cmd
}

func writePNG(path string, pv event.Preview) error {
	if pv.Bitmap == nil {
		return fmt.Errorf("preview has no bitmap")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, pv.Bitmap); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

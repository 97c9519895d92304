package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/camera"
	"github.com/ivlev/scene2video/internal/scenes/document"
)

func newCameraCommand(ctx *commandContext) *cobra.Command {
	var (
		output  string
		seconds float64
		width   int
		height  int
	)
	cmd := &cobra.Command{
		Use:   "camera <pdf|dir|image>",
		Short: "Построить сценарий камеры для документа (YAML)",
		Long: "Анализирует страницы, находит блоки контента и сохраняет путь камеры.\n" +
			"Сценарий подключается так: --scene document:<path>,camera=<file.yaml>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = cfg.Surface.Width
			}
			if height <= 0 {
				height = cfg.Surface.Height
			}
			path := args[0]
			if output == "" {
				output = cameraScriptName(path)
			}
			script, err := document.PlanScript(cmd.Context(), path, width, height, seconds, logger)
			if err != nil {
				return err
			}
			if err := camera.WriteScript(script, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+] Сценарий камеры: %s (%d стр.)\n", output, len(script.Pages))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Файл сценария (по умолчанию <документ>.camera.yaml)")
	flags.Float64Var(&seconds, "seconds", document.DefaultPageSeconds, "Длительность страницы (сек)")
	flags.IntVar(&width, "width", 0, "Ширина кадра")
	flags.IntVar(&height, "height", 0, "Высота кадра")
	return cmd
}

// cameraScriptName puts "<name>.camera.yaml" next to the document.
func cameraScriptName(path string) string {
	clean := filepath.Clean(path)
	base := strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))
	return filepath.Join(filepath.Dir(clean), base+".camera.yaml")
}

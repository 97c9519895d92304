package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Работа с файлом конфигурации",
		Annotations: map[string]string{"skipConfig": "true"},
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "init [path]",
		Short:       "Записать конфигурацию по умолчанию (.yaml или .toml)",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scene2video.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			cfg := config.Default()
			if err := cfg.Write(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Конфигурация записана: %s\n", path)
			return nil
		},
	})
	return cmd
}

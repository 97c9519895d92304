package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/scenes"
)

var sceneUsage = map[string]string{
	"canvas":   "canvas[:COLSxROWS][,speed=1.5]",
	"document": "document:<pdf|dir|image>[,seconds=3][,camera=auto|<file.yaml>][,grid=COLSxROWS]",
	"solid":    "solid:#rrggbb[,pulse=1][,grid=COLSxROWS]",
	"timecode": "timecode[:COLSxROWS][,level=medium]",
}

func newScenesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "scenes",
		Short:       "Список встроенных сцен",
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][]string{}
			for _, name := range scenes.NewRegistry().Names() {
				rows = append(rows, []string{name, sceneUsage[name]})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Scene", "Reference"}, rows, nil))
			return nil
		},
	}
}

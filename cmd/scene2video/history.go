package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать историю рендеров",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "История пуста")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Сколько последних заданий показать (0 - все)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <job-id>",
		Short: "Отчёт о производительности задания",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				e, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if e == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				fmt.Fprint(cmd.OutOrStdout(), history.Report(*e))
				return nil
			})
		},
	})

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Удалить старые записи",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[*] Удалено записей: %d\n", n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Возраст записей для удаления")
	cmd.AddCommand(prune)
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func historyTable(entries []*history.Entry) string {
	headers := []string{"ID", "Scene", "Status", "Frames", "Size", "FPS", "Started"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		size := "-"
		if e.SizeBytes > 0 {
			size = humanize.IBytes(uint64(e.SizeBytes))
		}
		rows = append(rows, []string{
			id,
			e.SceneRef,
			string(e.Status),
			fmt.Sprintf("%d/%d", e.Frames, e.TotalFrames),
			size,
			strconv.FormatFloat(e.EffectiveFPS(), 'f', 1, 64),
			history.Since(e.StartedAt),
		})
	}
	return renderTable(headers, rows, aligns)
}

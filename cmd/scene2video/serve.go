package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/logging"
	"github.com/ivlev/scene2video/internal/router"
)

// maxCommandLine bounds one JSON command line.
const maxCommandLine = 1 << 20

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noLogEvents bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Читать JSON-команды из stdin и писать события в stdout",
		Long: `Each stdin line is one command such as {"type":"init","sceneRef":"canvas","width":1280,"height":720}.
Each stdout line is one event: ready, log, preview, progress, done, cancelled or error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			base, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			sink := &lineSink{w: cmd.OutOrStdout(), logger: base}

			logger := base
			if !noLogEvents {
				level, _ := logging.ParseLevel(cfg.Log.Level)
				logger = logging.Tee(base, logging.NewEventHandler(sink, level))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(runCtx, cfg, logger, sink, appOptions{History: true, PreviewMaxWidth: -1})
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(runCtx, a.router, cmd.InOrStdin(), sink, logger)
		},
	}
	cmd.Flags().BoolVar(&noLogEvents, "no-log-events", false, "Не дублировать логи событиями log")
	return cmd
}

// serve feeds commands read from in to r until in is exhausted or ctx is done.
func serve(ctx context.Context, r *router.Router, in io.Reader, sink event.Sink, logger *slog.Logger) error {
	cmds := make(chan router.Command)
	go func() {
		defer close(cmds)
		if err := readCommands(ctx, in, cmds, sink); err != nil {
			logger.Error("command stream failed", "error", err)
		}
	}()
	return r.Run(ctx, cmds)
}

// readCommands decodes one command per line. Lines that do not decode are
// reported as error events and skipped.
func readCommands(ctx context.Context, in io.Reader, out chan<- router.Command, sink event.Sink) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxCommandLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		cmd, err := router.DecodeCommand(line)
		if err != nil {
			sink.Emit(event.Error{Message: err.Error()})
			continue
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gg"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/encode"
	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/history"
	"github.com/ivlev/scene2video/internal/job"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/preview"
	"github.com/ivlev/scene2video/internal/render"
	"github.com/ivlev/scene2video/internal/router"
	"github.com/ivlev/scene2video/internal/scenes"
	"github.com/ivlev/scene2video/internal/system"
)

// app holds the wired pipeline for one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *lifecycle.Manager
	router  *router.Router
	history *history.Store
	encoder string
}

type appOptions struct {
	// History enables the job history store.
	History bool
	// PreviewMaxWidth overrides preview.max_width when >= 0.
	PreviewMaxWidth int
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, sink event.Sink, opts appOptions) (*app, error) {
	system.InitResourceLimits(logger)
	gg.SetLogger(logger.With("component", "gg"))

	manager := lifecycle.NewManager(scenes.NewRegistry(), logger, cfg.Surface.Width, cfg.Surface.Height)
	orch := render.NewOrchestrator()

	emitter := preview.NewEmitter(orch, sink, logger)
	emitter.MaxWidth = cfg.Preview.MaxWidth
	if opts.PreviewMaxWidth >= 0 {
		emitter.MaxWidth = opts.PreviewMaxWidth
	}

	encoderName := cfg.ResolveEncoder(func() string {
		return system.ProbeVP9Encoder(ctx, cfg.Encode.FFmpeg, logger)
	})
	factory := encode.NewFFmpegFactory(cfg.Encode.FFmpeg, encoderName, logger)
	pipeline := encode.NewPipeline(orch, factory, encode.NewWebMMuxer, emitter, sink, logger)

	a := &app{cfg: cfg, logger: logger, manager: manager, encoder: encoderName}

	ropts := router.Options{
		Manager:           manager,
		Pipeline:          pipeline,
		Preview:           emitter,
		Jobs:              job.NewController(logger),
		Sink:              sink,
		Logger:            logger,
		Preflight:         system.MemoryPreflight(nil, cfg.Serve.MinFreeMemoryFraction),
		DefaultScene:      cfg.Surface.Scene,
		QueueSize:         cfg.Serve.QueueSize,
		OutputLockTimeout: time.Duration(cfg.Serve.OutputLockTimeoutSec * float64(time.Second)),
	}
	if opts.History && cfg.Paths.HistoryDB != "" {
		store, err := history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			// История не обязательна для рендера.
			logger.Warn("history disabled", "path", cfg.Paths.HistoryDB, "error", err)
		} else {
			a.history = store
			ropts.History = store
		}
	}
	a.router = router.New(ropts)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if err := a.manager.Close(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	return errors.Join(errs...)
}

// session runs the router for a fixed sequence of CLI steps.
type session struct {
	cmds    chan router.Command
	results chan event.Event
	runDone chan struct{}
	runErr  error
}

// startSession starts the router; result events arrive through sink.
func (a *app) startSession(ctx context.Context, sink *cliSink) *session {
	s := &session{
		cmds:    make(chan router.Command),
		results: sink.results,
		runDone: make(chan struct{}),
	}
	go func() {
		defer close(s.runDone)
		s.runErr = a.router.Run(ctx, s.cmds)
	}()
	return s
}

// send issues cmd and waits for the first result event.
func (s *session) send(cmd router.Command) (event.Event, error) {
	select {
	case s.cmds <- cmd:
	case <-s.runDone:
		return nil, s.stopped()
	}
	select {
	case ev := <-s.results:
		return ev, nil
	case <-s.runDone:
		select {
		case ev := <-s.results:
			return ev, nil
		default:
			return nil, s.stopped()
		}
	}
}

func (s *session) stopped() error {
	if s.runErr != nil {
		return s.runErr
	}
	return context.Canceled
}

// close stops the router after queued work (history included) has finished.
func (s *session) close() error {
	close(s.cmds)
	<-s.runDone
	return s.runErr
}

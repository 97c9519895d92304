// Package router dispatches inbound commands to the scene lifecycle, the
// preview emitter and the encode pipeline, and reports every outcome as an
// event.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scene2video/internal/encode"
	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/history"
	"github.com/ivlev/scene2video/internal/job"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/preview"
	"github.com/ivlev/scene2video/internal/scene"
)

// ErrNotInitialized is reported for commands that need a scene before init.
var ErrNotInitialized = errors.New("not initialized")

// HistoryRecorder stores finished jobs.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Preflight vets a render before the encoder is started.
type Preflight func(width, height, totalFrames int) error

// Options wires a Router.
type Options struct {
	Manager  *lifecycle.Manager
	Pipeline *encode.Pipeline
	Preview  *preview.Emitter
	Jobs     *job.Controller
	Sink     event.Sink
	Logger   *slog.Logger

	// Optional.
	History   HistoryRecorder
	Preflight Preflight

	DefaultScene      string
	QueueSize         int
	OutputLockTimeout time.Duration
}

// Router serializes commands. Cancellation is handled on the receiving loop;
// everything else, including render jobs, runs in arrival order on a single
// worker so that a scene swap requested during a render waits for it.
type Router struct {
	manager   *lifecycle.Manager
	pipeline  *encode.Pipeline
	preview   *preview.Emitter
	jobs      *job.Controller
	sink      event.Sink
	logger    *slog.Logger
	history   HistoryRecorder
	preflight Preflight

	defaultScene string
	queueSize    int
	lockTimeout  time.Duration

	// Worker goroutine only.
	initialized bool
	sceneRef    string
	previewFPS  float64
}

// New creates a router.
func New(opts Options) *Router {
	r := &Router{
		manager:      opts.Manager,
		pipeline:     opts.Pipeline,
		preview:      opts.Preview,
		jobs:         opts.Jobs,
		sink:         opts.Sink,
		logger:       opts.Logger,
		history:      opts.History,
		preflight:    opts.Preflight,
		defaultScene: opts.DefaultScene,
		queueSize:    opts.QueueSize,
		lockTimeout:  opts.OutputLockTimeout,
		previewFPS:   encode.DefaultFPS,
	}
	if r.sink == nil {
		r.sink = event.Discard
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.jobs == nil {
		r.jobs = job.NewController(r.logger)
	}
	if r.defaultScene == "" {
		r.defaultScene = scene.DefaultRef
	}
	if r.queueSize <= 0 {
		r.queueSize = 128
	}
	if r.lockTimeout <= 0 {
		r.lockTimeout = 10 * time.Second
	}
	return r
}

type task func(ctx context.Context)

// Run consumes commands until the channel is closed or ctx is done. Queued
// commands are drained before Run returns.
func (r *Router) Run(ctx context.Context, commands <-chan Command) error {
	tasks := make(chan task, r.queueSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for t := range tasks {
			t(gctx)
		}
		return nil
	})

	g.Go(func() error {
		defer close(tasks)
		for {
			select {
			case <-gctx.Done():
				r.jobs.Cancel()
				return nil
			case cmd, ok := <-commands:
				if !ok {
					return nil
				}
				t := r.dispatch(gctx, cmd)
				if t == nil {
					continue
				}
				select {
				case tasks <- t:
				case <-gctx.Done():
					r.jobs.Cancel()
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// dispatch runs what must not wait in line and returns the queued part.
func (r *Router) dispatch(ctx context.Context, cmd Command) task {
	r.logger.Debug("command received", "type", cmd.Type())
	switch c := cmd.(type) {
	case CancelRender:
		r.jobs.Cancel()
		return nil
	case Render:
		params := c.params()
		tok, st, err := r.jobs.Begin(ctx, job.State{
			FPS:                 params.FPS,
			Bitrate:             params.Bitrate,
			KeyframeIntervalSec: params.KeyframeIntervalSec,
			TotalFrames:         params.TotalFrames,
			StartSec:            params.StartSec,
			EndSec:              params.End(),
		})
		if err != nil {
			r.fail("render", err)
			return nil
		}
		r.logger.Info("render queued", "job", st.ID, "frames", st.TotalFrames)
		return func(context.Context) { r.render(tok, st, c, params) }
	case Init:
		return func(ctx context.Context) { r.init(ctx, c) }
	case Resize:
		return func(ctx context.Context) { r.resize(ctx, c) }
	case Preview:
		return func(ctx context.Context) { r.previewAt(ctx, c) }
	case LoadScene:
		return func(ctx context.Context) { r.loadScene(ctx, c) }
	}
	r.fail("dispatch", fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Type()))
	return nil
}

func (c Render) params() encode.Params {
	return encode.Params{
		TotalFrames:         c.TotalFrames,
		FPS:                 c.FPS,
		Bitrate:             c.Bitrate,
		KeyframeIntervalSec: c.KeyframeIntervalSec,
		StartSec:            c.StartSec,
		EndSec:              c.EndSec,
		PreviewEveryFrame:   c.PreviewEveryFrame,
		Encoder:             c.Encoder,
	}.Normalize()
}

// fail reports one error event. Cancellation is never reported as an error.
func (r *Router) fail(phase string, err error) {
	msg := fmt.Sprintf("%s: %v", phase, err)
	r.logger.Error("command failed", "phase", phase, "error", err)
	r.sink.Emit(event.Error{Message: msg})
}

func (r *Router) init(ctx context.Context, c Init) {
	ref := c.SceneRef
	if ref == "" {
		ref = r.defaultScene
	}
	_, w, h, err := r.manager.Load(ctx, ref, c.Width, c.Height)
	if err != nil {
		r.fail("init", err)
		return
	}
	r.initialized = true
	r.sceneRef = ref
	r.logger.Info("Worker initialized.", "scene", ref, "width", w, "height", h)
	r.sink.Emit(event.Ready{SceneRef: ref, Width: w, Height: h})
}

func (r *Router) resize(ctx context.Context, c Resize) {
	w, h, err := r.manager.Resize(ctx, c.Width, c.Height)
	if err != nil {
		r.fail("resize", err)
		return
	}
	r.logger.Debug("resized", "width", w, "height", h)
}

func (r *Router) previewAt(ctx context.Context, c Preview) {
	if !r.initialized {
		r.fail("preview", ErrNotInitialized)
		return
	}
	t := max(0, c.TimeSec)
	if c.FPS > 0 {
		r.previewFPS = max(1, c.FPS)
	}
	lease, err := r.manager.Acquire(ctx)
	if err != nil {
		r.fail("preview", err)
		return
	}
	defer lease.Release()

	s := lease.Surface()
	r.logger.Info(fmt.Sprintf("Preview request t=%.3f fps=%g size=%dx%d", t, r.previewFPS, s.Width(), s.Height()))
	if _, err := r.preview.Emit(ctx, lease, t, preview.OriginUI); err != nil {
		r.fail("preview", err)
	}
}

func (r *Router) loadScene(ctx context.Context, c LoadScene) {
	if !r.initialized {
		r.fail("loadScene", ErrNotInitialized)
		return
	}
	ref := c.SceneRef
	if ref == "" {
		ref = r.sceneRef
	}
	r.logger.Info("Scene reload requested", "scene", ref)

	// Текущий размер сохраняется: Load перевыделяет поверхность под него.
	if _, _, _, err := r.manager.Load(ctx, ref, 0, 0); err != nil {
		r.fail("loadScene", err)
		return
	}
	r.sceneRef = ref

	lease, err := r.manager.Acquire(ctx)
	if err != nil {
		r.fail("loadScene", err)
		return
	}
	defer lease.Release()
	if _, err := r.preview.Emit(ctx, lease, max(0, c.TimeSec), preview.OriginSceneReload); err != nil {
		r.fail("loadScene", err)
	}
}

// render runs one job. It holds the lease for its whole duration.
func (r *Router) render(tok *job.Token, st job.State, c Render, params encode.Params) {
	defer r.jobs.End(tok)
	log := r.logger.With("job", st.ID)
	ctx := tok.Context()

	if !r.initialized {
		r.fail("render", ErrNotInitialized)
		return
	}
	lease, err := r.manager.Acquire(ctx)
	if err != nil {
		r.fail("render", err)
		return
	}
	defer lease.Release()

	surf := lease.Surface()
	entry := history.Entry{
		ID:          st.ID,
		SceneRef:    lease.Handle().Ref,
		TotalFrames: params.TotalFrames,
		FPS:         params.FPS,
		Bitrate:     params.Bitrate,
		Width:       surf.Width(),
		Height:      surf.Height(),
		StartedAt:   st.StartedAt,
	}

	if r.preflight != nil {
		if err := r.preflight(surf.Width(), surf.Height(), params.TotalFrames); err != nil {
			r.fail("render", err)
			r.record(ctx, entry, history.StatusFailed, err)
			return
		}
	}

	res, err := r.pipeline.Run(tok, lease, params)
	entry.Frames = res.Frames
	entry.RenderTime = res.RenderTime
	entry.EncodeTime = res.EncodeTime
	entry.Elapsed = time.Since(st.StartedAt)

	switch {
	case errors.Is(err, job.ErrCancelled):
		log.Info("render cancelled", "frames", res.Frames)
		r.sink.Emit(event.Cancelled{JobID: st.ID})
		r.record(ctx, entry, history.StatusCancelled, nil)
		return
	case err != nil:
		r.fail("render", err)
		r.record(ctx, entry, history.StatusFailed, err)
		return
	}

	done := event.Done{JobID: st.ID, Buffer: res.Container, SizeBytes: len(res.Container)}
	if c.OutputPath != "" {
		if err := writeOutput(ctx, c.OutputPath, res.Container, r.lockTimeout); err != nil {
			r.fail("render output", err)
			r.record(ctx, entry, history.StatusFailed, err)
			return
		}
		done.OutputPath = c.OutputPath
		entry.OutputPath = c.OutputPath
	}
	entry.SizeBytes = done.SizeBytes
	r.sink.Emit(done)
	r.record(ctx, entry, history.StatusDone, nil)
}

func (r *Router) record(ctx context.Context, e history.Entry, status history.Status, cause error) {
	e.Status = status
	e.FinishedAt = time.Now()
	if e.Elapsed == 0 {
		e.Elapsed = e.FinishedAt.Sub(e.StartedAt)
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if status != history.StatusFailed {
		r.logger.Debug("job finished", "job", e.ID, "summary", history.Summary(e))
	}
	if r.history == nil {
		return
	}
	// Запись истории не должна зависеть от отмены задания.
	if err := r.history.Record(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warn("history record failed", "job", e.ID, "error", err)
	}
}

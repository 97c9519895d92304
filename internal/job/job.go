// Package job tracks the active render job and its cooperative cancellation.
package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCancelled is raised at a poll point once cancellation was requested.
	// It is an outcome of its own and never reported as a failure.
	ErrCancelled = errors.New("render cancelled")
	// ErrJobRunning rejects a render request while another job is active.
	ErrJobRunning = errors.New("render already in progress")
)

// State is the bookkeeping of one render job.
type State struct {
	ID                  string
	FPS                 float64
	Bitrate             int
	KeyframeIntervalSec float64
	TotalFrames         int
	StartSec            float64
	EndSec              float64
	Cancelled           bool
	Running             bool
	StartedAt           time.Time
}

// Token is handed to every long-running step of a job. Cancel only raises a
// flag; steps already in progress finish and the next Check reports it.
type Token struct {
	ctx  context.Context
	flag atomic.Bool
}

// NewToken creates a token bound to a parent context. When the parent is done
// Check reports cancellation as well.
func NewToken(ctx context.Context) *Token {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Token{ctx: ctx}
}

// Context returns the parent context. It is not cancelled by Cancel, so
// in-flight collaborator calls are allowed to complete.
func (t *Token) Context() context.Context { return t.ctx }

// Cancel requests cancellation.
func (t *Token) Cancel() { t.flag.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (t *Token) Cancelled() bool {
	return t.flag.Load() || t.ctx.Err() != nil
}

// Check is the poll point: it returns ErrCancelled once cancellation has
// been requested and nil otherwise.
func (t *Token) Check() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Controller admits at most one running job and routes cancel requests to it.
type Controller struct {
	logger *slog.Logger

	mu    sync.Mutex
	state *State
	token *Token
}

// NewController creates a controller with no running job.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger}
}

// Begin registers a new running job. It fails with ErrJobRunning when a job
// is already active; requests are rejected, not queued.
func (c *Controller) Begin(ctx context.Context, st State) (*Token, State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		return nil, State{}, ErrJobRunning
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.Running = true
	st.Cancelled = false
	st.StartedAt = time.Now()
	c.state = &st
	c.token = NewToken(ctx)
	return c.token, st, nil
}

// Cancel raises the cancellation flag of the running job. Without a running
// job it is a no-op and returns false.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || !c.state.Running {
		c.logger.Info("cancel requested with no running job")
		return false
	}
	c.state.Cancelled = true
	c.token.Cancel()
	c.logger.Info("cancel requested", "job", c.state.ID)
	return true
}

// End clears the running job. Tokens of earlier jobs are ignored.
func (c *Controller) End(tok *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != tok {
		return
	}
	c.state = nil
	c.token = nil
}

// Running reports whether a job is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil
}

// Current returns a copy of the running job state.
func (c *Controller) Current() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return State{}, false
	}
	return *c.state, true
}

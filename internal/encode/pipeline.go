package encode

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/job"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/preview"
	"github.com/ivlev/scene2video/internal/render"
	"github.com/ivlev/scene2video/internal/surface"
)

// State of the pipeline.
type State int32

const (
	StateIdle State = iota
	StateConfiguring
	StateEncoding
	StateFinalizing
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateEncoding:
		return "encoding"
	case StateFinalizing:
		return "finalizing"
	case StateAborting:
		return "aborting"
	}
	return "unknown"
}

// Result of a finished job.
type Result struct {
	Container      []byte
	Frames         int
	Keyframes      int
	Chunks         int
	ChunkKeyframes int
	RenderTime     time.Duration
	EncodeTime     time.Duration
	Elapsed        time.Duration
}

// Pipeline renders frames through the orchestrator and feeds them to an
// encoder/muxer pair created per job.
type Pipeline struct {
	orchestrator *render.Orchestrator
	encoders     EncoderFactory
	muxers       MuxerFactory
	preview      *preview.Emitter
	sink         event.Sink
	logger       *slog.Logger

	state atomic.Int32
}

// NewPipeline creates a pipeline. pv may be nil when per-frame previews are
// never requested.
func NewPipeline(o *render.Orchestrator, encoders EncoderFactory, muxers MuxerFactory, pv *preview.Emitter, sink event.Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = event.Discard
	}
	return &Pipeline{
		orchestrator: o,
		encoders:     encoders,
		muxers:       muxers,
		preview:      pv,
		sink:         sink,
		logger:       logger,
	}
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	old := State(p.state.Swap(int32(s)))
	if old != s {
		p.logger.Debug("encode state", "from", old, "to", s)
	}
}

// session is the encoder/muxer pair of one job.
type session struct {
	enc Encoder
	mux Muxer

	mu             sync.Mutex
	muxErr         error
	chunks         int
	chunkKeyframes int
}

// onChunk hands a chunk to the muxer and releases it. It may be called from
// the encoder's reader goroutine.
func (s *session) onChunk(c Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muxErr != nil {
		c.Release()
		return s.muxErr
	}
	err := s.mux.AddVideoChunk(c)
	c.Release()
	if err != nil {
		s.muxErr = err
		return err
	}
	s.chunks++
	if c.Keyframe {
		s.chunkKeyframes++
	}
	return nil
}

func (s *session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muxErr
}

// Run encodes params.TotalFrames frames of the leased scene and returns the
// finished container. Cancellation is polled before rendering, after
// rendering, after submitting the frame and after yielding; it surfaces as
// job.ErrCancelled and never as a failure.
func (p *Pipeline) Run(tok *job.Token, lease *lifecycle.Lease, params Params) (Result, error) {
	params = params.Normalize()
	ctx := tok.Context()
	began := time.Now()
	defer p.setState(StateIdle)

	p.setState(StateConfiguring)
	surf := lease.Surface()
	cfg := Config{
		Codec:            CodecVP9,
		Encoder:          params.Encoder,
		Width:            surf.Width(),
		Height:           surf.Height(),
		Bitrate:          params.Bitrate,
		FPS:              params.FPS,
		KeyframeInterval: KeyframeIntervalFrames(params.KeyframeIntervalSec, params.FPS),
	}
	if err := tok.Check(); err != nil {
		return Result{}, err
	}
	if err := p.encoders.IsConfigSupported(cfg); err != nil {
		return Result{}, err
	}

	s, err := p.open(ctx, cfg)
	if err != nil {
		return Result{}, p.fail(tok, nil, err)
	}

	p.setState(StateEncoding)
	p.logger.Info("encoding started",
		"frames", params.TotalFrames,
		"fps", params.FPS,
		"bitrate", params.Bitrate,
		"keyframe_interval", cfg.KeyframeInterval,
		"size", [2]int{cfg.Width, cfg.Height})

	res, err := p.encodeFrames(tok, lease, s, cfg, params)
	if err == nil {
		err = tok.Check()
	}
	if err != nil {
		return res, p.fail(tok, s, err)
	}

	p.setState(StateFinalizing)
	if err := s.enc.Flush(ctx); err != nil {
		return res, p.fail(tok, s, phaseErr("flush", -1, err))
	}
	if err := s.err(); err != nil {
		return res, p.fail(tok, s, phaseErr("mux", -1, err))
	}
	if err := s.enc.Close(); err != nil {
		return res, p.fail(tok, s, phaseErr("close", -1, err))
	}
	buf, err := s.mux.Finalize()
	if err != nil {
		p.setState(StateAborting)
		return res, phaseErr("finalize", -1, err)
	}

	res.Container = buf
	res.Chunks = s.chunks
	res.ChunkKeyframes = s.chunkKeyframes
	res.Elapsed = time.Since(began)
	p.logger.Info("encoding finished",
		"frames", res.Frames,
		"chunks", res.Chunks,
		"bytes", len(buf),
		"elapsed", res.Elapsed)
	return res, nil
}

func (p *Pipeline) open(ctx context.Context, cfg Config) (*session, error) {
	mux, err := p.muxers(cfg)
	if err != nil {
		return nil, phaseErr("configure muxer", -1, err)
	}
	s := &session{mux: mux}
	enc, err := p.encoders.New(ctx, cfg, s.onChunk)
	if err != nil {
		return nil, phaseErr("configure encoder", -1, err)
	}
	s.enc = enc
	return s, nil
}

func (p *Pipeline) encodeFrames(tok *job.Token, lease *lifecycle.Lease, s *session, cfg Config, params Params) (Result, error) {
	ctx := tok.Context()
	end := params.End()
	var res Result

	for i := 0; i < params.TotalFrames; i++ {
		if err := tok.Check(); err != nil {
			return res, err
		}
		t := FrameTime(i, params.StartSec, end, params.FPS)

		start := time.Now()
		if err := p.orchestrator.RenderAtTime(ctx, lease, t); err != nil {
			return res, phaseErr("render", i, err)
		}
		res.RenderTime += time.Since(start)
		if err := tok.Check(); err != nil {
			return res, err
		}

		img, err := p.orchestrator.Capture(ctx, lease)
		if err != nil {
			return res, phaseErr("capture", i, err)
		}
		key := IsKeyframe(i, cfg.KeyframeInterval)
		start = time.Now()
		err = s.enc.Encode(ctx, Frame{Index: i, TimestampUS: FrameTimestamp(i, params.FPS), Image: img}, key)
		surface.PutImage(img)
		if err != nil {
			return res, phaseErr("encode", i, err)
		}
		if err := s.err(); err != nil {
			return res, phaseErr("mux", i, err)
		}
		res.EncodeTime += time.Since(start)
		res.Frames++
		if key {
			res.Keyframes++
		}
		if err := tok.Check(); err != nil {
			return res, err
		}

		if params.PreviewEveryFrame && p.preview != nil {
			p.preview.EmitBestEffort(ctx, lease, t, preview.OriginRender)
		}
		p.sink.Emit(event.Progress{Done: i + 1, Total: params.TotalFrames})

		runtime.Gosched()
		if err := tok.Check(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// fail moves to Aborting, closes the encoder best-effort and drops the muxer.
// Errors caused by the job being cancelled are reported as cancellation.
func (p *Pipeline) fail(tok *job.Token, s *session, err error) error {
	p.setState(StateAborting)
	if s != nil && s.enc != nil {
		if cerr := s.enc.Close(); cerr != nil {
			p.logger.Debug("encoder close during abort", "error", cerr)
		}
	}
	if errors.Is(err, job.ErrCancelled) {
		return job.ErrCancelled
	}
	if tok.Cancelled() && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return job.ErrCancelled
	}
	p.logger.Error("encoding aborted", "error", err)
	return err
}

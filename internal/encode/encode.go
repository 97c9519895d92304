// Package encode turns rendered frames into a finished video container.
//
// The pipeline owns one encoder and one muxer per job. Frames are rendered,
// captured and submitted strictly in order; every encoded chunk is handed to
// the muxer and released immediately so long jobs stay within bounded memory.
package encode

import (
	"context"
	"fmt"
	"image"
)

// CodecVP9 is the only codec profile the pipeline models.
const CodecVP9 = "vp9"

// Config is what an encoder is configured with.
type Config struct {
	Codec            string
	Encoder          string
	Width            int
	Height           int
	Bitrate          int
	FPS              float64
	KeyframeInterval int // in frames
}

// Frame is a captured picture tagged with its presentation timestamp.
// Encoders must not retain Image after Encode returns.
type Frame struct {
	Index       int
	TimestampUS int64
	Image       *image.RGBA
}

// Chunk is one encoded frame.
type Chunk struct {
	Data        []byte
	TimestampUS int64
	Keyframe    bool
}

// Release drops the chunk payload. Called right after the muxer has
// consumed it; chunks are never kept past that point.
func (c *Chunk) Release() {
	c.Data = nil
}

// ChunkHandler receives encoded chunks in decode order.
type ChunkHandler func(Chunk) error

// Encoder consumes frames and produces chunks through its handler.
type Encoder interface {
	Encode(ctx context.Context, f Frame, keyframe bool) error
	// Flush drains buffered frames; all chunks have been delivered when it returns.
	Flush(ctx context.Context) error
	Close() error
}

// EncoderFactory checks configurations and creates encoders.
type EncoderFactory interface {
	// IsConfigSupported returns nil or an *UnsupportedConfigError.
	IsConfigSupported(cfg Config) error
	New(ctx context.Context, cfg Config, out ChunkHandler) (Encoder, error)
}

// Muxer packages chunks into a container held in memory.
type Muxer interface {
	AddVideoChunk(c Chunk) error
	// Finalize closes the container and returns its bytes.
	Finalize() ([]byte, error)
}

// MuxerFactory creates a muxer for a configuration.
type MuxerFactory func(cfg Config) (Muxer, error)

// UnsupportedConfigError rejects a configuration before any frame work.
type UnsupportedConfigError struct {
	Config Config
	Reason string
}

func (e *UnsupportedConfigError) Error() string {
	return fmt.Sprintf("encoder config not supported (%s %s %dx%d @ %.3g fps, %d bps): %s",
		e.Config.Codec, e.Config.Encoder, e.Config.Width, e.Config.Height, e.Config.FPS, e.Config.Bitrate, e.Reason)
}

// PhaseError annotates a collaborator failure with the pipeline phase.
type PhaseError struct {
	Phase string
	Frame int
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s (frame %d): %v", e.Phase, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase string, frame int, err error) error {
	return &PhaseError{Phase: phase, Frame: frame, Err: err}
}

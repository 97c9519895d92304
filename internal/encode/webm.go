package encode

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/webm"
)

// WebMMuxer writes VP9 chunks as SimpleBlocks into an in-memory WebM file.
type WebMMuxer struct {
	out    *bufferCloser
	writer webm.BlockWriteCloser

	started   bool
	lastTS    int64
	finalized bool
}

// finalizeTimeout bounds the wait for the block writer to flush.
const finalizeTimeout = 5 * time.Second

// bufferCloser is the writer target. ebml-go muxes on its own goroutine and
// closes the target once every track writer has been closed.
type bufferCloser struct {
	bytes.Buffer
	once   sync.Once
	closed chan struct{}
}

func (b *bufferCloser) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// NewWebMMuxer creates a single-track WebM muxer for cfg.
func NewWebMMuxer(cfg Config) (Muxer, error) {
	out := &bufferCloser{closed: make(chan struct{})}
	var frameDuration uint64
	if cfg.FPS > 0 {
		frameDuration = uint64(FrameDurationUS(cfg.FPS)) * 1000
	}
	writers, err := webm.NewSimpleBlockWriter(out, []webm.TrackEntry{{
		Name:            "Video",
		TrackNumber:     1,
		TrackUID:        1,
		CodecID:         "V_VP9",
		TrackType:       1,
		DefaultDuration: frameDuration,
		Video: &webm.Video{
			PixelWidth:  uint64(cfg.Width),
			PixelHeight: uint64(cfg.Height),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("webm writer: %w", err)
	}
	return &WebMMuxer{out: out, writer: writers[0]}, nil
}

// AddVideoChunk appends a chunk. Timestamps must strictly increase.
func (m *WebMMuxer) AddVideoChunk(c Chunk) error {
	if m.finalized {
		return errors.New("webm: muxer already finalized")
	}
	if m.started && c.TimestampUS <= m.lastTS {
		return fmt.Errorf("webm: timestamp %dus not after %dus", c.TimestampUS, m.lastTS)
	}
	m.started = true
	m.lastTS = c.TimestampUS
	// Шкала таймкодов WebM по умолчанию: 1 мс.
	if _, err := m.writer.Write(c.Keyframe, c.TimestampUS/1000, c.Data); err != nil {
		return fmt.Errorf("webm write: %w", err)
	}
	return nil
}

// Finalize closes the segment and returns the file bytes.
func (m *WebMMuxer) Finalize() ([]byte, error) {
	if m.finalized {
		return nil, errors.New("webm: muxer already finalized")
	}
	m.finalized = true
	if err := m.writer.Close(); err != nil {
		return nil, fmt.Errorf("webm close: %w", err)
	}
	select {
	case <-m.out.closed:
	case <-time.After(finalizeTimeout):
		return nil, errors.New("webm: timed out waiting for the segment to be written")
	}
	return m.out.Bytes(), nil
}

package preview

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/render"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

type fillScene struct {
	surf    *surface.Surface
	failCap bool
}

func (s *fillScene) RenderFrame(_ context.Context, t float64, _ *grid.Tile) error {
	s.surf.Clear(s.surf.Bounds(), color.RGBA{R: uint8(t * 10), G: 200, A: 255})
	return nil
}

func (s *fillScene) CaptureBitmap(context.Context, scene.CaptureRequest) (*image.RGBA, error) {
	if s.failCap {
		return nil, errors.New("readback lost")
	}
	return nil, nil
}

func newLease(t *testing.T, failCap bool) *lifecycle.Lease {
	t.Helper()
	reg := scene.NewRegistry()
	reg.Register("fill", func(_ context.Context, opts scene.Options) (scene.Scene, error) {
		return &fillScene{surf: opts.Surface, failCap: failCap}, nil
	})
	m := lifecycle.NewManager(reg, nil, 64, 48)
	if _, _, _, err := m.Load(context.Background(), "fill", 0, 0); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	lease, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(func() {
		lease.Release()
		m.Close(context.Background())
	})
	return lease
}

func TestEmitSendsPreview(t *testing.T) {
	rec := &event.Recorder{}
	e := NewEmitter(render.NewOrchestrator(), rec, nil)
	lease := newLease(t, false)

	p, err := e.Emit(context.Background(), lease, 2, OriginUI)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if p.Origin != OriginUI || p.TimeSec != 2 || p.Width != 64 || p.Height != 48 {
		t.Errorf("preview = %+v", p)
	}
	if got := p.Bitmap.RGBAAt(10, 10); got != (color.RGBA{R: 20, G: 200, A: 255}) {
		t.Errorf("bitmap pixel = %v", got)
	}

	events := rec.Events()
	if len(events) != 1 || events[0].Type() != "preview" {
		t.Fatalf("events = %v, want one preview", events)
	}
}

func TestEmitScalesDown(t *testing.T) {
	e := NewEmitter(render.NewOrchestrator(), event.Discard, nil)
	e.MaxWidth = 32
	lease := newLease(t, false)

	p, err := e.Emit(context.Background(), lease, 0, OriginUI)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if b := p.Bitmap.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("scaled bitmap = %v, want 32x24", b)
	}
	// Размеры кадра в событии остаются размерами поверхности.
	if p.Width != 64 || p.Height != 48 {
		t.Errorf("preview size = %dx%d, want 64x48", p.Width, p.Height)
	}
}

func TestEmitBestEffortSwallowsErrors(t *testing.T) {
	rec := &event.Recorder{}
	e := NewEmitter(render.NewOrchestrator(), rec, nil)
	lease := newLease(t, true)

	e.EmitBestEffort(context.Background(), lease, 1, OriginRender)
	if n := len(rec.Events()); n != 0 {
		t.Errorf("failed best-effort preview emitted %d events", n)
	}

	if _, err := e.Emit(context.Background(), lease, 1, OriginUI); err == nil {
		t.Error("Emit with failing capturer returned nil error")
	}
}

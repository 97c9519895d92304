// Package preview renders single frames and hands them to the command issuer.
package preview

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/ivlev/scene2video/internal/event"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/render"
	"github.com/ivlev/scene2video/internal/surface"
)

// Origins of preview requests.
const (
	OriginUI          = "ui"
	OriginSceneReload = "scene-reload"
	OriginRender      = "render"
)

// Emitter renders a frame, captures it as a bitmap and emits a preview event.
type Emitter struct {
	orchestrator *render.Orchestrator
	sink         event.Sink
	logger       *slog.Logger
	// MaxWidth downsizes previews wider than this; 0 keeps the native size.
	MaxWidth int
}

// NewEmitter creates an emitter.
func NewEmitter(o *render.Orchestrator, sink event.Sink, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{orchestrator: o, sink: sink, logger: logger}
}

// Emit renders t with a full grid pass, captures it and sends it tagged
// with origin.
func (e *Emitter) Emit(ctx context.Context, lease *lifecycle.Lease, t float64, origin string) (event.Preview, error) {
	if err := e.orchestrator.RenderAtTime(ctx, lease, t); err != nil {
		return event.Preview{}, err
	}
	return e.EmitRendered(ctx, lease, t, origin)
}

// EmitRendered captures the frame already on the surface without rendering.
func (e *Emitter) EmitRendered(ctx context.Context, lease *lifecycle.Lease, t float64, origin string) (event.Preview, error) {
	frame, err := e.orchestrator.Capture(ctx, lease)
	if err != nil {
		return event.Preview{}, fmt.Errorf("preview capture: %w", err)
	}
	bmp := e.transferable(frame)

	p := event.Preview{
		Bitmap:  bmp,
		TimeSec: t,
		Width:   lease.Surface().Width(),
		Height:  lease.Surface().Height(),
		Origin:  origin,
	}
	e.sink.Emit(p)
	return p, nil
}

// EmitBestEffort is used while encoding: a failed preview is logged and
// never interrupts the job.
func (e *Emitter) EmitBestEffort(ctx context.Context, lease *lifecycle.Lease, t float64, origin string) {
	if _, err := e.EmitRendered(ctx, lease, t, origin); err != nil {
		e.logger.Warn("preview failed", "time", t, "origin", origin, "error", err)
	}
}

// transferable detaches the bitmap from pooled memory so the receiver may
// keep it, scaling it down on the way when MaxWidth is set.
func (e *Emitter) transferable(frame *image.RGBA) *image.RGBA {
	defer surface.PutImage(frame)

	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if e.MaxWidth > 0 && w > e.MaxWidth {
		h = max(1, h*e.MaxWidth/w)
		w = e.MaxWidth
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Copy(out, image.Point{}, frame, b, draw.Src, nil)
		return out
	}
	draw.CatmullRom.Scale(out, out.Bounds(), frame, b, draw.Src, nil)
	return out
}

// Package render drives the active scene tile by tile for a given time value.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/scene"
)

// ClearColor is written to the frame target before the first tile.
var ClearColor = color.RGBA{A: 255}

// TileError annotates a failure with the tile it happened in.
type TileError struct {
	Phase string
	Tile  int
	Time  float64
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("%s tile %d at t=%.3fs: %v", e.Phase, e.Tile, e.Time, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// Orchestrator renders frames through a lease on the active scene.
type Orchestrator struct{}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

// RenderAtTime renders every tile of the scene grid at t. Tile N+1 is only
// issued after the gate has confirmed that tile N has completed, because
// later tiles load what earlier ones wrote into the shared target.
func (o *Orchestrator) RenderAtTime(ctx context.Context, lease *lifecycle.Lease, t float64) error {
	h := lease.Handle()
	surf := lease.Surface()
	gate := lease.Gate()
	g := h.Caps.Grid()
	total := g.TotalBlocks()

	// Один тайл: всегда очищаем кадр целиком, без учёта load/clear.
	if total == 1 {
		surf.Clear(surf.Bounds(), ClearColor)
		if err := h.Scene.RenderFrame(ctx, t, nil); err != nil {
			return &TileError{Phase: "render", Tile: 0, Time: t, Err: err}
		}
		if err := gate.Wait(ctx); err != nil {
			return &TileError{Phase: "gpu wait", Tile: 0, Time: t, Err: err}
		}
		return nil
	}

	for i := 0; i < total; i++ {
		tile := grid.DescribeBlock(i, g, surf.Width(), surf.Height())
		if tile.IsFirst {
			surf.Clear(surf.Bounds(), ClearColor)
		}
		if err := h.Scene.RenderFrame(ctx, t, &tile); err != nil {
			return &TileError{Phase: "render", Tile: i, Time: t, Err: err}
		}
		if err := gate.Wait(ctx); err != nil {
			return &TileError{Phase: "gpu wait", Tile: i, Time: t, Err: err}
		}
	}
	return nil
}

// Capture returns the rendered frame. The scene capturer is preferred; when
// it is missing or yields nothing the surface is read back. The returned
// image belongs to the caller, who may hand it to surface.PutImage.
func (o *Orchestrator) Capture(ctx context.Context, lease *lifecycle.Lease) (*image.RGBA, error) {
	h := lease.Handle()
	surf := lease.Surface()
	if h.Caps.CaptureBitmap != nil {
		img, err := h.Caps.CaptureBitmap(ctx, scene.CaptureRequest{
			Width:   surf.Width(),
			Height:  surf.Height(),
			Surface: surf,
		})
		if err != nil {
			return nil, fmt.Errorf("capture bitmap: %w", err)
		}
		if img != nil {
			return img, nil
		}
	}
	return surf.Snapshot(), nil
}

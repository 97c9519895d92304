// Package scene defines the contract a pluggable renderer has to satisfy to
// be driven by the pipeline, and the registry that resolves scene references.
package scene

import (
	"context"
	"image"
	"log/slog"

	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/surface"
)

// Scene is the only required capability. RenderFrame draws the frame at
// timeSec into the surface. A nil tile means the whole frame; otherwise only
// tile.Rect() should be written, honouring tile.LoadOp().
//
// Output must be a pure function of (timeSec, tile, pixel position, scene
// state): no wall clock, no unseeded randomness.
type Scene interface {
	RenderFrame(ctx context.Context, timeSec float64, tile *grid.Tile) error
}

// Resizer is implemented by scenes that keep size-dependent state.
type Resizer interface {
	Resize(width, height int) error
}

// Disposer is implemented by scenes holding resources beyond the surface.
type Disposer interface {
	Dispose() error
}

// GPUWaiter is implemented by scenes whose RenderFrame only submits work.
// WaitForGPU returns once everything submitted so far has completed.
type GPUWaiter interface {
	WaitForGPU(ctx context.Context) error
}

// CaptureRequest is passed to BitmapCapturer.
type CaptureRequest struct {
	Width   int
	Height  int
	Surface *surface.Surface
}

// BitmapCapturer is implemented by scenes that can produce the frame bitmap
// faster than a generic readback. Returning a nil image requests the fallback.
// The returned image is owned by the caller.
type BitmapCapturer interface {
	CaptureBitmap(ctx context.Context, req CaptureRequest) (*image.RGBA, error)
}

// GridProvider is implemented by scenes that want tiled rendering.
type GridProvider interface {
	ViewportGrid() grid.Grid
}

// Options are handed to a Factory.
type Options struct {
	Surface *surface.Surface
	Width   int
	Height  int
	Logger  *slog.Logger
	// Arg is the part of the reference after the first ':' ("document:deck.pdf" -> "deck.pdf").
	Arg string
}

// Factory constructs a scene bound to a surface.
type Factory func(ctx context.Context, opts Options) (Scene, error)

// Capabilities holds the optional members of a scene as nullable function
// slots. They are resolved once at load time.
type Capabilities struct {
	Resize        func(width, height int) error
	Dispose       func() error
	WaitForGPU    func(ctx context.Context) error
	CaptureBitmap func(ctx context.Context, req CaptureRequest) (*image.RGBA, error)
	ViewportGrid  func() grid.Grid
}

// Inspect detects the optional capabilities of s.
func Inspect(s Scene) Capabilities {
	var caps Capabilities
	if r, ok := s.(Resizer); ok {
		caps.Resize = r.Resize
	}
	if d, ok := s.(Disposer); ok {
		caps.Dispose = d.Dispose
	}
	if w, ok := s.(GPUWaiter); ok {
		caps.WaitForGPU = w.WaitForGPU
	}
	if c, ok := s.(BitmapCapturer); ok {
		caps.CaptureBitmap = c.CaptureBitmap
	}
	if g, ok := s.(GridProvider); ok {
		caps.ViewportGrid = g.ViewportGrid
	}
	return caps
}

// Grid returns the scene grid, or the single-tile grid when the scene has none.
func (c Capabilities) Grid() grid.Grid {
	if c.ViewportGrid == nil {
		return grid.Single
	}
	return c.ViewportGrid().Normalize()
}

// Names lists the capabilities that are present, for logging.
func (c Capabilities) Names() []string {
	var names []string
	if c.Resize != nil {
		names = append(names, "resize")
	}
	if c.Dispose != nil {
		names = append(names, "dispose")
	}
	if c.WaitForGPU != nil {
		names = append(names, "waitForGpu")
	}
	if c.CaptureBitmap != nil {
		names = append(names, "captureBitmap")
	}
	if c.ViewportGrid != nil {
		names = append(names, "viewportGrid")
	}
	return names
}

// Package canvas is the default scene: a hue-shifting gradient with orbiting
// dots and radial strokes, drawn with the gg 2D context.
package canvas

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/gogpu/gg"

	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

// Name is the registry name of the scene.
const Name = "canvas"

const (
	orbitCount = 24
	rayCount   = 40
)

// Scene draws the full frame once per time value into an offscreen gg
// context and copies the requested tile into the surface.
type Scene struct {
	surf   *surface.Surface
	dc     *gg.Context
	grid   grid.Grid
	speed  float64
	logger *slog.Logger

	drawn bool
	drawT float64
}

// New is the scene factory. Arguments: "grid=COLSxROWS" (bare value allowed)
// and "speed=<multiplier>".
func New(_ context.Context, opts scene.Options) (scene.Scene, error) {
	args := scene.ParseArgs(opts.Arg, "grid")
	g, err := args.Grid("grid")
	if err != nil {
		return nil, err
	}
	speed, err := args.Float("speed", 1)
	if err != nil {
		return nil, err
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("canvas: no surface")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{
		surf:   opts.Surface,
		dc:     gg.NewContext(opts.Surface.Width(), opts.Surface.Height()),
		grid:   g,
		speed:  speed,
		logger: logger,
	}, nil
}

// RenderFrame implements scene.Scene.
func (s *Scene) RenderFrame(ctx context.Context, timeSec float64, tile *grid.Tile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.dc == nil {
		return fmt.Errorf("canvas: scene disposed")
	}
	if !s.drawn || s.drawT != timeSec {
		if err := s.draw(timeSec * s.speed); err != nil {
			return err
		}
		s.drawn, s.drawT = true, timeSec
	}
	rect := s.surf.Bounds()
	if tile != nil {
		rect = tile.Rect().Intersect(rect)
	}
	s.blit(rect)
	return nil
}

func (s *Scene) draw(t float64) error {
	dc := s.dc
	w, h := float64(dc.Width()), float64(dc.Height())
	hue := math.Mod(t*30, 360)

	bg := gg.NewLinearGradientBrush(0, 0, 0, h).
		AddColorStop(0, gg.HSL(hue, 0.7, 0.2)).
		AddColorStop(1, gg.HSL(hue+150, 0.6, 0.06))
	dc.SetFillBrush(bg)
	dc.DrawRectangle(0, 0, w, h)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("canvas background: %w", err)
	}

	cx, cy := w/2, h/2
	minSide := math.Min(w, h)
	base := minSide * 0.35
	for i := 0; i < orbitCount; i++ {
		fi := float64(i)
		wave := math.Sin(t*0.8 + fi*0.3)
		radius := base * (0.35 + 0.55*wave)
		angle := fi/orbitCount*math.Pi*2 + t*0.4
		x := cx + math.Cos(angle)*radius
		y := cy + math.Sin(angle)*radius*0.6
		size := math.Max(2, 8+6*math.Sin(t*1.4+fi))

		c := gg.HSL(hue+fi*12, 0.8, 0.55)
		c.A = 0.85
		dc.SetFillBrush(gg.Solid(c))
		dc.DrawCircle(x, y, size)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("canvas orbit %d: %w", i, err)
		}
	}

	ray := gg.HSL(hue+200, 0.45, 0.85)
	ray.A = 0.22
	dc.SetStrokeBrush(gg.Solid(ray))
	dc.SetLineWidth(1.5)
	dc.SetLineCap(gg.LineCapRound)
	inner, outer := minSide*0.1, minSide*0.48
	for i := 0; i < rayCount; i++ {
		fi := float64(i)
		angle := fi/rayCount*math.Pi*2 + t*0.25
		wobble := 1 + 0.08*math.Sin(t*2+fi)
		dc.MoveTo(cx+math.Cos(angle)*inner, cy+math.Sin(angle)*inner)
		dc.LineTo(cx+math.Cos(angle)*outer*wobble, cy+math.Sin(angle)*outer*wobble)
	}
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("canvas rays: %w", err)
	}
	return dc.FlushGPU()
}

// blit copies rect from the offscreen pixmap into the surface.
func (s *Scene) blit(rect image.Rectangle) {
	pm := s.dc.ResizeTarget()
	src := pm.Data()
	stride := pm.Width() * 4
	dst := s.surf.Image()
	rect = rect.Intersect(image.Rect(0, 0, pm.Width(), pm.Height()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		so := y*stride + rect.Min.X*4
		do := dst.PixOffset(rect.Min.X, y)
		copy(dst.Pix[do:do+rect.Dx()*4], src[so:so+rect.Dx()*4])
	}
}

// WaitForGPU implements scene.GPUWaiter.
func (s *Scene) WaitForGPU(context.Context) error {
	if s.dc == nil {
		return nil
	}
	return s.dc.FlushGPU()
}

// Resize implements scene.Resizer.
func (s *Scene) Resize(width, height int) error {
	s.drawn = false
	return s.dc.Resize(width, height)
}

// ViewportGrid implements scene.GridProvider.
func (s *Scene) ViewportGrid() grid.Grid { return s.grid }

// Dispose implements scene.Disposer.
func (s *Scene) Dispose() error {
	if s.dc == nil {
		return nil
	}
	err := s.dc.Close()
	s.dc = nil
	s.logger.Debug("canvas disposed")
	return err
}

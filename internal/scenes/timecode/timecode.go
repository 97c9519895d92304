// Package timecode renders the frame time as a QR code, so that a decoded
// video can be checked frame by frame against the time it was rendered at.
package timecode

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

// Name is the registry name of the scene.
const Name = "timecode"

var (
	background = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	dark       = color.RGBA{A: 255}
	light      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	bar        = color.RGBA{R: 230, G: 80, B: 40, A: 255}
)

// Scene draws a QR code holding "t=<seconds>" and a bar that fills once per second.
type Scene struct {
	surf  *surface.Surface
	grid  grid.Grid
	level qrcode.RecoveryLevel

	cachedT  float64
	bitmap   [][]bool
	hasCache bool
}

// New is the scene factory: "timecode:grid=2x2,level=high".
func New(_ context.Context, opts scene.Options) (scene.Scene, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("timecode: no surface")
	}
	args := scene.ParseArgs(opts.Arg, "grid")
	g, err := args.Grid("grid")
	if err != nil {
		return nil, err
	}
	var level qrcode.RecoveryLevel
	switch args.String("level", "medium") {
	case "low":
		level = qrcode.Low
	case "medium":
		level = qrcode.Medium
	case "high":
		level = qrcode.High
	case "highest":
		level = qrcode.Highest
	default:
		return nil, fmt.Errorf("timecode: unknown level %q", args["level"])
	}
	return &Scene{surf: opts.Surface, grid: g, level: level}, nil
}

// Label is the text encoded for t.
func Label(t float64) string {
	return fmt.Sprintf("t=%.3f", t)
}

func (s *Scene) code(t float64) ([][]bool, error) {
	if s.hasCache && s.cachedT == t {
		return s.bitmap, nil
	}
	q, err := qrcode.New(Label(t), s.level)
	if err != nil {
		return nil, fmt.Errorf("timecode qr: %w", err)
	}
	s.bitmap, s.cachedT, s.hasCache = q.Bitmap(), t, true
	return s.bitmap, nil
}

// RenderFrame implements scene.Scene.
func (s *Scene) RenderFrame(ctx context.Context, timeSec float64, tile *grid.Tile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bm, err := s.code(timeSec)
	if err != nil {
		return err
	}
	img := s.surf.Image()
	frame := s.surf.Bounds()
	rect := frame
	if tile != nil {
		rect = tile.Rect().Intersect(frame)
	}
	w, h := frame.Dx(), frame.Dy()

	n := len(bm)
	module := max(1, int(float64(min(w, h))*0.8)/max(1, n))
	side := module * n
	qr := image.Rect(0, 0, side, side).Add(image.Pt((w-side)/2, (h-side)/2))

	barH := max(1, h/40)
	barW := int(math.Floor(float64(w) * (timeSec - math.Floor(timeSec))))
	barRect := image.Rect(0, h-barH, barW, h)

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			p := image.Pt(x, y)
			c := background
			switch {
			case p.In(barRect):
				c = bar
			case p.In(qr):
				if bm[(y-qr.Min.Y)/module][(x-qr.Min.X)/module] {
					c = dark
				} else {
					c = light
				}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return nil
}

// ViewportGrid implements scene.GridProvider.
func (s *Scene) ViewportGrid() grid.Grid { return s.grid }

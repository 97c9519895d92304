// Package solid is a flat-color scene, mostly useful for smoke tests of the
// encoder and for checking tile seams.
package solid

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

// Name is the registry name of the scene.
const Name = "solid"

// Scene fills every tile with one color. With "pulse" set the brightness
// follows a 1 Hz sine so that consecutive frames differ.
type Scene struct {
	surf  *surface.Surface
	color color.RGBA
	grid  grid.Grid
	pulse bool
}

// New is the scene factory: "solid:#rrggbb,grid=2x2,pulse=1".
func New(_ context.Context, opts scene.Options) (scene.Scene, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("solid: no surface")
	}
	args := scene.ParseArgs(opts.Arg, "color")
	c, err := ParseColor(args.String("color", "#202020"))
	if err != nil {
		return nil, err
	}
	g, err := args.Grid("grid")
	if err != nil {
		return nil, err
	}
	pulse := args.String("pulse", "0")
	return &Scene{surf: opts.Surface, color: c, grid: g, pulse: pulse != "0" && pulse != "false"}, nil
}

// ParseColor reads "#rgb", "#rrggbb" or "#rrggbbaa"; the leading '#' is optional.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func (s *Scene) colorAt(t float64) color.RGBA {
	if !s.pulse {
		return s.color
	}
	k := 0.6 + 0.4*(0.5+0.5*math.Sin(2*math.Pi*t))
	c := s.color
	c.R = uint8(math.Round(float64(c.R) * k))
	c.G = uint8(math.Round(float64(c.G) * k))
	c.B = uint8(math.Round(float64(c.B) * k))
	return c
}

// RenderFrame implements scene.Scene.
func (s *Scene) RenderFrame(ctx context.Context, timeSec float64, tile *grid.Tile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rect := s.surf.Bounds()
	if tile != nil {
		rect = tile.Rect()
	}
	s.surf.Clear(rect, s.colorAt(timeSec))
	return nil
}

// ViewportGrid implements scene.GridProvider.
func (s *Scene) ViewportGrid() grid.Grid { return s.grid }

// CaptureBitmap implements scene.BitmapCapturer. The frame is uniform, so it
// is produced without reading the surface back. Translucent colors fall back
// to the readback, which has the composited pixels.
func (s *Scene) CaptureBitmap(_ context.Context, req scene.CaptureRequest) (*image.RGBA, error) {
	if s.color.A != 255 || req.Surface == nil {
		return nil, nil
	}
	img := surface.GetImage(image.Rect(0, 0, req.Width, req.Height))
	src := req.Surface.Image()
	draw.Draw(img, img.Rect, image.NewUniform(src.RGBAAt(0, 0)), image.Point{}, draw.Src)
	return img, nil
}

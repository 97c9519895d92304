package camera

import (
	"image"
	"math"
)

// View is the camera at one instant: the frame point it centers on and
// how far it is zoomed in.
type View struct {
	X, Y float64
	Zoom float64
}

// At interpolates the path at t. Before the first keyframe and after the
// last one the camera holds still. An empty path yields a zero View, which
// Crop treats as the full frame.
func At(path []Keyframe, t float64) View {
	if len(path) == 0 {
		return View{}
	}
	first, last := path[0], path[len(path)-1]
	if t <= first.Time {
		return viewOf(first)
	}
	if t >= last.Time {
		return viewOf(last)
	}
	i := 1
	for i < len(path)-1 && path[i].Time <= t {
		i++
	}
	a, b := path[i-1], path[i]
	span := b.Time - a.Time
	if span <= 0 {
		return viewOf(b)
	}
	k := EaseInOutCubic((t - a.Time) / span)
	va, vb := viewOf(a), viewOf(b)
	return View{
		X:    lerp(va.X, vb.X, k),
		Y:    lerp(va.Y, vb.Y, k),
		Zoom: lerp(va.Zoom, vb.Zoom, k),
	}
}

func viewOf(k Keyframe) View {
	x, y := k.Rect.center()
	return View{X: x, Y: y, Zoom: k.Zoom}
}

// Crop returns the part of a width x height frame the camera sees, kept
// inside the frame.
func (v View) Crop(width, height int) image.Rectangle {
	full := image.Rect(0, 0, width, height)
	if v.Zoom <= 1 {
		return full
	}
	cw, ch := float64(width)/v.Zoom, float64(height)/v.Zoom
	x0 := clamp(v.X-cw/2, 0, float64(width)-cw)
	y0 := clamp(v.Y-ch/2, 0, float64(height)-ch)
	r := image.Rect(
		int(math.Round(x0)), int(math.Round(y0)),
		int(math.Round(x0+cw)), int(math.Round(y0+ch)),
	)
	if r.Empty() {
		return full
	}
	return r.Intersect(full)
}

// EaseInOutCubic maps 0..1 onto a curve that starts and ends slowly.
func EaseInOutCubic(t float64) float64 {
	t = clamp(t, 0, 1)
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(v, hi)) }

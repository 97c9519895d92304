package camera

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// Rect is a rectangle in frame pixels.
type Rect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

func rectOf(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func (r Rect) center() (float64, float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

// Keyframe is the camera target at Time seconds into the page.
type Keyframe struct {
	Time  float64 `yaml:"time"`
	Focus string  `yaml:"focus,omitempty"`
	Rect  Rect    `yaml:"rect"`
	Zoom  float64 `yaml:"zoom"`
}

// Planner turns detected regions into a keyframe path for one page.
type Planner struct {
	Width, Height int
	MinDwell      float64 // seconds per region
	MaxDwell      float64
	// Lead is the time spent on the full view before the first region and
	// after the last one, capped at a quarter of the page.
	Lead    float64
	MaxZoom float64
	// Padding is the share of the frame a focused region may fill.
	Padding float64
}

// NewPlanner returns a planner for a width x height frame.
func NewPlanner(width, height int) *Planner {
	return &Planner{
		Width:    width,
		Height:   height,
		MinDwell: 0.75,
		MaxDwell: 3,
		Lead:     1,
		MaxZoom:  3,
		Padding:  0.9,
	}
}

// Plan builds the path for a page shown for duration seconds. The camera
// starts and ends on the full frame. Regions that do not fit into the time
// budget are dropped from the end of the reading order.
func (p *Planner) Plan(regions []Region, duration float64) []Keyframe {
	full := Keyframe{Focus: "full", Rect: Rect{W: p.Width, H: p.Height}, Zoom: 1}
	if duration <= 0 {
		return []Keyframe{full}
	}
	lead := math.Min(p.Lead, duration/4)
	budget := duration - 2*lead

	ordered := p.readingOrder(regions)
	n := len(ordered)
	if p.MinDwell > 0 {
		n = min(n, int(budget/p.MinDwell))
	}
	if n <= 0 {
		return []Keyframe{full}
	}
	dwell := budget / float64(n)
	if p.MaxDwell > 0 {
		dwell = math.Min(dwell, p.MaxDwell)
	}

	path := []Keyframe{full}
	t := lead
	for i, r := range ordered[:n] {
		path = append(path, Keyframe{
			Time:  t,
			Focus: fmt.Sprintf("region_%d", i+1),
			Rect:  rectOf(r.Rect),
			Zoom:  p.zoomFor(r.Rect),
		})
		t += dwell
	}
	end := full
	end.Time = t
	return append(path, end)
}

// readingOrder sorts top to bottom, then left to right within a row.
func (p *Planner) readingOrder(regions []Region) []Region {
	out := append([]Region(nil), regions...)
	row := max(8, p.Height/36)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Rect.Min, out[j].Rect.Min
		if d := a.Y - b.Y; d > row || d < -row {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

func (p *Planner) zoomFor(r image.Rectangle) float64 {
	if r.Dx() == 0 || r.Dy() == 0 {
		return 1
	}
	z := math.Min(
		float64(p.Width)*p.Padding/float64(r.Dx()),
		float64(p.Height)*p.Padding/float64(r.Dy()),
	)
	return math.Max(1, math.Min(z, p.MaxZoom))
}

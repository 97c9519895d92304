package camera

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ScriptVersion is written into new scripts.
const ScriptVersion = "1"

// Script is a saved camera path for every page of a document. Rects are in
// the Width x Height frame the script was planned for and are rescaled when
// played back at another size.
type Script struct {
	Version string     `yaml:"version"`
	Source  string     `yaml:"source,omitempty"`
	Width   int        `yaml:"width"`
	Height  int        `yaml:"height"`
	Pages   []PagePath `yaml:"pages"`
}

// PagePath is the path of one page, counted from zero.
type PagePath struct {
	Page      int        `yaml:"page"`
	Duration  float64    `yaml:"duration,omitempty"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// ReadScript loads a script from YAML.
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("camera script %s: %w", path, err)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("camera script %s: width and height are required", path)
	}
	return &s, nil
}

// WriteScript stores s as YAML.
func WriteScript(s *Script, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Path returns the keyframes of page scaled to a width x height frame, or
// nil when the script has no entry for it.
func (s *Script) Path(page, width, height int) []Keyframe {
	for _, p := range s.Pages {
		if p.Page != page {
			continue
		}
		sx := float64(width) / float64(s.Width)
		sy := float64(height) / float64(s.Height)
		out := make([]Keyframe, len(p.Keyframes))
		for i, k := range p.Keyframes {
			k.Rect = Rect{
				X: int(math.Round(float64(k.Rect.X) * sx)),
				Y: int(math.Round(float64(k.Rect.Y) * sy)),
				W: int(math.Round(float64(k.Rect.W) * sx)),
				H: int(math.Round(float64(k.Rect.H) * sy)),
			}
			if k.Zoom <= 0 {
				k.Zoom = 1
			}
			out[i] = k
		}
		return out
	}
	return nil
}

// Package scenes registers the built-in scenes.
package scenes

import (
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/scenes/canvas"
	"github.com/ivlev/scene2video/internal/scenes/document"
	"github.com/ivlev/scene2video/internal/scenes/solid"
	"github.com/ivlev/scene2video/internal/scenes/timecode"
)

// Register adds every built-in scene to r.
func Register(r *scene.Registry) {
	r.Register(canvas.Name, canvas.New)
	r.Register(document.Name, document.New)
	r.Register(solid.Name, solid.New)
	r.Register(timecode.Name, timecode.New)
}

// NewRegistry returns a registry with the built-in scenes.
func NewRegistry() *scene.Registry {
	r := scene.NewRegistry()
	Register(r)
	return r
}

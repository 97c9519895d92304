package scenes

import (
	"context"
	"slices"
	"testing"

	"github.com/ivlev/scene2video/internal/lifecycle"
	"github.com/ivlev/scene2video/internal/render"
)

func TestBuiltinsRegistered(t *testing.T) {
	got := NewRegistry().Names()
	want := []string{"canvas", "document", "solid", "timecode"}
	if !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestDefaultSceneRendersThroughManager(t *testing.T) {
	ctx := context.Background()
	m := lifecycle.NewManager(NewRegistry(), nil, 64, 36)
	defer m.Close(ctx)

	for _, ref := range []string{"", "canvas:2x2", "solid:#00ff00", "timecode"} {
		if _, _, _, err := m.Load(ctx, ref, 64, 36); err != nil {
			t.Fatalf("Load(%q) failed: %v", ref, err)
		}
		lease, err := m.Acquire(ctx)
		if err != nil {
			t.Fatal(err)
		}
		o := render.NewOrchestrator()
		if err := o.RenderAtTime(ctx, lease, 1); err != nil {
			t.Errorf("RenderAtTime(%q) failed: %v", ref, err)
		}
		img, err := o.Capture(ctx, lease)
		if err != nil || img.Rect.Dx() != 64 {
			t.Errorf("Capture(%q) = %v, %v", ref, img, err)
		}
		lease.Release()
	}
}

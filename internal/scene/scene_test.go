package scene

import (
	"context"
	"errors"
	"testing"

	"github.com/ivlev/scene2video/internal/grid"
)

type bareScene struct{}

func (bareScene) RenderFrame(context.Context, float64, *grid.Tile) error { return nil }

type fullScene struct {
	bareScene
	disposed bool
}

func (s *fullScene) Resize(int, int) error            { return nil }
func (s *fullScene) Dispose() error                   { s.disposed = true; return nil }
func (s *fullScene) WaitForGPU(context.Context) error { return nil }
func (s *fullScene) ViewportGrid() grid.Grid          { return grid.Grid{Columns: 0, Rows: 3} }

func TestInspectBareScene(t *testing.T) {
	caps := Inspect(bareScene{})
	if len(caps.Names()) != 0 {
		t.Errorf("bare scene capabilities = %v, want none", caps.Names())
	}
	if caps.Grid() != grid.Single {
		t.Errorf("bare scene grid = %+v, want single", caps.Grid())
	}
}

func TestInspectFullScene(t *testing.T) {
	s := &fullScene{}
	caps := Inspect(s)

	want := []string{"resize", "dispose", "waitForGpu", "viewportGrid"}
	got := caps.Names()
	if len(got) != len(want) {
		t.Fatalf("capabilities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("capability %d = %s, want %s", i, got[i], want[i])
		}
	}

	if g := caps.Grid(); g.Columns != 1 || g.Rows != 3 {
		t.Errorf("grid = %+v, want normalized {1,3}", g)
	}

	if err := caps.Dispose(); err != nil || !s.disposed {
		t.Errorf("Dispose slot not bound to scene")
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref  string
		name string
		arg  string
	}{
		{"", DefaultRef, ""},
		{"  Canvas ", "canvas", ""},
		{"document:slides/deck.pdf", "document", "slides/deck.pdf"},
		{"solid:#ff0000", "solid", "#ff0000"},
	}

	for _, tt := range tests {
		name, arg := ParseRef(tt.ref)
		if name != tt.name || arg != tt.arg {
			t.Errorf("ParseRef(%q) = (%q, %q), want (%q, %q)", tt.ref, name, arg, tt.name, tt.arg)
		}
	}
}

func TestRegistryNew(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register("bare", func(_ context.Context, opts Options) (Scene, error) {
		calls++
		if opts.Arg != "x" {
			t.Errorf("factory arg = %q, want x", opts.Arg)
		}
		return bareScene{}, nil
	})
	r.Register("broken", func(context.Context, Options) (Scene, error) {
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := r.New(context.Background(), "bare:x", Options{}); err != nil {
			t.Fatalf("New failed: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("factory called %d times, want 2 (no instance caching)", calls)
	}

	_, err := r.New(context.Background(), "missing", Options{})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("missing ref err = %v, want LoadError wrapping ErrSceneNotFound", err)
	}

	_, err = r.New(context.Background(), "broken", Options{})
	if !errors.Is(err, ErrInvalidScene) {
		t.Errorf("broken factory err = %v, want ErrInvalidScene", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "bare" || names[1] != "broken" {
		t.Errorf("Names() = %v", names)
	}
}

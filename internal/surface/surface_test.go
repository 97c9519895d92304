package surface

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestAllocateClampsToMinimum(t *testing.T) {
	s, err := Allocate(0, -5)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer s.Release()

	if s.Width() != 1 || s.Height() != 1 {
		t.Errorf("granted %dx%d, want 1x1", s.Width(), s.Height())
	}
}

func TestAllocateRejectsOversize(t *testing.T) {
	_, err := Allocate(MaxDimension+1, 10)
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("Allocate oversize err = %v, want ErrAllocation", err)
	}
}

func TestClearAndSnapshot(t *testing.T) {
	s, err := Allocate(4, 4)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer s.Release()

	red := color.RGBA{R: 255, A: 255}
	s.Clear(image.Rect(2, 0, 4, 4), red)

	snap := s.Snapshot()
	defer PutImage(snap)

	if got := snap.RGBAAt(3, 1); got != red {
		t.Errorf("pixel (3,1) = %v, want %v", got, red)
	}
	if got := snap.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("pixel (0,0) = %v, want untouched", got)
	}

	// Снимок не должен меняться вместе с поверхностью.
	s.Clear(s.Bounds(), color.RGBA{B: 255, A: 255})
	if got := snap.RGBAAt(3, 1); got != red {
		t.Errorf("snapshot changed after clear: %v", got)
	}
}

func TestResize(t *testing.T) {
	s, err := Allocate(8, 8)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	defer s.Release()

	w, h := s.Resize(16, 0)
	if w != 16 || h != 1 {
		t.Errorf("Resize granted %dx%d, want 16x1", w, h)
	}
	if s.Bounds() != image.Rect(0, 0, 16, 1) {
		t.Errorf("bounds = %v", s.Bounds())
	}
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 3, 3)

	img := p.Get(rect)
	if img.Rect != rect {
		t.Fatalf("pool returned %v, want %v", img.Rect, rect)
	}
	p.Put(img)
	p.Put(nil)

	other := p.Get(image.Rect(0, 0, 5, 5))
	if other.Rect.Dx() != 5 {
		t.Errorf("pool returned wrong size %v", other.Rect)
	}
}

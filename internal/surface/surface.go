// Package surface provides the shared frame target that scenes draw into.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// MaxDimension is the largest edge the allocator grants.
const MaxDimension = 16384

// ErrAllocation is returned when a surface cannot be allocated.
var ErrAllocation = errors.New("surface allocation failed")

// Surface is the render target owned by the scene lifecycle manager.
// It is not safe for concurrent use; callers serialize through a lease.
type Surface struct {
	img  *image.RGBA
	pool *ImagePool
}

// ClampDimension forces a requested edge into [1, MaxDimension].
func ClampDimension(v int) int {
	if v < 1 {
		return 1
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

// Allocate creates a surface. Requests are clamped to at least 1×1; the
// granted size is available through Width and Height.
func Allocate(width, height int) (*Surface, error) {
	return allocateFrom(globalPool, width, height)
}

func allocateFrom(pool *ImagePool, width, height int) (*Surface, error) {
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrAllocation, width, height, MaxDimension)
	}
	w, h := ClampDimension(width), ClampDimension(height)
	img := pool.Get(image.Rect(0, 0, w, h))
	clear(img.Pix)
	return &Surface{img: img, pool: pool}, nil
}

// Width returns the granted width.
func (s *Surface) Width() int { return s.img.Rect.Dx() }

// Height returns the granted height.
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Bounds returns the frame rectangle.
func (s *Surface) Bounds() image.Rectangle { return s.img.Rect }

// Image exposes the backing pixels. Scenes draw into it directly.
func (s *Surface) Image() *image.RGBA { return s.img }

// Resize reallocates the backing buffer when the clamped size changes and
// returns the granted size. Pixel contents are not preserved.
func (s *Surface) Resize(width, height int) (int, int) {
	w, h := ClampDimension(width), ClampDimension(height)
	if w == s.Width() && h == s.Height() {
		return w, h
	}
	old := s.img
	s.img = s.pool.Get(image.Rect(0, 0, w, h))
	clear(s.img.Pix)
	s.pool.Put(old)
	return w, h
}

// Clear fills rect (clipped to the surface) with c.
func (s *Surface) Clear(rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(s.img.Rect)
	if rect.Empty() {
		return
	}
	draw.Draw(s.img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// Snapshot copies the current pixels into a pooled buffer. The caller hands
// it back with PutImage once the frame has been consumed.
func (s *Surface) Snapshot() *image.RGBA {
	dst := s.pool.Get(s.img.Rect)
	copy(dst.Pix, s.img.Pix)
	return dst
}

// Release returns the backing buffer to the pool. The surface must not be
// used afterwards.
func (s *Surface) Release() {
	if s.img == nil {
		return
	}
	s.pool.Put(s.img)
	s.img = nil
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool { return s.img == nil }

// Package camera plans and plays back a slow pan-and-zoom over a still page:
// content regions are found by edge contrast, visited in reading order and
// interpolated with an ease-in-out curve.
package camera

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Region is a block of content found on a page.
type Region struct {
	Rect image.Rectangle
	// Fill is the share of edge pixels inside Rect, 0..1.
	Fill float64
}

// Detector finds content regions with a Sobel edge pass, a dilation that
// glues neighbouring glyphs together and a connected component scan.
type Detector struct {
	MinArea       int     // in source pixels
	EdgeThreshold float64 // gradient magnitude
	DilateRadius  int
	DilatePasses  int
	// MaxSide bounds the analysis resolution; larger pages are downscaled.
	MaxSide int
	// MaxCover drops regions that cover almost the whole page.
	MaxCover float64
}

// NewDetector returns a detector with settings that work for slides.
func NewDetector() *Detector {
	return &Detector{
		MinArea:       500,
		EdgeThreshold: 30,
		DilateRadius:  2,
		DilatePasses:  2,
		MaxSide:       640,
		MaxCover:      0.9,
	}
}

// Detect returns the regions of img in img's coordinate space.
func (d *Detector) Detect(img image.Image) []Region {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil
	}
	scale := 1.0
	if side := max(b.Dx(), b.Dy()); d.MaxSide > 0 && side > d.MaxSide {
		scale = float64(d.MaxSide) / float64(side)
	}
	w := max(3, int(math.Round(float64(b.Dx())*scale)))
	h := max(3, int(math.Round(float64(b.Dy())*scale)))

	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, xdraw.Src, nil)

	mask := sobel(gray, d.EdgeThreshold)
	for i := 0; i < d.DilatePasses; i++ {
		mask = dilate(mask, w, h, d.DilateRadius)
	}

	sx := float64(b.Dx()) / float64(w)
	sy := float64(b.Dy()) / float64(h)
	minArea := float64(d.MinArea) / (sx * sy)
	pageArea := float64(w * h)

	var out []Region
	for _, c := range components(mask, w, h) {
		area := float64(c.rect.Dx() * c.rect.Dy())
		if area < minArea || (d.MaxCover > 0 && area >= d.MaxCover*pageArea) {
			continue
		}
		r := image.Rect(
			b.Min.X+int(math.Floor(float64(c.rect.Min.X)*sx)),
			b.Min.Y+int(math.Floor(float64(c.rect.Min.Y)*sy)),
			b.Min.X+int(math.Ceil(float64(c.rect.Max.X)*sx)),
			b.Min.Y+int(math.Ceil(float64(c.rect.Max.Y)*sy)),
		).Intersect(b)
		out = append(out, Region{Rect: r, Fill: float64(c.pixels) / area})
	}
	return out
}

// sobel returns a 0/1 edge mask of gray.
func sobel(gray *image.Gray, threshold float64) []uint8 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	mask := make([]uint8, w*h)
	px := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }
	t2 := threshold * threshold
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			if gx*gx+gy*gy > t2 {
				mask[y*w+x] = 1
			}
		}
	}
	return mask
}

// dilate grows the mask by r pixels, rows first, then columns.
func dilate(mask []uint8, w, h, r int) []uint8 {
	if r <= 0 {
		return mask
	}
	rows := make([]uint8, len(mask))
	for y := 0; y < h; y++ {
		line := mask[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			if line[x] == 0 {
				continue
			}
			for i := max(0, x-r); i <= min(w-1, x+r); i++ {
				rows[y*w+i] = 1
			}
		}
	}
	out := make([]uint8, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rows[y*w+x] == 0 {
				continue
			}
			for j := max(0, y-r); j <= min(h-1, y+r); j++ {
				out[j*w+x] = 1
			}
		}
	}
	return out
}

type component struct {
	rect   image.Rectangle
	pixels int
}

// components labels 4-connected areas of the mask and returns their bounds.
func components(mask []uint8, w, h int) []component {
	seen := make([]bool, len(mask))
	var out []component
	var stack []int
	for start, v := range mask {
		if v == 0 || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		c := component{rect: image.Rect(start%w, start/w, start%w+1, start/w+1)}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			c.pixels++
			c.rect = c.rect.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				if n < 0 || n >= len(mask) || seen[n] || mask[n] == 0 {
					continue
				}
				// Соседи по горизонтали только в той же строке.
				if (n == i-1 || n == i+1) && n/w != y {
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}
		out = append(out, c)
	}
	return out
}

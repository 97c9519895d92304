// Package document shows the pages of a PDF (or a folder of images) one
// after another, each for a fixed number of seconds. With camera=auto the
// scene pans over the content blocks of every page; camera=<file.yaml>
// plays a saved camera script instead.
package document

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/scene2video/internal/camera"
	"github.com/ivlev/scene2video/internal/grid"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

// Name is the registry name of the scene.
const Name = "document"

// DefaultPageSeconds is how long a page stays on screen.
const DefaultPageSeconds = 3.0

// ErrNoPath is returned when the reference carries no document path.
var ErrNoPath = errors.New("document path required (document:<path>)")

// Scene renders the page active at t, letterboxed onto a black frame.
type Scene struct {
	surf        *surface.Surface
	src         Source
	grid        grid.Grid
	pageSeconds float64
	logger      *slog.Logger

	// fade: длительность перехода в конце страницы (0 - без перехода).
	fade float64

	// Кэш страниц в размере кадра: текущая и соседние.
	pages map[int]*image.RGBA
	mix   *image.RGBA

	// Камера: detector задан для camera=auto, script для сценария из файла.
	detector *camera.Detector
	script   *camera.Script
	paths    map[int][]camera.Keyframe
	view     *image.RGBA
	viewPage int
	viewTime float64
}

// New is the scene factory: "document:deck.pdf,seconds=4,fade=0.5,grid=2x1".
func New(_ context.Context, opts scene.Options) (scene.Scene, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("document: no surface")
	}
	args := scene.ParseArgs(opts.Arg, "path")
	path := args.String("path", "")
	if path == "" {
		return nil, ErrNoPath
	}
	secs, err := args.Float("seconds", DefaultPageSeconds)
	if err != nil {
		return nil, err
	}
	if secs <= 0 {
		return nil, fmt.Errorf("document: seconds must be positive, got %g", secs)
	}
	fade, err := args.Float("fade", 0)
	if err != nil {
		return nil, err
	}
	if fade < 0 || fade > secs/2 {
		return nil, fmt.Errorf("document: fade must be within [0, %g], got %g", secs/2, fade)
	}
	g, err := args.Grid("grid")
	if err != nil {
		return nil, err
	}
	var (
		detector *camera.Detector
		script   *camera.Script
	)
	switch mode := args.String("camera", "off"); mode {
	case "off", "none":
	case "auto":
		detector = camera.NewDetector()
	default:
		if script, err = camera.ReadScript(mode); err != nil {
			return nil, err
		}
	}
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	if src.PageCount() == 0 {
		src.Close()
		return nil, fmt.Errorf("document %s has no pages", path)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("document opened",
		"path", path,
		"pages", src.PageCount(),
		"seconds_per_page", secs,
		"camera", args.String("camera", "off"),
	)
	return &Scene{
		surf:        opts.Surface,
		src:         src,
		grid:        g,
		pageSeconds: secs,
		logger:      logger,
		fade:        fade,
		pages:       map[int]*image.RGBA{},
		detector:    detector,
		script:      script,
		paths:       map[int][]camera.Keyframe{},
		viewPage:    -1,
	}, nil
}

// PageAt returns the page shown at t, clamped to the document.
func (s *Scene) PageAt(t float64) int {
	i := int(math.Floor(max(0, t) / s.pageSeconds))
	return min(i, s.src.PageCount()-1)
}

// RenderFrame implements scene.Scene.
func (s *Scene) RenderFrame(ctx context.Context, timeSec float64, tile *grid.Tile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.src == nil {
		return fmt.Errorf("document: scene disposed")
	}
	index := s.PageAt(timeSec)
	frame, err := s.page(index)
	if err != nil {
		return err
	}
	if s.detector != nil || s.script != nil {
		frame = s.framed(frame, index, timeSec)
	}
	// Следующая страница входит в кадр целиком, без камеры.
	if k := s.fadeAt(index, timeSec); k > 0 {
		next, err := s.page(index + 1)
		if err != nil {
			return err
		}
		frame = s.blend(frame, next, k)
	}
	rect := s.surf.Bounds()
	if tile != nil {
		rect = tile.Rect().Intersect(rect)
	}
	xdraw.Draw(s.surf.Image(), rect, frame, rect.Min, xdraw.Src)
	return nil
}

func (s *Scene) page(index int) (*image.RGBA, error) {
	bounds := s.surf.Bounds()
	if p, ok := s.pages[index]; ok && p.Rect == bounds {
		return p, nil
	}
	img, dst, err := fitPage(s.src, index, bounds)
	if err != nil {
		return nil, err
	}
	// Держим только страницы рядом с index; освободившийся буфер переиспользуем.
	var buf *image.RGBA
	for i, p := range s.pages {
		if i < index-1 || i > index+1 || p.Rect != bounds {
			if p.Rect == bounds {
				buf = p
			}
			delete(s.pages, i)
		}
	}
	if buf == nil {
		buf = image.NewRGBA(bounds)
	}
	xdraw.Draw(buf, bounds, image.NewUniform(color.RGBA{A: 255}), image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(buf, dst, img, img.Bounds(), xdraw.Src, nil)
	s.pages[index] = buf
	if s.viewPage == index {
		s.viewPage = -1
	}
	s.logger.Debug("page rendered", "page", index, "rect", dst.String())

	if _, ok := s.paths[index]; !ok && s.detector != nil {
		regions := detectOnFrame(s.detector, img, dst)
		s.paths[index] = camera.NewPlanner(bounds.Dx(), bounds.Dy()).Plan(regions, s.pageSeconds)
		s.logger.Debug("camera path planned", "page", index, "regions", len(regions))
	}
	return buf, nil
}

// fadeAt returns how far page index has faded into the next one at t, 0..1.
func (s *Scene) fadeAt(index int, t float64) float64 {
	if s.fade <= 0 || index+1 >= s.src.PageCount() {
		return 0
	}
	start := float64(index+1)*s.pageSeconds - s.fade
	if t <= start {
		return 0
	}
	return min(1, (t-start)/s.fade)
}

// blend mixes a towards b by k into the mix buffer.
func (s *Scene) blend(a, b *image.RGBA, k float64) *image.RGBA {
	if s.mix == nil || s.mix.Rect != a.Rect {
		s.mix = image.NewRGBA(a.Rect)
	}
	w := uint32(math.Round(k * 256))
	for i := range s.mix.Pix {
		s.mix.Pix[i] = uint8((uint32(a.Pix[i])*(256-w) + uint32(b.Pix[i])*w) >> 8)
	}
	return s.mix
}

// fitPage renders a page at the resolution that fits bounds and returns it
// with the letterboxed rectangle it occupies in the frame.
func fitPage(src Source, index int, bounds image.Rectangle) (image.Image, image.Rectangle, error) {
	pw, ph, err := src.PageSize(index)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("page %d size: %w", index, err)
	}
	if pw <= 0 || ph <= 0 {
		return nil, image.Rectangle{}, fmt.Errorf("page %d has empty bounds", index)
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	scale := math.Min(w/pw, h/ph)
	img, err := src.RenderPage(index, 72*scale)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("render page %d: %w", index, err)
	}
	fw, fh := int(math.Round(pw*scale)), int(math.Round(ph*scale))
	dst := image.Rect(0, 0, max(1, fw), max(1, fh)).Add(image.Pt((bounds.Dx()-fw)/2, (bounds.Dy()-fh)/2))
	return img, dst, nil
}

// detectOnFrame runs the detector on the page image and maps the regions
// into frame coordinates.
func detectOnFrame(d *camera.Detector, img image.Image, dst image.Rectangle) []camera.Region {
	b := img.Bounds()
	sx := float64(dst.Dx()) / float64(b.Dx())
	sy := float64(dst.Dy()) / float64(b.Dy())
	regions := d.Detect(img)
	for i, r := range regions {
		regions[i].Rect = image.Rect(
			dst.Min.X+int(math.Floor(float64(r.Rect.Min.X-b.Min.X)*sx)),
			dst.Min.Y+int(math.Floor(float64(r.Rect.Min.Y-b.Min.Y)*sy)),
			dst.Min.X+int(math.Ceil(float64(r.Rect.Max.X-b.Min.X)*sx)),
			dst.Min.Y+int(math.Ceil(float64(r.Rect.Max.Y-b.Min.Y)*sy)),
		).Intersect(dst)
	}
	return regions
}

// CameraPath returns the keyframes used for page index at the current size.
func (s *Scene) CameraPath(index int) []camera.Keyframe {
	if p, ok := s.paths[index]; ok {
		return p
	}
	if s.script == nil {
		return nil
	}
	b := s.surf.Bounds()
	p := s.script.Path(index, b.Dx(), b.Dy())
	s.paths[index] = p
	return p
}

// framed returns the page as seen by the camera at t. The result is cached
// per page and time so that tiles of one frame share it.
func (s *Scene) framed(page *image.RGBA, index int, t float64) *image.RGBA {
	local := max(0, t) - float64(index)*s.pageSeconds
	crop := camera.At(s.CameraPath(index), local).Crop(page.Rect.Dx(), page.Rect.Dy())
	if crop == page.Rect {
		return page
	}
	if s.view != nil && s.viewPage == index && s.viewTime == t && s.view.Rect == page.Rect {
		return s.view
	}
	if s.view == nil || s.view.Rect != page.Rect {
		s.view = image.NewRGBA(page.Rect)
	}
	xdraw.ApproxBiLinear.Scale(s.view, s.view.Rect, page, crop, xdraw.Src, nil)
	s.viewPage, s.viewTime = index, t
	return s.view
}

// Resize implements scene.Resizer.
func (s *Scene) Resize(int, int) error {
	clear(s.pages)
	s.viewPage = -1
	clear(s.paths)
	return nil
}

// ViewportGrid implements scene.GridProvider.
func (s *Scene) ViewportGrid() grid.Grid { return s.grid }

// Dispose implements scene.Disposer.
func (s *Scene) Dispose() error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	s.pages = nil
	s.view = nil
	s.mix = nil
	return err
}

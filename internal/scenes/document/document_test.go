package document

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/scene2video/internal/camera"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func pageDir(t *testing.T) string {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "01.png"), 20, 10, color.RGBA{255, 0, 0, 255})
	writePNG(t, filepath.Join(dir, "02.png"), 10, 10, color.RGBA{0, 0, 255, 255})
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644)
	return dir
}

func TestPagesFollowTime(t *testing.T) {
	surf, _ := surface.Allocate(40, 20)
	defer surf.Release()
	sc, err := New(context.Background(), scene.Options{Surface: surf, Arg: pageDir(t) + ",seconds=1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	doc := sc.(*Scene)
	defer doc.Dispose()

	tests := []struct {
		t    float64
		page int
	}{
		{0, 0}, {0.99, 0}, {1, 1}, {99, 1}, {-3, 0},
	}
	for _, tt := range tests {
		if got := doc.PageAt(tt.t); got != tt.page {
			t.Errorf("PageAt(%v) = %d, want %d", tt.t, got, tt.page)
		}
	}

	if err := doc.RenderFrame(context.Background(), 0.5, nil); err != nil {
		t.Fatal(err)
	}
	if got := surf.Image().RGBAAt(20, 10); got.R < 250 || got.B > 5 {
		t.Errorf("page 0 center = %v, want red", got)
	}

	if err := doc.RenderFrame(context.Background(), 1.5, nil); err != nil {
		t.Fatal(err)
	}
	img := surf.Image()
	if got := img.RGBAAt(20, 10); got.B < 250 || got.R > 5 {
		t.Errorf("page 1 center = %v, want blue", got)
	}
	if got := img.RGBAAt(2, 10); got != (color.RGBA{A: 255}) {
		t.Errorf("letterbox = %v, want black", got)
	}
}

func TestMissingPath(t *testing.T) {
	surf, _ := surface.Allocate(8, 8)
	defer surf.Release()
	if _, err := New(context.Background(), scene.Options{Surface: surf}); !errors.Is(err, ErrNoPath) {
		t.Errorf("err = %v, want ErrNoPath", err)
	}
	if _, err := New(context.Background(), scene.Options{Surface: surf, Arg: "/does/not/exist.pdf"}); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := New(context.Background(), scene.Options{Surface: surf, Arg: pageDir(t) + ",seconds=0"}); err == nil {
		t.Error("zero seconds accepted")
	}
}

func TestEmptyDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("empty directory accepted")
	}
}

// slidePNG writes a white page with one dark block in its upper left part.
func slidePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x >= 40 && x < 160 && y >= 30 && y < 90 {
				c = color.RGBA{10, 10, 10, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestCameraAutoZoomsIn(t *testing.T) {
	dir := t.TempDir()
	slidePNG(t, filepath.Join(dir, "slide.png"))

	surf, _ := surface.Allocate(400, 200)
	defer surf.Release()
	sc, err := New(context.Background(), scene.Options{Surface: surf, Arg: dir + ",seconds=6,camera=auto"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	doc := sc.(*Scene)
	defer doc.Dispose()

	// t=0: full frame, the block's corner area is white.
	if err := doc.RenderFrame(context.Background(), 0, nil); err != nil {
		t.Fatal(err)
	}
	if got := surf.Image().RGBAAt(380, 180); got.R < 250 {
		t.Errorf("full view corner = %v, want white", got)
	}
	path := doc.CameraPath(0)
	if len(path) != 3 {
		t.Fatalf("camera path = %+v, want full, block, full", path)
	}
	if path[1].Zoom <= 1 {
		t.Errorf("block zoom = %v", path[1].Zoom)
	}

	// On the block keyframe the frame center shows the dark block.
	if err := doc.RenderFrame(context.Background(), path[1].Time, nil); err != nil {
		t.Fatal(err)
	}
	if got := surf.Image().RGBAAt(200, 100); got.R > 40 {
		t.Errorf("zoomed center = %v, want dark", got)
	}
}

func TestPlanScript(t *testing.T) {
	dir := t.TempDir()
	slidePNG(t, filepath.Join(dir, "a.png"))
	slidePNG(t, filepath.Join(dir, "b.png"))

	script, err := PlanScript(context.Background(), dir, 400, 200, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Pages) != 2 || script.Width != 400 || script.Height != 200 {
		t.Fatalf("script = %+v", script)
	}
	if n := len(script.Pages[1].Keyframes); n != 3 {
		t.Errorf("page 1 keyframes = %d, want 3", n)
	}

	file := filepath.Join(t.TempDir(), "deck.yaml")
	if err := camera.WriteScript(script, file); err != nil {
		t.Fatal(err)
	}
	surf, _ := surface.Allocate(800, 400)
	defer surf.Release()
	sc, err := New(context.Background(), scene.Options{Surface: surf, Arg: dir + ",seconds=6,camera=" + file})
	if err != nil {
		t.Fatalf("New with script: %v", err)
	}
	defer sc.(*Scene).Dispose()
	kf := sc.(*Scene).CameraPath(0)
	if len(kf) != 3 || kf[0].Rect.W != 800 {
		t.Errorf("scaled script path = %+v", kf)
	}
}

func TestFadeIntoNextPage(t *testing.T) {
	surf, _ := surface.Allocate(40, 20)
	defer surf.Release()
	sc, err := New(context.Background(), scene.Options{Surface: surf, Arg: pageDir(t) + ",seconds=1,fade=0.5"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	doc := sc.(*Scene)
	defer doc.Dispose()

	tests := []struct {
		t    float64
		r, b uint8
	}{
		{0.25, 255, 0},
		{0.75, 128, 127},
		// The last page has nothing to fade into.
		{1.9, 0, 255},
	}
	for _, tt := range tests {
		if err := doc.RenderFrame(context.Background(), tt.t, nil); err != nil {
			t.Fatal(err)
		}
		got := surf.Image().RGBAAt(20, 10)
		if diff(got.R, tt.r) > 2 || diff(got.B, tt.b) > 2 {
			t.Errorf("t=%v center = %v, want r=%d b=%d", tt.t, got, tt.r, tt.b)
		}
	}

	if _, err := New(context.Background(), scene.Options{Surface: surf, Arg: pageDir(t) + ",seconds=1,fade=0.8"}); err == nil {
		t.Error("fade longer than half a page accepted")
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

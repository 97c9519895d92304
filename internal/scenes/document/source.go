package document

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Source is a paged document: PDF pages or a directory of images.
type Source interface {
	PageCount() int
	// PageSize returns the page size in points for PDFs and pixels for images.
	PageSize(index int) (width, height float64, err error)
	RenderPage(index int, dpi float64) (image.Image, error)
	Close() error
}

// Open picks the source by path: directories and .png/.jpg files are read
// as images, everything else goes through MuPDF.
func Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() || isImage(path) {
		return newImageSource(path, fi.IsDir())
	}
	return newFitzSource(path)
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

type fitzSource struct {
	doc *fitz.Document
}

func newFitzSource(path string) (*fitzSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", path, err)
	}
	return &fitzSource{doc: doc}, nil
}

func (f *fitzSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *fitzSource) PageSize(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

func (f *fitzSource) RenderPage(index int, dpi float64) (image.Image, error) {
	return f.doc.ImageDPI(index, dpi)
}

func (f *fitzSource) Close() error {
	return f.doc.Close()
}

type imageSource struct {
	paths []string
}

func newImageSource(path string, dir bool) (*imageSource, error) {
	if !dir {
		return &imageSource{paths: []string{path}}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isImage(entry.Name()) {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", path)
	}
	sort.Strings(paths)
	return &imageSource{paths: paths}, nil
}

func (s *imageSource) PageCount() int {
	return len(s.paths)
}

func (s *imageSource) PageSize(index int) (float64, float64, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// RenderPage ignores dpi: images are scaled by the caller.
func (s *imageSource) RenderPage(index int, _ float64) (image.Image, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *imageSource) Close() error {
	return nil
}

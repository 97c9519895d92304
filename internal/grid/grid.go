// Package grid splits a frame into a columns×rows set of viewport tiles.
package grid

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Grid describes how many viewport blocks a frame is split into.
type Grid struct {
	Columns int `yaml:"columns" toml:"columns" json:"columns"`
	Rows    int `yaml:"rows" toml:"rows" json:"rows"`
}

// Single is the degenerate one-tile grid used when a scene provides none.
var Single = Grid{Columns: 1, Rows: 1}

// Normalize returns a copy with both dimensions forced to at least 1.
func (g Grid) Normalize() Grid {
	if g.Columns < 1 {
		g.Columns = 1
	}
	if g.Rows < 1 {
		g.Rows = 1
	}
	return g
}

// Parse reads a "COLSxROWS" string such as "4x2".
func Parse(s string) (Grid, error) {
	cols, rows, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Grid{}, fmt.Errorf("grid %q: want COLSxROWS", s)
	}
	c, err := strconv.Atoi(cols)
	if err != nil || c < 1 {
		return Grid{}, fmt.Errorf("grid %q: bad column count", s)
	}
	r, err := strconv.Atoi(rows)
	if err != nil || r < 1 {
		return Grid{}, fmt.Errorf("grid %q: bad row count", s)
	}
	return Grid{Columns: c, Rows: r}, nil
}

// TotalBlocks returns columns*rows of the normalized grid.
func (g Grid) TotalBlocks() int {
	n := g.Normalize()
	return n.Columns * n.Rows
}

// LoadOp tells the scene how to treat the shared frame target before drawing a tile.
type LoadOp int

const (
	// Clear wipes the target before drawing.
	Clear LoadOp = iota
	// Load keeps what earlier tiles have written.
	Load
)

func (op LoadOp) String() string {
	if op == Load {
		return "load"
	}
	return "clear"
}

// Tile is one viewport block of a frame.
type Tile struct {
	Index   int  `json:"index"`
	Column  int  `json:"column"`
	Row     int  `json:"row"`
	OffsetX int  `json:"offsetX"`
	OffsetY int  `json:"offsetY"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	IsFirst bool `json:"isFirst"`
	IsLast  bool `json:"isLast"`
}

// Rect returns the tile as a rectangle in frame coordinates.
func (t Tile) Rect() image.Rectangle {
	return image.Rect(t.OffsetX, t.OffsetY, t.OffsetX+t.Width, t.OffsetY+t.Height)
}

// LoadOp reports Clear for the first tile of a sequence and Load for the rest.
func (t Tile) LoadOp() LoadOp {
	if t.IsFirst {
		return Clear
	}
	return Load
}

// Slice is a one-dimensional segment of a frame edge.
type Slice struct {
	Start int
	Size  int
}

// ComputeSlice divides fullLength into segments pieces and returns piece
// segmentIndex. Boundaries are floor(i*fullLength/segments); the last piece
// always ends at fullLength. Every piece is at least 1 pixel wide, so when
// fullLength < segments the surplus pieces collapse onto the last pixel.
func ComputeSlice(fullLength, segments, segmentIndex int) Slice {
	if segments < 1 {
		segments = 1
	}
	if fullLength < 1 {
		fullLength = 1
	}
	if segmentIndex < 0 {
		segmentIndex = 0
	}
	if segmentIndex > segments-1 {
		segmentIndex = segments - 1
	}

	start := segmentIndex * fullLength / segments
	end := (segmentIndex + 1) * fullLength / segments
	if segmentIndex == segments-1 {
		end = fullLength
	}

	size := end - start
	if size < 1 {
		size = 1
	}
	if start+size > fullLength {
		start = fullLength - size
	}
	return Slice{Start: start, Size: size}
}

// DescribeBlock builds the tile for index within g over a width×height frame.
// Out of range indices are clamped instead of rejected.
func DescribeBlock(index int, g Grid, width, height int) Tile {
	g = g.Normalize()
	total := g.Columns * g.Rows
	if index < 0 {
		index = 0
	}
	if index > total-1 {
		index = total - 1
	}

	column := index % g.Columns
	row := index / g.Columns
	xs := ComputeSlice(width, g.Columns, column)
	ys := ComputeSlice(height, g.Rows, row)

	return Tile{
		Index:   index,
		Column:  column,
		Row:     row,
		OffsetX: xs.Start,
		OffsetY: ys.Start,
		Width:   xs.Size,
		Height:  ys.Size,
		IsFirst: index == 0,
		IsLast:  index == total-1,
	}
}

// Tiles returns every tile of g in render order.
func Tiles(g Grid, width, height int) []Tile {
	total := g.TotalBlocks()
	tiles := make([]Tile, 0, total)
	for i := 0; i < total; i++ {
		tiles = append(tiles, DescribeBlock(i, g, width, height))
	}
	return tiles
}

package grid

import "testing"

func TestDescribeBlockExample(t *testing.T) {
	g := Grid{Columns: 4, Rows: 2}

	first := DescribeBlock(0, g, 800, 600)
	if first.OffsetX != 0 || first.OffsetY != 0 || first.Width != 200 || first.Height != 300 {
		t.Errorf("tile 0 = %+v, want offset(0,0) size(200,300)", first)
	}
	if !first.IsFirst || first.IsLast {
		t.Errorf("tile 0 flags = first:%v last:%v", first.IsFirst, first.IsLast)
	}

	last := DescribeBlock(7, g, 800, 600)
	if last.OffsetX != 600 || last.OffsetY != 300 || last.Width != 200 || last.Height != 300 {
		t.Errorf("tile 7 = %+v, want offset(600,300) size(200,300)", last)
	}
	if last.IsFirst || !last.IsLast {
		t.Errorf("tile 7 flags = first:%v last:%v", last.IsFirst, last.IsLast)
	}
	if last.Column != 3 || last.Row != 1 {
		t.Errorf("tile 7 column/row = %d/%d, want 3/1", last.Column, last.Row)
	}
}

func TestTilesCoverFrameExactly(t *testing.T) {
	grids := []Grid{{1, 1}, {2, 1}, {1, 3}, {3, 3}, {4, 2}, {7, 5}, {16, 9}}
	sizes := [][2]int{{800, 600}, {1280, 720}, {17, 13}, {101, 37}, {16, 9}}

	for _, g := range grids {
		for _, sz := range sizes {
			w, h := sz[0], sz[1]
			covered := make([]int, w*h)
			for _, tile := range Tiles(g, w, h) {
				if tile.Width < 1 || tile.Height < 1 {
					t.Fatalf("grid %+v %dx%d: tile %d has empty size %dx%d", g, w, h, tile.Index, tile.Width, tile.Height)
				}
				for y := tile.OffsetY; y < tile.OffsetY+tile.Height; y++ {
					for x := tile.OffsetX; x < tile.OffsetX+tile.Width; x++ {
						covered[y*w+x]++
					}
				}
			}
			for i, n := range covered {
				if n != 1 {
					t.Fatalf("grid %+v %dx%d: pixel (%d,%d) covered %d times", g, w, h, i%w, i/w, n)
				}
			}
		}
	}
}

func TestComputeSliceDegenerate(t *testing.T) {
	// Больше сегментов, чем пикселей: каждый сегмент всё равно не пустой.
	for i := 0; i < 5; i++ {
		s := ComputeSlice(3, 5, i)
		if s.Size < 1 {
			t.Errorf("segment %d: size %d, want >= 1", i, s.Size)
		}
		if s.Start < 0 || s.Start+s.Size > 3 {
			t.Errorf("segment %d: [%d,%d) outside [0,3)", i, s.Start, s.Start+s.Size)
		}
	}

	last := ComputeSlice(3, 5, 4)
	if last.Start+last.Size != 3 {
		t.Errorf("last segment ends at %d, want 3", last.Start+last.Size)
	}
}

func TestDescribeBlockClampsIndex(t *testing.T) {
	g := Grid{Columns: 2, Rows: 2}

	tests := []struct {
		index int
		want  int
	}{
		{-3, 0},
		{0, 0},
		{3, 3},
		{42, 3},
	}

	for _, tt := range tests {
		got := DescribeBlock(tt.index, g, 100, 100)
		if got.Index != tt.want {
			t.Errorf("DescribeBlock(%d).Index = %d, want %d", tt.index, got.Index, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	g := Grid{Columns: 0, Rows: -2}.Normalize()
	if g != Single {
		t.Errorf("Normalize() = %+v, want %+v", g, Single)
	}
	if (Grid{}).TotalBlocks() != 1 {
		t.Errorf("zero grid TotalBlocks = %d, want 1", (Grid{}).TotalBlocks())
	}
}

func TestLoadOp(t *testing.T) {
	tiles := Tiles(Grid{Columns: 3, Rows: 1}, 30, 10)
	if tiles[0].LoadOp() != Clear {
		t.Errorf("first tile op = %s, want clear", tiles[0].LoadOp())
	}
	for _, tile := range tiles[1:] {
		if tile.LoadOp() != Load {
			t.Errorf("tile %d op = %s, want load", tile.Index, tile.LoadOp())
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Grid
		wantErr bool
	}{
		{"4x2", Grid{4, 2}, false},
		{" 1X3 ", Grid{1, 3}, false},
		{"2", Grid{}, true},
		{"0x2", Grid{}, true},
		{"ax2", Grid{}, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

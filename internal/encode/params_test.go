package encode

import "testing"

func TestNormalize(t *testing.T) {
	end := 3.0
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{
			name: "defaults",
			in:   Params{TotalFrames: 60},
			want: Params{TotalFrames: 60, FPS: 30, Bitrate: 6_000_000, KeyframeIntervalSec: 2},
		},
		{
			name: "minimums",
			in:   Params{TotalFrames: 10, FPS: 0.5, Bitrate: 1000, KeyframeIntervalSec: 0.1},
			want: Params{TotalFrames: 10, FPS: 1, Bitrate: 100_000, KeyframeIntervalSec: 0.5},
		},
		{
			name: "kept",
			in:   Params{TotalFrames: 10, FPS: 24, Bitrate: 2_000_000, KeyframeIntervalSec: 4, StartSec: 1, EndSec: &end},
			want: Params{TotalFrames: 10, FPS: 24, Bitrate: 2_000_000, KeyframeIntervalSec: 4, StartSec: 1},
		},
		{
			name: "negative",
			in:   Params{TotalFrames: -5, FPS: -1, StartSec: -2},
			want: Params{TotalFrames: 0, FPS: 30, Bitrate: 6_000_000, KeyframeIntervalSec: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.TotalFrames != tt.want.TotalFrames || got.FPS != tt.want.FPS ||
				got.Bitrate != tt.want.Bitrate || got.KeyframeIntervalSec != tt.want.KeyframeIntervalSec ||
				got.StartSec != tt.want.StartSec {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
			if got.EndSec == nil {
				t.Fatal("EndSec not set")
			}
		})
	}
}

func TestNormalizeEndSec(t *testing.T) {
	p := Params{TotalFrames: 30, FPS: 10, StartSec: 1}.Normalize()
	if got := p.End(); got != 4 {
		t.Errorf("End() = %v, want 4", got)
	}

	before := 0.5
	p = Params{TotalFrames: 10, FPS: 10, StartSec: 1, EndSec: &before}.Normalize()
	if got := p.End(); got != 2 {
		t.Errorf("End() with end before start = %v, want 2", got)
	}
}

func TestFrameTimestamp(t *testing.T) {
	tests := []struct {
		i    int
		fps  float64
		want int64
	}{
		{0, 30, 0},
		{1, 30, 33_333},
		{3, 30, 99_999},
		{5, 10, 500_000},
		{2, 24, 83_334},
		{7, 1, 7_000_000},
	}
	for _, tt := range tests {
		if got := FrameTimestamp(tt.i, tt.fps); got != tt.want {
			t.Errorf("FrameTimestamp(%d, %v) = %d, want %d", tt.i, tt.fps, got, tt.want)
		}
	}
}

func TestFrameTimestampIncreasing(t *testing.T) {
	for _, fps := range []float64{1, 23.976, 30, 60, 240} {
		prev := int64(-1)
		for i := 0; i < 500; i++ {
			ts := FrameTimestamp(i, fps)
			if ts <= prev {
				t.Fatalf("fps %v: timestamp %d at frame %d not after %d", fps, ts, i, prev)
			}
			prev = ts
		}
	}
}

func TestIsKeyframe(t *testing.T) {
	interval := KeyframeIntervalFrames(2, 10)
	if interval != 20 {
		t.Fatalf("KeyframeIntervalFrames(2, 10) = %d, want 20", interval)
	}
	for i := 0; i < 10; i++ {
		if got := IsKeyframe(i, interval); got != (i == 0) {
			t.Errorf("IsKeyframe(%d) = %v", i, got)
		}
	}
	if !IsKeyframe(40, interval) || IsKeyframe(41, interval) {
		t.Error("cadence broken after the first interval")
	}
	if got := KeyframeIntervalFrames(0.01, 1); got != 1 {
		t.Errorf("interval floor = %d, want 1", got)
	}
	if !IsKeyframe(7, 0) {
		t.Error("zero interval must make every frame a keyframe")
	}
}

func TestFrameTime(t *testing.T) {
	if got := FrameTime(3, 0, 10, 10); got != 0.3 {
		t.Errorf("FrameTime = %v, want 0.3", got)
	}
	if got := FrameTime(100, 0, 2, 10); got != 2 {
		t.Errorf("FrameTime past end = %v, want 2", got)
	}
}

package encode

import "math"

// Defaults and lower bounds applied to render requests.
const (
	DefaultFPS                 = 30
	DefaultBitrate             = 6_000_000
	MinBitrate                 = 100_000
	DefaultKeyframeIntervalSec = 2.0
	MinKeyframeIntervalSec     = 0.5
)

// Params describe one render job.
type Params struct {
	TotalFrames         int
	FPS                 float64
	Bitrate             int
	KeyframeIntervalSec float64
	StartSec            float64
	// EndSec clamps frame times; nil means StartSec + TotalFrames/FPS.
	EndSec *float64
	// PreviewEveryFrame emits a best-effort preview after each frame.
	PreviewEveryFrame bool
	Encoder           string
}

// Normalize applies defaults and minimums.
func (p Params) Normalize() Params {
	if p.TotalFrames < 0 {
		p.TotalFrames = 0
	}
	if p.FPS <= 0 || math.IsNaN(p.FPS) {
		p.FPS = DefaultFPS
	}
	if p.FPS < 1 {
		p.FPS = 1
	}
	if p.Bitrate <= 0 {
		p.Bitrate = DefaultBitrate
	}
	if p.Bitrate < MinBitrate {
		p.Bitrate = MinBitrate
	}
	if p.KeyframeIntervalSec <= 0 || math.IsNaN(p.KeyframeIntervalSec) {
		p.KeyframeIntervalSec = DefaultKeyframeIntervalSec
	}
	if p.KeyframeIntervalSec < MinKeyframeIntervalSec {
		p.KeyframeIntervalSec = MinKeyframeIntervalSec
	}
	if p.StartSec < 0 {
		p.StartSec = 0
	}
	if p.EndSec == nil || *p.EndSec < p.StartSec {
		end := p.StartSec + float64(p.TotalFrames)/p.FPS
		p.EndSec = &end
	}
	return p
}

// End returns the normalized end time.
func (p Params) End() float64 {
	if p.EndSec == nil {
		return p.StartSec + float64(p.TotalFrames)/p.FPS
	}
	return *p.EndSec
}

// FrameDurationUS is round(1e6/fps).
func FrameDurationUS(fps float64) int64 {
	return int64(math.Round(1e6 / fps))
}

// FrameTimestamp returns the presentation timestamp of frame i in
// microseconds. It is strictly increasing in i.
func FrameTimestamp(i int, fps float64) int64 {
	return int64(i) * FrameDurationUS(fps)
}

// KeyframeIntervalFrames converts the keyframe interval to frames.
func KeyframeIntervalFrames(intervalSec, fps float64) int {
	n := int(math.Round(intervalSec * fps))
	if n < 1 {
		return 1
	}
	return n
}

// IsKeyframe reports whether frame i must be encoded as a keyframe.
func IsKeyframe(i, intervalFrames int) bool {
	if intervalFrames < 1 {
		intervalFrames = 1
	}
	return i == 0 || i%intervalFrames == 0
}

// FrameTime is the ideal deterministic time of frame i, clamped to end.
func FrameTime(i int, start, end, fps float64) float64 {
	t := start + float64(i)/fps
	if t > end {
		return end
	}
	return t
}

package encode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"slices"
	"strings"
	"testing"
)

func testFactory(found bool) *FFmpegFactory {
	f := NewFFmpegFactory("", "", nil)
	f.lookPath = func(name string) (string, error) {
		if !found {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	return f
}

func TestIsConfigSupported(t *testing.T) {
	base := Config{Codec: CodecVP9, Width: 1280, Height: 720, Bitrate: 6_000_000, FPS: 30, KeyframeInterval: 60}
	tests := []struct {
		name   string
		mutate func(*Config)
		found  bool
		ok     bool
	}{
		{"default", func(*Config) {}, true, true},
		{"hardware encoder", func(c *Config) { c.Encoder = EncoderVAAPI }, true, true},
		{"codec", func(c *Config) { c.Codec = "h264" }, true, false},
		{"unknown encoder", func(c *Config) { c.Encoder = "libx264" }, true, false},
		{"odd width", func(c *Config) { c.Width = 641 }, true, false},
		{"too large", func(c *Config) { c.Height = 8194 }, true, false},
		{"bitrate", func(c *Config) { c.Bitrate = 50_000 }, true, false},
		{"fps", func(c *Config) { c.FPS = 500 }, true, false},
		{"no ffmpeg", func(*Config) {}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := testFactory(tt.found).IsConfigSupported(cfg)
			if tt.ok && err != nil {
				t.Fatalf("IsConfigSupported() = %v, want nil", err)
			}
			if !tt.ok {
				var unsupported *UnsupportedConfigError
				if !errors.As(err, &unsupported) {
					t.Fatalf("IsConfigSupported() = %v, want *UnsupportedConfigError", err)
				}
			}
		})
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := Config{Codec: CodecVP9, Width: 640, Height: 360, Bitrate: 2_000_000, FPS: 29.97, KeyframeInterval: 60}

	args := buildFFmpegArgs(cfg, EncoderLibVPX)
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f rawvideo",
		"-pixel_format rgba",
		"-video_size 640x360",
		"-framerate 29.97",
		"-c:v libvpx-vp9",
		"-b:v 2000000",
		"-g 60",
		"-force_key_frames expr:eq(mod(n,60),0)",
		"-f ivf",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "-" {
		t.Errorf("output is %q, want stdout", args[len(args)-1])
	}

	vaapi := buildFFmpegArgs(cfg, EncoderVAAPI)
	dev := slices.Index(vaapi, "-vaapi_device")
	in := slices.Index(vaapi, "-i")
	if dev < 0 || dev > in {
		t.Errorf("vaapi device must precede the input: %v", vaapi)
	}
	if !slices.Contains(vaapi, "format=nv12,hwupload") {
		t.Errorf("vaapi args without hwupload: %v", vaapi)
	}
}

func TestWriteRawRGBA(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			full.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, full); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4*4*4 {
		t.Errorf("wrote %d bytes, want 64", buf.Len())
	}

	// Подызображение с чужим шагом строки пишется построчно.
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	buf.Reset()
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 1, 0, 255, 2, 1, 0, 255, 1, 2, 0, 255, 2, 2, 0, 255}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("sub-image bytes = %v, want %v", buf.Bytes(), want)
	}
}

func TestVP9Keyframe(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"key profile 0", []byte{0b1000_0010}, true},
		{"inter profile 0", []byte{0b1000_0110}, false},
		{"show existing", []byte{0b1000_1000}, false},
		{"key profile 3", []byte{0b1011_0000}, true},
		{"inter profile 3", []byte{0b1011_0010}, false},
		{"bad marker", []byte{0b0100_0000}, false},
	}
	for _, tt := range tests {
		if got := vp9Keyframe(tt.data); got != tt.want {
			t.Errorf("%s: vp9Keyframe = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	tb.Write([]byte("hello "))
	tb.Write([]byte("world"))
	if got := tb.String(); got != "lo world" {
		t.Errorf("tail = %q", got)
	}
}

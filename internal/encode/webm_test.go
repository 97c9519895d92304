package encode

import (
	"bytes"
	"testing"
)

func TestWebMMuxer(t *testing.T) {
	cfg := Config{Codec: CodecVP9, Width: 320, Height: 240, FPS: 10}
	m, err := NewWebMMuxer(cfg)
	if err != nil {
		t.Fatalf("NewWebMMuxer failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		c := Chunk{Data: []byte{0x82, 0x49, 0x83, byte(i)}, TimestampUS: FrameTimestamp(i, cfg.FPS), Keyframe: i == 0}
		if err := m.AddVideoChunk(c); err != nil {
			t.Fatalf("AddVideoChunk(%d) failed: %v", i, err)
		}
	}
	out, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		t.Errorf("container does not start with the EBML magic: % x", out[:min(4, len(out))])
	}
	if !bytes.Contains(out, []byte("V_VP9")) {
		t.Error("container has no V_VP9 track")
	}
	if !bytes.Contains(out, []byte("webm")) {
		t.Error("container DocType is not webm")
	}

	if _, err := m.Finalize(); err == nil {
		t.Error("second Finalize succeeded")
	}
}

func TestWebMMuxerRejectsOutOfOrder(t *testing.T) {
	m, err := NewWebMMuxer(Config{Codec: CodecVP9, Width: 16, Height: 16, FPS: 30})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddVideoChunk(Chunk{Data: []byte{1}, TimestampUS: 66_666, Keyframe: true}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddVideoChunk(Chunk{Data: []byte{2}, TimestampUS: 66_666}); err == nil {
		t.Error("duplicate timestamp accepted")
	}
	if err := m.AddVideoChunk(Chunk{Data: []byte{3}, TimestampUS: 33_333}); err == nil {
		t.Error("earlier timestamp accepted")
	}
}

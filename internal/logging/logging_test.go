package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ivlev/scene2video/internal/event"
)

func TestNewAutoPicksJSONForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("frame encoded", "index", 3)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if rec["msg"] != "frame encoded" || rec["index"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.With("job", "j1").WithGroup("enc").Debug("flushed", "chunks", 4)
	logger.Warn("slow frame", "reason", "gpu busy")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "[*] flushed job=j1 enc.chunks=4") {
		t.Errorf("debug line = %q", lines[0])
	}
	if !strings.Contains(lines[1], `[!] slow frame reason="gpu busy"`) {
		t.Errorf("warn line = %q", lines[1])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: "warn", Format: "text", Writer: &buf})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %q", buf.String())
	}
}

func TestBadOptions(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("bad format accepted")
	}
}

func TestTeeIntoEvents(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Options{Format: "text", Writer: &buf})
	rec := &event.Recorder{}
	logger := Tee(base, NewEventHandler(rec, slog.LevelInfo))

	logger.With("scene", "canvas").Info("Worker initialized.")
	logger.Debug("not forwarded")
	logger.Error("encode failed", "frame", 7)

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if got := events[0].(event.Log).Message; got != "Worker initialized. scene=canvas" {
		t.Errorf("first event = %q", got)
	}
	if got := events[1].(event.Log).Message; got != "ERROR: encode failed frame=7" {
		t.Errorf("second event = %q", got)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("base logger lines = %q", buf.String())
	}
}

func TestTeeHandlerSkipsNil(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(*fanoutHandler); ok {
		t.Error("no handlers should not build a fan-out")
	}
	h := NewEventHandler(event.Discard, nil)
	if TeeHandler(nil, h) != slog.Handler(h) {
		t.Error("single handler should be returned as is")
	}
}

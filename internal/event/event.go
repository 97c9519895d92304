// Package event defines the outbound status messages of the pipeline.
package event

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"
)

// Event is one outbound message. The set of events is closed.
type Event interface {
	Type() string
	isEvent()
}

// Ready is emitted once init has loaded the first scene.
type Ready struct {
	SceneRef string
	Width    int
	Height   int
}

// Log carries a human readable line, including scene log output.
type Log struct {
	Message string
}

// Preview carries a captured frame.
type Preview struct {
	Bitmap  *image.RGBA
	TimeSec float64
	Width   int
	Height  int
	Origin  string
}

// Progress is emitted after every encoded frame.
type Progress struct {
	Done  int
	Total int
}

// Done ends a successful render job.
type Done struct {
	JobID      string
	Buffer     []byte
	SizeBytes  int
	OutputPath string
}

// Cancelled ends a cancelled render job.
type Cancelled struct {
	JobID string
}

// Error reports a failed command.
type Error struct {
	Message string
}

func (Ready) Type() string     { return "ready" }
func (Log) Type() string       { return "log" }
func (Preview) Type() string   { return "preview" }
func (Progress) Type() string  { return "progress" }
func (Done) Type() string      { return "done" }
func (Cancelled) Type() string { return "cancelled" }
func (Error) Type() string     { return "error" }

func (Ready) isEvent()     {}
func (Log) isEvent()       {}
func (Preview) isEvent()   {}
func (Progress) isEvent()  {}
func (Done) isEvent()      {}
func (Cancelled) isEvent() {}
func (Error) isEvent()     {}

// Sink receives events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Recorder keeps every emitted event; used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type wire struct {
	Type       string  `json:"type"`
	SceneRef   string  `json:"sceneRef,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Message    string  `json:"message,omitempty"`
	Bitmap     string  `json:"bitmap,omitempty"`
	TimeSec    float64 `json:"timeSec,omitempty"`
	Origin     string  `json:"origin,omitempty"`
	Done       int     `json:"done,omitempty"`
	Total      int     `json:"total,omitempty"`
	JobID      string  `json:"jobId,omitempty"`
	Buffer     string  `json:"containerBuffer,omitempty"`
	SizeBytes  int     `json:"sizeBytes,omitempty"`
	OutputPath string  `json:"outputPath,omitempty"`
}

// Marshal encodes e as one JSON object with a "type" discriminant. Bitmaps
// travel as base64 PNG; the container buffer is only inlined when it was
// not written to a file.
func Marshal(e Event) ([]byte, error) {
	w := wire{Type: e.Type()}
	switch ev := e.(type) {
	case Ready:
		w.SceneRef, w.Width, w.Height = ev.SceneRef, ev.Width, ev.Height
	case Log:
		w.Message = ev.Message
	case Preview:
		w.TimeSec, w.Width, w.Height, w.Origin = ev.TimeSec, ev.Width, ev.Height, ev.Origin
		if ev.Bitmap != nil {
			var buf bytes.Buffer
			if err := png.Encode(&buf, ev.Bitmap); err != nil {
				return nil, fmt.Errorf("encode preview bitmap: %w", err)
			}
			w.Bitmap = base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	case Progress:
		w.Done, w.Total = ev.Done, ev.Total
	case Done:
		w.JobID, w.SizeBytes, w.OutputPath = ev.JobID, ev.SizeBytes, ev.OutputPath
		if ev.OutputPath == "" {
			w.Buffer = base64.StdEncoding.EncodeToString(ev.Buffer)
		}
	case Cancelled:
		w.JobID = ev.JobID
	case Error:
		w.Message = ev.Message
	default:
		return nil, fmt.Errorf("unknown event %T", e)
	}
	return json.Marshal(w)
}

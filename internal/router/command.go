package router

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command is one inbound request. The set of commands is closed.
type Command interface {
	Type() string
	isCommand()
}

// Init loads the first scene and allocates the surface.
type Init struct {
	SceneRef string
	Width    int
	Height   int
}

// Resize changes the surface size.
type Resize struct {
	Width  int
	Height int
}

// Preview renders one frame at TimeSec and emits it.
type Preview struct {
	TimeSec float64
	FPS     float64
}

// Render starts an encode job.
type Render struct {
	TotalFrames         int
	FPS                 float64
	Bitrate             int
	KeyframeIntervalSec float64
	StartSec            float64
	EndSec              *float64
	// OutputPath, when set, receives the container instead of the done event.
	OutputPath        string
	PreviewEveryFrame bool
	Encoder           string
}

// LoadScene swaps the active scene and emits a preview of it.
type LoadScene struct {
	SceneRef string
	TimeSec  float64
}

// CancelRender requests cancellation of the running job.
type CancelRender struct{}

func (Init) Type() string         { return "init" }
func (Resize) Type() string       { return "resize" }
func (Preview) Type() string      { return "preview" }
func (Render) Type() string       { return "render" }
func (LoadScene) Type() string    { return "loadScene" }
func (CancelRender) Type() string { return "cancelRender" }

func (Init) isCommand()         {}
func (Resize) isCommand()       {}
func (Preview) isCommand()      {}
func (Render) isCommand()       {}
func (LoadScene) isCommand()    {}
func (CancelRender) isCommand() {}

// ErrUnknownCommand is returned by DecodeCommand for unknown types.
var ErrUnknownCommand = errors.New("unknown command")

type wireCommand struct {
	Type                string   `json:"type"`
	SceneRef            string   `json:"sceneRef"`
	Module              string   `json:"module"`
	Width               int      `json:"width"`
	Height              int      `json:"height"`
	TimeSec             float64  `json:"timeSec"`
	FPS                 float64  `json:"fps"`
	TotalFrames         int      `json:"totalFrames"`
	Bitrate             int      `json:"bitrate"`
	KeyframeIntervalSec float64  `json:"keyframeIntervalSec"`
	StartSec            float64  `json:"startSec"`
	EndSec              *float64 `json:"endSec"`
	OutputPath          string   `json:"outputPath"`
	PreviewEveryFrame   bool     `json:"previewEveryFrame"`
	Encoder             string   `json:"encoder"`
}

// DecodeCommand decodes one JSON command of the form {"type": ...}.
func DecodeCommand(raw []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	ref := w.SceneRef
	if ref == "" {
		ref = w.Module
	}
	switch w.Type {
	case "init":
		return Init{SceneRef: ref, Width: w.Width, Height: w.Height}, nil
	case "resize":
		return Resize{Width: w.Width, Height: w.Height}, nil
	case "preview":
		return Preview{TimeSec: w.TimeSec, FPS: w.FPS}, nil
	case "render":
		return Render{
			TotalFrames:         w.TotalFrames,
			FPS:                 w.FPS,
			Bitrate:             w.Bitrate,
			KeyframeIntervalSec: w.KeyframeIntervalSec,
			StartSec:            w.StartSec,
			EndSec:              w.EndSec,
			OutputPath:          w.OutputPath,
			PreviewEveryFrame:   w.PreviewEveryFrame,
			Encoder:             w.Encoder,
		}, nil
	case "loadScene":
		return LoadScene{SceneRef: ref, TimeSec: w.TimeSec}, nil
	case "cancelRender":
		return CancelRender{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownCommand, w.Type)
}

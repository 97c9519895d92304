package config

import (
	"github.com/ivlev/scene2video/internal/encode"
	"github.com/ivlev/scene2video/internal/scene"
)

const (
	defaultWidth             = 1280
	defaultHeight            = 720
	defaultEncoder           = "auto"
	defaultFFmpeg            = "ffmpeg"
	defaultPreviewMaxWidth   = 640
	defaultOutputDir         = "."
	defaultHistoryDB         = "~/.local/share/scene2video/history.db"
	defaultQueueSize         = 128
	defaultLockTimeoutSec    = 10
	defaultMinFreeMemoryFrac = 0.05
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Surface: Surface{
			Width:  defaultWidth,
			Height: defaultHeight,
			Scene:  scene.DefaultRef,
		},
		Encode: Encode{
			FPS:                 encode.DefaultFPS,
			Bitrate:             encode.DefaultBitrate,
			KeyframeIntervalSec: encode.DefaultKeyframeIntervalSec,
			Encoder:             defaultEncoder,
			FFmpeg:              defaultFFmpeg,
		},
		Preview: Preview{
			MaxWidth: defaultPreviewMaxWidth,
		},
		Paths: Paths{
			OutputDir: defaultOutputDir,
			HistoryDB: defaultHistoryDB,
		},
		Serve: Serve{
			QueueSize:             defaultQueueSize,
			OutputLockTimeoutSec:  defaultLockTimeoutSec,
			MinFreeMemoryFraction: defaultMinFreeMemoryFrac,
		},
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ivlev/scene2video/internal/encode"
)

// Normalize trims strings, expands "~" in paths and applies the encode
// parameter minimums.
func (c *Config) Normalize() error {
	c.Surface.Scene = strings.TrimSpace(c.Surface.Scene)
	c.Encode.Encoder = strings.ToLower(strings.TrimSpace(c.Encode.Encoder))
	if c.Encode.Encoder == "" {
		c.Encode.Encoder = defaultEncoder
	}
	c.Encode.FFmpeg = strings.TrimSpace(c.Encode.FFmpeg)
	if c.Encode.FFmpeg == "" {
		c.Encode.FFmpeg = defaultFFmpeg
	}

	p := encode.Params{
		FPS:                 c.Encode.FPS,
		Bitrate:             c.Encode.Bitrate,
		KeyframeIntervalSec: c.Encode.KeyframeIntervalSec,
	}.Normalize()
	c.Encode.FPS, c.Encode.Bitrate, c.Encode.KeyframeIntervalSec = p.FPS, p.Bitrate, p.KeyframeIntervalSec

	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}

	if c.Serve.QueueSize <= 0 {
		c.Serve.QueueSize = defaultQueueSize
	}
	if c.Serve.OutputLockTimeoutSec <= 0 {
		c.Serve.OutputLockTimeoutSec = defaultLockTimeoutSec
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Surface.Width < 1 || c.Surface.Height < 1 {
		return fmt.Errorf("surface size must be positive, got %dx%d", c.Surface.Width, c.Surface.Height)
	}
	if c.Encode.Encoder != defaultEncoder && !slices.Contains(encode.KnownEncoders, c.Encode.Encoder) {
		return fmt.Errorf("encode.encoder %q is not one of auto, %s", c.Encode.Encoder, strings.Join(encode.KnownEncoders, ", "))
	}
	if c.Encode.Bitrate > encode.MaxBitrate {
		return fmt.Errorf("encode.bitrate %d exceeds %d", c.Encode.Bitrate, encode.MaxBitrate)
	}
	if c.Encode.FPS > encode.MaxFPS {
		return fmt.Errorf("encode.fps %g exceeds %d", c.Encode.FPS, encode.MaxFPS)
	}
	if c.Preview.MaxWidth < 0 {
		return errors.New("preview.max_width must not be negative")
	}
	if c.Serve.MinFreeMemoryFraction < 0 || c.Serve.MinFreeMemoryFraction >= 1 {
		return errors.New("serve.min_free_memory_fraction must be in [0, 1)")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format)
	}
	return nil
}

// ResolveEncoder returns the configured encoder, or probe() for "auto".
func (c *Config) ResolveEncoder(probe func() string) string {
	if c.Encode.Encoder == defaultEncoder {
		return probe()
	}
	return c.Encode.Encoder
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

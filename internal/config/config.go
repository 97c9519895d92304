// Package config loads scene2video settings from a YAML or TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Surface holds the initial frame size and scene.
type Surface struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Scene  string `yaml:"scene" toml:"scene"`
}

// Encode holds the defaults of a render job.
type Encode struct {
	FPS                 float64 `yaml:"fps" toml:"fps"`
	Bitrate             int     `yaml:"bitrate" toml:"bitrate"`
	KeyframeIntervalSec float64 `yaml:"keyframe_interval_sec" toml:"keyframe_interval_sec"`
	// Encoder is an ffmpeg VP9 encoder name or "auto" for probing.
	Encoder string `yaml:"encoder" toml:"encoder"`
	FFmpeg  string `yaml:"ffmpeg" toml:"ffmpeg"`
	// ShowStats prints the performance report after a CLI render.
	ShowStats bool `yaml:"show_stats" toml:"show_stats"`
}

// Preview holds preview settings.
type Preview struct {
	MaxWidth   int  `yaml:"max_width" toml:"max_width"`
	EveryFrame bool `yaml:"every_frame" toml:"every_frame"`
}

// Paths holds file locations.
type Paths struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	HistoryDB string `yaml:"history_db" toml:"history_db"`
}

// Serve holds settings of the command stream mode.
type Serve struct {
	QueueSize             int     `yaml:"queue_size" toml:"queue_size"`
	OutputLockTimeoutSec  float64 `yaml:"output_lock_timeout_sec" toml:"output_lock_timeout_sec"`
	MinFreeMemoryFraction float64 `yaml:"min_free_memory_fraction" toml:"min_free_memory_fraction"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Config is the full configuration.
type Config struct {
	Surface Surface `yaml:"surface" toml:"surface"`
	Encode  Encode  `yaml:"encode" toml:"encode"`
	Preview Preview `yaml:"preview" toml:"preview"`
	Paths   Paths   `yaml:"paths" toml:"paths"`
	Serve   Serve   `yaml:"serve" toml:"serve"`
	Log     Log     `yaml:"log" toml:"log"`

	// BuildVersion is set by the binary, never read from a file.
	BuildVersion string `yaml:"-" toml:"-"`
}

// Load reads path over the defaults, normalizes and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported format (want .yaml or .toml)", path)
	}
	return nil
}

// Write stores the configuration in the format given by the extension.
func (c *Config) Write(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		data, err = toml.Marshal(c)
	default:
		return fmt.Errorf("config %s: unsupported format (want .yaml or .toml)", path)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

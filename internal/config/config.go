package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/publish"
	"github.com/ivlev/article2video/internal/tts"
)

const (
	ErrCodeNotFound = "config_not_found"
	ErrCodeInvalid  = "config_invalid"

	EnvTTSURL   = "ARTICLE2VIDEO_TTS_URL"
	EnvS3Bucket = "ARTICLE2VIDEO_S3_BUCKET"
	EnvS3Prefix = "ARTICLE2VIDEO_S3_PREFIX"
)

type Config struct {
	URL       string `yaml:"url"`
	Feed      string `yaml:"feed"`
	FeedCount int    `yaml:"feed_count"`

	Language  string `yaml:"lang"`
	MaxImages int    `yaml:"max_images"`
	OutDir    string `yaml:"outdir"`

	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Preset  string `yaml:"preset"`
	FPS     int    `yaml:"fps"`
	Workers int    `yaml:"workers"`
	Motion  string `yaml:"motion"`

	// Empty VideoEncoder is detected at startup (system.GetBestH264Encoder).
	VideoEncoder string `yaml:"encoder"`
	Quality      int    `yaml:"quality"`

	TTSEngine string `yaml:"tts"`
	Voice     string `yaml:"voice"`
	TTSURL    string `yaml:"tts_url"`

	Timeout time.Duration `yaml:"timeout"`

	QR        bool           `yaml:"qr"`
	ShowStats bool           `yaml:"stats"`
	Publish   publish.Config `yaml:"publish"`

	BuildVersion string `yaml:"-"`
}

// Default mirrors the CLI defaults.
func Default() *Config {
	return &Config{
		FeedCount: 5,
		Language:  "en",
		MaxImages: 15,
		OutDir:    "./output",
		Width:     1280,
		Height:    720,
		FPS:       24,
		Motion:    "breathing",
		TTSEngine: string(tts.EngineGoogle),
		Timeout:   30 * time.Second,
		QR:        true,
	}
}

// Error is a structured configuration error.
type Error struct {
	Code  string
	Path  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Code == ErrCodeNotFound:
		return fmt.Sprintf("%s: config file %q not found", e.Code, e.Path)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Field, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %q: %v", e.Code, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code, or "" when err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return cfg, nil
}

// ApplyEnv fills values that are only expected from the environment.
// Values already set by the file win.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.TTSURL == "" {
		c.TTSURL = strings.TrimSpace(getenv(EnvTTSURL))
	}
	if c.Publish.Bucket == "" {
		c.Publish.Bucket = strings.TrimSpace(getenv(EnvS3Bucket))
	}
	if c.Publish.Prefix == "" {
		c.Publish.Prefix = strings.TrimSpace(getenv(EnvS3Prefix))
	}
}

// Presets are the supported aspect ratio shortcuts.
var Presets = map[string][2]int{
	"16:9": {1280, 720},
	"9:16": {720, 1280},
	"4:5":  {1080, 1350},
}

// ApplyPreset overrides the frame size when a preset is set.
func (c *Config) ApplyPreset() error {
	if c.Preset == "" {
		return nil
	}
	size, ok := Presets[c.Preset]
	if !ok {
		return &Error{Code: ErrCodeInvalid, Field: "preset", Err: fmt.Errorf("unknown preset %q (16:9, 9:16, 4:5)", c.Preset)}
	}
	c.Width, c.Height = size[0], size[1]
	return nil
}

// Validate checks the final, merged configuration.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Field: field, Err: fmt.Errorf(format, args...)}
	}

	switch {
	case c.URL == "" && c.Feed == "":
		return invalid("url", "either url or feed is required")
	case c.URL != "" && c.Feed != "":
		return invalid("url", "url and feed are mutually exclusive")
	case c.Width <= 0 || c.Height <= 0:
		return invalid("width", "frame %dx%d must be positive", c.Width, c.Height)
	case c.Width%2 != 0 || c.Height%2 != 0:
		return invalid("width", "frame %dx%d must have even dimensions for yuv420p", c.Width, c.Height)
	case c.FPS < 1 || c.FPS > 120:
		return invalid("fps", "%d out of range 1..120", c.FPS)
	case c.MaxImages < 0:
		return invalid("max_images", "%d must not be negative", c.MaxImages)
	case c.Workers < 0:
		return invalid("workers", "%d must not be negative", c.Workers)
	case strings.TrimSpace(c.Language) == "":
		return invalid("lang", "language is required")
	case c.Timeout <= 0:
		return invalid("timeout", "%v must be positive", c.Timeout)
	case c.Feed != "" && c.FeedCount < 1:
		return invalid("feed_count", "%d must be at least 1", c.FeedCount)
	}
	if _, err := effects.ByName(c.Motion); err != nil {
		return invalid("motion", "%v", err)
	}
	if _, err := tts.New(tts.EngineType(c.TTSEngine), tts.Options{}); err != nil {
		return invalid("tts", "%v", err)
	}
	return nil
}

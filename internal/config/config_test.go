package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "article2video.yaml")
	data := `
lang: ru
fps: 30
timeout: 45s
preset: "9:16"
publish:
  bucket: videos
  prefix: runs
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Language != "ru" || cfg.FPS != 30 || cfg.Timeout != 45*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MaxImages != 15 || cfg.OutDir != "./output" || !cfg.QR {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.Publish.Bucket != "videos" || !cfg.Publish.Enabled() {
		t.Errorf("publish = %+v", cfg.Publish)
	}

	if err := cfg.ApplyPreset(); err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 720 || cfg.Height != 1280 {
		t.Errorf("preset size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); Code(err) != ErrCodeNotFound {
		t.Errorf("missing file: code = %q (%v)", Code(err), err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("fps: [not a number"), 0o644)
	_, err := Load(bad)
	if Code(err) != ErrCodeInvalid {
		t.Errorf("bad file: code = %q (%v)", Code(err), err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Unwrap() == nil {
		t.Error("config error must wrap the cause")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"ok", func(c *Config) {}, ""},
		{"feed ok", func(c *Config) { c.URL, c.Feed = "", "https://example.com/rss" }, ""},
		{"no source", func(c *Config) { c.URL = "" }, "url"},
		{"both sources", func(c *Config) { c.Feed = "https://example.com/rss" }, "url"},
		{"odd width", func(c *Config) { c.Width = 1281 }, "width"},
		{"zero height", func(c *Config) { c.Height = 0 }, "width"},
		{"fps", func(c *Config) { c.FPS = 0 }, "fps"},
		{"max images", func(c *Config) { c.MaxImages = -1 }, "max_images"},
		{"lang", func(c *Config) { c.Language = " " }, "lang"},
		{"timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"motion", func(c *Config) { c.Motion = "spin" }, "motion"},
		{"tts", func(c *Config) { c.TTSEngine = "festival" }, "tts"},
		{"edge", func(c *Config) { c.TTSEngine = "edge" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.URL = "https://example.com/story"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if ce.Field != tt.field || ce.Code != ErrCodeInvalid {
				t.Errorf("field = %q code = %q, want %q", ce.Field, ce.Code, tt.field)
			}
		})
	}
}

func TestApplyPresetUnknown(t *testing.T) {
	cfg := Default()
	cfg.Preset = "21:9"
	if err := cfg.ApplyPreset(); Code(err) != ErrCodeInvalid {
		t.Errorf("err = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvTTSURL:   "http://localhost:9000/tts",
		EnvS3Bucket: "from-env",
	}
	cfg := Default()
	cfg.Publish.Prefix = "file-prefix"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.TTSURL != "http://localhost:9000/tts" || cfg.Publish.Bucket != "from-env" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Publish.Prefix != "file-prefix" {
		t.Error("file value overridden by env")
	}
}

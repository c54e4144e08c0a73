// Package manifest records what a run produced and what it had to skip.
package manifest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/article2video/internal/effects"
	"github.com/ivlev/article2video/internal/workspace"
)

const Version = "1.0"

// Manifest is the YAML summary written next to the video.
type Manifest struct {
	Version   string    `yaml:"version"`
	URL       string    `yaml:"url"`
	Title     string    `yaml:"title"`
	CreatedAt string    `yaml:"created_at"`
	Language  string    `yaml:"language"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	FPS       int       `yaml:"fps"`
	Audio     Audio     `yaml:"audio"`
	Video     Video     `yaml:"video"`
	Slides    []Slide   `yaml:"slides"`
	Failures  []Failure `yaml:"failures,omitempty"`
}

type Audio struct {
	Path     string  `yaml:"path"`
	Engine   string  `yaml:"engine"`
	Duration float64 `yaml:"duration"`
	Chars    int     `yaml:"chars"`
}

type Video struct {
	Path     string  `yaml:"path"`
	Duration float64 `yaml:"duration"`
	Frames   int     `yaml:"frames"`
	Encoder  string  `yaml:"encoder"`
}

// Slide is one scene of the video.
type Slide struct {
	ID         int        `yaml:"id"`
	Input      string     `yaml:"input,omitempty"`
	Source     string     `yaml:"source,omitempty"`
	Foreground string     `yaml:"foreground,omitempty"`
	Background string     `yaml:"background,omitempty"`
	Start      float64    `yaml:"start"`
	Duration   float64    `yaml:"duration"`
	Frames     int        `yaml:"frames"`
	Keyframes  []Keyframe `yaml:"keyframes,omitempty"`
}

// Keyframe is the zoom factor at a time offset, relative to the fitted size.
type Keyframe struct {
	Time float64 `yaml:"time"`
	Zoom float64 `yaml:"zoom"`
}

// Failure is an image that did not make it into the video.
type Failure struct {
	Index int    `yaml:"index"`
	URL   string `yaml:"url,omitempty"`
	Kind  string `yaml:"kind"`
	Error string `yaml:"error"`
}

// Sample evaluates m at steps+1 evenly spaced times over one period.
func Sample(m effects.Motion, period float64, steps int) []Keyframe {
	if steps < 1 {
		steps = 1
	}
	kfs := make([]Keyframe, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := period * float64(i) / float64(steps)
		kfs = append(kfs, Keyframe{Time: t, Zoom: m.ScaleAt(t, period, 1)})
	}
	return kfs
}

// Write stores m at path, replacing any previous manifest.
func Write(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return workspace.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

// Read loads a manifest written by Write.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

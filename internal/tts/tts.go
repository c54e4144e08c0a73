// Package tts synthesizes the narration track.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ivlev/article2video/internal/failure"
	"github.com/ivlev/article2video/internal/system"
	"github.com/ivlev/article2video/internal/workspace"
)

// MaxChars bounds the narrated text. Longer articles are cut, not summarized.
const MaxChars = 4500

// Asset is a synthesized narration file.
type Asset struct {
	Path     string
	Duration float64
	Language string
	Chars    int
}

// Synthesizer wraps a provider with truncation and duration probing.
type Synthesizer struct {
	Provider Provider
	MaxChars int

	// Probe measures the written file; nil means ffprobe.
	Probe func(path string) (float64, error)
}

// Synthesize writes speech for text to outPath. Every error is a synthesis
// failure and ends the run.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang, outPath string) (*Asset, error) {
	asset, err := s.synthesize(ctx, text, lang, outPath)
	if err != nil {
		return nil, failure.New(failure.SynthesisFailure, "tts", err)
	}
	return asset, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, text, lang, outPath string) (*Asset, error) {
	if s.Provider == nil {
		return nil, errors.New("no provider")
	}
	limit := s.MaxChars
	if limit <= 0 {
		limit = MaxChars
	}
	text = Truncate(strings.TrimSpace(text), limit)
	if text == "" {
		return nil, errors.New("nothing to narrate")
	}

	if err := s.Provider.Synthesize(ctx, text, lang, outPath); err != nil {
		return nil, err
	}
	if info, err := os.Stat(outPath); err != nil {
		return nil, err
	} else if info.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", outPath)
	}

	probe := s.Probe
	if probe == nil {
		probe = system.GetAudioDuration
	}
	d, err := probe(outPath)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, fmt.Errorf("audio duration %v", d)
	}

	return &Asset{
		Path:     outPath,
		Duration: d,
		Language: lang,
		Chars:    utf8.RuneCountInString(text),
	}, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// writeFile replaces path atomically so a failed attempt never leaves a
// half-written track behind.
func writeFile(path string, data []byte) error {
	return workspace.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

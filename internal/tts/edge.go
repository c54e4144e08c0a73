package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// EdgeProvider runs the edge-tts CLI.
type EdgeProvider struct {
	Command string
	Voice   string
	Retries int
	Timeout time.Duration
}

func NewEdgeProvider(voice string) *EdgeProvider {
	return &EdgeProvider{
		Command: "edge-tts",
		Voice:   voice,
		Retries: 3,
		Timeout: 60 * time.Second,
	}
}

var edgeVoices = map[string]string{
	"en": "en-US-AriaNeural",
	"ru": "ru-RU-SvetlanaNeural",
	"de": "de-DE-KatjaNeural",
	"fr": "fr-FR-DeniseNeural",
	"es": "es-ES-ElviraNeural",
	"it": "it-IT-ElsaNeural",
	"pt": "pt-BR-FranciscaNeural",
	"zh": "zh-CN-XiaoxiaoNeural",
	"ja": "ja-JP-NanamiNeural",
	"uk": "uk-UA-PolinaNeural",
}

// VoiceFor picks the configured voice, else a default for lang.
func (e *EdgeProvider) VoiceFor(lang string) string {
	if e.Voice != "" {
		return e.Voice
	}
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if v, ok := edgeVoices[lang]; ok {
		return v
	}
	return edgeVoices["en"]
}

func (e *EdgeProvider) Synthesize(ctx context.Context, text, lang, outPath string) error {
	voice := e.VoiceFor(lang)
	retries := max(1, e.Retries)
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// edge-tts writes into a scratch file; only a complete track replaces outPath.
	scratch, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".edge-*")
	if err != nil {
		return err
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	var lastErr error
	for i := 0; i < retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(attemptCtx, e.Command,
			"--text", text,
			"--write-media", scratchPath,
			"--voice", voice,
		)
		output, err := cmd.CombinedOutput()
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			data, readErr := os.ReadFile(scratchPath)
			if readErr == nil && len(data) > 0 {
				return writeFile(outPath, data)
			}
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read output file: %w", readErr)
			} else {
				lastErr = fmt.Errorf("edge-tts generated empty file, output: %s", strings.TrimSpace(string(output)))
			}
			continue
		}
		if timedOut {
			lastErr = fmt.Errorf("edge-tts synthesis timed out after %v", timeout)
		} else {
			lastErr = fmt.Errorf("edge-tts cli failed: %w, output: %s", err, strings.TrimSpace(string(output)))
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("synthesis failed after %d attempts: %w", retries, lastErr)
}

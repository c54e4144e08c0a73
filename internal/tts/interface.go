package tts

import "context"

// Provider turns text into an MP3 file at outPath.
type Provider interface {
	Synthesize(ctx context.Context, text, lang, outPath string) error
}

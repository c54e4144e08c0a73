package tts

import (
	"fmt"
	"net/http"
	"strings"
)

type EngineType string

const (
	EngineGoogle EngineType = "google"
	EngineEdge   EngineType = "edge"
)

// Options are engine settings taken from the config.
type Options struct {
	Voice   string
	BaseURL string
	HTTP    *http.Client
}

// New returns the provider for engine. The empty name selects Google.
func New(engine EngineType, opts Options) (Provider, error) {
	switch EngineType(strings.ToLower(string(engine))) {
	case EngineGoogle, "":
		return NewGoogleProvider(opts.BaseURL, opts.HTTP), nil
	case EngineEdge:
		return NewEdgeProvider(opts.Voice), nil
	default:
		return nil, fmt.Errorf("unsupported TTS engine %q", engine)
	}
}

package failure

import (
	"errors"
	"fmt"
	"testing"
)

type classified struct{}

func (classified) Error() string      { return "status 404" }
func (classified) FailureKind() Kind { return RetrievalFailure }

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", base, ""},
		{"direct", New(DecodeFailure, "img_1", base), DecodeFailure},
		{"wrapped", fmt.Errorf("slide 3: %w", New(EncodeFailure, "mux", base)), EncodeFailure},
		{"classifier", fmt.Errorf("download: %w", classified{}), RetrievalFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewKeepsCause(t *testing.T) {
	base := errors.New("boom")
	err := New(SynthesisFailure, "tts", base)
	if !errors.Is(err, base) {
		t.Fatalf("errors.Is lost the cause: %v", err)
	}
	if New(SynthesisFailure, "tts", nil) != nil {
		t.Error("New with nil error must return nil")
	}
}

func TestFatal(t *testing.T) {
	fatal := map[Kind]bool{
		RetrievalFailure:  false,
		DecodeFailure:     false,
		EmptyAssetFailure: false,
		ExtractionFailure: true,
		SynthesisFailure:  true,
		EncodeFailure:     true,
	}
	for k, want := range fatal {
		if got := k.Fatal(); got != want {
			t.Errorf("%s.Fatal() = %v, want %v", k, got, want)
		}
	}
}

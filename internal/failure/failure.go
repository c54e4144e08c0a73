package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// RetrievalFailure: network error, timeout or non-2xx while fetching an image.
	RetrievalFailure Kind = "retrieval"
	// DecodeFailure: corrupt or unsupported image data.
	DecodeFailure Kind = "decode"
	// EmptyAssetFailure: no image survived extraction and download.
	EmptyAssetFailure Kind = "empty_assets"
	// ExtractionFailure: the article page could not be fetched or parsed.
	ExtractionFailure Kind = "extraction"
	// SynthesisFailure: speech synthesis failed, nothing can be timed.
	SynthesisFailure Kind = "synthesis"
	// EncodeFailure: container/codec write error.
	EncodeFailure Kind = "encode"
)

// Fatal reports whether a failure of this kind aborts the run.
// Retrieval and decode failures drop a single item; an empty asset set is
// replaced by a placeholder.
func (k Kind) Fatal() bool {
	switch k {
	case SynthesisFailure, EncodeFailure, ExtractionFailure:
		return true
	default:
		return false
	}
}

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind. A nil err stays nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classifier is implemented by errors from other packages that know their kind
// without depending on this one wrapping them.
type Classifier interface {
	FailureKind() Kind
}

// KindOf returns the outermost kind found in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c Classifier
	if errors.As(err, &c) {
		return c.FailureKind()
	}
	return ""
}

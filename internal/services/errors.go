package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers tag wrapped errors for Classify and errors.Is checks.
var (
	// ErrValidation flags an inbound message that cannot be acted on.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration flags bad or missing settings; fatal to the pass.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound flags a missing file or binary.
	ErrNotFound = errors.New("not found")
	// ErrTransient is the default when no marker is given.
	ErrTransient = errors.New("transient failure")
	// ErrConversionFailed flags an ffprobe or ffmpeg failure on one recording.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrMalformedState flags a state file that does not decode; fatal to the pass.
	ErrMalformedState = errors.New("malformed state")
	// ErrTransport flags a failed Bot API call.
	ErrTransport = errors.New("transport failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Outcome describes how a pass should react to a failure.
type Outcome string

const (
	// OutcomeFatal aborts the pass without persisting state.
	OutcomeFatal Outcome = "fatal"
	// OutcomeItem fails a single recording or event; the pass continues.
	OutcomeItem Outcome = "item"
)

// Classify maps an error to the pass-level outcome. Configuration problems and
// malformed persisted state are fatal; everything else is isolated to the item
// that produced it.
func Classify(err error) Outcome {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrMalformedState):
		return OutcomeFatal
	default:
		return OutcomeItem
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

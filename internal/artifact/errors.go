package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// Shape identifies one of the candidate artifact layouts the loader probes.
type Shape string

const (
	// ShapeComprehensive is the twelve-tactic comprehensive analysis
	// document. Authoritative when present.
	ShapeComprehensive Shape = "comprehensive"

	// ShapeAttackPaths is a document already carrying top-level
	// attack_paths findings, in either dialect.
	ShapeAttackPaths Shape = "attack_paths"

	// ShapeInitialAccess lists discrete initial-access vectors.
	ShapeInitialAccess Shape = "initial_access"
)

// Sentinel errors for per-shape probe outcomes. Both trigger fallback to the
// next candidate shape; neither is terminal on its own.
var (
	// ErrNotFound means the artifact file is missing (HTTP non-2xx).
	ErrNotFound = errors.New("artifact not found")

	// ErrShapeMismatch means the document parsed but fails structural
	// validation for the shape being probed.
	ErrShapeMismatch = errors.New("artifact shape mismatch")
)

// DataUnavailableError is terminal for one navigation: every candidate shape
// was exhausted for the application. The caller renders an unavailable
// state; this must never escape as a crash.
type DataUnavailableError struct {
	Application string
	Attempted   []Shape
	// Err is the failure from the last attempted shape, kept for logs.
	Err error
}

func (e *DataUnavailableError) Error() string {
	shapes := make([]string, len(e.Attempted))
	for i, s := range e.Attempted {
		shapes[i] = string(s)
	}
	msg := fmt.Sprintf("no analysis data available for %q (tried shapes: %s)",
		e.Application, strings.Join(shapes, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// IsDataUnavailable reports whether err is terminal data unavailability.
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

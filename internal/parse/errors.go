// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"errors"
	"fmt"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Error kinds. Every *Error carries exactly one of these as its Kind.
var (
	// ErrMalformed means the reply holds no decodable JSON object.
	ErrMalformed = errors.New("malformed structured payload")

	// ErrMissingField means a required key is absent, null, or empty.
	ErrMissingField = errors.New("missing required field")

	// ErrOutOfRange means a numeric field lies outside its allowed interval.
	ErrOutOfRange = errors.New("value out of range")

	// ErrShape means a field has the wrong JSON type.
	ErrShape = errors.New("field has wrong shape")
)

// Error describes why a reply could not be turned into a stage record.
type Error struct {
	Stage types.StageName
	Kind  error
	Field string
	Value string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (got %s)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes Kind and Err to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// recoverable reports whether a fallback heuristic may be tried after err.
// Range and shape violations come from a reply that decoded cleanly; those
// are rejected outright.
func recoverable(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrMissingField)
}

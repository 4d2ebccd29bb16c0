package ml

import (
	"errors"
	"fmt"
)

var ErrFeatureCount = errors.New("feature count mismatch")

// Error kinds reported for artifacts that exist but cannot be used.
const (
	KindIO          = "IOError"
	KindFormat      = "FormatError"
	KindUnsupported = "UnsupportedModelError"
	KindInvalid     = "InvalidModelError"
	KindRuntime     = "RuntimeError"
)

// DecodeError describes why an artifact could not be turned into a Classifier.
type DecodeError struct {
	Kind string
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(kind, path string, err error) error {
	return &DecodeError{Kind: kind, Path: path, Err: err}
}

// ErrorKind returns the DecodeError kind of err, or "Error" for anything else.
func ErrorKind(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return "Error"
}

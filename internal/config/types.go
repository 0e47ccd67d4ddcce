// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// VerbosityTrue enables verbose warnings.
	VerbosityTrue Verbosity = "TRUE"
	// VerbosityFalse enables ordinary warnings only.
	VerbosityFalse Verbosity = "FALSE"
	// VerbosityNil silences warnings entirely.
	VerbosityNil Verbosity = "NIL"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// SourceDefault marks a value that no layer set.
	SourceDefault Source = "default"
	// SourceProperty marks a value taken from a corvid.<key> process property.
	SourceProperty Source = "property"
	// SourceEnvironment marks a value taken from a CORVID_<KEY> variable.
	SourceEnvironment Source = "environment"
	// SourceOption marks a value taken from the embedding configuration.
	SourceOption Source = "option"
	// SourceDistribution marks a home found next to a self-contained distribution.
	SourceDistribution Source = "distribution"
	// SourceBuildTree marks a home found inside a development checkout.
	SourceBuildTree Source = "build-tree"
	// SourceNone marks an undetermined home.
	SourceNone Source = "none"
)

var (
	// ErrInvalidVerbosity is returned when a Verbosity token is not recognized.
	ErrInvalidVerbosity = errors.New("invalid verbosity")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidOptions is the sentinel wrapped by InvalidOptionsError.
	ErrInvalidOptions = errors.New("invalid options")
)

type (
	// Verbosity is the tri-state warning level of the guest runtime.
	Verbosity string

	// InvalidVerbosityError wraps ErrInvalidVerbosity for errors.Is() compatibility.
	InvalidVerbosityError struct {
		Value Verbosity
	}

	// LogLevel is the minimum level of the context's structured log.
	LogLevel string

	// InvalidLogLevelError wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidOptionsError collects the field-level errors of an Options value.
	// It wraps ErrInvalidOptions for errors.Is() compatibility.
	InvalidOptionsError struct {
		FieldErrors []error
	}

	// Source names the layer or heuristic that produced a value.
	Source string
)

// ParseVerbosity accepts the tokens TRUE, FALSE and NIL in any case.
func ParseVerbosity(s string) (Verbosity, error) {
	v := Verbosity(strings.ToUpper(strings.TrimSpace(s)))
	if err := v.Validate(); err != nil {
		return Verbosity(s), err
	}
	return v, nil
}

func (v Verbosity) String() string { return string(v) }

// Validate returns nil for TRUE, FALSE and NIL.
func (v Verbosity) Validate() error {
	switch v {
	case VerbosityTrue, VerbosityFalse, VerbosityNil:
		return nil
	default:
		return &InvalidVerbosityError{Value: v}
	}
}

func (e *InvalidVerbosityError) Error() string {
	return fmt.Sprintf("invalid verbosity %q (valid: TRUE, FALSE, NIL)", e.Value)
}

func (e *InvalidVerbosityError) Unwrap() error { return ErrInvalidVerbosity }

func (l LogLevel) String() string { return string(l) }

func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (e *InvalidOptionsError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid options: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap exposes the sentinel and every field error to errors.Is/As.
func (e *InvalidOptionsError) Unwrap() []error {
	return append([]error{ErrInvalidOptions}, e.FieldErrors...)
}

func (s Source) String() string { return string(s) }

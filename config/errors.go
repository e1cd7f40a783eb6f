package config

import (
	"errors"
	"fmt"
)

// errKeyMissing is the sentinel Cause ParameterMissingError wraps, so it
// carries the same Op/Cause shape as IOError/ParameterMalformedError despite
// having no lower-level error to report.
var errKeyMissing = errors.New("required key not set")

// ParameterMissingError reports a required parameter-file key that wasn't
// set, in the same Op/Cause-carrying shape Vedant9500-WTF's internal/errors
// package uses for its own DatabaseError/SearchError.
type ParameterMissingError struct {
	Op    string
	Key   string
	Cause error
}

func (e *ParameterMissingError) Error() string {
	return fmt.Sprintf("%s failed for '%s': %v", e.Op, e.Key, e.Cause)
}

func (e *ParameterMissingError) Unwrap() error {
	return e.Cause
}

// ParameterMalformedError reports a parameter-file key whose value failed to
// parse as the type it's declared to hold.
type ParameterMalformedError struct {
	Key   string
	Value string
	Cause error
}

func (e *ParameterMalformedError) Error() string {
	return fmt.Sprintf("config: parameter malformed for '%s=%s': %v", e.Key, e.Value, e.Cause)
}

func (e *ParameterMalformedError) Unwrap() error {
	return e.Cause
}

// IOError wraps a file-system failure reading or writing a named path.
type IOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("config: %s failed for '%s': %v", e.Op, e.Path, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

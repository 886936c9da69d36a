// Package xmlfrag implements extraction, parsing and schema validation of
// the XML-shaped fragments that LLM responses are expected to carry.
package xmlfrag

import "fmt"

// ValidationError is returned by Parse and any Schema.Validate
// implementation when the input does not conform to the expected shape.
// It carries a human-readable diagnostic, never a raw Go error string.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// IsRetryable marks ValidationError as retryable to the retry engine's
// classifier: parser/validation failures are retried within the
// LLM-parse-validate pipeline so the model gets a chance to correct
// its own malformed output, as opposed to the tree package's
// not-found/invariant errors, which propagate immediately.
func (e *ValidationError) IsRetryable() bool {
	return true
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

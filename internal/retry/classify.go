package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// RetryableError marks an error as retryable regardless of what it wraps,
// mirroring pkg/httpclient.RetryableError's IsRetryable marker interface.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string     { return e.Err.Error() }
func (e *RetryableError) Unwrap() error     { return e.Err }
func (e *RetryableError) IsRetryable() bool { return true }

// retryableMarker lets a transport declare retryability without this
// package needing to know its concrete type.
type retryableMarker interface {
	IsRetryable() bool
}

// retryableSubstrings covers the transient transport class: network
// errors, request timeouts, generic I/O failures surfaced as plain text
// by an upstream SDK.
var retryableSubstrings = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"429",
	"500",
	"502",
	"503",
	"504",
	"temporarily unavailable",
	"eof",
}

// Classify reports whether err should trigger a retry. Context
// cancellation and deadline errors are never retryable: the caller asked
// to stop. An error implementing retryableMarker is trusted outright.
// Net errors and a fixed substring set cover everything else; anything
// unrecognized is treated as fatal and propagates immediately, so
// logical/commanding failures (missing node, violated invariant) never
// get retried.
func Classify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var marker retryableMarker
	if errors.As(err, &marker) {
		return marker.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range retryableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

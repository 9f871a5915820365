package cdp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by commands issued on, or outstanding when, the
	// connection closes.
	ErrClosed = errors.New("cdp: connection closed")

	// ErrTimeout matches every *TimeoutError via errors.Is.
	ErrTimeout = errors.New("cdp: command timed out")
)

// TimeoutError reports a command whose reply did not arrive in time.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Method, e.Timeout)
	}
	return fmt.Sprintf("%s timed out", e.Method)
}

// Is reports ErrTimeout and context.DeadlineExceeded as matches.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == context.DeadlineExceeded
}

// ExceptionError is an exception thrown by evaluated script. It is distinct
// from *Error, which reports a failure of the command itself.
type ExceptionError struct {
	Text        string
	Description string
	Line        int
	Column      int
}

func (e *ExceptionError) Error() string {
	if e.Description != "" {
		return "evaluation failed: " + e.Description
	}
	return "evaluation failed: " + e.Text
}

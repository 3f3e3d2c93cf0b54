package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrToolCallsUnsupported indicates the backend cannot produce structured
// tool calls. Callers should retry the request without tools.
var ErrToolCallsUnsupported = errors.New("llm: backend does not support tool calls")

// Error wraps a backend failure with the operation that produced it and
// whether retrying might succeed.
type Error struct {
	Op        string // "complete" or "stream"
	Err       error
	Retryable bool
}

// NewError creates an Error for the given operation.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable llm.Error.
func IsRetryable(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	return false
}

// isRetryableMessage checks if an error message indicates a transient failure.
func isRetryableMessage(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "429") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}

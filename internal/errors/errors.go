// Package errors provides the error vocabulary shared by herobot's packages:
// sentinel errors, typed errors for the two external collaborators (the chat
// service and the filesystem) and a small classification helper.
//
// # Error Types
//
//   - ChatError: a failed call to the remote chat service (send, edit, poll)
//   - WatchError: a failed read or watch of a path in the watched directory
//
// # Usage
//
//	err := errors.NewChatError("sendMessage", cause).WithCode(429).WithRetryAfter(3 * time.Second)
//
//	var chatErr *errors.ChatError
//	if errors.As(err, &chatErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// Nothing in herobot retries on its own; IsRetryable only feeds log
// attributes so an operator can tell a throttled bot from a broken one.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotRegularFile indicates a path that is not a regular file.
	ErrNotRegularFile = New("not a regular file")
	// ErrSourceClosed indicates the change source was closed.
	ErrSourceClosed = New("change source closed")
	// ErrDispatcherClosed indicates the dispatcher no longer accepts work.
	ErrDispatcherClosed = New("dispatcher closed")
	// ErrStopRequested is returned by the command handler once a /stop is confirmed.
	ErrStopRequested = New("stop requested")
	// ErrChatUnavailable indicates the chat service could not be reached.
	ErrChatUnavailable = New("chat service unavailable")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// ChatError
// -----------------------------------------------------------------------------

// ChatError is the typed failure reported by a chat endpoint.
//
// Example:
//
//	err := errors.NewChatError("editMessageText", cause).WithCode(400)
//	fmt.Println(err) // "chat error [op=editMessageText, code=400]: <cause>"
type ChatError struct {
	Op         string
	Code       int
	RetryAfter time.Duration
	cause      error
}

// NewChatError creates a ChatError for the given remote operation.
func NewChatError(op string, cause error) *ChatError {
	return &ChatError{Op: op, cause: cause}
}

// WithCode records the status code returned by the remote service.
func (e *ChatError) WithCode(code int) *ChatError {
	e.Code = code
	return e
}

// WithRetryAfter records the back-off the remote service asked for.
func (e *ChatError) WithRetryAfter(d time.Duration) *ChatError {
	e.RetryAfter = d
	return e
}

// Error returns the formatted error message.
func (e *ChatError) Error() string {
	parts := []string{fmt.Sprintf("op=%s", e.Op)}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("retry_after=%s", e.RetryAfter))
	}

	prefix := fmt.Sprintf("chat error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *ChatError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a ChatError or ErrChatUnavailable for
// transport-level failures.
func (e *ChatError) Is(target error) bool {
	if _, ok := target.(*ChatError); ok {
		return true
	}
	if target == ErrChatUnavailable && e.Code == 0 {
		return true
	}
	return false
}

// Retryable reports whether the same call could succeed later: throttling,
// remote server errors and transport failures qualify.
func (e *ChatError) Retryable() bool {
	return e.Code == 0 || e.Code == 429 || e.Code >= 500
}

// -----------------------------------------------------------------------------
// WatchError
// -----------------------------------------------------------------------------

// WatchError represents a failure to read or watch a path.
type WatchError struct {
	Path    string
	message string
	cause   error
}

// NewWatchError creates a WatchError for path.
func NewWatchError(path, message string, cause error) *WatchError {
	return &WatchError{Path: path, message: message, cause: cause}
}

// Error returns the formatted error message.
func (e *WatchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("watch error [path=%s]: %s: %v", e.Path, e.message, e.cause)
	}
	return fmt.Sprintf("watch error [path=%s]: %s", e.Path, e.message)
}

// Unwrap returns the underlying error.
func (e *WatchError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *WatchError) Is(target error) bool {
	_, ok := target.(*WatchError)
	return ok
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRetryable returns true if err is a transient chat failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var chatErr *ChatError
	if As(err, &chatErr) {
		return chatErr.Retryable()
	}
	return false
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Package errors provides sentinel errors and custom error types for ghrest.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrNotFound indicates that a required remote resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a non-fast-forward ref update or a path that changed underneath the caller
	ErrConflict = errors.New("conflict")

	// ErrRemote indicates any other non-2xx response from the remote
	ErrRemote = errors.New("remote error")

	// ErrDecode indicates an error body that claims to be JSON but cannot be parsed
	ErrDecode = errors.New("malformed error body")

	// ErrPreconditionMissing indicates an operation was invoked before a required identity or hash was established
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrBlobHashMismatch indicates the remote returned a blob hash that does not match the uploaded content
	ErrBlobHashMismatch = errors.New("blob hash mismatch")

	// ErrTreeTruncated indicates the remote returned an incomplete recursive tree listing
	ErrTreeTruncated = errors.New("tree listing truncated")
)

// RemoteError is a non-2xx response from the remote API.
// Body holds the parsed JSON error for JSON responses, the raw text for
// anything else, and "" for an empty body.
type RemoteError struct {
	Status int
	Body   any
	Raw    []byte
}

func (e *RemoteError) Error() string {
	switch body := e.Body.(type) {
	case string:
		if body == "" {
			return fmt.Sprintf("remote returned %d %s", e.Status, http.StatusText(e.Status))
		}
		return fmt.Sprintf("remote returned %d: %s", e.Status, body)
	case map[string]any:
		if msg, ok := body["message"].(string); ok && msg != "" {
			return fmt.Sprintf("remote returned %d: %s", e.Status, msg)
		}
	}
	return fmt.Sprintf("remote returned %d: %s", e.Status, string(e.Raw))
}

// Is returns true if the target error is ErrRemote
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Message returns the "message" field of a JSON error body, if any
func (e *RemoteError) Message() string {
	if body, ok := e.Body.(map[string]any); ok {
		if msg, ok := body["message"].(string); ok {
			return msg
		}
	}
	if body, ok := e.Body.(string); ok {
		return body
	}
	return ""
}

// NewRemoteError creates a new RemoteError
func NewRemoteError(status int, body any, raw []byte) *RemoteError {
	return &RemoteError{Status: status, Body: body, Raw: raw}
}

// NotFoundError represents a missing remote resource
type NotFoundError struct {
	Resource string
	Err      *RemoteError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is returns true if the target error is ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource string, err *RemoteError) *NotFoundError {
	return &NotFoundError{Resource: resource, Err: err}
}

// ConflictError represents a rejected update, such as a non-fast-forward ref advance
type ConflictError struct {
	Resource string
	Message  string
	Err      *RemoteError
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict updating %s: %s", e.Resource, e.Message)
	}
	return fmt.Sprintf("conflict updating %s", e.Resource)
}

// Is returns true if the target error is ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func (e *ConflictError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource string, err *RemoteError) *ConflictError {
	ce := &ConflictError{Resource: resource, Err: err}
	if err != nil {
		ce.Message = err.Message()
	}
	return ce
}

// DecodeError represents an error body with a JSON content type that failed to parse
type DecodeError struct {
	Status int
	Raw    []byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %d error body: %v", e.Status, e.Err)
}

// Is returns true if the target error is ErrDecode
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new DecodeError
func NewDecodeError(status int, raw []byte, err error) *DecodeError {
	return &DecodeError{Status: status, Raw: raw, Err: err}
}

// PreconditionError represents an operation attempted without a required identity or reference
type PreconditionError struct {
	Operation string
	Missing   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Operation, e.Missing)
}

// Is returns true if the target error is ErrPreconditionMissing
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionMissing
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(operation, missing string) *PreconditionError {
	return &PreconditionError{Operation: operation, Missing: missing}
}

// TruncatedError represents a tree listing the remote cut short
type TruncatedError struct {
	Tree string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("tree %s is too large to list in one request", e.Tree)
}

// Is returns true if the target error is ErrTreeTruncated
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTreeTruncated
}

// NewTruncatedError creates a new TruncatedError
func NewTruncatedError(tree string) *TruncatedError {
	return &TruncatedError{Tree: tree}
}

// StatusCode returns the remote status carried by err, or 0 if there is none
func StatusCode(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status
	}
	var decode *DecodeError
	if errors.As(err, &decode) {
		return decode.Status
	}
	return 0
}

// IsAuthFailure reports whether err is a 401 from the remote
func IsAuthFailure(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsRateLimited reports whether err is a rate-limit rejection.
// GitHub signals exhausted quota with 403 and a message, or with 429.
func IsRateLimited(err error) bool {
	status := StatusCode(err)
	if status == http.StatusTooManyRequests {
		return true
	}
	if status != http.StatusForbidden {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return strings.Contains(strings.ToLower(remote.Message()), "rate limit")
	}
	return false
}

// IsRetryable reports whether err is a transient server-side failure
func IsRetryable(err error) bool {
	status := StatusCode(err)
	return status >= 500 && status <= 599
}

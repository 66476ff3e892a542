package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrValidation is an error thrown when client input is rejected
var ErrValidation = errors.New("validation error")

// ErrConfiguration is an error thrown when credentials or settings are missing or malformed
var ErrConfiguration = errors.New("configuration error")

// ErrStorage is an error thrown when the storage provider or the session store fails
var ErrStorage = errors.New("storage error")

// ErrConflict is an error thrown when a part is acknowledged twice with different tags
var ErrConflict = errors.New("conflicting entity tag")

// ErrIncompleteUpload is an error thrown when completing with missing parts
var ErrIncompleteUpload = errors.New("incomplete upload")

// ErrSessionAlreadyTerminal is an error thrown when mutating a completed, aborted or failed session
var ErrSessionAlreadyTerminal = errors.New("session already terminal")

// ErrSessionNotFound is an error thrown when session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrorKind is a stable machine-readable error category
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation_error"
	KindConfiguration    ErrorKind = "configuration_error"
	KindStorage          ErrorKind = "storage_error"
	KindConflict         ErrorKind = "conflict_error"
	KindIncompleteUpload ErrorKind = "incomplete_upload_error"
	KindSessionTerminal  ErrorKind = "session_already_terminal"
	KindNotFound         ErrorKind = "not_found"
	KindInternal         ErrorKind = "internal_error"
)

// KindOf maps err to its ErrorKind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrIncompleteUpload):
		return KindIncompleteUpload
	case errors.Is(err, ErrSessionAlreadyTerminal):
		return KindSessionTerminal
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}

// ValidationError reports a rejected input field
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError reports a missing or malformed setting
type ConfigurationError struct {
	Setting string
	Reason  string
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(setting, reason string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// StorageError wraps a failure of the storage provider or the session store.
// Code and StatusCode carry the provider's error code and HTTP status when known.
type StorageError struct {
	Op         string
	Code       string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString(ErrStorage.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		b.WriteString(" status=")
		b.WriteString(strconv.Itoa(e.StatusCode))
	}
	if e.Code != "" {
		b.WriteString(" code=")
		b.WriteString(e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorage}
	}
	return []error{ErrStorage, e.Err}
}

// IsRetryable reports whether err is a transient storage failure
func IsRetryable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// RetryableStatus reports whether an HTTP status from storage is worth
// retrying. Every 4xx is final.
func RetryableStatus(status int) bool {
	return status >= 500
}

// RetryableFailure classifies a failed storage call. With a response the
// status decides; without one only transport failures are retried, never
// client side validation or serialization errors.
func RetryableFailure(status int, err error) bool {
	if status != 0 {
		return RetryableStatus(status)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// ConflictError reports a part acknowledged with a second, different tag
type ConflictError struct {
	PartNumber int
	Existing   string
	Received   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: part %d already recorded with %q, got %q", ErrConflict, e.PartNumber, e.Existing, e.Received)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IncompleteUploadError lists the parts still missing at completion
type IncompleteUploadError struct {
	MissingParts []int
}

func (e *IncompleteUploadError) Error() string {
	nums := make([]string, 0, len(e.MissingParts))
	for _, n := range e.MissingParts {
		nums = append(nums, strconv.Itoa(n))
	}
	return fmt.Sprintf("%s: missing parts %s", ErrIncompleteUpload, strings.Join(nums, ","))
}

func (e *IncompleteUploadError) Unwrap() error { return ErrIncompleteUpload }

// TerminalStateError reports an operation on a session that can no longer change
type TerminalStateError struct {
	SessionID uuid.UUID
	Status    UploadSessionStatus
}

// NewTerminalStateError creates a TerminalStateError
func NewTerminalStateError(id uuid.UUID, status UploadSessionStatus) *TerminalStateError {
	return &TerminalStateError{SessionID: id, Status: status}
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("%s: session %s is %s", ErrSessionAlreadyTerminal, e.SessionID, e.Status)
}

func (e *TerminalStateError) Unwrap() error { return ErrSessionAlreadyTerminal }

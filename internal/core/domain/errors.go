package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error
// code. Codes group by component: HIST (history log), STRM (reset
// stream), INV (invites), THUMB (thumbnails), SESS (session registry),
// SYS (system/storage plumbing).
type DomainError struct {
	Code    string // Error code (e.g., "DH-HIST-4130")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support; two domain errors match when their
// codes match, regardless of details.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks whether the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// History log errors (HIST).
var (
	// ErrOutOfSpace indicates an operation would exceed the history byte
	// budget. Capacity errors are never fatal to the session.
	ErrOutOfSpace = NewDomainError("DH-HIST-4130", "history size limit exceeded")

	// ErrCorruptFrame indicates a message frame failed structural checks.
	ErrCorruptFrame = NewDomainError("DH-HIST-5001", "corrupt message frame")

	// ErrFrameChecksum indicates a message frame failed its CRC check.
	ErrFrameChecksum = NewDomainError("DH-HIST-5002", "message frame checksum mismatch")

	// ErrHistoryNotLoaded indicates the history was used before its
	// persisted counters were seeded.
	ErrHistoryNotLoaded = NewDomainError("DH-HIST-5003", "history counters not loaded")
)

// Reset stream errors (STRM).
var (
	// ErrResetStreamNotPrepared indicates resolve was called outside the
	// Prepared state.
	ErrResetStreamNotPrepared = NewDomainError("DH-STRM-4090", "reset stream is not prepared")

	// ErrResetStreamNotOpen indicates a backend stream operation arrived
	// with no stream open.
	ErrResetStreamNotOpen = NewDomainError("DH-STRM-4091", "reset stream is not open")
)

// Invite errors (INV).
var (
	// ErrInviteTableFull indicates the session already holds MaxInvites.
	ErrInviteTableFull = NewDomainError("DH-INV-4090", "invite table is full")
)

// Session registry errors (SESS).
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = NewDomainError("DH-SESS-4040", "session not found")

	// ErrSessionConflict indicates the session ID already exists.
	ErrSessionConflict = NewDomainError("DH-SESS-4090", "session id conflict")

	// ErrRegistryClosed indicates the session registry has shut down.
	ErrRegistryClosed = NewDomainError("DH-SESS-5030", "session registry closed")
)

// System errors (SYS).
var (
	// ErrStorageError indicates a storage layer failure.
	ErrStorageError = NewDomainError("DH-SYS-5001", "storage error")

	// ErrInternalServer indicates an unexpected internal failure.
	ErrInternalServer = NewDomainError("DH-SYS-5000", "internal server error")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("DH-ARG-1001", "invalid argument")
)

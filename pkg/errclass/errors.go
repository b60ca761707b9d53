// Package errclass defines the stable error classes surfaced by sgc.
package errclass

import (
	"errors"
	"fmt"
)

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Build-time errors.
var (
	ErrSelectorConflict = &Error{Code: "SELECTOR_CONFLICT"}
	ErrFileNotFound     = &Error{Code: "FILE_NOT_FOUND"}
	ErrPackNotFound     = &Error{Code: "PACK_NOT_FOUND"}
	ErrSetNotFound      = &Error{Code: "SET_NOT_FOUND"}
	ErrNameCollision    = &Error{Code: "NAME_COLLISION"}
	ErrNameInvalid      = &Error{Code: "NAME_INVALID"}
	ErrPathEscape       = &Error{Code: "PATH_ESCAPE"}
	ErrArtifactExists   = &Error{Code: "ARTIFACT_EXISTS"}
	ErrArtifactEmpty    = &Error{Code: "ARTIFACT_EMPTY"}
	ErrPackInvalid      = &Error{Code: "PACK_INVALID"}
	ErrSetInvalid       = &Error{Code: "SET_INVALID"}
	ErrSessionInvalid   = &Error{Code: "SESSION_INVALID"}
	ErrSecretInvalid    = &Error{Code: "SECRET_INVALID"}
)

// Verify-time errors.
var (
	ErrManifestNotFound  = &Error{Code: "MANIFEST_NOT_FOUND"}
	ErrManifestAmbiguous = &Error{Code: "MANIFEST_AMBIGUOUS"}
	ErrManifestInvalid   = &Error{Code: "MANIFEST_INVALID"}
	ErrDigestMismatch    = &Error{Code: "DIGEST_MISMATCH"}
	ErrFileMissing       = &Error{Code: "FILE_MISSING"}
	ErrSignatureInvalid  = &Error{Code: "SIGNATURE_INVALID"}
)

// Code extracts the class code from err, or "" if err carries none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Package cmn provides shared types, constants, configuration, and error
// handling used across storegate: a dependency-light common layer every
// other package imports.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind is the error taxonomy from the gateway's error-handling design:
// a small, closed set of recovery classes rather than per-call error
// types, each with one fixed HTTP status.
type Kind string

const (
	AuthMalformed       Kind = "AuthMalformed"
	AuthUnknown         Kind = "AuthUnknown"
	AuthBootstrapMisuse Kind = "AuthBootstrapMisuse"
	PermissionDenied    Kind = "PermissionDenied"
	NotFound            Kind = "NotFound"
	BadRequest          Kind = "BadRequest"
	TokenExpired        Kind = "TokenExpired"
	TokenInvalid        Kind = "TokenInvalid"
	PresignerUnavailable Kind = "PresignerUnavailable"
	AdapterTransient    Kind = "AdapterTransient"
	AdapterFatal        Kind = "AdapterFatal"
)

var statusByKind = map[Kind]int{
	AuthMalformed:        http.StatusUnauthorized,
	AuthUnknown:          http.StatusUnauthorized,
	AuthBootstrapMisuse:  http.StatusUnauthorized,
	PermissionDenied:     http.StatusForbidden,
	NotFound:             http.StatusNotFound,
	BadRequest:           http.StatusBadRequest,
	TokenExpired:         http.StatusUnauthorized,
	TokenInvalid:         http.StatusUnauthorized,
	PresignerUnavailable: http.StatusServiceUnavailable,
	AdapterTransient:     http.StatusInternalServerError,
	AdapterFatal:         http.StatusInternalServerError,
}

// Error is the gateway's error envelope: a Kind carrying a fixed HTTP
// status, a human message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the fixed HTTP status code for the error's Kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Errorf builds a new *Error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a new *Error of the given kind, preserving cause via
// github.com/pkg/errors so callers can still walk the chain with
// errors.Cause for logging.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// AsError extracts a *cmn.Error from err, if any is in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusOf returns the HTTP status that should be written for err,
// defaulting to 500 for errors outside the taxonomy (AdapterFatal-like).
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

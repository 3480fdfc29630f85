// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package httperr carries an HTTP status and a caller-safe message on an
// error value. Errors without a status classify as 500 and never expose
// their message.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with a status code and a message safe to show callers.
type Error struct {
	Status  int    // HTTP status code
	Message string // Caller-visible message
	Context string // Optional caller-visible detail
	Err     error  // Underlying cause, never shown to callers
}

// Error returns the message and the cause when present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status and caller-safe message to err.
func Wrap(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// WithContext returns a copy of e carrying the given context string.
func (e *Error) WithContext(context string) *Error {
	cp := *e
	cp.Context = context
	return &cp
}

// BadRequest is shorthand for a 400 error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

// Forbidden is shorthand for a 403 error.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

// NotFound is shorthand for a 404 error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Internal wraps err as a 500 whose message is hidden from callers.
func Internal(err error) *Error {
	return Wrap(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err)
}

// StatusCode returns the status carried by err, defaulting to 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Public returns the message and context that may be shown to the caller.
// Server errors always collapse to the generic status text.
func Public(err error) (message, context string) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		return http.StatusText(status), ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message, e.Context
	}
	return http.StatusText(status), ""
}

// IsUserError reports whether err classifies as a 4xx.
func IsUserError(err error) bool {
	status := StatusCode(err)
	return status >= 400 && status < 500
}

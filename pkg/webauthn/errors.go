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

package webauthn

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrNotConfigured is returned when the service is missing a dependency.
	ErrNotConfigured = errors.New("webauthn service not configured")

	// ErrInvalidRequest is returned when the client request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrVerificationFailed is returned when the authenticator response does
	// not verify against the challenge.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrNoCredentials is returned when a stored user has no credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrUnknownCredential is returned when the asserted credential is not stored.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrOwnerMismatch is returned when the asserted credential belongs to a
	// different user than the one who started the sign-in.
	ErrOwnerMismatch = errors.New("credential owner mismatch")
)

// Messages shown to the visitor.
const (
	MsgSignInFailed         = "We couldn't sign you in"
	MsgVerifyFailed         = "We couldn't verify your passkey"
	MsgRegistrationDenied   = "Registration not allowed without invitation"
	MsgUsernameTaken        = "That username is already taken"
	MsgPasskeyRegistered    = "This passkey is already registered"
	MsgNoRegistration       = "No active registration"
	MsgNoAuthentication     = "No active authentication"
	MsgAlreadySignedIn      = "You are already signed in"
	MsgMissingCredentialID  = "Missing credential id"
	MsgMissingResponse      = "Missing credential response"
	MsgInvalidVerification  = "Invalid user verification level"
	MsgAccountUnavailable   = "Your account could not be found"
	MsgMalformedCredentials = "Malformed credential"
)

// WebAuthnError wraps an error with the operation that failed.
type WebAuthnError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *WebAuthnError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WebAuthnError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *WebAuthnError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new WebAuthnError with the given operation and error.
func NewError(op string, err error) error {
	return &WebAuthnError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsVerificationFailed reports whether err is a failed signature or
// attestation check.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

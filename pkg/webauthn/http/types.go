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

package http

// Envelope status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AssertionOptionsRequest is the request body for starting a sign-in.
type AssertionOptionsRequest struct {
	// Username restricts the sign-in to one account (optional).
	Username string `json:"username,omitempty"`

	// UserVerification is "required", "preferred" or "discouraged".
	// Default: "preferred"
	UserVerification string `json:"userVerification,omitempty"`
}

// ResultResponse is the response after a successful result step.
type ResultResponse struct {
	Status   string `json:"status"`
	ReturnTo string `json:"return_to"`
}

// ErrorResponse is the failed envelope.
type ErrorResponse struct {
	Status        string `json:"status"`
	ErrorMessage  string `json:"errorMessage"`
	ErrorContext  string `json:"errorContext,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

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

// Package http serves the passkey ceremonies over JSON.
//
// # Endpoints
//
//	POST /fido2/attestation/options  - Start registration
//	POST /fido2/attestation/result   - Complete registration
//	POST /fido2/assertion/options    - Start sign-in
//	POST /fido2/assertion/result     - Complete sign-in
//
// Ceremony state travels in the session cookie, so the browser needs no
// extra headers between the two steps of a ceremony.
//
// # Response Format
//
// Successful responses carry "status": "ok" next to the payload:
//
//	{"status": "ok", "challenge": "...", "allowCredentials": [...]}
//	{"status": "ok", "return_to": "/shares/abc"}
//
// Failures share one envelope:
//
//	{
//	    "status": "failed",
//	    "errorMessage": "We couldn't sign you in",
//	    "errorContext": "optional detail",
//	    "correlation_id": "only on server errors"
//	}
package http

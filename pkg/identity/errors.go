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

package identity

import "errors"

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when a username is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrCredentialNotFound is returned when a credential is not found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialAlreadyExists is returned for a duplicate credential id.
	ErrCredentialAlreadyExists = errors.New("credential already exists")

	// ErrLastCredential is returned when deleting a user's only credential.
	ErrLastCredential = errors.New("cannot delete the last credential")

	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidDisplayName is returned when a display name fails validation.
	ErrInvalidDisplayName = errors.New("invalid display name")

	// ErrInvalidCredential is returned when stored credential data cannot be decoded.
	ErrInvalidCredential = errors.New("invalid credential")
)

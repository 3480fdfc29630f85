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

package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("store: username already taken")

	// ErrCredentialExists is returned when a credential id is already registered.
	ErrCredentialExists = errors.New("store: credential already registered")

	// ErrAlreadyExists is returned when creating a claimable whose id is in use.
	ErrAlreadyExists = errors.New("store: record already exists")

	// ErrInvalidRecord is returned for records missing required fields.
	ErrInvalidRecord = errors.New("store: invalid record")
)

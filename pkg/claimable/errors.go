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

package claimable

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an invite or share does not exist.
	ErrNotFound = errors.New("claimable not found")

	// ErrAlreadyClaimed is returned when claiming something already claimed.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrInvalidShare is returned when a share is created without a file.
	ErrInvalidShare = errors.New("invalid share")
)

// ClaimError records which claimable an operation failed on.
type ClaimError struct {
	Op   string
	Kind Kind
	ID   string
	Err  error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err indicates a missing invite or share.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyClaimed returns true if err indicates a second claim attempt.
func IsAlreadyClaimed(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}

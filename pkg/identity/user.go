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

// Package identity holds the domain users and credentials of the service
// and the resolver that maps them to and from store records.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

const (
	// MaxUsernameLength bounds usernames.
	MaxUsernameLength = 32
	// MaxDisplayNameLength bounds display names, counted in runes.
	MaxDisplayNameLength = 64
)

var (
	usernamePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	displayNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} .,'_-]*$`)
)

// User is a registered person. Only DisplayName changes after creation.
type User struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
}

// NewUser validates the inputs and returns a provisional user with a fresh id.
// The username is lowercased and both values are trimmed.
func NewUser(username, displayName string) (*User, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	displayName, err = ValidateDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:          uuid.NewString(),
		Created:     time.Now().UTC(),
		Username:    username,
		DisplayName: displayName,
	}, nil
}

// ValidateUsername normalizes and checks a username.
func ValidateUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	switch {
	case username == "":
		return "", fmt.Errorf("%w: username is required", ErrInvalidUsername)
	case len(username) > MaxUsernameLength:
		return "", fmt.Errorf("%w: username must be at most %d characters", ErrInvalidUsername, MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "", fmt.Errorf("%w: username may contain only letters, digits, dots, dashes and underscores", ErrInvalidUsername)
	}
	return username, nil
}

// ValidateDisplayName trims and checks a display name.
func ValidateDisplayName(displayName string) (string, error) {
	displayName = strings.TrimSpace(displayName)
	switch {
	case displayName == "":
		return "", fmt.Errorf("%w: display name is required", ErrInvalidDisplayName)
	case utf8.RuneCountInString(displayName) > MaxDisplayNameLength:
		return "", fmt.Errorf("%w: display name must be at most %d characters", ErrInvalidDisplayName, MaxDisplayNameLength)
	case !displayNamePattern.MatchString(displayName):
		return "", fmt.Errorf("%w: display name contains unsupported characters", ErrInvalidDisplayName)
	}
	return displayName, nil
}

// Is reports whether u and other are the same user. Nil never matches.
func (u *User) Is(other *User) bool {
	return u != nil && other != nil && u.ID == other.ID
}

func userFromRecord(rec *store.UserRecord) *User {
	return &User{
		ID:          rec.ID,
		Created:     rec.Created.UTC(),
		Username:    rec.Username,
		DisplayName: rec.DisplayName,
		IsAdmin:     rec.IsAdmin,
	}
}

func (u *User) record() *store.UserRecord {
	return &store.UserRecord{
		ID:          u.ID,
		Created:     u.Created,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
	}
}

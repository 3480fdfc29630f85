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

// Package store is the persistence facade for users, credentials, invites
// and shares. Records are keyed by opaque string ids and carry references
// to other records by id only; turning them into domain values is the job
// of the identity and claimable packages.
package store

import (
	"context"
	"time"
)

// Kind distinguishes the two claimable record variants.
type Kind string

const (
	// KindInvite is a claimable invitation to join.
	KindInvite Kind = "invite"
	// KindShare is a claimable grant to a file.
	KindShare Kind = "share"
)

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	return k == KindInvite || k == KindShare
}

// UserRecord is the stored form of a user.
type UserRecord struct {
	ID          string    `json:"id"`
	Created     time.Time `json:"created"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
}

// AuthenticatorRecord is the stored form of a registered credential.
// CredentialID and CredentialPublicKey are base64url strings.
type AuthenticatorRecord struct {
	CredentialID        string    `json:"credentialId"`
	UserID              string    `json:"userId"`
	Created             time.Time `json:"created"`
	CredentialPublicKey string    `json:"credentialPublicKey"`
	Counter             uint32    `json:"counter"`
	AAGUID              string    `json:"aaguid"`
	DeviceType          string    `json:"deviceType"`
	BackedUp            bool      `json:"backedUp"`
	Transports          []string  `json:"transports,omitempty"`
}

// ClaimableRecord is the stored form of an invite or a share.
// Claimed and ClaimedBy are written together.
type ClaimableRecord struct {
	Kind      Kind         `json:"kind"`
	ID        string       `json:"id"`
	Created   time.Time    `json:"created"`
	CreatedBy string       `json:"createdBy,omitempty"`
	IsAdmin   bool         `json:"isAdmin"`
	Claimed   *time.Time   `json:"claimed,omitempty"`
	ClaimedBy string       `json:"claimedBy,omitempty"`
	Share     *ShareRecord `json:"share,omitempty"`
}

// ShareRecord holds the share-only fields of a ClaimableRecord.
type ShareRecord struct {
	FileRef          string        `json:"fileRef"`
	FileTitle        string        `json:"fileTitle"`
	FileType         string        `json:"fileType"`
	AvailableFormats []string      `json:"availableFormats,omitempty"`
	ToUsername       string        `json:"toUsername,omitempty"`
	ExpiresAfter     time.Duration `json:"expiresAfter,omitempty"`
}

// UserStore persists users.
type UserStore interface {
	// GetUser returns ErrNotFound when no user has the id.
	GetUser(ctx context.Context, id string) (*UserRecord, error)

	// GetUserByUsername matches usernames case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*UserRecord, error)

	// CreateUser stores a new user together with its first credential.
	// Returns ErrUsernameTaken or ErrCredentialExists on conflicts.
	CreateUser(ctx context.Context, user *UserRecord, first *AuthenticatorRecord) error

	// UpdateUser replaces an existing user record.
	UpdateUser(ctx context.Context, user *UserRecord) error

	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]*UserRecord, error)

	// DeleteUser removes the user and its credentials.
	DeleteUser(ctx context.Context, id string) error
}

// CredentialStore persists authenticators.
type CredentialStore interface {
	GetAuthenticator(ctx context.Context, credentialID string) (*AuthenticatorRecord, error)
	ListAuthenticators(ctx context.Context, userID string) ([]*AuthenticatorRecord, error)
	CreateAuthenticator(ctx context.Context, auth *AuthenticatorRecord) error
	UpdateAuthenticator(ctx context.Context, auth *AuthenticatorRecord) error
	DeleteAuthenticator(ctx context.Context, credentialID string) error
}

// ClaimableStore persists invites and shares.
type ClaimableStore interface {
	GetClaimable(ctx context.Context, kind Kind, id string) (*ClaimableRecord, error)
	CreateClaimable(ctx context.Context, rec *ClaimableRecord) error
	UpdateClaimable(ctx context.Context, rec *ClaimableRecord) error
	ListClaimables(ctx context.Context, kind Kind) ([]*ClaimableRecord, error)
}

// Store combines the three facades over one backend.
type Store interface {
	UserStore
	CredentialStore
	ClaimableStore

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	Close() error
}

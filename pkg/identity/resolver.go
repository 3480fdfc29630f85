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

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

// Resolver reads and writes users and credentials through the store
// facade, translating records to domain values.
type Resolver struct {
	users store.UserStore
	creds store.CredentialStore
}

// NewResolver creates a Resolver.
func NewResolver(users store.UserStore, creds store.CredentialStore) *Resolver {
	return &Resolver{users: users, creds: creds}
}

// GetUser returns ErrUserNotFound when the id is unknown.
func (r *Resolver) GetUser(ctx context.Context, id string) (*User, error) {
	rec, err := r.users.GetUser(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, ErrUserNotFound)
	}
	return userFromRecord(rec), nil
}

// GetUserByUsername returns ErrUserNotFound when the name is unknown.
func (r *Resolver) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	rec, err := r.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, wrapNotFound(err, ErrUserNotFound)
	}
	return userFromRecord(rec), nil
}

// ListUsers returns every user.
func (r *Resolver) ListUsers(ctx context.Context) ([]*User, error) {
	recs, err := r.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, userFromRecord(rec))
	}
	return users, nil
}

// AddUser persists a new user together with its first credential.
func (r *Resolver) AddUser(ctx context.Context, user *User, auth *Authenticator) (*RegisteredAuthenticator, error) {
	rec := auth.record(user.ID)
	if err := r.users.CreateUser(ctx, user.record(), rec); err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			return nil, ErrUserAlreadyExists
		case errors.Is(err, store.ErrCredentialExists):
			return nil, ErrCredentialAlreadyExists
		}
		return nil, fmt.Errorf("add user: %w", err)
	}
	return authenticatorFromRecord(rec), nil
}

// DeleteUser removes a user and every credential it owns.
func (r *Resolver) DeleteUser(ctx context.Context, id string) error {
	return wrapNotFound(r.users.DeleteUser(ctx, id), ErrUserNotFound)
}

// UpdateDisplayName changes the user's display name after validation.
func (r *Resolver) UpdateDisplayName(ctx context.Context, userID, displayName string) (*User, error) {
	displayName, err := ValidateDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	rec, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, ErrUserNotFound)
	}
	rec.DisplayName = displayName
	if err := r.users.UpdateUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return userFromRecord(rec), nil
}

// GetAuthenticator returns ErrCredentialNotFound when the id is unknown.
func (r *Resolver) GetAuthenticator(ctx context.Context, credentialID string) (*RegisteredAuthenticator, error) {
	rec, err := r.creds.GetAuthenticator(ctx, credentialID)
	if err != nil {
		return nil, wrapNotFound(err, ErrCredentialNotFound)
	}
	return authenticatorFromRecord(rec), nil
}

// ListAuthenticators returns the user's credentials.
func (r *Resolver) ListAuthenticators(ctx context.Context, userID string) ([]*RegisteredAuthenticator, error) {
	recs, err := r.creds.ListAuthenticators(ctx, userID)
	if err != nil {
		return nil, err
	}
	auths := make([]*RegisteredAuthenticator, 0, len(recs))
	for _, rec := range recs {
		auths = append(auths, authenticatorFromRecord(rec))
	}
	return auths, nil
}

// AddAuthenticator attaches another credential to an existing user.
func (r *Resolver) AddAuthenticator(ctx context.Context, userID string, auth *Authenticator) (*RegisteredAuthenticator, error) {
	rec := auth.record(userID)
	if err := r.creds.CreateAuthenticator(ctx, rec); err != nil {
		switch {
		case errors.Is(err, store.ErrCredentialExists):
			return nil, ErrCredentialAlreadyExists
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("add authenticator: %w", err)
	}
	return authenticatorFromRecord(rec), nil
}

// UpdateCounter records the signature counter from the latest assertion.
func (r *Resolver) UpdateCounter(ctx context.Context, credentialID string, counter uint32) error {
	rec, err := r.creds.GetAuthenticator(ctx, credentialID)
	if err != nil {
		return wrapNotFound(err, ErrCredentialNotFound)
	}
	if rec.Counter == counter {
		return nil
	}
	rec.Counter = counter
	return r.creds.UpdateAuthenticator(ctx, rec)
}

// DeleteAuthenticator removes one of the user's credentials. A user's last
// credential cannot be deleted.
func (r *Resolver) DeleteAuthenticator(ctx context.Context, userID, credentialID string) error {
	rec, err := r.creds.GetAuthenticator(ctx, credentialID)
	if err != nil {
		return wrapNotFound(err, ErrCredentialNotFound)
	}
	if rec.UserID != userID {
		return ErrCredentialNotFound
	}

	recs, err := r.creds.ListAuthenticators(ctx, userID)
	if err != nil {
		return err
	}
	if len(recs) <= 1 {
		return ErrLastCredential
	}
	return r.creds.DeleteAuthenticator(ctx, credentialID)
}

func wrapNotFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}

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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-passkeyshare/pkg/storage"
)

const (
	userByIDPrefix         = "users/by-id/"
	userByNamePrefix       = "users/by-name/"
	credentialByIDPrefix   = "credentials/by-id/"
	credentialByUserPrefix = "credentials/by-user/"
	invitePrefix           = "invites/"
	sharePrefix            = "shares/"
)

// KVStore implements Store as JSON documents over a storage.Backend.
//
// Uniqueness of usernames and credential ids rests on Backend.Create.
// Multi-key writes are serialized within the process but are not
// transactional across a crash.
type KVStore struct {
	backend storage.Backend
	mu      sync.Mutex
}

// NewKVStore wraps backend.
func NewKVStore(backend storage.Backend) (*KVStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("store: backend cannot be nil")
	}
	return &KVStore{backend: backend}, nil
}

// GetUser returns the user with the given id.
func (s *KVStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	if !isSegment(id) {
		return nil, ErrNotFound
	}
	var rec UserRecord
	if err := s.getJSON(ctx, userByIDPrefix+id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetUserByUsername resolves the name index then loads the user.
func (s *KVStore) GetUserByUsername(ctx context.Context, username string) (*UserRecord, error) {
	name := normalizeUsername(username)
	if !isSegment(name) {
		return nil, ErrNotFound
	}
	id, err := s.backend.Get(ctx, userByNamePrefix+name)
	if err != nil {
		return nil, translate(err)
	}
	return s.GetUser(ctx, string(id))
}

// CreateUser claims the username and credential id, then writes both records.
func (s *KVStore) CreateUser(ctx context.Context, user *UserRecord, first *AuthenticatorRecord) error {
	if user == nil || !isSegment(user.ID) || !isSegment(normalizeUsername(user.Username)) {
		return ErrInvalidRecord
	}
	if first == nil || !isSegment(first.CredentialID) {
		return ErrInvalidRecord
	}
	if first.UserID != user.ID {
		return fmt.Errorf("%w: credential belongs to %q, not %q", ErrInvalidRecord, first.UserID, user.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := userByNamePrefix + normalizeUsername(user.Username)
	if err := s.backend.Create(ctx, nameKey, []byte(user.ID), nil); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("store: reserve username: %w", err)
	}

	if err := s.createAuthenticatorLocked(ctx, first); err != nil {
		_ = s.backend.Delete(ctx, nameKey)
		return err
	}

	if err := s.putJSON(ctx, userByIDPrefix+user.ID, user); err != nil {
		_ = s.deleteAuthenticatorLocked(ctx, first)
		_ = s.backend.Delete(ctx, nameKey)
		return err
	}
	return nil
}

// DeleteUser removes a user with its username index entry and every
// credential it owns.
func (s *KVStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	auths, err := s.ListAuthenticators(ctx, id)
	if err != nil {
		return err
	}
	for _, auth := range auths {
		if err := s.deleteAuthenticatorLocked(ctx, auth); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	if err := s.backend.Delete(ctx, userByIDPrefix+id); err != nil {
		return translate(err)
	}
	if err := s.backend.Delete(ctx, userByNamePrefix+normalizeUsername(user.Username)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return translate(err)
	}
	return nil
}

// UpdateUser replaces the user record. The username is immutable.
func (s *KVStore) UpdateUser(ctx context.Context, user *UserRecord) error {
	if user == nil || user.ID == "" {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if normalizeUsername(existing.Username) != normalizeUsername(user.Username) {
		return fmt.Errorf("%w: username cannot change", ErrInvalidRecord)
	}
	return s.putJSON(ctx, userByIDPrefix+user.ID, user)
}

// ListUsers returns all users ordered by storage key.
func (s *KVStore) ListUsers(ctx context.Context) ([]*UserRecord, error) {
	keys, err := s.backend.List(ctx, userByIDPrefix)
	if err != nil {
		return nil, translate(err)
	}
	users := make([]*UserRecord, 0, len(keys))
	for _, key := range keys {
		var rec UserRecord
		if err := s.getJSON(ctx, key, &rec); err != nil {
			return nil, err
		}
		users = append(users, &rec)
	}
	return users, nil
}

// GetAuthenticator returns the credential with the given id.
func (s *KVStore) GetAuthenticator(ctx context.Context, credentialID string) (*AuthenticatorRecord, error) {
	if !isSegment(credentialID) {
		return nil, ErrNotFound
	}
	var rec AuthenticatorRecord
	if err := s.getJSON(ctx, credentialByIDPrefix+credentialID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAuthenticators returns the credentials owned by userID.
func (s *KVStore) ListAuthenticators(ctx context.Context, userID string) ([]*AuthenticatorRecord, error) {
	if !isSegment(userID) {
		return []*AuthenticatorRecord{}, nil
	}
	prefix := credentialByUserPrefix + userID + "/"
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, translate(err)
	}
	auths := make([]*AuthenticatorRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.GetAuthenticator(ctx, strings.TrimPrefix(key, prefix))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		auths = append(auths, rec)
	}
	return auths, nil
}

// CreateAuthenticator stores a credential for an existing user.
func (s *KVStore) CreateAuthenticator(ctx context.Context, auth *AuthenticatorRecord) error {
	if auth == nil || !isSegment(auth.CredentialID) || !isSegment(auth.UserID) {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetUser(ctx, auth.UserID); err != nil {
		return err
	}
	return s.createAuthenticatorLocked(ctx, auth)
}

// UpdateAuthenticator replaces an existing credential record.
func (s *KVStore) UpdateAuthenticator(ctx context.Context, auth *AuthenticatorRecord) error {
	if auth == nil || auth.CredentialID == "" {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetAuthenticator(ctx, auth.CredentialID)
	if err != nil {
		return err
	}
	if existing.UserID != auth.UserID {
		return fmt.Errorf("%w: credential owner cannot change", ErrInvalidRecord)
	}
	return s.putJSON(ctx, credentialByIDPrefix+auth.CredentialID, auth)
}

// DeleteAuthenticator removes a credential and its owner index entry.
func (s *KVStore) DeleteAuthenticator(ctx context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetAuthenticator(ctx, credentialID)
	if err != nil {
		return err
	}
	return s.deleteAuthenticatorLocked(ctx, existing)
}

// GetClaimable returns the invite or share with the given id.
func (s *KVStore) GetClaimable(ctx context.Context, kind Kind, id string) (*ClaimableRecord, error) {
	key, err := claimableKey(kind, id)
	if err != nil {
		return nil, err
	}
	var rec ClaimableRecord
	if err := s.getJSON(ctx, key, &rec); err != nil {
		return nil, err
	}
	rec.Kind = kind
	return &rec, nil
}

// CreateClaimable stores a new invite or share.
func (s *KVStore) CreateClaimable(ctx context.Context, rec *ClaimableRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	key, err := claimableKey(rec.Kind, rec.ID)
	if err != nil {
		return err
	}
	if rec.Kind == KindShare && rec.Share == nil {
		return fmt.Errorf("%w: share details required", ErrInvalidRecord)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", rec.Kind, err)
	}
	if err := s.backend.Create(ctx, key, data, nil); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		return translate(err)
	}
	return nil
}

// UpdateClaimable replaces an existing invite or share.
func (s *KVStore) UpdateClaimable(ctx context.Context, rec *ClaimableRecord) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	key, err := claimableKey(rec.Kind, rec.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return translate(err)
	}
	if !exists {
		return ErrNotFound
	}
	return s.putJSON(ctx, key, rec)
}

// ListClaimables returns every record of the given kind.
func (s *KVStore) ListClaimables(ctx context.Context, kind Kind) ([]*ClaimableRecord, error) {
	prefix, err := claimablePrefix(kind)
	if err != nil {
		return nil, err
	}
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, translate(err)
	}
	recs := make([]*ClaimableRecord, 0, len(keys))
	for _, key := range keys {
		var rec ClaimableRecord
		if err := s.getJSON(ctx, key, &rec); err != nil {
			return nil, err
		}
		rec.Kind = kind
		recs = append(recs, &rec)
	}
	return recs, nil
}

// Ping checks the backend with a cheap existence check.
func (s *KVStore) Ping(ctx context.Context) error {
	if _, err := s.backend.Exists(ctx, userByNamePrefix+"-"); err != nil {
		return translate(err)
	}
	return nil
}

// Close closes the backend.
func (s *KVStore) Close() error {
	return s.backend.Close()
}

func (s *KVStore) createAuthenticatorLocked(ctx context.Context, auth *AuthenticatorRecord) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("store: marshal credential: %w", err)
	}
	if err := s.backend.Create(ctx, credentialByIDPrefix+auth.CredentialID, data, nil); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrCredentialExists
		}
		return translate(err)
	}
	indexKey := credentialByUserPrefix + auth.UserID + "/" + auth.CredentialID
	if err := s.backend.Put(ctx, indexKey, []byte(auth.UserID), nil); err != nil {
		_ = s.backend.Delete(ctx, credentialByIDPrefix+auth.CredentialID)
		return translate(err)
	}
	return nil
}

func (s *KVStore) deleteAuthenticatorLocked(ctx context.Context, auth *AuthenticatorRecord) error {
	indexKey := credentialByUserPrefix + auth.UserID + "/" + auth.CredentialID
	if err := s.backend.Delete(ctx, indexKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return translate(err)
	}
	return translate(s.backend.Delete(ctx, credentialByIDPrefix+auth.CredentialID))
}

func (s *KVStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return translate(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	return translate(s.backend.Put(ctx, key, data, nil))
}

func claimablePrefix(kind Kind) (string, error) {
	switch kind {
	case KindInvite:
		return invitePrefix, nil
	case KindShare:
		return sharePrefix, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, kind)
	}
}

func claimableKey(kind Kind, id string) (string, error) {
	prefix, err := claimablePrefix(kind)
	if err != nil {
		return "", err
	}
	if !isSegment(id) {
		return "", ErrNotFound
	}
	return prefix + id, nil
}

// isSegment reports whether v can stand as one key segment. Lookups with
// anything else are answered with ErrNotFound so caller input never reaches
// a backend's key validation.
func isSegment(v string) bool {
	return v != "" && v != "." && v != ".." && !strings.ContainsAny(v, "/\\\x00")
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// translate maps backend sentinels onto store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	default:
		return fmt.Errorf("store: %w", err)
	}
}

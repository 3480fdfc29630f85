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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

// UserLookup resolves the user references stored on a claimable.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*identity.User, error)
}

// Authorizer gates access to invites and shares and claims them.
type Authorizer struct {
	store store.ClaimableStore
	users UserLookup
	log   logger.Logger
	now   func() time.Time
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(a *Authorizer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock overrides the time source used for expiry and claim times.
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthorizer creates an Authorizer over the claimable store.
func NewAuthorizer(claims store.ClaimableStore, users UserLookup, opts ...Option) *Authorizer {
	a := &Authorizer{
		store: claims,
		users: users,
		log:   logger.NoOp{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Get loads a source and resolves its creator and claimant.
// Returns ErrNotFound when the id is unknown.
func (a *Authorizer) Get(ctx context.Context, kind Kind, id string) (*Source, error) {
	rec, err := a.store.GetClaimable(ctx, kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ClaimError{Op: "get", Kind: kind, ID: id, Err: ErrNotFound}
		}
		return nil, &ClaimError{Op: "get", Kind: kind, ID: id, Err: err}
	}
	return a.resolve(ctx, rec)
}

// Ensure returns the source if current may see it.
//
// Anyone but the creator is told an inaccessible source does not exist.
// The creator gets a 403 explaining why access is refused.
func (a *Authorizer) Ensure(ctx context.Context, kind Kind, id string, current *identity.User) (*Source, error) {
	if strings.TrimSpace(id) == "" {
		return nil, httperr.Newf(http.StatusBadRequest, "Missing %s id", Noun(kind))
	}
	notFound := httperr.Newf(http.StatusNotFound, "%s not found", capitalized(kind))

	src, err := a.Get(ctx, kind, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, notFound
		}
		return nil, err
	}

	if src.Expired(a.now()) {
		if src.IsCreator(current) || src.ClaimedBy.Is(current) {
			return nil, httperr.Newf(http.StatusForbidden, "This %s has expired", Noun(kind))
		}
		return nil, notFound
	}

	if src.IsClaimed() && !src.ClaimedBy.Is(current) {
		if src.IsCreator(current) {
			return nil, httperr.Newf(http.StatusForbidden, "This %s has already been claimed by %s", Noun(kind), src.ClaimedBy.Username)
		}
		return nil, notFound
	}

	if !src.IsClaimed() && !src.IsAddressedTo(current) {
		if src.IsCreator(current) {
			return nil, httperr.Newf(http.StatusForbidden, "This %s is for %s", Noun(kind), src.AddressedTo())
		}
		return nil, notFound
	}

	return src, nil
}

// Claim binds an unclaimed source to by and returns the stored result.
// It runs after Ensure, so a missing or claimed source is an internal error.
//
// The read and the write are separate store calls. Two concurrent claims
// can both pass the claimed check before either writes.
func (a *Authorizer) Claim(ctx context.Context, kind Kind, id string, by *identity.User) (*Source, error) {
	if by == nil {
		return nil, httperr.Internal(&ClaimError{Op: "claim", Kind: kind, ID: id, Err: identity.ErrUserNotFound})
	}

	rec, err := a.store.GetClaimable(ctx, kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordClaim(string(kind), metrics.ClaimNotFound)
			err = ErrNotFound
		}
		return nil, httperr.Internal(&ClaimError{Op: "claim", Kind: kind, ID: id, Err: err})
	}
	if rec.Claimed != nil || rec.ClaimedBy != "" {
		metrics.RecordClaim(string(kind), metrics.ClaimConflict)
		a.log.WarnContext(ctx, "claim on already claimed source",
			logger.String("kind", string(kind)),
			logger.String("id", id),
			logger.String("claimed_by", rec.ClaimedBy),
			logger.String("attempted_by", by.ID))
		return nil, httperr.Internal(&ClaimError{Op: "claim", Kind: kind, ID: id, Err: ErrAlreadyClaimed})
	}

	now := a.now().UTC()
	rec.Claimed = &now
	rec.ClaimedBy = by.ID
	if err := a.store.UpdateClaimable(ctx, rec); err != nil {
		return nil, httperr.Internal(&ClaimError{Op: "claim", Kind: kind, ID: id, Err: err})
	}
	metrics.RecordClaim(string(kind), metrics.ClaimClaimed)
	a.log.InfoContext(ctx, "claimed",
		logger.String("kind", string(kind)),
		logger.String("id", id),
		logger.String("user_id", by.ID))

	src, err := a.Get(ctx, kind, id)
	if err != nil {
		return nil, httperr.Internal(err)
	}
	return src, nil
}

// CreateInvite issues a new invitation. creator may be nil for invites
// bootstrapped outside the web interface.
func (a *Authorizer) CreateInvite(ctx context.Context, creator *identity.User, isAdmin bool) (*Source, error) {
	return a.create(ctx, KindInvite, creator, isAdmin, nil)
}

// CreateShare issues a new file share.
func (a *Authorizer) CreateShare(ctx context.Context, creator *identity.User, details ShareDetails) (*Source, error) {
	details.FileRef = strings.TrimSpace(details.FileRef)
	if details.FileRef == "" {
		return nil, fmt.Errorf("%w: file reference is required", ErrInvalidShare)
	}
	if details.ExpiresAfter < 0 {
		return nil, fmt.Errorf("%w: expiry must not be negative", ErrInvalidShare)
	}
	if details.ToUsername != "" {
		to, err := identity.ValidateUsername(details.ToUsername)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidShare, err)
		}
		details.ToUsername = to
	}
	return a.create(ctx, KindShare, creator, false, &details)
}

func (a *Authorizer) create(ctx context.Context, kind Kind, creator *identity.User, isAdmin bool, details *ShareDetails) (*Source, error) {
	rec := &store.ClaimableRecord{
		Kind:    kind,
		ID:      uuid.NewString(),
		Created: a.now().UTC(),
		IsAdmin: isAdmin,
	}
	if creator != nil {
		rec.CreatedBy = creator.ID
	}
	if details != nil {
		rec.Share = &store.ShareRecord{
			FileRef:          details.FileRef,
			FileTitle:        details.FileTitle,
			FileType:         details.FileType,
			AvailableFormats: details.AvailableFormats,
			ToUsername:       details.ToUsername,
			ExpiresAfter:     details.ExpiresAfter,
		}
	}
	if err := a.store.CreateClaimable(ctx, rec); err != nil {
		return nil, &ClaimError{Op: "create", Kind: kind, ID: rec.ID, Err: err}
	}
	metrics.RecordClaimableCreated(string(kind))
	a.log.InfoContext(ctx, "created",
		logger.String("kind", string(kind)),
		logger.String("id", rec.ID),
		logger.String("created_by", rec.CreatedBy),
		logger.Bool("admin", isAdmin))
	return a.resolve(ctx, rec)
}

// List returns every source of a kind.
func (a *Authorizer) List(ctx context.Context, kind Kind) ([]*Source, error) {
	recs, err := a.store.ListClaimables(ctx, kind)
	if err != nil {
		return nil, &ClaimError{Op: "list", Kind: kind, Err: err}
	}
	out := make([]*Source, 0, len(recs))
	for _, rec := range recs {
		src, err := a.resolve(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// CountOpen returns, per kind, how many sources are neither claimed nor
// expired.
func (a *Authorizer) CountOpen(ctx context.Context) (map[string]int, error) {
	now := a.now()
	counts := make(map[string]int, 2)
	for _, kind := range []Kind{KindInvite, KindShare} {
		recs, err := a.store.ListClaimables(ctx, kind)
		if err != nil {
			return nil, &ClaimError{Op: "count", Kind: kind, Err: err}
		}
		n := 0
		for _, rec := range recs {
			if rec.Claimed != nil {
				continue
			}
			if rec.Share != nil && rec.Share.ExpiresAfter > 0 && now.After(rec.Created.Add(rec.Share.ExpiresAfter)) {
				continue
			}
			n++
		}
		counts[string(kind)] = n
	}
	return counts, nil
}

func (a *Authorizer) resolve(ctx context.Context, rec *store.ClaimableRecord) (*Source, error) {
	src := &Source{
		Kind:    rec.Kind,
		ID:      rec.ID,
		IsAdmin: rec.IsAdmin,
		Created: rec.Created.UTC(),
	}
	if rec.CreatedBy != "" {
		u, err := a.users.GetUser(ctx, rec.CreatedBy)
		if err != nil {
			return nil, &ClaimError{Op: "resolve creator", Kind: rec.Kind, ID: rec.ID, Err: err}
		}
		src.CreatedBy = u
	}
	if rec.Claimed != nil && rec.ClaimedBy != "" {
		u, err := a.users.GetUser(ctx, rec.ClaimedBy)
		if err != nil {
			return nil, &ClaimError{Op: "resolve claimant", Kind: rec.Kind, ID: rec.ID, Err: err}
		}
		claimed := rec.Claimed.UTC()
		src.Claimed = &claimed
		src.ClaimedBy = u
	}
	if rec.Share != nil {
		src.Share = &ShareDetails{
			FileRef:          rec.Share.FileRef,
			FileTitle:        rec.Share.FileTitle,
			FileType:         rec.Share.FileType,
			AvailableFormats: rec.Share.AvailableFormats,
			ToUsername:       rec.Share.ToUsername,
			ExpiresAfter:     rec.Share.ExpiresAfter,
		}
	}
	return src, nil
}

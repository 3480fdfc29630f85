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
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/storage"
	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	auth     *Authorizer
	resolver *identity.Resolver
	clock    *clock
	admin    *identity.User
	bob      *identity.User
	mary     *identity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := store.NewKVStore(storage.NewMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	resolver := identity.NewResolver(kv, kv)
	c := &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		auth:     NewAuthorizer(kv, resolver, WithClock(c.Now)),
		resolver: resolver,
		clock:    c,
	}
	f.admin = f.addUser(t, "admin", "Admin User", true)
	f.bob = f.addUser(t, "bob", "Bob User", false)
	f.mary = f.addUser(t, "mary", "Mary User", false)
	return f
}

func (f *fixture) addUser(t *testing.T, username, displayName string, admin bool) *identity.User {
	t.Helper()
	u, err := identity.NewUser(username, displayName)
	require.NoError(t, err)
	u.IsAdmin = admin
	_, err = f.resolver.AddUser(context.Background(), u, &identity.Authenticator{
		Created:             f.clock.Now(),
		CredentialID:        "cred-" + username,
		CredentialPublicKey: "pk-" + username,
		DeviceType:          identity.SingleDevice,
	})
	require.NoError(t, err)
	return u
}

func requireStatus(t *testing.T, err error, status int, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, status, httperr.StatusCode(err))
	if message != "" {
		msg, _ := httperr.Public(err)
		assert.Equal(t, message, msg)
	}
}

func TestEnsureMissingAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Ensure(ctx, KindInvite, "", f.bob)
	requireStatus(t, err, http.StatusBadRequest, "Missing invite id")

	_, err = f.auth.Ensure(ctx, KindShare, "  ", nil)
	requireStatus(t, err, http.StatusBadRequest, "Missing share id")

	_, err = f.auth.Ensure(ctx, KindInvite, "nope", f.admin)
	requireStatus(t, err, http.StatusNotFound, "Invite not found")
}

func TestEnsureUnclaimedInviteVisibleToAnyone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.auth.CreateInvite(ctx, f.admin, false)
	require.NoError(t, err)
	assert.Equal(t, "/invites/"+inv.ID, inv.Path())

	for _, u := range []*identity.User{nil, f.bob, f.admin} {
		got, err := f.auth.Ensure(ctx, KindInvite, inv.ID, u)
		require.NoError(t, err)
		assert.Equal(t, f.admin.ID, got.CreatedBy.ID)
		assert.False(t, got.IsClaimed())
	}
}

func TestClaimOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.auth.CreateInvite(ctx, f.admin, true)
	require.NoError(t, err)
	assert.True(t, inv.IsAdmin)

	claimed, err := f.auth.Claim(ctx, KindInvite, inv.ID, f.bob)
	require.NoError(t, err)
	require.True(t, claimed.IsClaimed())
	assert.Equal(t, "bob", claimed.ClaimedBy.Username)
	assert.True(t, claimed.Claimed.Equal(f.clock.Now()))
	assert.Equal(t, time.UTC, claimed.Claimed.Location())

	_, err = f.auth.Claim(ctx, KindInvite, inv.ID, f.mary)
	requireStatus(t, err, http.StatusInternalServerError, "Internal Server Error")
	assert.True(t, IsAlreadyClaimed(err))

	// The claimant still sees it, the creator learns who claimed it,
	// everyone else is told it does not exist.
	_, err = f.auth.Ensure(ctx, KindInvite, inv.ID, f.bob)
	assert.NoError(t, err)

	_, err = f.auth.Ensure(ctx, KindInvite, inv.ID, f.admin)
	requireStatus(t, err, http.StatusForbidden, "This invite has already been claimed by bob")

	for _, u := range []*identity.User{nil, f.mary} {
		_, err = f.auth.Ensure(ctx, KindInvite, inv.ID, u)
		requireStatus(t, err, http.StatusNotFound, "Invite not found")
	}
}

func TestClaimUnknownIsInternal(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Claim(context.Background(), KindShare, "missing", f.bob)
	requireStatus(t, err, http.StatusInternalServerError, "")
	assert.True(t, IsNotFound(err))

	_, err = f.auth.Claim(context.Background(), KindShare, "missing", nil)
	requireStatus(t, err, http.StatusInternalServerError, "")
}

func TestEnsureMisdirectedShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sh, err := f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "report.pdf", ToUsername: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", sh.AddressedTo())

	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.bob)
	assert.NoError(t, err)

	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.admin)
	requireStatus(t, err, http.StatusForbidden, "This share is for bob")

	for _, u := range []*identity.User{nil, f.mary} {
		_, err = f.auth.Ensure(ctx, KindShare, sh.ID, u)
		requireStatus(t, err, http.StatusNotFound, "Share not found")
	}
}

func TestTwoDayShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sh, err := f.auth.CreateShare(ctx, f.admin, ShareDetails{
		FileRef:      "photos/holiday.jpg",
		FileTitle:    "holiday",
		FileType:     "image/jpeg",
		ToUsername:   "bob",
		ExpiresAfter: 48 * time.Hour,
	})
	require.NoError(t, err)
	at, ok := sh.ExpiresAt()
	require.True(t, ok)
	assert.True(t, at.Equal(f.clock.Now().Add(48*time.Hour)))

	f.clock.Advance(24 * time.Hour)
	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.bob)
	require.NoError(t, err)
	_, err = f.auth.Claim(ctx, KindShare, sh.ID, f.bob)
	require.NoError(t, err)

	got, err := f.auth.Ensure(ctx, KindShare, sh.ID, f.bob)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.ClaimedBy.Username)

	f.clock.Advance(25 * time.Hour)
	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.bob)
	requireStatus(t, err, http.StatusForbidden, "This share has expired")

	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.admin)
	requireStatus(t, err, http.StatusForbidden, "This share has expired")

	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, f.mary)
	requireStatus(t, err, http.StatusNotFound, "Share not found")

	_, err = f.auth.Ensure(ctx, KindShare, sh.ID, nil)
	requireStatus(t, err, http.StatusNotFound, "Share not found")
}

// Only the creator ever sees a 403, whatever state the resource is in.
func TestOwnershipGatedVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired, err := f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "a.txt", ExpiresAfter: time.Hour})
	require.NoError(t, err)
	claimed, err := f.auth.CreateInvite(ctx, f.admin, false)
	require.NoError(t, err)
	_, err = f.auth.Claim(ctx, KindInvite, claimed.ID, f.bob)
	require.NoError(t, err)
	misdirected, err := f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "b.txt", ToUsername: "bob"})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	cases := []struct {
		name string
		kind Kind
		id   string
	}{
		{"expired", KindShare, expired.ID},
		{"claimed", KindInvite, claimed.ID},
		{"misdirected", KindShare, misdirected.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.Ensure(ctx, tc.kind, tc.id, f.admin)
			assert.Equal(t, http.StatusForbidden, httperr.StatusCode(err))

			for _, u := range []*identity.User{nil, f.mary} {
				_, err := f.auth.Ensure(ctx, tc.kind, tc.id, u)
				assert.Equal(t, http.StatusNotFound, httperr.StatusCode(err))
			}
		})
	}
}

func TestCreateShareValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.CreateShare(ctx, f.admin, ShareDetails{})
	assert.ErrorIs(t, err, ErrInvalidShare)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "x", ExpiresAfter: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidShare)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "x", ToUsername: "not valid!"})
	assert.ErrorIs(t, err, ErrInvalidShare)
}

func TestBootstrapInviteWithoutCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.auth.CreateInvite(ctx, nil, true)
	require.NoError(t, err)
	assert.Nil(t, inv.CreatedBy)

	_, err = f.auth.Claim(ctx, KindInvite, inv.ID, f.bob)
	require.NoError(t, err)

	// Without a creator nobody is entitled to the explanation.
	_, err = f.auth.Ensure(ctx, KindInvite, inv.ID, f.admin)
	assert.Equal(t, http.StatusNotFound, httperr.StatusCode(err))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.CreateInvite(ctx, f.admin, false)
	require.NoError(t, err)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "a"})
	require.NoError(t, err)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "b"})
	require.NoError(t, err)

	shares, err := f.auth.List(ctx, KindShare)
	require.NoError(t, err)
	assert.Len(t, shares, 2)
	for _, s := range shares {
		assert.Equal(t, KindShare, s.Kind)
		require.NotNil(t, s.Share)
	}
}

func TestSourceHelpers(t *testing.T) {
	s := &Source{Kind: KindInvite, ID: "abc"}
	_, ok := s.ExpiresAt()
	assert.False(t, ok)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.IsAddressedTo(nil))
	assert.Equal(t, "/invites/abc", s.Path())
	assert.Equal(t, "/shares/x", PathFor(KindShare, "x"))

	s.Share = &ShareDetails{ToUsername: "bob"}
	assert.False(t, s.IsAddressedTo(nil))
	assert.True(t, s.IsAddressedTo(&identity.User{Username: "BOB"}))
}

func TestCountOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.auth.CreateInvite(ctx, f.admin, false)
	require.NoError(t, err)
	_, err = f.auth.CreateInvite(ctx, f.admin, true)
	require.NoError(t, err)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "a", ExpiresAfter: time.Hour})
	require.NoError(t, err)
	_, err = f.auth.CreateShare(ctx, f.admin, ShareDetails{FileRef: "b"})
	require.NoError(t, err)

	counts, err := f.auth.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"invite": 2, "share": 2}, counts)

	_, err = f.auth.Claim(ctx, KindInvite, inv.ID, f.bob)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	counts, err = f.auth.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"invite": 1, "share": 1}, counts)
}

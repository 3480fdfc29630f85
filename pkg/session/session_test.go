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

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newStore(t *testing.T) *CookieStore {
	t.Helper()
	s, err := NewCookieStore(Config{Secret: testSecret})
	require.NoError(t, err)
	return s
}

func testUser(t *testing.T) *identity.User {
	t.Helper()
	u, err := identity.NewUser("bob", "Bob User")
	require.NoError(t, err)
	return u
}

func testSource(t *testing.T) *claimable.Source {
	t.Helper()
	admin, err := identity.NewUser("admin", "Admin")
	require.NoError(t, err)
	admin.IsAdmin = true
	return &claimable.Source{
		Kind:      claimable.KindInvite,
		ID:        "inv-1",
		IsAdmin:   false,
		Created:   time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC),
		CreatedBy: admin,
	}
}

func testCredential() identity.RegisteredAuthenticator {
	return identity.RegisteredAuthenticator{
		Authenticator: identity.Authenticator{
			Created:             time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			CredentialID:        "CRED1",
			CredentialPublicKey: "pk",
			DeviceType:          identity.MultiDevice,
			BackedUp:            true,
		},
		UserID: "u1",
	}
}

func challenge() webauthn.SessionData {
	return webauthn.SessionData{
		Challenge:        "c2VjcmV0LWNoYWxsZW5nZQ",
		RelyingPartyID:   "localhost",
		UserID:           []byte("u1"),
		Expires:          time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		UserVerification: protocol.VerificationPreferred,
	}
}

// roundTrip pushes st through a real cookie.
func roundTrip(t *testing.T, s *CookieStore, st *State) *State {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, s.Save(rec, st))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got, err := s.Load(req)
	require.NoError(t, err)
	return got
}

func TestConfigValidate(t *testing.T) {
	_, err := NewCookieStore(Config{Secret: "short"})
	assert.Error(t, err)

	_, err = NewCookieStore(Config{Secret: testSecret, CookieName: "bad name"})
	assert.Error(t, err)

	cfg := Config{Secret: testSecret}
	cfg.SetDefaults()
	assert.Equal(t, DefaultCookieName, cfg.CookieName)
	assert.Equal(t, DefaultLifetime, cfg.Lifetime)
}

func TestLoadWithoutCookie(t *testing.T) {
	st, err := newStore(t).Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, st.IsEmpty())
}

func TestUserRoundTrip(t *testing.T) {
	s := newStore(t)
	st := New()
	require.NoError(t, st.AcceptRegisterable(testSource(t)))
	user := testUser(t)
	require.NoError(t, st.BeginRegistering(user, challenge()))

	got := roundTrip(t, s, st)

	reg, ok := got.Registering()
	require.True(t, ok)
	assert.Equal(t, user, reg.User)
	assert.IsType(t, time.Time{}, reg.User.Created)
	assert.True(t, reg.User.Created.Equal(user.Created))
	assert.Equal(t, challenge().Challenge, reg.Challenge.Challenge)
	assert.True(t, reg.Challenge.Expires.Equal(challenge().Expires))

	src, ok := got.Registerable()
	require.True(t, ok)
	assert.Equal(t, testSource(t).Created, src.Created)
	assert.Equal(t, "admin", src.CreatedBy.Username)
	assert.True(t, src.CreatedBy.IsAdmin)
}

func TestSignInClearsCeremonyState(t *testing.T) {
	st := New()
	require.True(t, st.CaptureReturnTo("/shares/abc"))
	require.NoError(t, st.AcceptRegisterable(testSource(t)))
	require.NoError(t, st.BeginRegistering(testUser(t), challenge()))
	require.NoError(t, st.BeginAuthenticating(Authenticating{UserVerification: protocol.VerificationPreferred, Challenge: challenge()}))

	returnTo := st.SignIn(testCredential(), time.Now())
	assert.Equal(t, "/shares/abc", returnTo)

	_, ok := st.Registering()
	assert.False(t, ok)
	_, ok = st.Authenticating()
	assert.False(t, ok)
	_, ok = st.Registerable()
	assert.False(t, ok)
	assert.Empty(t, st.ReturnTo())

	auth, ok := st.Authenticated()
	require.True(t, ok)
	assert.Equal(t, "u1", auth.UserID())

	got := roundTrip(t, newStore(t), st)
	auth, ok = got.Authenticated()
	require.True(t, ok)
	assert.Equal(t, testCredential(), auth.Credential)
	assert.Empty(t, got.ReturnTo())
}

func TestSignInDefaultReturnTo(t *testing.T) {
	assert.Equal(t, DefaultReturnTo, New().SignIn(testCredential(), time.Now()))
}

func TestTransitionsWhileSignedIn(t *testing.T) {
	st := New()
	st.SignIn(testCredential(), time.Now())

	assert.ErrorIs(t, st.AcceptRegisterable(testSource(t)), ErrAlreadyAuthenticated)
	assert.ErrorIs(t, st.BeginRegistering(testUser(t), challenge()), ErrAlreadyAuthenticated)
	assert.ErrorIs(t, st.BeginAuthenticating(Authenticating{}), ErrAlreadyAuthenticated)
	assert.False(t, st.CaptureReturnTo("/shares/x"))

	require.NoError(t, st.SetPendingRegistration(challenge()))
	got := roundTrip(t, newStore(t), st)
	sd, ok := got.TakePendingRegistration()
	require.True(t, ok)
	assert.Equal(t, challenge().Challenge, sd.Challenge)
	_, ok = got.TakePendingRegistration()
	assert.False(t, ok)
}

func TestTransitionsWhileAnonymous(t *testing.T) {
	st := New()
	assert.ErrorIs(t, st.BeginRegistering(testUser(t), challenge()), ErrNoRegisterable)
	assert.ErrorIs(t, st.SetPendingRegistration(challenge()), ErrNotAuthenticated)
	assert.ErrorIs(t, st.AcceptRegisterable(nil), ErrNoRegisterable)

	require.NoError(t, st.AcceptRegisterable(testSource(t)))
	src, ok := st.TakeRegisterable()
	require.True(t, ok)
	assert.Equal(t, "inv-1", src.ID)
	_, ok = st.TakeRegisterable()
	assert.False(t, ok)

	require.NoError(t, st.BeginAuthenticating(Authenticating{Challenge: challenge()}))
	_, ok = st.TakeAuthenticating()
	assert.True(t, ok)
	_, ok = st.TakeAuthenticating()
	assert.False(t, ok)
}

func TestSignOutDiscardsSession(t *testing.T) {
	s := newStore(t)
	rec := httptest.NewRecorder()
	s.Destroy(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)

	rec = httptest.NewRecorder()
	require.NoError(t, s.Save(rec, New()))
	assert.Less(t, rec.Result().Cookies()[0].MaxAge, 0, "saving an empty session clears the cookie")
}

func TestCookieAttributes(t *testing.T) {
	s, err := NewCookieStore(Config{Secret: testSecret, Secure: true, Lifetime: time.Hour})
	require.NoError(t, err)

	st := New()
	st.SignIn(testCredential(), time.Now())
	rec := httptest.NewRecorder()
	require.NoError(t, s.Save(rec, st))

	c := rec.Result().Cookies()[0]
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestDecodeRejectsTampering(t *testing.T) {
	s := newStore(t)
	st := New()
	st.SignIn(testCredential(), time.Now())
	token, err := s.Encode(st)
	require.NoError(t, err)

	other, err := NewCookieStore(Config{Secret: strings.Repeat("x", 32)})
	require.NoError(t, err)
	_, err = other.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidState)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = s.Decode(parts[0] + "." + parts[1] + "x." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidState)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "garbage"})
	loaded, err := s.Load(req)
	assert.Error(t, err)
	assert.True(t, loaded.IsEmpty())
}

func TestDecodeRejectsExpired(t *testing.T) {
	s := newStore(t)
	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	st := New()
	st.CaptureReturnTo("/")
	token, err := s.Encode(st)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeRejectsMixedState(t *testing.T) {
	_, err := decode(wireState{
		Registerable:  []byte(`{"kind":"invite","id":"x","created":"2025-06-01T12:00:00Z"}`),
		Authenticated: []byte(`{"credential":{"credentialId":"CRED1","userId":"u1"},"signedInAt":"2025-06-01T12:00:00Z"}`),
	})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = decode(wireState{Registerable: []byte(`{"kind":"bogus","id":"x"}`)})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = decode(wireState{Registering: []byte(`{"challenge":{}}`)})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecodeRestoresUTC(t *testing.T) {
	st, err := decode(wireState{
		Authenticating: []byte(`{"user":{"id":"u1","username":"bob","created":"2025-06-01T14:00:00+02:00"},"challenge":{"expires":"2025-06-01T14:05:00+02:00"}}`),
	})
	require.NoError(t, err)
	a, ok := st.Authenticating()
	require.True(t, ok)
	assert.Equal(t, time.UTC, a.User.Created.Location())
	assert.Equal(t, 12, a.User.Created.Hour())
	assert.Equal(t, time.UTC, a.Challenge.Expires.Location())
}

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/shares/abc", true},
		{"", false},
		{"shares/abc", false},
		{"//evil.example", false},
		{"/\\evil.example", false},
		{"https://evil.example", false},
		{"/a\r\nSet-Cookie: x", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocalPath(tt.path))
		})
	}
}

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

// Package session holds the per-browser ceremony state: an accepted invite
// or share, an outstanding registration or authentication challenge, and
// the signed-in credential. State changes only through the transition
// methods on State, and is carried between requests in a signed cookie.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// DefaultReturnTo is where a completed sign-in lands without a captured path.
const DefaultReturnTo = "/"

var (
	// ErrAlreadyAuthenticated is returned by transitions that need an anonymous session.
	ErrAlreadyAuthenticated = errors.New("session: already signed in")

	// ErrNotAuthenticated is returned by transitions that need a signed-in session.
	ErrNotAuthenticated = errors.New("session: not signed in")

	// ErrNoRegisterable is returned when registering without an accepted invite or share.
	ErrNoRegisterable = errors.New("session: no accepted invite or share")

	// ErrInvalidState is returned when stored state cannot be decoded.
	ErrInvalidState = errors.New("session: invalid state")
)

// Registering is an in-progress new-account registration.
type Registering struct {
	User      *identity.User       `json:"user"`
	Challenge webauthn.SessionData `json:"challenge"`
}

// Authenticating is an in-progress sign-in. User is set when the visitor
// named an account up front.
type Authenticating struct {
	User             *identity.User                       `json:"user,omitempty"`
	UserVerification protocol.UserVerificationRequirement `json:"userVerification"`
	Challenge        webauthn.SessionData                 `json:"challenge"`
}

// Authenticated identifies the signed-in user through the credential used.
// PendingRegistration holds the challenge of a signed-in user adding
// another passkey.
type Authenticated struct {
	Credential          identity.RegisteredAuthenticator `json:"credential"`
	SignedInAt          time.Time                        `json:"signedInAt"`
	PendingRegistration *webauthn.SessionData            `json:"pendingRegistration,omitempty"`
}

// UserID returns the signed-in user's id.
func (a Authenticated) UserID() string {
	return a.Credential.UserID
}

// State is the session of one browser. The zero value is the empty session.
// Authenticated never coexists with any other kind.
type State struct {
	registerable   *claimable.Source
	registering    *Registering
	authenticating *Authenticating
	authenticated  *Authenticated
	returnTo       string
}

// New returns an empty session.
func New() *State {
	return &State{}
}

// IsEmpty reports whether nothing is stored.
func (s *State) IsEmpty() bool {
	return s.registerable == nil && s.registering == nil && s.authenticating == nil &&
		s.authenticated == nil && s.returnTo == ""
}

// Registerable returns the accepted invite or share.
func (s *State) Registerable() (*claimable.Source, bool) {
	return s.registerable, s.registerable != nil
}

// Registering returns the outstanding registration.
func (s *State) Registering() (Registering, bool) {
	if s.registering == nil {
		return Registering{}, false
	}
	return *s.registering, true
}

// Authenticating returns the outstanding sign-in.
func (s *State) Authenticating() (Authenticating, bool) {
	if s.authenticating == nil {
		return Authenticating{}, false
	}
	return *s.authenticating, true
}

// Authenticated returns the signed-in credential.
func (s *State) Authenticated() (Authenticated, bool) {
	if s.authenticated == nil {
		return Authenticated{}, false
	}
	return *s.authenticated, true
}

// IsAuthenticated reports whether a user is signed in.
func (s *State) IsAuthenticated() bool {
	return s.authenticated != nil
}

// ReturnTo returns the captured pre-sign-in path, if any.
func (s *State) ReturnTo() string {
	return s.returnTo
}

// AcceptRegisterable records the invite or share that lets an anonymous
// visitor register. Any registration already underway is discarded.
func (s *State) AcceptRegisterable(src *claimable.Source) error {
	if s.authenticated != nil {
		return ErrAlreadyAuthenticated
	}
	if src == nil {
		return ErrNoRegisterable
	}
	s.registerable = src
	s.registering = nil
	return nil
}

// TakeRegisterable removes and returns the accepted invite or share.
func (s *State) TakeRegisterable() (*claimable.Source, bool) {
	src := s.registerable
	s.registerable = nil
	return src, src != nil
}

// BeginRegistering records a new-account challenge. It requires an
// accepted invite or share.
func (s *State) BeginRegistering(user *identity.User, challenge webauthn.SessionData) error {
	if s.authenticated != nil {
		return ErrAlreadyAuthenticated
	}
	if s.registerable == nil {
		return ErrNoRegisterable
	}
	s.registering = &Registering{User: user, Challenge: challenge}
	return nil
}

// TakeRegistering removes and returns the outstanding registration.
// Challenges are single use.
func (s *State) TakeRegistering() (Registering, bool) {
	r, ok := s.Registering()
	s.registering = nil
	return r, ok
}

// BeginAuthenticating records a sign-in challenge, replacing any earlier one.
func (s *State) BeginAuthenticating(a Authenticating) error {
	if s.authenticated != nil {
		return ErrAlreadyAuthenticated
	}
	s.authenticating = &a
	return nil
}

// TakeAuthenticating removes and returns the outstanding sign-in.
func (s *State) TakeAuthenticating() (Authenticating, bool) {
	a, ok := s.Authenticating()
	s.authenticating = nil
	return a, ok
}

// SignIn makes cred the signed-in credential. Every other state and the
// captured return path are cleared; the path is returned, defaulting to
// DefaultReturnTo.
func (s *State) SignIn(cred identity.RegisteredAuthenticator, at time.Time) string {
	returnTo := s.returnTo
	if returnTo == "" {
		returnTo = DefaultReturnTo
	}
	*s = State{authenticated: &Authenticated{Credential: cred, SignedInAt: at.UTC()}}
	return returnTo
}

// SetPendingRegistration stores the challenge for a signed-in user adding
// a passkey.
func (s *State) SetPendingRegistration(challenge webauthn.SessionData) error {
	if s.authenticated == nil {
		return ErrNotAuthenticated
	}
	s.authenticated.PendingRegistration = &challenge
	return nil
}

// TakePendingRegistration removes and returns the add-passkey challenge.
func (s *State) TakePendingRegistration() (webauthn.SessionData, bool) {
	if s.authenticated == nil || s.authenticated.PendingRegistration == nil {
		return webauthn.SessionData{}, false
	}
	sd := *s.authenticated.PendingRegistration
	s.authenticated.PendingRegistration = nil
	return sd, true
}

// CaptureReturnTo remembers where to send an anonymous visitor after
// sign-in. Only same-origin absolute paths are kept. It reports whether
// the path was stored.
func (s *State) CaptureReturnTo(path string) bool {
	if s.authenticated != nil || !IsLocalPath(path) {
		return false
	}
	s.returnTo = path
	return true
}

// IsLocalPath reports whether path is a rooted path on this origin.
func IsLocalPath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	return !strings.ContainsAny(path, "\r\n")
}

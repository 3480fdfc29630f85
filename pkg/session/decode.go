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
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// wireState is the serialized session. Each kind stays raw until its own
// decode step restores the typed values.
type wireState struct {
	Registerable   json.RawMessage `json:"registerable,omitempty"`
	Registering    json.RawMessage `json:"registering,omitempty"`
	Authenticating json.RawMessage `json:"authenticating,omitempty"`
	Authenticated  json.RawMessage `json:"authenticated,omitempty"`
	ReturnTo       string          `json:"returnTo,omitempty"`
}

func (s *State) encode() (wireState, error) {
	var (
		w   = wireState{ReturnTo: s.returnTo}
		err error
	)
	if s.registerable != nil {
		if w.Registerable, err = json.Marshal(s.registerable); err != nil {
			return wireState{}, fmt.Errorf("encode registerable: %w", err)
		}
	}
	if s.registering != nil {
		if w.Registering, err = json.Marshal(s.registering); err != nil {
			return wireState{}, fmt.Errorf("encode registering: %w", err)
		}
	}
	if s.authenticating != nil {
		if w.Authenticating, err = json.Marshal(s.authenticating); err != nil {
			return wireState{}, fmt.Errorf("encode authenticating: %w", err)
		}
	}
	if s.authenticated != nil {
		if w.Authenticated, err = json.Marshal(s.authenticated); err != nil {
			return wireState{}, fmt.Errorf("encode authenticated: %w", err)
		}
	}
	return w, nil
}

func decode(w wireState) (*State, error) {
	s := &State{}
	var err error
	if len(w.Registerable) > 0 {
		if s.registerable, err = decodeRegisterable(w.Registerable); err != nil {
			return nil, err
		}
	}
	if len(w.Registering) > 0 {
		if s.registering, err = decodeRegistering(w.Registering); err != nil {
			return nil, err
		}
	}
	if len(w.Authenticating) > 0 {
		if s.authenticating, err = decodeAuthenticating(w.Authenticating); err != nil {
			return nil, err
		}
	}
	if len(w.Authenticated) > 0 {
		if s.authenticated, err = decodeAuthenticated(w.Authenticated); err != nil {
			return nil, err
		}
		if s.registerable != nil || s.registering != nil || s.authenticating != nil {
			return nil, fmt.Errorf("%w: signed-in session carries ceremony state", ErrInvalidState)
		}
	}
	if w.ReturnTo != "" && IsLocalPath(w.ReturnTo) && s.authenticated == nil {
		s.returnTo = w.ReturnTo
	}
	return s, nil
}

func decodeRegisterable(raw json.RawMessage) (*claimable.Source, error) {
	var src claimable.Source
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("%w: registerable: %v", ErrInvalidState, err)
	}
	if !src.Kind.Valid() || src.ID == "" {
		return nil, fmt.Errorf("%w: registerable without kind or id", ErrInvalidState)
	}
	src.Created = src.Created.UTC()
	if src.Claimed != nil {
		claimed := src.Claimed.UTC()
		src.Claimed = &claimed
	}
	if err := fixUser(src.CreatedBy, true); err != nil {
		return nil, err
	}
	if err := fixUser(src.ClaimedBy, true); err != nil {
		return nil, err
	}
	if (src.Claimed == nil) != (src.ClaimedBy == nil) {
		return nil, fmt.Errorf("%w: registerable claim fields disagree", ErrInvalidState)
	}
	return &src, nil
}

func decodeRegistering(raw json.RawMessage) (*Registering, error) {
	var r Registering
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: registering: %v", ErrInvalidState, err)
	}
	if err := fixUser(r.User, false); err != nil {
		return nil, err
	}
	fixChallenge(&r.Challenge)
	return &r, nil
}

func decodeAuthenticating(raw json.RawMessage) (*Authenticating, error) {
	var a Authenticating
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: authenticating: %v", ErrInvalidState, err)
	}
	if err := fixUser(a.User, true); err != nil {
		return nil, err
	}
	fixChallenge(&a.Challenge)
	return &a, nil
}

func decodeAuthenticated(raw json.RawMessage) (*Authenticated, error) {
	var a Authenticated
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: authenticated: %v", ErrInvalidState, err)
	}
	if a.Credential.UserID == "" || a.Credential.CredentialID == "" {
		return nil, fmt.Errorf("%w: authenticated without credential", ErrInvalidState)
	}
	a.SignedInAt = a.SignedInAt.UTC()
	a.Credential.Created = a.Credential.Created.UTC()
	if a.PendingRegistration != nil {
		fixChallenge(a.PendingRegistration)
	}
	return &a, nil
}

// fixUser validates a nested user and restores its timestamp to UTC.
func fixUser(u *identity.User, optional bool) error {
	if u == nil {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: missing user", ErrInvalidState)
	}
	if u.ID == "" || u.Username == "" {
		return fmt.Errorf("%w: user without id or username", ErrInvalidState)
	}
	u.Created = u.Created.UTC()
	return nil
}

func fixChallenge(sd *webauthn.SessionData) {
	sd.Expires = sd.Expires.UTC()
}

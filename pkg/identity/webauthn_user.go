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
	"github.com/go-webauthn/webauthn/webauthn"
)

// WebAuthnUser adapts a User and its credentials to webauthn.User.
type WebAuthnUser struct {
	user  *User
	creds []*RegisteredAuthenticator
}

var _ webauthn.User = (*WebAuthnUser)(nil)

// NewWebAuthnUser wraps user with the credentials the ceremony should know about.
func NewWebAuthnUser(user *User, creds []*RegisteredAuthenticator) *WebAuthnUser {
	return &WebAuthnUser{user: user, creds: creds}
}

// WebAuthnID returns the user handle, which is the user id.
func (u *WebAuthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

// WebAuthnName returns the username.
func (u *WebAuthnUser) WebAuthnName() string {
	return u.user.Username
}

// WebAuthnDisplayName returns the display name, falling back to the username.
func (u *WebAuthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName == "" {
		return u.user.Username
	}
	return u.user.DisplayName
}

// WebAuthnCredentials returns the credentials in binary form. Stored
// credentials whose id or key do not decode are left out.
func (u *WebAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		cred, err := c.Credential()
		if err != nil {
			continue
		}
		out = append(out, cred)
	}
	return out
}

// User returns the wrapped user.
func (u *WebAuthnUser) User() *User {
	return u.user
}

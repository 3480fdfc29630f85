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

package webauthn

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// Provider builds challenges and verifies authenticator responses.
// *webauthn.WebAuthn satisfies it; tests substitute a stub.
type Provider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// Parser decodes the JSON a browser posts after a ceremony.
type Parser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Identities is the user and credential store the ceremonies read and
// write. *identity.Resolver satisfies it.
type Identities interface {
	GetUser(ctx context.Context, id string) (*identity.User, error)
	GetUserByUsername(ctx context.Context, username string) (*identity.User, error)
	GetAuthenticator(ctx context.Context, credentialID string) (*identity.RegisteredAuthenticator, error)
	ListAuthenticators(ctx context.Context, userID string) ([]*identity.RegisteredAuthenticator, error)
	AddUser(ctx context.Context, user *identity.User, auth *identity.Authenticator) (*identity.RegisteredAuthenticator, error)
	AddAuthenticator(ctx context.Context, userID string, auth *identity.Authenticator) (*identity.RegisteredAuthenticator, error)
	UpdateCounter(ctx context.Context, credentialID string, counter uint32) error
	DeleteUser(ctx context.Context, id string) error
}

// Claimer reloads and claims the invite or share a registration runs
// under. *claimable.Authorizer satisfies it.
type Claimer interface {
	Get(ctx context.Context, kind claimable.Kind, id string) (*claimable.Source, error)
	Claim(ctx context.Context, kind claimable.Kind, id string, by *identity.User) (*claimable.Source, error)
}

var (
	_ Provider   = (*webauthn.WebAuthn)(nil)
	_ Identities = (*identity.Resolver)(nil)
	_ Claimer    = (*claimable.Authorizer)(nil)
)

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

// Package webauthn runs the passkey ceremonies of the service on top of
// the go-webauthn/webauthn library.
//
// Each ceremony has two steps. The options step builds a challenge and
// records it in the caller's session.State; the result step consumes the
// challenge and verifies the browser's response against it:
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:          "share.example.com",
//	        RPDisplayName: "Passkey Share",
//	        RPOrigins:     []string{"https://share.example.com"},
//	    },
//	    Identities: identity.NewResolver(kv, kv),
//	    Claims:     claimable.NewAuthorizer(kv, resolver),
//	})
//
//	options, err := svc.AuthenticationOptions(ctx, state, "bob", "")
//	// ... browser signs the challenge ...
//	result, err := svc.AuthenticationResult(ctx, state, body)
//
// Registration creates a new account only when the session holds an
// accepted invite or share, which is claimed for the new user. A
// signed-in user registering again adds a passkey to their account.
//
// Failed sign-ins all return the same user error. The reason is logged and
// counted in metrics but never sent to the client.
//
// The http subpackage serves the four ceremony endpoints under /fido2.
package webauthn

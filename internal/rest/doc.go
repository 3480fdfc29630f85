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

// Package rest is the HTTP front of passkeyshare.
//
// It mounts the WebAuthn ceremony endpoints from pkg/webauthn/http and
// adds the claim pages for invites and shares, the JSON admin and account
// APIs, health checks and Prometheus metrics.
//
// # Routes
//
//	POST   /fido2/attestation/options     begin registration
//	POST   /fido2/attestation/result      finish registration
//	POST   /fido2/assertion/options       begin sign-in
//	POST   /fido2/assertion/result        finish sign-in
//	GET    /invites/{id}, /shares/{id}    view or claim gate (HTML)
//	POST   /invites/{id}, /shares/{id}    accept (redirect)
//	GET    /shares/{id}/download          stream a shared file
//	POST   /signout                       discard the session
//	GET    /account                       signed-in user
//	GET    /account/credentials           list passkeys
//	DELETE /account/credentials/{id}      delete a passkey
//	PUT    /account/display-name          rename
//	GET    /admin/invites, /admin/shares  list (admin)
//	POST   /admin/invites, /admin/shares  issue (admin)
//	GET    /health/{live,ready,startup}   health checks
//
// # Server Setup
//
//	srv, err := rest.NewServer(&rest.Config{
//	    Addr:       ":8080",
//	    Ceremonies: webauthnhttp.NewHandler(svc, cookies),
//	    Sessions:   cookies,
//	    Identities: resolver,
//	    Claims:     authorizer,
//	    Files:      provider,
//	})
//	go srv.Start()
//	defer srv.Stop(ctx)
//
// The form POST routes accept an injected CSRF middleware. Requests it
// rejects never reach the handlers.
package rest

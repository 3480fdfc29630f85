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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns the ceremony endpoints relative to the site root.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodPost, Path: "/fido2/attestation/options", Handler: h.AttestationOptions},
		{Method: http.MethodPost, Path: "/fido2/attestation/result", Handler: h.AttestationResult},
		{Method: http.MethodPost, Path: "/fido2/assertion/options", Handler: h.AssertionOptions},
		{Method: http.MethodPost, Path: "/fido2/assertion/result", Handler: h.AssertionResult},
	}
}

// MountChi mounts the ceremony routes on a chi router.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, cookies)
//	r.Group(func(r chi.Router) {
//	    r.Use(ratelimit.Middleware(limiter, nil))
//	    webauthnhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Path, route.Handler)
	}
}

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

package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
)

// AccountHandler handles GET /account
func (s *Server) AccountHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, newUserResponse(currentUser(r.Context())), http.StatusOK)
}

// ListCredentialsHandler handles GET /account/credentials
func (s *Server) ListCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(ctx)

	auths, err := s.identities.ListAuthenticators(ctx, user.ID)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	var signedInWith string
	if st := currentState(ctx); st != nil {
		if a, ok := st.Authenticated(); ok {
			signedInWith = a.Credential.CredentialID
		}
	}

	resp := ListCredentialsResponse{Credentials: make([]CredentialInfo, 0, len(auths))}
	for _, a := range auths {
		resp.Credentials = append(resp.Credentials, CredentialInfo{
			ID:         a.CredentialID,
			Created:    a.Created,
			AAGUID:     a.AAGUID,
			DeviceType: a.DeviceType,
			BackedUp:   a.BackedUp,
			Transports: a.Transports,
			Current:    a.CredentialID == signedInWith,
		})
	}
	writeJSON(w, resp, http.StatusOK)
}

// DeleteCredentialHandler handles DELETE /account/credentials/{id}
//
// A user's last passkey cannot be deleted.
func (s *Server) DeleteCredentialHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(ctx)
	id := chi.URLParam(r, "id")

	if err := s.identities.DeleteAuthenticator(ctx, user.ID, id); err != nil {
		s.writeAPIError(w, r, classifyIdentity(err))
		return
	}
	s.record(r, user, &audit.AuditEvent{EventType: audit.EventPasskeyDelete, Resource: "/account/credentials/" + id})
	s.logger.InfoContext(ctx, "passkey deleted",
		logger.String("user_id", user.ID),
		logger.String("credential_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateDisplayNameHandler handles PUT /account/display-name
//
// Request body:
//
//	{"displayName": "Robert"}
func (s *Server) UpdateDisplayNameHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpdateDisplayNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	updated, err := s.identities.UpdateDisplayName(ctx, currentUser(ctx).ID, req.DisplayName)
	if err != nil {
		s.writeAPIError(w, r, classifyIdentity(err))
		return
	}
	s.record(r, updated, &audit.AuditEvent{EventType: audit.EventDisplayNameChange})
	writeJSON(w, newUserResponse(updated), http.StatusOK)
}

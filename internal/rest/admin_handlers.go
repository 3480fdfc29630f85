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
	"errors"
	"net/http"
	"strconv"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
)

// CreateInviteHandler handles POST /admin/invites
//
// Request body:
//
//	{"isAdmin": false}
//
// Response: 201 with the ClaimableResponse.
func (s *Server) CreateInviteHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	src, err := s.claims.CreateInvite(r.Context(), currentUser(r.Context()), req.IsAdmin)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	s.record(r, currentUser(r.Context()), &audit.AuditEvent{
		EventType: audit.EventInviteCreate,
		Resource:  src.Path(),
		Metadata:  map[string]string{"isAdmin": strconv.FormatBool(src.IsAdmin)},
	})
	writeJSON(w, newClaimableResponse(src), http.StatusCreated)
}

// CreateShareHandler handles POST /admin/shares
//
// Request body:
//
//	{
//	    "fileRef": "reports/q3.pdf",
//	    "toUsername": "bob",
//	    "expiresAfter": "2d"
//	}
//
// The file must exist. Its title, type and sibling formats are cached on
// the share.
func (s *Server) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		s.writeAPIError(w, r, httperr.New(http.StatusNotImplemented, "No file provider configured"))
		return
	}

	var req CreateShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	expiry, err := claimable.ParseExpiry(req.ExpiresAfter)
	if err != nil {
		s.writeAPIError(w, r, httperr.Wrap(http.StatusBadRequest, "Invalid expiry", err).WithContext(err.Error()))
		return
	}

	info, err := s.files.Stat(r.Context(), req.FileRef)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			err = httperr.Wrap(http.StatusBadRequest, "File not found", err)
		} else {
			err = classifyFiles(err)
		}
		s.writeAPIError(w, r, err)
		return
	}

	src, err := s.claims.CreateShare(r.Context(), currentUser(r.Context()), claimable.ShareDetails{
		FileRef:          info.Ref,
		FileTitle:        info.Title,
		FileType:         info.ContentType,
		AvailableFormats: info.Formats,
		ToUsername:       req.ToUsername,
		ExpiresAfter:     expiry,
	})
	if err != nil {
		if errors.Is(err, claimable.ErrInvalidShare) {
			err = httperr.Wrap(http.StatusBadRequest, "Invalid share", err).WithContext(err.Error())
		}
		s.writeAPIError(w, r, err)
		return
	}
	s.record(r, currentUser(r.Context()), &audit.AuditEvent{
		EventType: audit.EventShareCreate,
		Resource:  src.Path(),
		Metadata:  map[string]string{"ref": info.Ref, "to": req.ToUsername},
	})
	writeJSON(w, newClaimableResponse(src), http.StatusCreated)
}

// ListInvitesHandler handles GET /admin/invites
func (s *Server) ListInvitesHandler(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, claimable.KindInvite)
}

// ListSharesHandler handles GET /admin/shares
func (s *Server) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, claimable.KindShare)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, kind claimable.Kind) {
	srcs, err := s.claims.List(r.Context(), kind)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	resp := ListClaimablesResponse{Items: make([]ClaimableResponse, 0, len(srcs))}
	for _, src := range srcs {
		resp.Items = append(resp.Items, newClaimableResponse(src))
	}
	writeJSON(w, resp, http.StatusOK)
}

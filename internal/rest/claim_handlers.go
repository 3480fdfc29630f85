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
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
)

type acceptPage struct {
	Source    *claimable.Source
	Noun      string
	IsCreator bool
}

type sharePage struct {
	Source    *claimable.Source
	HasExpiry bool
	ExpiresAt time.Time
}

// ViewHandler handles GET /invites/{id} and GET /shares/{id}.
//
// The claimant and the creator of a share see its details. Anyone else
// allowed past the gate sees the accept form. Anonymous visitors to a
// share have the path captured so that signing in brings them back.
func (s *Server) ViewHandler(kind claimable.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		v, err := s.visitor(w, r)
		if err != nil {
			s.renderError(w, r, nil, err)
			return
		}

		if v.user == nil && kind == claimable.KindShare && v.state.CaptureReturnTo(r.URL.Path) {
			if err := s.sessions.Save(w, v.state); err != nil {
				s.renderError(w, r, nil, httperr.Internal(fmt.Errorf("save session: %w", err)))
				return
			}
		}

		src, err := s.claims.Ensure(ctx, kind, chi.URLParam(r, "id"), v.user)
		if err != nil {
			s.renderError(w, r, v.user, err)
			return
		}

		owner := src.ClaimedBy.Is(v.user) || src.IsCreator(v.user)
		switch {
		case kind == claimable.KindInvite && src.ClaimedBy.Is(v.user):
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case kind == claimable.KindShare && owner:
			data := sharePage{Source: src}
			data.ExpiresAt, data.HasExpiry = src.ExpiresAt()
			s.render(w, r, http.StatusOK, "share", src.Share.FileTitle, v.user, data)
		default:
			data := acceptPage{Source: src, Noun: claimable.Noun(kind), IsCreator: src.IsCreator(v.user)}
			s.render(w, r, http.StatusOK, "accept", "Accept "+data.Noun, v.user, data)
		}
	}
}

// AcceptHandler handles POST /invites/{id} and POST /shares/{id}.
//
// A signed-in visitor claims the source directly. An anonymous visitor
// carries it in the session to the registration page, where the new
// account claims it.
func (s *Server) AcceptHandler(kind claimable.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")
		v, err := s.visitor(w, r)
		if err != nil {
			s.renderError(w, r, nil, err)
			return
		}

		src, err := s.claims.Ensure(ctx, kind, id, v.user)
		if err != nil {
			s.renderError(w, r, v.user, err)
			return
		}

		switch {
		case src.IsClaimed():
			http.Redirect(w, r, acceptedPath(src), http.StatusSeeOther)

		case v.user != nil:
			if src.IsCreator(v.user) {
				s.renderError(w, r, v.user, httperr.BadRequest(fmt.Sprintf("You cannot accept your own %s", claimable.Noun(kind))))
				return
			}
			claimed, err := s.claims.Claim(ctx, kind, id, v.user)
			if err != nil {
				s.record(r, v.user, &audit.AuditEvent{EventType: claimEvent(kind), Outcome: audit.OutcomeFailure, Resource: src.Path()})
				s.renderError(w, r, v.user, err)
				return
			}
			s.record(r, v.user, &audit.AuditEvent{EventType: claimEvent(kind), Resource: claimed.Path()})
			http.Redirect(w, r, acceptedPath(claimed), http.StatusSeeOther)

		default:
			if err := v.state.AcceptRegisterable(src); err != nil {
				s.renderError(w, r, nil, httperr.Internal(err))
				return
			}
			if err := s.sessions.Save(w, v.state); err != nil {
				s.renderError(w, r, nil, httperr.Internal(fmt.Errorf("save session: %w", err)))
				return
			}
			s.logger.InfoContext(ctx, "accepted for registration",
				logger.String("kind", string(kind)),
				logger.String("id", id))
			http.Redirect(w, r, s.paths.Register, http.StatusSeeOther)
		}
	}
}

// acceptedPath is where a visitor lands after claiming src.
func acceptedPath(src *claimable.Source) string {
	if src.Kind == claimable.KindShare {
		return src.Path()
	}
	return "/"
}

// DownloadHandler handles GET /shares/{id}/download?format=pdf
//
// Only the claimant and the creator may download. Everyone else gets the
// same 404 as for an unknown share.
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := s.visitor(w, r)
	if err != nil {
		s.renderError(w, r, nil, err)
		return
	}

	notFound := httperr.NotFound("Share not found")
	if s.files == nil || v.user == nil {
		s.renderError(w, r, v.user, notFound)
		return
	}

	src, err := s.claims.Ensure(ctx, claimable.KindShare, chi.URLParam(r, "id"), v.user)
	if err != nil {
		s.renderError(w, r, v.user, err)
		return
	}
	if !src.ClaimedBy.Is(v.user) && !src.IsCreator(v.user) {
		s.record(r, v.user, &audit.AuditEvent{EventType: audit.EventShareDownload, Outcome: audit.OutcomeDenied, Resource: src.Path()})
		s.renderError(w, r, v.user, notFound)
		return
	}

	rc, info, err := s.files.Open(ctx, src.Share.FileRef, r.URL.Query().Get("format"))
	metrics.RecordDownload(s.filesSource, err == nil)
	if err != nil {
		s.renderError(w, r, v.user, classifyFiles(err))
		return
	}
	defer func() { _ = rc.Close() }()

	h := w.Header()
	h.Set("Content-Type", info.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(info.Ref)}))
	h.Set("Cache-Control", "private, no-store")
	if info.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WarnContext(ctx, "download interrupted",
			logger.String("share_id", src.ID),
			logger.String("ref", info.Ref),
			logger.Error(err))
		return
	}
	s.record(r, v.user, &audit.AuditEvent{
		EventType: audit.EventShareDownload,
		Resource:  src.Path(),
		Metadata:  map[string]string{"ref": info.Ref},
	})
	s.logger.InfoContext(ctx, "share downloaded",
		logger.String("share_id", src.ID),
		logger.String("ref", info.Ref),
		logger.String("user_id", userID(v.user)))
}

func userID(u *identity.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

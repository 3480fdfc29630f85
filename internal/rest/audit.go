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
	"net"
	"net/http"
	"strconv"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// record sends an event to the audit adapter. Failures are logged and
// never fail the request.
func (s *Server) record(r *http.Request, u *identity.User, e *audit.AuditEvent) {
	if u != nil {
		e.UserID = u.ID
		e.Username = u.Username
	}
	if e.Outcome == "" {
		e.Outcome = audit.OutcomeSuccess
	}
	e.SourceIP = s.clientIP(r)
	if err := s.audit.LogEvent(r.Context(), e); err != nil {
		s.logger.WarnContext(r.Context(), "audit event dropped",
			logger.String("type", string(e.EventType)),
			logger.Error(err))
	}
}

func (s *Server) clientIP(r *http.Request) string {
	if s.limiter != nil {
		return s.limiter.ClientIP(r)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func claimEvent(kind claimable.Kind) audit.EventType {
	if kind == claimable.KindShare {
		return audit.EventShareClaim
	}
	return audit.EventInviteClaim
}

// AuditEventsHandler handles GET /admin/audit
//
// Query parameters: type (repeatable), user (user id), resource, limit.
func (s *Server) AuditEventsHandler(w http.ResponseWriter, r *http.Request) {
	q, ok := s.audit.(audit.Querier)
	if !ok {
		s.writeAPIError(w, r, httperr.New(http.StatusNotImplemented, "Audit log is not queryable"))
		return
	}

	params := r.URL.Query()
	query := &audit.EventQuery{
		UserID:   params.Get("user"),
		Resource: params.Get("resource"),
		Limit:    defaultAuditLimit,
	}
	for _, t := range params["type"] {
		query.EventTypes = append(query.EventTypes, audit.EventType(t))
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAuditLimit {
			s.writeAPIError(w, r, httperr.BadRequest("limit must be between 1 and "+strconv.Itoa(maxAuditLimit)))
			return
		}
		query.Limit = n
	}

	events, err := q.GetEvents(r.Context(), query)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	if events == nil {
		events = []*audit.AuditEvent{}
	}
	writeJSON(w, AuditEventsResponse{Events: events}, http.StatusOK)
}

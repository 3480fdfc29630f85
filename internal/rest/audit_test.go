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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
)

func withMemoryAudit(a *audit.MemoryAuditAdapter) fixtureOption {
	return func(cfg *Config) { cfg.Audit = a }
}

func TestAuditTrail(t *testing.T) {
	log := audit.NewMemoryAuditAdapter(50)
	f := newFixture(t, withMemoryAudit(log))
	admin, alice := f.signedIn(t, "alice", true)
	bob, bobUser := f.signedIn(t, "bob", false)

	rec := admin.do(http.MethodPost, "/admin/shares", `{"fileRef":"reports/q3.pdf","toUsername":"bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	share := decodeBody[ClaimableResponse](t, rec)

	rec = bob.do(http.MethodPost, share.Path, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = bob.do(http.MethodGet, share.Path+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = bob.do(http.MethodGet, "/admin/audit", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = admin.do(http.MethodGet, "/admin/audit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	events := decodeBody[AuditEventsResponse](t, rec).Events
	require.Len(t, events, 4)

	assert.Equal(t, audit.EventAccessDenied, events[0].EventType)
	assert.Equal(t, audit.OutcomeDenied, events[0].Outcome)
	assert.Equal(t, "/admin/audit", events[0].Resource)

	assert.Equal(t, audit.EventShareDownload, events[1].EventType)
	assert.Equal(t, bobUser.ID, events[1].UserID)
	assert.Equal(t, "reports/q3.pdf", events[1].Metadata["ref"])

	assert.Equal(t, audit.EventShareClaim, events[2].EventType)
	assert.Equal(t, share.Path, events[2].Resource)
	assert.Equal(t, "bob", events[2].Username)

	assert.Equal(t, audit.EventShareCreate, events[3].EventType)
	assert.Equal(t, alice.ID, events[3].UserID)
	assert.Equal(t, audit.OutcomeSuccess, events[3].Outcome)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.SourceIP)
		assert.False(t, e.Timestamp.IsZero())
	}

	rec = admin.do(http.MethodGet, "/admin/audit?type=share.claim&type=share.create", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[AuditEventsResponse](t, rec).Events, 2)

	rec = admin.do(http.MethodGet, "/admin/audit?user="+bobUser.ID+"&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events = decodeBody[AuditEventsResponse](t, rec).Events
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventAccessDenied, events[0].EventType)
}

func TestAuditLimitValidation(t *testing.T) {
	f := newFixture(t, withMemoryAudit(audit.NewMemoryAuditAdapter(10)))
	admin, _ := f.signedIn(t, "alice", true)

	for _, limit := range []string{"0", "-1", "abc", "1001"} {
		rec := admin.do(http.MethodGet, "/admin/audit?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestAuditNotQueryable(t *testing.T) {
	f := newFixture(t)
	admin, _ := f.signedIn(t, "alice", true)

	rec := admin.do(http.MethodGet, "/admin/audit", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAuditAccountEvents(t *testing.T) {
	log := audit.NewMemoryAuditAdapter(10)
	f := newFixture(t, withMemoryAudit(log))
	c, u := f.signedIn(t, "bob", false)

	rec := c.do(http.MethodPut, "/account/display-name", `{"displayName":"Robert"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/signout", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	require.Equal(t, 2, log.Len())
	events, err := log.GetEvents(t.Context(), &audit.EventQuery{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventSignOut, events[0].EventType)
	assert.Equal(t, audit.EventDisplayNameChange, events[1].EventType)
}

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

package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCeremony(t *testing.T) {
	Enable()
	CeremoniesTotal.Reset()

	RecordCeremony(CeremonyRegistration, true, 0.01)
	RecordCeremony(CeremonyRegistration, false, 0.02)
	RecordCeremony(CeremonyAuthentication, true, 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyAuthentication, StatusSuccess)))
}

func TestRecordClaimAndDownload(t *testing.T) {
	Enable()
	ClaimsTotal.Reset()
	DownloadsTotal.Reset()

	RecordClaim("invite", ClaimClaimed)
	RecordClaim("invite", ClaimConflict)
	RecordClaim("invite", ClaimConflict)
	RecordDownload("local", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(ClaimsTotal.WithLabelValues("invite", ClaimConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(DownloadsTotal.WithLabelValues("local", StatusSuccess)))
}

func TestDisable(t *testing.T) {
	SignInFailuresTotal.Reset()
	Disable()
	defer Enable()

	RecordSignInFailure("unknown_credential")
	assert.False(t, IsEnabled())
	assert.Equal(t, 0.0, testutil.ToFloat64(SignInFailuresTotal.WithLabelValues("unknown_credential")))
}

func TestSetComponentHealth(t *testing.T) {
	Enable()
	SetComponentHealth("store", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(ComponentHealthy.WithLabelValues("store")))
	SetComponentHealth("store", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(ComponentHealthy.WithLabelValues("store")))
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/invites/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invites/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/invites/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(HTTPInFlight))
}

func TestHTTPMiddlewareDefaultStatus(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200")))
}

func TestCollectorSamples(t *testing.T) {
	Enable()
	calls := 0
	c := NewCollector(time.Hour, WithOpenCounter(func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"invite": 3, "share": 1}, nil
	}))
	c.sample(context.Background())

	assert.Equal(t, 1, calls)
	assert.Greater(t, testutil.ToFloat64(Goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(MemoryAllocBytes), 0.0)
	assert.Equal(t, 3.0, testutil.ToFloat64(ClaimablesOpen.WithLabelValues("invite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ClaimablesOpen.WithLabelValues("share")))
}

func TestCollectorReportsCounterErrors(t *testing.T) {
	Enable()
	var got error
	c := NewCollector(time.Hour,
		WithOpenCounter(func(context.Context) (map[string]int, error) { return nil, errors.New("store down") }),
		WithErrorHandler(func(err error) { got = err }))
	c.sample(context.Background())
	assert.EqualError(t, got, "store down")
}

func TestCollectorStops(t *testing.T) {
	c := NewCollector(time.Hour)
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	c.Stop()
	c.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewCollector(time.Hour).Run(ctx)
}

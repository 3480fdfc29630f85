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

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledAllowsEverything(t *testing.T) {
	l := New(nil)
	defer l.Stop()

	assert.False(t, l.IsEnabled())
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("client"))
	}
	assert.NoError(t, l.Wait(context.Background(), "client"))
}

func TestBurstThenReject(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 3})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "clients are tracked separately")
	assert.Equal(t, 2, l.ActiveClients())
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 1, Burst: 1})
	defer l.Stop()

	require.True(t, l.Allow("c"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "c"))
}

func TestCleanupRemovesIdleClients(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, MaxIdle: time.Minute})
	defer l.Stop()

	l.Allow("old")
	l.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, l.ActiveClients())
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60})
	l.Stop()
	l.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", false, "192.0.2.1:1234", nil, "192.0.2.1"},
		{"ignores xff when untrusted", false, "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "192.0.2.1"},
		{"first xff hop", true, "192.0.2.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", true, "192.0.2.1:1234", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"no port", false, "192.0.2.1", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&Config{TrustProxyHeaders: tt.trust})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, l.ClientIP(r))
		})
	}
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("default reject", func(t *testing.T) {
		l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 1})
		defer l.Stop()
		h := Middleware(l, nil)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fido2/authentication-options", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fido2/authentication-options", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("custom reject", func(t *testing.T) {
		l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 1})
		defer l.Stop()
		called := false
		reject := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusTooManyRequests)
		})
		h := Middleware(l, reject)(ok)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		assert.False(t, called)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		assert.True(t, called)
	})
}

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

package correlation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWithCorrelationID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{"background context", context.Background(), "test-correlation-id"},
		{"nil context", nil, "test-correlation-id-2"},
		{"empty id", context.Background(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithCorrelationID(tt.ctx, tt.id)
			assert.NotNil(t, ctx)
			assert.Equal(t, tt.id, GetCorrelationID(ctx))
		})
	}
}

func TestGetCorrelationIDMissing(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	assert.Empty(t, GetCorrelationID(nil)) //nolint:staticcheck
}

func TestGetOrGenerate(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "existing")
	assert.Equal(t, "existing", GetOrGenerate(ctx))

	id := GetOrGenerate(context.Background())
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"correlation header", map[string]string{CorrelationIDHeader: "abc-123"}, "abc-123"},
		{"request header", map[string]string{RequestIDHeader: "req-9"}, "req-9"},
		{"correlation wins", map[string]string{CorrelationIDHeader: "a", RequestIDHeader: "b"}, "a"},
		{"invalid falls through", map[string]string{CorrelationIDHeader: "bad id\n", RequestIDHeader: "ok"}, "ok"},
		{"too long", map[string]string{CorrelationIDHeader: strings.Repeat("x", 200)}, ""},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got := FromRequest(r)
			if tt.want == "" {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

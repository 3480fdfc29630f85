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

package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cause := errors.New("disk on fire")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", cause, http.StatusInternalServerError},
		{"bad request", BadRequest("nope"), http.StatusBadRequest},
		{"wrapped forbidden", fmt.Errorf("ctx: %w", Forbidden("no")), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"internal", Internal(cause), http.StatusInternalServerError},
		{"zero status", &Error{Message: "x"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestPublic(t *testing.T) {
	msg, ctx := Public(BadRequest("Invalid username").WithContext("username"))
	assert.Equal(t, "Invalid username", msg)
	assert.Equal(t, "username", ctx)

	msg, ctx = Public(Wrap(http.StatusInternalServerError, "secret detail", errors.New("boom")))
	assert.Equal(t, "Internal Server Error", msg)
	assert.Empty(t, ctx)

	msg, _ = Public(errors.New("raw"))
	assert.Equal(t, "Internal Server Error", msg)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(http.StatusBadRequest, "bad", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUserError(err))
	assert.False(t, IsUserError(Internal(cause)))
	assert.Equal(t, "bad: cause", err.Error())
}

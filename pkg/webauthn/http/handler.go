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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/correlation"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
	"github.com/jeremyhahn/go-passkeyshare/pkg/webauthn"
)

// DefaultMaxBodyBytes bounds ceremony request bodies.
const DefaultMaxBodyBytes = 64 << 10

// SessionStore loads and saves the browser session around each request.
// *session.CookieStore satisfies it.
type SessionStore interface {
	Load(r *http.Request) (*session.State, error)
	Save(w http.ResponseWriter, st *session.State) error
}

// Handler serves the ceremony endpoints.
type Handler struct {
	service  *webauthn.Service
	sessions SessionStore
	logger   logger.Logger
	maxBody  int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHandler creates a new ceremony HTTP handler.
func NewHandler(service *webauthn.Service, sessions SessionStore, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		sessions: sessions,
		logger:   logger.NoOp{},
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AttestationOptions handles POST /fido2/attestation/options
//
// Request body (ignored when signed in):
//
//	{
//	    "username": "bob",
//	    "displayName": "Bob User"
//	}
//
// Response: PublicKeyCredentialCreationOptions merged into the ok envelope.
func (h *Handler) AttestationOptions(w http.ResponseWriter, r *http.Request) {
	var req webauthn.RegistrationRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.withSession(w, r, func(st *session.State) (any, error) {
		options, err := h.service.RegistrationOptions(r.Context(), st, req)
		if err != nil {
			return nil, err
		}
		return envelope(options, map[string]any{"excludeCredentials": []any{}})
	})
}

// AttestationResult handles POST /fido2/attestation/result
//
// Request body: the PublicKeyCredential produced by navigator.credentials.create.
// Response: {"status": "ok", "return_to": "/"}
func (h *Handler) AttestationResult(w http.ResponseWriter, r *http.Request) {
	body, err := h.read(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.withSession(w, r, func(st *session.State) (any, error) {
		res, err := h.service.RegistrationResult(r.Context(), st, body)
		if err != nil {
			return nil, err
		}
		return ResultResponse{Status: StatusOK, ReturnTo: res.ReturnTo}, nil
	})
}

// AssertionOptions handles POST /fido2/assertion/options
//
// Request body (both fields optional):
//
//	{
//	    "username": "bob",
//	    "userVerification": "preferred"
//	}
//
// Response: the request options merged into the ok envelope.
func (h *Handler) AssertionOptions(w http.ResponseWriter, r *http.Request) {
	var req AssertionOptionsRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.withSession(w, r, func(st *session.State) (any, error) {
		options, err := h.service.AuthenticationOptions(r.Context(), st, req.Username, req.UserVerification)
		if err != nil {
			return nil, err
		}
		return envelope(options, nil)
	})
}

// AssertionResult handles POST /fido2/assertion/result
//
// Request body: the PublicKeyCredential produced by navigator.credentials.get.
// Response: {"status": "ok", "return_to": "/"}
func (h *Handler) AssertionResult(w http.ResponseWriter, r *http.Request) {
	body, err := h.read(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.withSession(w, r, func(st *session.State) (any, error) {
		res, err := h.service.AuthenticationResult(r.Context(), st, body)
		if err != nil {
			return nil, err
		}
		return ResultResponse{Status: StatusOK, ReturnTo: res.ReturnTo}, nil
	})
}

// withSession loads the session, runs fn and saves the session whatever
// the outcome, since a failed result step still consumes its challenge.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(st *session.State) (any, error)) {
	st, err := h.sessions.Load(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "discarding unreadable session", logger.Error(err))
	}
	if st == nil {
		st = session.New()
	}

	payload, fnErr := fn(st)

	if err := h.sessions.Save(w, st); err != nil {
		h.writeError(w, r, httperr.Internal(fmt.Errorf("save session: %w", err)))
		return
	}
	if fnErr != nil {
		h.writeError(w, r, fnErr)
		return
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, httperr.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return nil, httperr.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return body, nil
}

// decode reads an optional JSON body into v. An empty body leaves v unset.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := h.read(w, r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return httperr.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}

// envelope flattens v into an ok envelope. Keys of defaults are added when
// v leaves them out.
func envelope(v any, defaults map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, httperr.Internal(fmt.Errorf("encode options: %w", err))
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, httperr.Internal(fmt.Errorf("encode options: %w", err))
	}
	for k, d := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = d
		}
	}
	out["status"] = StatusOK
	return out, nil
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			logger.Error(err),
			logger.Int("status", status))
	}
}

// writeError classifies err and writes the failed envelope. Only server
// errors carry a correlation id, which is also logged with the cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httperr.StatusCode(err)
	message, detail := httperr.Public(err)
	resp := ErrorResponse{
		Status:       StatusFailed,
		ErrorMessage: message,
		ErrorContext: detail,
	}

	if status >= http.StatusInternalServerError {
		resp.CorrelationID = correlation.GetOrGenerate(r.Context())
		h.logger.ErrorContext(r.Context(), "ceremony request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.String("correlation_id", resp.CorrelationID),
			logger.Error(err))
	} else if webauthn.IsVerificationFailed(err) {
		h.logger.WarnContext(r.Context(), "passkey verification failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
	} else {
		h.logger.DebugContext(r.Context(), "ceremony request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}

	h.writeJSON(w, status, resp)
}

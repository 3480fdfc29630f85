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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/correlation"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// DefaultMaxBodyBytes bounds JSON request bodies on the admin and account APIs.
const DefaultMaxBodyBytes = 16 << 10

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	// The status line is already out, so an encoding failure is dropped.
	_ = json.NewEncoder(w).Encode(data)
}

// writeAPIError classifies err and writes an ErrorResponse. Server errors
// are logged with a correlation id that is returned to the caller.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := httperr.StatusCode(err)
	message, detail := httperr.Public(err)
	resp := ErrorResponse{Error: message, Message: detail, Code: status}

	if status >= http.StatusInternalServerError {
		resp.CorrelationID = correlation.GetOrGenerate(r.Context())
		s.logger.ErrorContext(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}
	writeJSON(w, resp, status)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httperr.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return httperr.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}

// classifyIdentity turns identity sentinels into user errors.
func classifyIdentity(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidDisplayName), errors.Is(err, identity.ErrInvalidUsername):
		return httperr.Wrap(http.StatusBadRequest, "Invalid input", err).WithContext(err.Error())
	case errors.Is(err, identity.ErrLastCredential):
		return httperr.Wrap(http.StatusBadRequest, "You cannot delete your only passkey", err)
	case errors.Is(err, identity.ErrCredentialNotFound):
		return httperr.Wrap(http.StatusNotFound, "Passkey not found", err)
	}
	return err
}

// classifyFiles turns file provider sentinels into user errors.
func classifyFiles(err error) error {
	switch {
	case errors.Is(err, files.ErrNotFound):
		return httperr.Wrap(http.StatusNotFound, "File not found", err)
	case errors.Is(err, files.ErrInvalidRef):
		return httperr.Wrap(http.StatusBadRequest, "Invalid file reference", err)
	case errors.Is(err, files.ErrUnknownFormat):
		return httperr.Wrap(http.StatusBadRequest, "Format not available", err)
	}
	return err
}

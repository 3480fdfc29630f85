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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/correlation"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
)

// correlate tags the request context with the inbound correlation id, or a
// fresh one, and echoes it back in X-Correlation-ID.
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := correlation.FromRequest(r)
		w.Header().Set(correlation.CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(correlation.WithCorrelationID(r.Context(), id)))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs HTTP requests using the configured logger.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			ctx := r.Context()

			s.logger.DebugContext(ctx, "Request started",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path))

			next.ServeHTTP(wrapped, r)

			s.logger.InfoContext(ctx, "Request completed",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", wrapped.statusCode),
				logger.Duration("duration", time.Since(start)))
		})
	}
}

// SecurityHeadersMiddleware sets response headers common to every page.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					s.logger.ErrorContext(r.Context(), "Panic recovered",
						logger.String("method", r.Method),
						logger.String("path", r.URL.Path),
						logger.Any("error", err))
					writeJSON(w, ErrorResponse{
						Error:         http.StatusText(http.StatusInternalServerError),
						Code:          http.StatusInternalServerError,
						CorrelationID: correlation.GetOrGenerate(r.Context()),
					}, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type visitorKey struct{}

// visitor is the session and, when signed in, the user behind a request.
type visitor struct {
	state *session.State
	user  *identity.User
}

// RequireUser resolves the signed-in user and rejects anonymous requests
// with 401.
func (s *Server) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := s.visitor(w, r)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		if v.user == nil {
			s.writeAPIError(w, r, httperr.New(http.StatusUnauthorized, "Sign in required"))
			return
		}
		ctx := context.WithValue(r.Context(), visitorKey{}, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects signed-in users without the admin flag. It must run
// after RequireUser.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r.Context())
		if u == nil || !u.IsAdmin {
			s.logger.WarnContext(r.Context(), "admin access denied",
				logger.String("path", r.URL.Path))
			s.record(r, u, &audit.AuditEvent{EventType: audit.EventAccessDenied, Outcome: audit.OutcomeDenied, Resource: r.URL.Path})
			s.writeAPIError(w, r, httperr.Forbidden("Administrator access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// visitor loads the session and resolves the signed-in user. An unreadable
// session is treated as anonymous. A session whose user is no longer
// stored is discarded and the visitor continues anonymously.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) (*visitor, error) {
	if v, ok := r.Context().Value(visitorKey{}).(*visitor); ok {
		return v, nil
	}

	st, err := s.sessions.Load(r)
	if err != nil {
		s.logger.WarnContext(r.Context(), "discarding unreadable session", logger.Error(err))
	}
	if st == nil {
		st = session.New()
	}

	v := &visitor{state: st}
	auth, ok := st.Authenticated()
	if !ok {
		return v, nil
	}
	u, err := s.identities.GetUser(r.Context(), auth.UserID())
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		s.logger.ErrorContext(r.Context(), "signed-in user missing from store, discarding session",
			logger.String("user_id", auth.UserID()),
			logger.String("credential_id", auth.Credential.CredentialID))
		s.sessions.Destroy(w)
		v.state = session.New()
		return v, nil
	case err != nil:
		return nil, httperr.Internal(err)
	}
	v.user = u
	return v, nil
}

func currentUser(ctx context.Context) *identity.User {
	if v, ok := ctx.Value(visitorKey{}).(*visitor); ok {
		return v.user
	}
	return nil
}

func currentState(ctx context.Context) *session.State {
	if v, ok := ctx.Value(visitorKey{}).(*visitor); ok {
		return v.state
	}
	return nil
}

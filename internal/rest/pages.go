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
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/correlation"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFiles embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

type renderer struct {
	tmpl *template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.UTC().Format("2 Jan 2006 15:04 MST") },
		"datep": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.UTC().Format("2 Jan 2006 15:04 MST")
		},
	}
	tmpl, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &renderer{tmpl: tmpl}, nil
}

// page is the data every template receives.
type page struct {
	Title     string
	User      *identity.User
	CSRFToken string
	Paths     Paths
	Data      any
}

// render executes a page template into a buffer so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, user *identity.User, data any) {
	p := page{Title: title, User: user, Paths: s.paths, Data: data}
	if s.csrfToken != nil {
		p.CSRFToken = s.csrfToken(r)
	}

	var buf bytes.Buffer
	if err := s.pages.tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		s.logger.ErrorContext(r.Context(), "render page",
			logger.String("template", name),
			logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Status        int
	Message       string
	Detail        string
	CorrelationID string
}

// renderError classifies err and renders the error page. Server errors are
// logged and carry a correlation id.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, user *identity.User, err error) {
	status := httperr.StatusCode(err)
	message, detail := httperr.Public(err)
	data := errorPage{Status: status, Message: message, Detail: detail}

	if status >= http.StatusInternalServerError {
		data.CorrelationID = correlation.GetOrGenerate(r.Context())
		s.logger.ErrorContext(r.Context(), "page request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	} else {
		s.logger.DebugContext(r.Context(), "page request rejected",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err))
	}
	s.render(w, r, status, "error", message, user, data)
}

// IndexHandler handles GET /
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	v, err := s.visitor(w, r)
	if err != nil {
		s.renderError(w, r, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, "index", "Home", v.user, nil)
}

type registerPage struct {
	AddPasskey bool
	Invited    bool
	What       string
}

// RegisterPageHandler serves the registration page. It offers the form to
// visitors holding an accepted invite or share and the add-passkey button
// to signed-in users.
func (s *Server) RegisterPageHandler(w http.ResponseWriter, r *http.Request) {
	v, err := s.visitor(w, r)
	if err != nil {
		s.renderError(w, r, nil, err)
		return
	}
	data := registerPage{AddPasskey: v.user != nil}
	if src, ok := v.state.Registerable(); ok {
		data.Invited = true
		data.What = string(src.Kind)
	}
	s.render(w, r, http.StatusOK, "register", "Register", v.user, data)
}

// SignInPageHandler serves the sign-in page.
func (s *Server) SignInPageHandler(w http.ResponseWriter, r *http.Request) {
	v, err := s.visitor(w, r)
	if err != nil {
		s.renderError(w, r, nil, err)
		return
	}
	if v.user != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "signin", "Sign in", nil, nil)
}

// SignOutHandler handles POST /signout by discarding the whole session.
func (s *Server) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	if v, err := s.visitor(w, r); err == nil && v.user != nil {
		s.record(r, v.user, &audit.AuditEvent{EventType: audit.EventSignOut})
	}
	s.sessions.Destroy(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

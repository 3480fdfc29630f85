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

	"github.com/jeremyhahn/go-passkeyshare/pkg/health"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
)

// HealthCheckResponse is the body of every /health endpoint.
type HealthCheckResponse struct {
	Status  health.Status        `json:"status"`
	Message string               `json:"message,omitempty"`
	Checks  []health.CheckResult `json:"checks,omitempty"`
}

// writeHealth answers 503 only for an unhealthy result; degraded still
// serves traffic.
func writeHealth(w http.ResponseWriter, resp HealthCheckResponse) {
	code := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, code)
}

// LivenessHandler handles GET /health/live
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeHealth(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is alive"})
		return
	}
	res := s.health.Live(r.Context())
	writeHealth(w, HealthCheckResponse{Status: res.Status, Message: res.Message})
}

// ReadinessHandler handles GET /health/ready by pinging the store and,
// when configured, the file provider. Each result also updates the
// component_healthy gauge.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeHealth(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service is ready"})
		return
	}

	results := s.health.Ready(r.Context())
	for _, res := range results {
		metrics.SetComponentHealth(res.Name, res.Status != health.StatusUnhealthy)
	}

	resp := HealthCheckResponse{Status: health.AggregateStatus(results), Checks: results}
	switch resp.Status {
	case health.StatusHealthy:
		resp.Message = "All checks passed"
	case health.StatusDegraded:
		resp.Message = "Service is degraded"
	default:
		resp.Message = "One or more checks failed"
	}
	writeHealth(w, resp)
}

// StartupHandler handles GET /health/startup. It fails until Start runs.
func (s *Server) StartupHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeHealth(w, HealthCheckResponse{Status: health.StatusHealthy, Message: "Service has started"})
		return
	}
	res := s.health.Startup(r.Context())
	writeHealth(w, HealthCheckResponse{Status: res.Status, Message: res.Message})
}

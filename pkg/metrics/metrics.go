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

// Package metrics provides Prometheus instrumentation for passkey ceremonies,
// invite and share claims, file downloads and the HTTP surface.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all service metrics
	Namespace = "passkeyshare"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelKind       = "kind"
	LabelResult     = "result"
	LabelSource     = "source"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
	LabelComponent  = "component"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Claim results
	ClaimClaimed  = "claimed"
	ClaimConflict = "conflict"
	ClaimNotFound = "not_found"
)

var (
	// CeremoniesTotal counts completed registration and authentication
	// result steps by outcome.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of WebAuthn ceremony result steps by ceremony and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks how long result verification takes.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of WebAuthn ceremony result verification in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelCeremony},
	)

	// SignInFailuresTotal counts failed authentication attempts by internal
	// reason. The reason never reaches the client.
	SignInFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sign_in_failures_total",
			Help:      "Total number of failed sign-in attempts by reason",
		},
		[]string{LabelReason},
	)

	// ClaimsTotal counts claim attempts on invites and shares.
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "claims_total",
			Help:      "Total number of invite and share claim attempts by kind and result",
		},
		[]string{LabelKind, LabelResult},
	)

	// ClaimablesCreated counts invites and shares issued.
	ClaimablesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "claimables_created_total",
			Help:      "Total number of invites and shares created by kind",
		},
		[]string{LabelKind},
	)

	// DownloadsTotal counts shared file downloads by file source.
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "downloads_total",
			Help:      "Total number of shared file downloads by source and status",
		},
		[]string{LabelSource, LabelStatus},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{LabelRoute},
	)

	// Goroutines is updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes is updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ComponentHealthy is 1 when a dependency passed its last check.
	ComponentHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "component_healthy",
			Help:      "Indicates whether a dependency is healthy (1) or unhealthy (0)",
		},
		[]string{LabelComponent},
	)

	// ClaimablesOpen counts unclaimed invites and shares per kind.
	ClaimablesOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "claimables_open",
			Help:      "Invites and shares that have not been claimed yet",
		},
		[]string{LabelKind},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordCeremony records one ceremony result step.
//
// Example:
//
//	start := time.Now()
//	err := verify()
//	metrics.RecordCeremony(metrics.CeremonyAuthentication, err == nil, time.Since(start).Seconds())
func RecordCeremony(ceremony string, ok bool, duration float64) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusError
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordSignInFailure records why an authentication attempt was rejected.
func RecordSignInFailure(reason string) {
	if !enabled.Load() {
		return
	}
	SignInFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordClaim records a claim attempt on an invite or share.
func RecordClaim(kind, result string) {
	if !enabled.Load() {
		return
	}
	ClaimsTotal.WithLabelValues(kind, result).Inc()
}

// RecordClaimableCreated records a newly issued invite or share.
func RecordClaimableCreated(kind string) {
	if !enabled.Load() {
		return
	}
	ClaimablesCreated.WithLabelValues(kind).Inc()
}

// RecordDownload records a file download attempt.
func RecordDownload(source string, ok bool) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusError
	}
	DownloadsTotal.WithLabelValues(source, status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, route, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(route string) {
	if !enabled.Load() {
		return
	}
	RateLimited.WithLabelValues(route).Inc()
}

// SetComponentHealth sets the health gauge of a dependency.
func SetComponentHealth(component string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	ComponentHealthy.WithLabelValues(component).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

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

// Package health implements liveness, readiness and startup checks.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is operating normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component is functioning but with reduced capacity.
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 2 * time.Second

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs a health check. It should honour ctx cancellation.
type CheckFunc func(ctx context.Context) CheckResult

// Pinger is anything that can report reachability, such as the store or
// the file provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if err := p.Ping(ctx); err != nil {
			return CheckResult{Name: name, Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Name: name, Status: StatusHealthy}
	}
}

// Checker manages health checks following Kubernetes liveness and readiness semantics.
//
// Liveness answers whether the process should be restarted, readiness whether
// it should receive traffic, and startup whether initialization has finished.
type Checker struct {
	mu        sync.RWMutex
	started   bool
	startTime time.Time
	timeout   time.Duration
	checks    map[string]CheckFunc
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
	}
}

// SetTimeout changes the per-check deadline. Non-positive values are ignored.
func (c *Checker) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// RegisterCheck adds or replaces a readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a health check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// MarkStarted marks initialization as complete.
func (c *Checker) MarkStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// MarkNotStarted is used during graceful shutdown.
func (c *Checker) MarkNotStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
}

// Live reports that the process is running. It never consults dependencies.
func (c *Checker) Live(ctx context.Context) CheckResult {
	return CheckResult{
		Name:    "liveness",
		Status:  StatusHealthy,
		Message: "Service is alive",
	}
}

// Ready runs every registered check concurrently, each under the checker
// timeout, and returns the results sorted by name.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()

	if len(checks) == 0 {
		return []CheckResult{{
			Name:    "default",
			Status:  StatusHealthy,
			Message: "No readiness checks configured",
		}}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]CheckResult, 0, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := runCheck(ctx, name, check, timeout)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func runCheck(ctx context.Context, name string, check CheckFunc, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() { done <- check(ctx) }()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}
	result.Latency = time.Since(start)
	if result.Name == "" {
		result.Name = name
	}
	return result
}

// Startup fails until MarkStarted is called.
func (c *Checker) Startup(ctx context.Context) CheckResult {
	c.mu.RLock()
	started := c.started
	startTime := c.startTime
	c.mu.RUnlock()

	if !started {
		return CheckResult{
			Name:    "startup",
			Status:  StatusUnhealthy,
			Message: "Service initialization not complete",
		}
	}
	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("Service fully initialized (uptime: %s)", time.Since(startTime).Round(time.Second)),
	}
}

// IsStarted returns true if the service has been marked as started.
func (c *Checker) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Uptime returns how long the service has been running.
func (c *Checker) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// AggregateStatus is unhealthy if any result is, else degraded if any
// result is, else healthy.
func AggregateStatus(results []CheckResult) Status {
	hasDegraded := false
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

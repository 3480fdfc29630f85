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


package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// OpenCounter reports how many invites and shares are still waiting to be
// claimed, keyed by kind.
type OpenCounter func(ctx context.Context) (map[string]int, error)

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithOpenCounter samples ClaimablesOpen on every tick.
func WithOpenCounter(fn OpenCounter) CollectorOption {
	return func(c *Collector) { c.open = fn }
}

// WithErrorHandler receives sampling failures. They are otherwise ignored.
func WithErrorHandler(fn func(error)) CollectorOption {
	return func(c *Collector) { c.onError = fn }
}

// Collector samples the gauges that no request path updates: runtime
// state, uptime and the open claimable backlog.
type Collector struct {
	interval time.Duration
	started  time.Time
	open     OpenCounter
	onError  func(error)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewCollector creates a collector. Run starts sampling.
func NewCollector(interval time.Duration, opts ...CollectorOption) *Collector {
	c := &Collector{
		interval: interval,
		started:  time.Now(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run samples once immediately and then at every interval until ctx is done
// or Stop is called.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.sample(ctx)
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Collector) sample(ctx context.Context) {
	if !IsEnabled() {
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	Goroutines.Set(float64(runtime.NumGoroutine()))
	MemoryAllocBytes.Set(float64(mem.Alloc))
	ServerUptime.Set(time.Since(c.started).Seconds())

	if c.open == nil {
		return
	}
	counts, err := c.open(ctx)
	if err != nil {
		if c.onError != nil {
			c.onError(err)
		}
		return
	}
	for kind, n := range counts {
		ClaimablesOpen.WithLabelValues(kind).Set(float64(n))
	}
}

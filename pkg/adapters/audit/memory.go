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

package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkeyshare/pkg/correlation"
)

// DefaultCapacity is the number of events the memory adapter keeps.
const DefaultCapacity = 1000

// MemoryAuditAdapter keeps the most recent events in a ring buffer.
// Events are lost on restart.
type MemoryAuditAdapter struct {
	mu     sync.RWMutex
	events []*AuditEvent
	next   int
	full   bool
	now    func() time.Time
}

// NewMemoryAuditAdapter creates an adapter holding up to capacity events.
// A non-positive capacity uses DefaultCapacity.
func NewMemoryAuditAdapter(capacity int) *MemoryAuditAdapter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryAuditAdapter{
		events: make([]*AuditEvent, capacity),
		now:    time.Now,
	}
}

// LogEvent records an audit event in memory, evicting the oldest when full.
func (m *MemoryAuditAdapter) LogEvent(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return errors.New("audit: event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = correlation.GetCorrelationID(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[m.next] = event
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// GetEvents returns matching events, newest first.
func (m *MemoryAuditAdapter) GetEvents(_ context.Context, query *EventQuery) ([]*AuditEvent, error) {
	if query == nil {
		query = &EventQuery{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}
	results := make([]*AuditEvent, 0, n)
	for i := 0; i < n; i++ {
		idx := (m.next - 1 - i + len(m.events)) % len(m.events)
		e := m.events[idx]
		if !query.matches(e) {
			continue
		}
		results = append(results, e)
		if query.Limit > 0 && len(results) == query.Limit {
			break
		}
	}
	return results, nil
}

// Len returns the number of events held.
func (m *MemoryAuditAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.events)
	}
	return m.next
}

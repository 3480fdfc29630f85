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

// Package audit records who claimed, downloaded or changed what. The
// adapter interface lets deployments ship events to their own sink; the
// in-memory adapter keeps a bounded window for the admin API.
package audit

import (
	"context"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	EventInviteCreate EventType = "invite.create"
	EventInviteClaim  EventType = "invite.claim"

	EventShareCreate   EventType = "share.create"
	EventShareClaim    EventType = "share.claim"
	EventShareDownload EventType = "share.download"

	EventPasskeyDelete     EventType = "passkey.delete"
	EventDisplayNameChange EventType = "account.display_name"
	EventSignOut           EventType = "auth.signout"

	// EventAccessDenied covers admin routes refused to a signed-in user.
	EventAccessDenied EventType = "authz.deny"
)

// EventOutcome indicates the result of an operation
type EventOutcome string

const (
	OutcomeSuccess EventOutcome = "success"
	OutcomeFailure EventOutcome = "failure"
	OutcomeDenied  EventOutcome = "denied"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	EventType EventType    `json:"type"`
	Outcome   EventOutcome `json:"outcome"`

	// UserID and Username identify the signed-in actor, if any.
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`

	// Resource is the path of the invite, share or credential acted on,
	// e.g. "/shares/3f2a...".
	Resource string `json:"resource,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	RequestID string `json:"requestId,omitempty"`
	SourceIP  string `json:"sourceIp,omitempty"`
}

// AuditAdapter provides audit logging capabilities.
type AuditAdapter interface {
	// LogEvent records an audit event. ID and Timestamp are filled when
	// empty.
	LogEvent(ctx context.Context, event *AuditEvent) error
}

// Querier is implemented by adapters that can read their events back.
type Querier interface {
	GetEvents(ctx context.Context, query *EventQuery) ([]*AuditEvent, error)
}

// EventQuery provides parameters for querying audit events. Zero fields
// do not filter.
type EventQuery struct {
	EventTypes []EventType
	UserID     string
	Resource   string
	StartTime  *time.Time
	EndTime    *time.Time

	// Limit caps the results, newest first.
	Limit int
}

func (q *EventQuery) matches(e *AuditEvent) bool {
	if len(q.EventTypes) > 0 {
		found := false
		for _, t := range q.EventTypes {
			if e.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.UserID != "" && e.UserID != q.UserID {
		return false
	}
	if q.Resource != "" && e.Resource != q.Resource {
		return false
	}
	if q.StartTime != nil && e.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && e.Timestamp.After(*q.EndTime) {
		return false
	}
	return true
}

// NoOp discards every event.
type NoOp struct{}

// LogEvent implements AuditAdapter.
func (NoOp) LogEvent(context.Context, *AuditEvent) error { return nil }

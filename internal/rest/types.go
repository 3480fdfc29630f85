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
	"time"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
)

// ErrorResponse is the error body of the JSON APIs.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// UserResponse describes a user.
type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	Created     time.Time `json:"created"`
}

func newUserResponse(u *identity.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
		Created:     u.Created,
	}
}

// CredentialInfo describes one of the signed-in user's passkeys. Current
// marks the credential the session signed in with.
type CredentialInfo struct {
	ID         string              `json:"id"`
	Created    time.Time           `json:"created"`
	AAGUID     string              `json:"aaguid"`
	DeviceType identity.DeviceType `json:"deviceType"`
	BackedUp   bool                `json:"backedUp"`
	Transports []string            `json:"transports,omitempty"`
	Current    bool                `json:"current"`
}

// ListCredentialsResponse is the response for GET /account/credentials.
type ListCredentialsResponse struct {
	Credentials []CredentialInfo `json:"credentials"`
}

// UpdateDisplayNameRequest is the body of PUT /account/display-name.
type UpdateDisplayNameRequest struct {
	DisplayName string `json:"displayName"`
}

// CreateInviteRequest is the body of POST /admin/invites.
type CreateInviteRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

// CreateShareRequest is the body of POST /admin/shares.
type CreateShareRequest struct {
	FileRef    string `json:"fileRef"`
	ToUsername string `json:"toUsername,omitempty"`

	// ExpiresAfter is a Go duration or a whole number of days such as "2d".
	ExpiresAfter string `json:"expiresAfter,omitempty"`
}

// ClaimableResponse describes an invite or share.
type ClaimableResponse struct {
	Kind      claimable.Kind `json:"kind"`
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	IsAdmin   bool           `json:"isAdmin"`
	Created   time.Time      `json:"created"`
	CreatedBy string         `json:"createdBy,omitempty"`
	Claimed   *time.Time     `json:"claimed,omitempty"`
	ClaimedBy string         `json:"claimedBy,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`

	FileRef          string   `json:"fileRef,omitempty"`
	FileTitle        string   `json:"fileTitle,omitempty"`
	FileType         string   `json:"fileType,omitempty"`
	AvailableFormats []string `json:"availableFormats,omitempty"`
	ToUsername       string   `json:"toUsername,omitempty"`
}

func newClaimableResponse(src *claimable.Source) ClaimableResponse {
	resp := ClaimableResponse{
		Kind:    src.Kind,
		ID:      src.ID,
		Path:    src.Path(),
		IsAdmin: src.IsAdmin,
		Created: src.Created,
		Claimed: src.Claimed,
	}
	if src.CreatedBy != nil {
		resp.CreatedBy = src.CreatedBy.Username
	}
	if src.ClaimedBy != nil {
		resp.ClaimedBy = src.ClaimedBy.Username
	}
	if at, ok := src.ExpiresAt(); ok {
		resp.ExpiresAt = &at
	}
	if sh := src.Share; sh != nil {
		resp.FileRef = sh.FileRef
		resp.FileTitle = sh.FileTitle
		resp.FileType = sh.FileType
		resp.AvailableFormats = sh.AvailableFormats
		resp.ToUsername = sh.ToUsername
	}
	return resp
}

// ListClaimablesResponse is the response for the admin list endpoints.
type ListClaimablesResponse struct {
	Items []ClaimableResponse `json:"items"`
}

// AuditEventsResponse is the response for GET /admin/audit.
type AuditEventsResponse struct {
	Events []*audit.AuditEvent `json:"events"`
}

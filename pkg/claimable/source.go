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

// Package claimable implements single-use invites and file shares: the
// visibility gate that decides who may see one, and the claim that binds
// it to the user who redeemed it.
package claimable

import (
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

// Kind distinguishes invites from shares.
type Kind = store.Kind

const (
	KindInvite = store.KindInvite
	KindShare  = store.KindShare
)

// Source is an invite or share with its user references resolved. Either
// both Claimed and ClaimedBy are set or neither is.
type Source struct {
	Kind      Kind           `json:"kind"`
	ID        string         `json:"id"`
	IsAdmin   bool           `json:"isAdmin"`
	Created   time.Time      `json:"created"`
	CreatedBy *identity.User `json:"createdBy,omitempty"`
	Claimed   *time.Time     `json:"claimed,omitempty"`
	ClaimedBy *identity.User `json:"claimedBy,omitempty"`
	Share     *ShareDetails  `json:"share,omitempty"`
}

// ShareDetails are the share-only fields. File title, type and formats are
// cached from the file provider when the share is created.
type ShareDetails struct {
	FileRef          string        `json:"fileRef"`
	FileTitle        string        `json:"fileTitle"`
	FileType         string        `json:"fileType"`
	AvailableFormats []string      `json:"availableFormats,omitempty"`
	ToUsername       string        `json:"toUsername,omitempty"`
	ExpiresAfter     time.Duration `json:"expiresAfter,omitempty"`
}

// IsClaimed reports whether the source has been redeemed.
func (s *Source) IsClaimed() bool {
	return s.Claimed != nil && s.ClaimedBy != nil
}

// ExpiresAt returns the expiry instant. ok is false for invites and for
// shares without an expiry.
func (s *Source) ExpiresAt() (at time.Time, ok bool) {
	if s.Share == nil || s.Share.ExpiresAfter <= 0 {
		return time.Time{}, false
	}
	return s.Created.Add(s.Share.ExpiresAfter), true
}

// Expired reports whether now is past the expiry.
func (s *Source) Expired(now time.Time) bool {
	at, ok := s.ExpiresAt()
	return ok && now.After(at)
}

// IsCreator reports whether u created the source.
func (s *Source) IsCreator(u *identity.User) bool {
	return s.CreatedBy.Is(u)
}

// AddressedTo returns the recipient username for directed shares.
func (s *Source) AddressedTo() string {
	if s.Share == nil {
		return ""
	}
	return s.Share.ToUsername
}

// IsAddressedTo reports whether u may claim a directed share. Undirected
// sources accept anyone; an anonymous visitor never matches a recipient.
func (s *Source) IsAddressedTo(u *identity.User) bool {
	to := s.AddressedTo()
	if to == "" {
		return true
	}
	return u != nil && strings.EqualFold(u.Username, to)
}

// Path is the URL path that views and accepts the source.
func (s *Source) Path() string {
	return PathFor(s.Kind, s.ID)
}

// PathFor builds the view path for a kind and id.
func PathFor(kind Kind, id string) string {
	return "/" + string(kind) + "s/" + id
}

// Noun returns the lowercase kind name used in messages.
func Noun(kind Kind) string {
	return string(kind)
}

func capitalized(kind Kind) string {
	n := Noun(kind)
	if n == "" {
		return n
	}
	return strings.ToUpper(n[:1]) + n[1:]
}

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

package identity

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

// DeviceType classifies a credential as device-bound or synced.
type DeviceType string

const (
	// SingleDevice credentials cannot leave the authenticator.
	SingleDevice DeviceType = "singleDevice"
	// MultiDevice credentials are eligible for backup and sync.
	MultiDevice DeviceType = "multiDevice"
)

// Authenticator is a verified public-key credential. CredentialID and
// CredentialPublicKey are unpadded base64url.
type Authenticator struct {
	Created             time.Time  `json:"created"`
	CredentialID        string     `json:"credentialId"`
	CredentialPublicKey string     `json:"credentialPublicKey"`
	Counter             uint32     `json:"counter"`
	AAGUID              string     `json:"aaguid"`
	DeviceType          DeviceType `json:"deviceType"`
	BackedUp            bool       `json:"backedUp"`
	Transports          []string   `json:"transports,omitempty"`
}

// RegisteredAuthenticator is an Authenticator bound to its owner.
type RegisteredAuthenticator struct {
	Authenticator
	UserID string `json:"userId"`
}

// NewAuthenticator builds the stored form of a credential that the
// WebAuthn library has just verified.
func NewAuthenticator(cred *webauthn.Credential, now time.Time) *Authenticator {
	deviceType := SingleDevice
	if cred.Flags.BackupEligible {
		deviceType = MultiDevice
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	return &Authenticator{
		Created:             now.UTC(),
		CredentialID:        EncodeID(cred.ID),
		CredentialPublicKey: EncodeID(cred.PublicKey),
		Counter:             cred.Authenticator.SignCount,
		AAGUID:              formatAAGUID(cred.Authenticator.AAGUID),
		DeviceType:          deviceType,
		BackedUp:            cred.Flags.BackupState,
		Transports:          transports,
	}
}

// Credential re-expresses the authenticator in the binary form the
// WebAuthn library verifies against.
func (a *Authenticator) Credential() (webauthn.Credential, error) {
	id, err := DecodeID(a.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("%w: credential id: %v", ErrInvalidCredential, err)
	}
	publicKey, err := DecodeID(a.CredentialPublicKey)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("%w: public key: %v", ErrInvalidCredential, err)
	}

	var aaguid []byte
	if parsed, err := uuid.Parse(a.AAGUID); err == nil {
		aaguid = parsed[:]
	}

	return webauthn.Credential{
		ID:        id,
		PublicKey: publicKey,
		Transport: a.transports(),
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			BackupEligible: a.DeviceType == MultiDevice,
			BackupState:    a.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    aaguid,
			SignCount: a.Counter,
		},
	}, nil
}

// Descriptor identifies the credential in allow and exclude lists.
func (a *Authenticator) Descriptor() (protocol.CredentialDescriptor, error) {
	id, err := DecodeID(a.CredentialID)
	if err != nil {
		return protocol.CredentialDescriptor{}, fmt.Errorf("%w: credential id: %v", ErrInvalidCredential, err)
	}
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: id,
		Transport:    a.transports(),
	}, nil
}

func (a *Authenticator) transports() []protocol.AuthenticatorTransport {
	if len(a.Transports) == 0 {
		return nil
	}
	out := make([]protocol.AuthenticatorTransport, 0, len(a.Transports))
	for _, t := range a.Transports {
		out = append(out, protocol.AuthenticatorTransport(t))
	}
	return out
}

// EncodeID renders binary credential material as unpadded base64url.
func EncodeID(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeID accepts padded or unpadded base64url.
func DecodeID(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func formatAAGUID(b []byte) string {
	parsed, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil.String()
	}
	return parsed.String()
}

func authenticatorFromRecord(rec *store.AuthenticatorRecord) *RegisteredAuthenticator {
	return &RegisteredAuthenticator{
		Authenticator: Authenticator{
			Created:             rec.Created.UTC(),
			CredentialID:        rec.CredentialID,
			CredentialPublicKey: rec.CredentialPublicKey,
			Counter:             rec.Counter,
			AAGUID:              rec.AAGUID,
			DeviceType:          DeviceType(rec.DeviceType),
			BackedUp:            rec.BackedUp,
			Transports:          rec.Transports,
		},
		UserID: rec.UserID,
	}
}

func (a *Authenticator) record(userID string) *store.AuthenticatorRecord {
	return &store.AuthenticatorRecord{
		CredentialID:        a.CredentialID,
		UserID:              userID,
		Created:             a.Created,
		CredentialPublicKey: a.CredentialPublicKey,
		Counter:             a.Counter,
		AAGUID:              a.AAGUID,
		DeviceType:          string(a.DeviceType),
		BackedUp:            a.BackedUp,
		Transports:          a.Transports,
	}
}

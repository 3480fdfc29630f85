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

package webauthn

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		RPID:          "share.example.com",
		RPDisplayName: "Passkey Share",
		RPOrigins:     []string{"https://share.example.com"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "valid minimal config", mutate: func(c *Config) {}},
		{name: "missing RPID", mutate: func(c *Config) { c.RPID = "" }, errMsg: "RPID is required"},
		{name: "missing RPDisplayName", mutate: func(c *Config) { c.RPDisplayName = "" }, errMsg: "RPDisplayName is required"},
		{name: "empty RPOrigins", mutate: func(c *Config) { c.RPOrigins = nil }, errMsg: "at least one RPOrigin is required"},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, errMsg: "timeout"},
		{name: "invalid user verification", mutate: func(c *Config) { c.UserVerification = "always" }, errMsg: "invalid user verification"},
		{name: "invalid attestation", mutate: func(c *Config) { c.AttestationPreference = "all" }, errMsg: "invalid attestation preference"},
		{name: "invalid resident key", mutate: func(c *Config) { c.ResidentKeyRequirement = "maybe" }, errMsg: "invalid resident key requirement"},
		{name: "invalid attachment", mutate: func(c *Config) { c.AuthenticatorAttachment = "usb" }, errMsg: "invalid authenticator attachment"},
		{
			name: "all valid values",
			mutate: func(c *Config) {
				c.UserVerification = "required"
				c.AttestationPreference = "direct"
				c.ResidentKeyRequirement = "required"
				c.AuthenticatorAttachment = "platform"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "none", cfg.AttestationPreference)
	assert.Equal(t, "preferred", cfg.ResidentKeyRequirement)

	cfg = validConfig()
	cfg.Timeout = 30 * time.Second
	cfg.UserVerification = "required"
	cfg.SetDefaults()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "required", cfg.UserVerification)
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Timeout = 90 * time.Second
	cfg.AttestationPreference = "direct"
	cfg.UserVerification = "discouraged"
	cfg.ResidentKeyRequirement = "required"
	cfg.AuthenticatorAttachment = "cross-platform"

	wc := cfg.ToWebAuthnConfig()
	assert.Equal(t, "share.example.com", wc.RPID)
	assert.Equal(t, "Passkey Share", wc.RPDisplayName)
	assert.Equal(t, []string{"https://share.example.com"}, wc.RPOrigins)
	assert.Equal(t, 90*time.Second, wc.Timeouts.Login.Timeout)
	assert.True(t, wc.Timeouts.Registration.Enforce)
	assert.Equal(t, protocol.PreferDirectAttestation, wc.AttestationPreference)
	assert.Equal(t, protocol.VerificationDiscouraged, wc.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, wc.AuthenticatorSelection.ResidentKey)
	require.NotNil(t, wc.AuthenticatorSelection.RequireResidentKey)
	assert.True(t, *wc.AuthenticatorSelection.RequireResidentKey)
	assert.Equal(t, protocol.CrossPlatform, wc.AuthenticatorSelection.AuthenticatorAttachment)
}

func TestParseUserVerification(t *testing.T) {
	tests := map[string]protocol.UserVerificationRequirement{
		"":            protocol.VerificationPreferred,
		"preferred":   protocol.VerificationPreferred,
		"required":    protocol.VerificationRequired,
		"discouraged": protocol.VerificationDiscouraged,
	}
	for in, want := range tests {
		got, err := ParseUserVerification(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseUserVerification("sometimes")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

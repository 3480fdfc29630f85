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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config configures the relying party and the ceremony defaults.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Example: "share.example.com"
	RPID string `yaml:"rp_id" json:"rp_id" env:"RP_ID"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"rp_display_name" json:"rp_display_name" env:"RP_DISPLAY_NAME"`

	// RPOrigins are the origins allowed to run ceremonies.
	// Example: []string{"https://share.example.com"}
	RPOrigins []string `yaml:"rp_origins" json:"rp_origins" env:"RP_ORIGINS" envSeparator:","`

	// Timeout bounds each ceremony. The challenge expires after it.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`

	// UserVerification is used when registering and as the sign-in default.
	// Options: "required", "preferred", "discouraged"
	UserVerification string `yaml:"user_verification" json:"user_verification" env:"USER_VERIFICATION"`

	// AttestationPreference is the requested attestation conveyance.
	// Options: "none", "indirect", "direct", "enterprise"
	AttestationPreference string `yaml:"attestation" json:"attestation" env:"ATTESTATION"`

	// ResidentKeyRequirement controls discoverable credential creation.
	// Options: "required", "preferred", "discouraged"
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key" env:"RESIDENT_KEY"`

	// AuthenticatorAttachment limits the type of authenticators allowed.
	// Options: "platform", "cross-platform", "" (any)
	AuthenticatorAttachment string `yaml:"authenticator_attachment" json:"authenticator_attachment" env:"AUTHENTICATOR_ATTACHMENT"`
}

// Validate returns an error describing the first invalid field.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	switch c.ResidentKeyRequirement {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}

	switch c.AuthenticatorAttachment {
	case "", "platform", "cross-platform":
	default:
		return fmt.Errorf("invalid authenticator attachment: %s", c.AuthenticatorAttachment)
	}

	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's configuration.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:          c.RPID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     c.RPOrigins,
	}

	if c.Timeout > 0 {
		timeout := webauthn.TimeoutConfig{
			Enforce:    true,
			Timeout:    c.Timeout,
			TimeoutUVD: c.Timeout,
		}
		cfg.Timeouts = webauthn.TimeoutsConfig{Login: timeout, Registration: timeout}
	}

	switch c.AttestationPreference {
	case "none":
		cfg.AttestationPreference = protocol.PreferNoAttestation
	case "indirect":
		cfg.AttestationPreference = protocol.PreferIndirectAttestation
	case "direct":
		cfg.AttestationPreference = protocol.PreferDirectAttestation
	case "enterprise":
		cfg.AttestationPreference = protocol.PreferEnterpriseAttestation
	}

	cfg.AuthenticatorSelection = protocol.AuthenticatorSelection{
		UserVerification: c.userVerification(),
	}

	switch c.ResidentKeyRequirement {
	case "required":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementRequired
		required := true
		cfg.AuthenticatorSelection.RequireResidentKey = &required
	case "preferred":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementPreferred
	case "discouraged":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementDiscouraged
	}

	switch c.AuthenticatorAttachment {
	case "platform":
		cfg.AuthenticatorSelection.AuthenticatorAttachment = protocol.Platform
	case "cross-platform":
		cfg.AuthenticatorSelection.AuthenticatorAttachment = protocol.CrossPlatform
	}

	return cfg
}

func (c *Config) userVerification() protocol.UserVerificationRequirement {
	switch c.UserVerification {
	case "required":
		return protocol.VerificationRequired
	case "discouraged":
		return protocol.VerificationDiscouraged
	}
	return protocol.VerificationPreferred
}

// ParseUserVerification maps a requested verification level to the protocol
// value. A blank level means preferred.
func ParseUserVerification(level string) (protocol.UserVerificationRequirement, error) {
	switch level {
	case "", "preferred":
		return protocol.VerificationPreferred, nil
	case "required":
		return protocol.VerificationRequired, nil
	case "discouraged":
		return protocol.VerificationDiscouraged, nil
	}
	return "", fmt.Errorf("%w: user verification %q", ErrInvalidRequest, level)
}

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

package config

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// TLSConfig controls TLS on the listener. Passkeys need a secure context,
// so production deployments terminate TLS here or at a proxy in front.
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled" env:"ENABLED"`
	CertFile     string   `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile      string   `yaml:"key_file" env:"KEY_FILE"`
	MinVersion   string   `yaml:"min_version" env:"MIN_VERSION"` // TLS1.2, TLS1.3
	CipherSuites []string `yaml:"cipher_suites" env:"CIPHER_SUITES" envSeparator:","`
}

// Load builds a tls.Config. It returns nil when TLS is disabled.
func (cfg *TLSConfig) Load() (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	minVersion, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion defaults to TLS 1.2
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}

	if len(cfg.CipherSuites) > 0 {
		suites, err := parseCipherSuites(cfg.CipherSuites)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cipher suites: %w", err)
		}
		tlsConfig.CipherSuites = suites
	}
	return tlsConfig, nil
}

func parseTLSVersion(version string) (uint16, error) {
	switch strings.ToUpper(strings.TrimSpace(version)) {
	case "", "TLS1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls min_version: %s", version)
	}
}

// parseCipherSuites maps names to ids using the suites Go considers secure.
func parseCipherSuites(names []string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite: %s", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

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

// Package storage provides an abstraction layer for key-value storage backends.
// Records for users, credentials, invites and shares are kept as opaque byte
// values under slash-separated keys. Memory, file and sqlite implementations
// share the Backend interface.
package storage

import (
	"context"
	"io/fs"
)

// Backend defines the interface for storage backends.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores the value for the given key.
	// If the key already exists, it will be overwritten.
	Put(ctx context.Context, key string, value []byte, opts *Options) error

	// Create stores the value only if the key does not exist yet.
	// Returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, key string, value []byte, opts *Options) error

	// Delete removes the key and its value from storage.
	// Returns ErrNotFound if the key does not exist.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix in sorted order.
	// If prefix is empty, all keys are returned.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if a key exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Options contains optional parameters for storage operations.
type Options struct {
	// Permissions sets the file permissions for file-based storage
	Permissions fs.FileMode
}

// DefaultOptions returns Options with owner-only permissions.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600,
	}
}

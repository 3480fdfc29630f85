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

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend provides an in-memory storage implementation.
// It backs tests and single-process deployments that do not need
// durability. Values are copied on the way in and out.
type MemoryBackend struct {
	data   map[string][]byte
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates a new in-memory storage backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
	}
}

// Get retrieves the value for the given key.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	value, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	return clone(value), nil
}

// Put stores the value for the given key.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte, _ *Options) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.data[key] = clone(value)
	return nil
}

// Create stores the value only when the key is absent.
func (m *MemoryBackend) Create(_ context.Context, key string, value []byte, _ *Options) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.data[key]; exists {
		return ErrAlreadyExists
	}
	m.data[key] = clone(value)
	return nil
}

// Delete removes the key from storage.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.data[key]; !exists {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// List returns all keys with the given prefix.
func (m *MemoryBackend) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	keys := make([]string, 0)
	for key := range m.data {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, exists := m.data[key]
	return exists, nil
}

// Close marks the backend closed and drops its contents.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

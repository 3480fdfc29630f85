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

// Package file provides a file-based implementation of the storage.Backend interface.
// Each key maps to one file below the root directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-passkeyshare/pkg/storage"
)

const (
	defaultDirPerms  = 0700
	defaultFilePerms = 0600
)

// FileStorage stores key-value pairs as files in a directory hierarchy.
type FileStorage struct {
	mu      sync.RWMutex
	rootDir string
}

// New creates a FileStorage rooted at rootDir, creating it with 0700
// permissions if needed.
func New(rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to resolve root directory: %w", err)
	}
	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileStorage{rootDir: abs}, nil
}

// Get retrieves the value for the given key.
func (f *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}
	return data, nil
}

// Put writes the value for the given key, replacing any existing file.
// The write goes through a temporary file and rename so readers never
// observe a partial record.
func (f *FileStorage) Put(_ context.Context, key string, value []byte, opts *storage.Options) error {
	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	if err := tmp.Chmod(permissions(opts)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	return nil
}

// Create writes the value only if no file exists for the key.
func (f *FileStorage) Create(_ context.Context, key string, value []byte, opts *storage.Options) error {
	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, permissions(opts))
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("file storage: failed to create key %q: %w", key, err)
	}
	if _, err := file.Write(value); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("file storage: failed to create key %q: %w", key, err)
	}
	return file.Close()
}

// Delete removes the file for the given key.
func (f *FileStorage) Delete(_ context.Context, key string) error {
	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix in sorted order.
func (f *FileStorage) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0)
	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a file exists for the key.
func (f *FileStorage) Exists(_ context.Context, key string) (bool, error) {
	path, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}
	return true, nil
}

// Close is a no-op for file storage.
func (f *FileStorage) Close() error {
	return nil
}

// keyToPath validates the key and maps it below the root directory.
func (f *FileStorage) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// validateStorageKey allows slash-separated keys but blocks traversal.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}
	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot be an absolute path")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("key contains an invalid path segment")
		}
	}
	return nil
}

func permissions(opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	return defaultFilePerms
}

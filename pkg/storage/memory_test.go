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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PutAndGet(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put(ctx, "users/1", []byte("bob"), nil))

	result, err := backend.Get(ctx, "users/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("bob"), result)
}

func TestMemoryBackend_Get_NotFound(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	_, err := backend.Get(context.Background(), "nonexistent-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	value := []byte("original")
	require.NoError(t, backend.Put(ctx, "k", value, nil))
	value[0] = 'X'

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	got[0] = 'Y'
	again, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func TestMemoryBackend_Create(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	require.NoError(t, backend.Create(ctx, "users/by-name/bob", []byte("1"), nil))
	err := backend.Create(ctx, "users/by-name/bob", []byte("2"), nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := backend.Get(ctx, "users/by-name/bob")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))

	assert.ErrorIs(t, backend.Create(ctx, "", nil, nil), ErrInvalidKey)
}

func TestMemoryBackend_CreateConcurrent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := backend.Create(ctx, "race", []byte("x"), nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryBackend_Delete(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	require.NoError(t, backend.Put(ctx, "k", []byte("v"), nil))
	require.NoError(t, backend.Delete(ctx, "k"))

	exists, err := backend.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, backend.Delete(ctx, "k"), ErrNotFound)
}

func TestMemoryBackend_List(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()

	for _, k := range []string{"credentials/b", "users/2", "credentials/a", "users/1"} {
		require.NoError(t, backend.Put(ctx, k, []byte("v"), nil))
	}

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"all", "", []string{"credentials/a", "credentials/b", "users/1", "users/2"}},
		{"users", "users/", []string{"users/1", "users/2"}},
		{"none", "shares/", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := backend.List(ctx, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	require.NoError(t, backend.Close())

	_, err := backend.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Put(ctx, "k", nil, nil), ErrClosed)
	assert.ErrorIs(t, backend.Create(ctx, "k", nil, nil), ErrClosed)
	assert.ErrorIs(t, backend.Delete(ctx, "k"), ErrClosed)
	_, err = backend.List(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

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

package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
)

// fakeMinio implements minioAPI over an in-memory object map.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	statErr         error
	listErr         error

	objects map[string]string
	types   map[string]string
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) StatObject(_ context.Context, _ string, key string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if f.statErr != nil {
		return minioLib.ObjectInfo{}, f.statErr
	}
	data, ok := f.objects[key]
	if !ok {
		return minioLib.ObjectInfo{}, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return minioLib.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  f.types[key],
		LastModified: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeMinio) GetObject(_ context.Context, _ string, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader([]byte(data))), nil
}

func (f *fakeMinio) ListObjects(_ context.Context, _ string, opts minioLib.ListObjectsOptions) <-chan minioLib.ObjectInfo {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	ch := make(chan minioLib.ObjectInfo, len(keys)+1)
	if f.listErr != nil {
		ch <- minioLib.ObjectInfo{Err: f.listErr}
	}
	for _, k := range keys {
		ch <- minioLib.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}

func newFake() *fakeMinio {
	return &fakeMinio{
		bucketExists: true,
		objects: map[string]string{
			"shared/reports/q3.pdf":    "%PDF",
			"shared/reports/q3.json":   "{}",
			"shared/reports/q3-v2.pdf": "v2",
		},
		types: map[string]string{
			"shared/reports/q3.pdf": "application/pdf",
		},
	}
}

func newProvider(t *testing.T, api *fakeMinio) *Provider {
	t.Helper()
	p, err := NewClientWithAPI(context.Background(), api, "docs")
	require.NoError(t, err)
	p.prefix = cleanPrefix("/shared/")
	return p
}

func TestNewClientWithAPI(t *testing.T) {
	ctx := context.Background()

	p, err := NewClientWithAPI(ctx, &fakeMinio{bucketExists: true}, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", p.bucket)

	_, err = NewClientWithAPI(ctx, &fakeMinio{bucketExists: false}, "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = NewClientWithAPI(ctx, &fakeMinio{bucketExistsErr: errors.New("boom")}, "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check bucket")
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Endpoint: "localhost:9000", Bucket: "docs"}
	assert.NoError(t, cfg.Validate())

	cfg.Bucket = ""
	assert.Error(t, cfg.Validate())

	cfg = Config{Bucket: "docs"}
	assert.Error(t, cfg.Validate())
}

func TestStat(t *testing.T) {
	p := newProvider(t, newFake())
	ctx := context.Background()

	info, err := p.Stat(ctx, "reports/q3.pdf")
	require.NoError(t, err)
	assert.Equal(t, "reports/q3.pdf", info.Ref)
	assert.Equal(t, "q3", info.Title)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, []string{"json", "pdf"}, info.Formats)

	info, err = p.Stat(ctx, "reports/q3.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)

	_, err = p.Stat(ctx, "reports/missing.pdf")
	assert.ErrorIs(t, err, files.ErrNotFound)

	_, err = p.Stat(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, files.ErrInvalidRef)
}

func TestStatBackendErrors(t *testing.T) {
	api := newFake()
	api.statErr = errors.New("connection refused")
	p := newProvider(t, api)

	_, err := p.Stat(context.Background(), "reports/q3.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, files.ErrNotFound)

	api = newFake()
	api.listErr = errors.New("list failed")
	p = newProvider(t, api)
	_, err = p.Stat(context.Background(), "reports/q3.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list failed")
}

func TestOpen(t *testing.T) {
	p := newProvider(t, newFake())
	ctx := context.Background()

	rc, info, err := p.Open(ctx, "reports/q3.pdf", "json")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
	assert.Equal(t, "reports/q3.json", info.Ref)

	_, _, err = p.Open(ctx, "reports/q3.pdf", "xlsx")
	assert.ErrorIs(t, err, files.ErrUnknownFormat)
}

func TestPing(t *testing.T) {
	api := newFake()
	p := newProvider(t, api)
	assert.NoError(t, p.Ping(context.Background()))

	api.bucketExists = false
	assert.Error(t, p.Ping(context.Background()))

	api.bucketExistsErr = errors.New("down")
	assert.Error(t, p.Ping(context.Background()))
}

func TestCleanPrefix(t *testing.T) {
	assert.Equal(t, "", cleanPrefix(""))
	assert.Equal(t, "", cleanPrefix("/"))
	assert.Equal(t, "shared", cleanPrefix("/shared/"))
	assert.Equal(t, "a/b", cleanPrefix("a//b"))
}

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

// Package minio serves shared files from an S3-compatible bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
)

// Config locates the bucket.
type Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" json:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" json:"-" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" json:"bucket" env:"BUCKET"`
	Prefix    string `yaml:"prefix" json:"prefix" env:"PREFIX"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl" env:"USE_SSL"`
}

// Validate checks the fields needed to connect.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("minio: bucket is required")
	}
	return nil
}

// minioAPI is the subset of *minio.Client the provider uses.
type minioAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type minioClientWrapper struct {
	c *minio.Client
}

func (w *minioClientWrapper) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return w.c.BucketExists(ctx, bucket)
}

func (w *minioClientWrapper) StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucket, object, opts)
}

func (w *minioClientWrapper) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return w.c.GetObject(ctx, bucket, object, opts)
}

func (w *minioClientWrapper) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return w.c.ListObjects(ctx, bucket, opts)
}

// Provider reads files from one bucket. References are object keys
// relative to the configured prefix.
type Provider struct {
	api    minioAPI
	bucket string
	prefix string
}

var _ files.Provider = (*Provider)(nil)

// New connects to the bucket described by cfg.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}
	p, err := NewClient(ctx, client, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	p.prefix = cleanPrefix(cfg.Prefix)
	return p, nil
}

// NewClient wraps an existing client. The bucket must already exist.
func NewClient(ctx context.Context, client *minio.Client, bucket string) (*Provider, error) {
	return NewClientWithAPI(ctx, &minioClientWrapper{c: client}, bucket)
}

// NewClientWithAPI is NewClient over any implementation of the client API.
func NewClientWithAPI(ctx context.Context, api minioAPI, bucket string) (*Provider, error) {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio: bucket %q does not exist", bucket)
	}
	return &Provider{api: api, bucket: bucket}, nil
}

// Stat describes ref and lists the formats stored next to it.
func (p *Provider) Stat(ctx context.Context, ref string) (*files.Info, error) {
	ref, err := files.CleanRef(ref)
	if err != nil {
		return nil, err
	}

	obj, err := p.api.StatObject(ctx, p.bucket, p.key(ref), minio.StatObjectOptions{})
	if err != nil {
		return nil, p.translate(ref, err)
	}

	base, format := files.SplitRef(ref)
	formats, err := p.formats(ctx, base)
	if err != nil {
		return nil, err
	}

	contentType := obj.ContentType
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = files.ContentType(format)
	}
	return &files.Info{
		Ref:         ref,
		Title:       files.Title(ref),
		ContentType: contentType,
		Size:        obj.Size,
		Modified:    obj.LastModified.UTC(),
		Formats:     formats,
	}, nil
}

// Open streams ref, or the sibling holding format.
func (p *Provider) Open(ctx context.Context, ref, format string) (io.ReadCloser, *files.Info, error) {
	info, err := p.Stat(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	target, err := files.ResolveFormat(info, format)
	if err != nil {
		return nil, nil, err
	}
	if target != info.Ref {
		if info, err = p.Stat(ctx, target); err != nil {
			return nil, nil, err
		}
	}

	rc, err := p.api.GetObject(ctx, p.bucket, p.key(info.Ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, p.translate(info.Ref, err)
	}
	return rc, info, nil
}

// Ping checks that the bucket is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	exists, err := p.api.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("minio: ping: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio: bucket %q does not exist", p.bucket)
	}
	return nil
}

func (p *Provider) formats(ctx context.Context, base string) ([]string, error) {
	var names []string
	for obj := range p.api.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: p.key(base) + "."}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", base, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return files.SiblingFormats(base, names), nil
}

func (p *Provider) key(ref string) string {
	if p.prefix == "" {
		return ref
	}
	return p.prefix + "/" + ref
}

func (p *Provider) translate(ref string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %s", files.ErrNotFound, ref)
	}
	return fmt.Errorf("minio: %s: %w", ref, err)
}

func cleanPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	cleaned := path.Clean("/" + prefix)
	if cleaned == "/" {
		return ""
	}
	return cleaned[1:]
}

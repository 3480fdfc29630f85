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

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkeyshare/internal/config"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files/minio"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/storage"
	"github.com/jeremyhahn/go-passkeyshare/pkg/storage/file"
	"github.com/jeremyhahn/go-passkeyshare/pkg/storage/sqlite"
	"github.com/jeremyhahn/go-passkeyshare/pkg/store"
)

// app is the storage and domain layer shared by every command.
type app struct {
	cfg        *config.Config
	log        logger.Logger
	kv         *store.KVStore
	identities *identity.Resolver
	authorizer *claimable.Authorizer
	files      files.Provider
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	backend, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	kv, err := store.NewKVStore(backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	provider, err := openFiles(ctx, cfg.Files)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("open files: %w", err)
	}

	resolver := identity.NewResolver(kv, kv)
	return &app{
		cfg:        cfg,
		log:        log,
		kv:         kv,
		identities: resolver,
		authorizer: claimable.NewAuthorizer(kv, resolver, claimable.WithLogger(log)),
		files:      provider,
	}, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}

// requirePersistent rejects the memory backend for commands whose effect
// must outlive the process.
func (a *app) requirePersistent() error {
	if a.cfg.Storage.Backend == config.StorageMemory {
		return errors.New("this command needs persistent storage: set storage.backend to file or sqlite")
	}
	return nil
}

func openBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageFile:
		b, err := file.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.StorageSQLite:
		b, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// openFiles returns nil when no provider is configured.
func openFiles(ctx context.Context, cfg config.FilesConfig) (files.Provider, error) {
	switch cfg.Provider {
	case config.FilesNone:
		return nil, nil
	case config.FilesLocal:
		l, err := files.NewLocal(cfg.Root)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.FilesMinIO:
		p, err := minio.New(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown files provider: %s", cfg.Provider)
	}
}

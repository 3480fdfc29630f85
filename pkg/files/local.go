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

package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Local serves files from a directory tree.
type Local struct {
	root string
}

var _ Provider = (*Local)(nil)

// NewLocal creates a provider rooted at dir, which must exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("files: resolve root: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("files: open root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("files: root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// Root returns the directory files are served from.
func (l *Local) Root() string {
	return l.root
}

// Stat describes ref and lists its sibling formats.
func (l *Local) Stat(_ context.Context, ref string) (*Info, error) {
	ref, err := CleanRef(ref)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(l.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("files: stat %s: %w", ref, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, ref)
	}

	entries, err := os.ReadDir(filepath.Dir(l.path(ref)))
	if err != nil {
		return nil, fmt.Errorf("files: list %s: %w", path.Dir(ref), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	base, format := SplitRef(ref)
	return &Info{
		Ref:         ref,
		Title:       Title(ref),
		ContentType: ContentType(format),
		Size:        fi.Size(),
		Modified:    fi.ModTime().UTC(),
		Formats:     SiblingFormats(base, names),
	}, nil
}

// Open returns the content of ref in the requested format.
func (l *Local) Open(ctx context.Context, ref, format string) (io.ReadCloser, *Info, error) {
	info, err := l.Stat(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	target, err := ResolveFormat(info, format)
	if err != nil {
		return nil, nil, err
	}
	if target != info.Ref {
		if info, err = l.Stat(ctx, target); err != nil {
			return nil, nil, err
		}
	}

	f, err := os.Open(l.path(info.Ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, info.Ref)
		}
		return nil, nil, fmt.Errorf("files: open %s: %w", info.Ref, err)
	}
	return f, info, nil
}

// Ping checks that the root is still a readable directory.
func (l *Local) Ping(_ context.Context) error {
	fi, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("files: root: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("files: root %s is not a directory", l.root)
	}
	return nil
}

func (l *Local) path(ref string) string {
	return filepath.Join(l.root, filepath.FromSlash(ref))
}

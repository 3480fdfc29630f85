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

// Package files serves the documents that shares point at. A reference
// names one object; objects sharing its base name are the other formats
// the same document is available in.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the referenced file does not exist.
	ErrNotFound = errors.New("files: not found")

	// ErrInvalidRef is returned for empty or escaping references.
	ErrInvalidRef = errors.New("files: invalid reference")

	// ErrUnknownFormat is returned when a file is not available in the
	// requested format.
	ErrUnknownFormat = errors.New("files: format not available")
)

// Info describes a stored file. Formats lists the extensions, without the
// dot, of every sibling sharing the base name, including the file's own.
type Info struct {
	Ref         string    `json:"ref"`
	Title       string    `json:"title"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	Formats     []string  `json:"formats"`
}

// Provider reads files by reference.
type Provider interface {
	// Stat describes ref.
	Stat(ctx context.Context, ref string) (*Info, error)

	// Open returns the content of ref in the given format. A blank format
	// opens ref itself.
	Open(ctx context.Context, ref, format string) (io.ReadCloser, *Info, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// CleanRef normalizes ref to a slash-separated relative path. References
// that are empty or climb out of the root are rejected.
func CleanRef(ref string) (string, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" || strings.HasPrefix(ref, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	cleaned := path.Clean(ref)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return cleaned, nil
}

// SplitRef splits ref into its base (directory and name without the
// extension) and its extension without the dot.
func SplitRef(ref string) (base, format string) {
	ext := path.Ext(ref)
	if ext == "" || ext == "." {
		return ref, ""
	}
	return strings.TrimSuffix(ref, ext), ext[1:]
}

// Title is the file name of ref without directory or extension.
func Title(ref string) string {
	base, _ := SplitRef(ref)
	return path.Base(base)
}

// ContentType guesses the media type of a format.
func ContentType(format string) string {
	if format != "" {
		if ct := mime.TypeByExtension("." + format); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

// FormatRef returns the sibling of ref holding the given format.
func FormatRef(ref, format string) string {
	base, _ := SplitRef(ref)
	if format == "" {
		return ref
	}
	return base + "." + format
}

// SiblingFormats picks the formats of base out of names, which may be
// bare file names or full keys.
func SiblingFormats(base string, names []string) []string {
	prefix := path.Base(base) + "."
	seen := make(map[string]struct{})
	for _, n := range names {
		rest, ok := strings.CutPrefix(path.Base(n), prefix)
		if !ok || rest == "" || strings.Contains(rest, ".") {
			continue
		}
		seen[rest] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ResolveFormat returns the reference holding info's document in the
// requested format. A blank format resolves to info.Ref.
func ResolveFormat(info *Info, format string) (string, error) {
	format = strings.TrimPrefix(strings.TrimSpace(format), ".")
	if format == "" {
		return info.Ref, nil
	}
	for _, f := range info.Formats {
		if strings.EqualFold(f, format) {
			return FormatRef(info.Ref, f), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestCleanRef(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "reports/./q3.pdf", want: "reports/q3.pdf"},
		{in: `reports\q3.pdf`, want: "reports/q3.pdf"},
		{in: "a/../b.txt", want: "b.txt"},
		{in: "", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "../secret", wantErr: true},
		{in: "a/../../secret", wantErr: true},
		{in: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitRefAndTitle(t *testing.T) {
	base, format := SplitRef("reports/q3.pdf")
	assert.Equal(t, "reports/q3", base)
	assert.Equal(t, "pdf", format)

	base, format = SplitRef("README")
	assert.Equal(t, "README", base)
	assert.Empty(t, format)

	assert.Equal(t, "q3", Title("reports/q3.pdf"))
	assert.Equal(t, "reports/q3.csv", FormatRef("reports/q3.pdf", "csv"))
	assert.Equal(t, "reports/q3.pdf", FormatRef("reports/q3.pdf", ""))
	assert.Equal(t, "application/pdf", ContentType("pdf"))
	assert.Equal(t, "application/octet-stream", ContentType("zzz-unknown"))
}

func TestLocalStat(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"reports/q3.pdf":     "%PDF",
		"reports/q3.csv":     "a,b",
		"reports/q3.tar.gz":  "x",
		"reports/q3-old.pdf": "old",
		"reports/q4.pdf":     "q4",
	})

	l, err := NewLocal(root)
	require.NoError(t, err)

	info, err := l.Stat(context.Background(), "reports/q3.pdf")
	require.NoError(t, err)
	assert.Equal(t, "reports/q3.pdf", info.Ref)
	assert.Equal(t, "q3", info.Title)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, []string{"csv", "pdf"}, info.Formats)

	_, err = l.Stat(context.Background(), "reports/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Stat(context.Background(), "reports")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Stat(context.Background(), "../outside.txt")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestLocalOpen(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"q3.pdf":  "%PDF",
		"q3.json": "{}",
	})
	l, err := NewLocal(root)
	require.NoError(t, err)
	ctx := context.Background()

	rc, info, err := l.Open(ctx, "q3.pdf", "")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF", string(body))
	assert.Equal(t, "q3.pdf", info.Ref)

	rc, info, err = l.Open(ctx, "q3.pdf", ".JSON")
	require.NoError(t, err)
	body, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "{}", string(body))
	assert.Equal(t, "q3.json", info.Ref)
	assert.Equal(t, "application/json", info.ContentType)

	_, _, err = l.Open(ctx, "q3.pdf", "docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestNewLocalRequiresDirectory(t *testing.T) {
	_, err := NewLocal(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"file.txt": "x"})
	_, err = NewLocal(filepath.Join(root, "file.txt"))
	assert.Error(t, err)

	l, err := NewLocal(root)
	require.NoError(t, err)
	assert.NoError(t, l.Ping(context.Background()))
}

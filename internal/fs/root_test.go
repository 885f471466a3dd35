package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	root, err := NewRoot(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return root
}

func TestNewRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	root, err := NewRoot(dir)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(root.Path()))
	assert.DirExists(t, dir)
}

func TestSanitize(t *testing.T) {
	root := newTestRoot(t)

	tests := []struct {
		name    string
		raw     string
		want    RelativePath
		wantErr bool
	}{
		{name: "empty is the root", raw: "", want: nil},
		{name: "single segment", raw: "reports", want: RelativePath{"reports"}},
		{name: "nested", raw: "reports/2024/q1", want: RelativePath{"reports", "2024", "q1"}},
		{name: "empty segments are dropped", raw: "reports//2024/", want: RelativePath{"reports", "2024"}},
		{name: "backslash separator", raw: `reports\2024`, want: RelativePath{"reports", "2024"}},
		{name: "dots inside a name", raw: "v1.2/..hidden", want: RelativePath{"v1.2", "..hidden"}},
		{name: "spaces and unicode", raw: "Médico/año 2024", want: RelativePath{"Médico", "año 2024"}},
		{name: "parent segment", raw: "..", wantErr: true},
		{name: "parent segment in the middle", raw: "reports/../../etc", wantErr: true},
		{name: "parent segment with backslash", raw: `reports\..\..`, wantErr: true},
		{name: "current segment", raw: "./reports", wantErr: true},
		{name: "absolute path", raw: "/etc/passwd", wantErr: true},
		{name: "leading backslash", raw: `\etc`, wantErr: true},
		{name: "nul byte", raw: "reports/a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := root.Sanitize(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			rel, err := filepath.Rel(root.Path(), root.Abs(got))
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(rel, ".."))
		})
	}
}

func TestSanitizeSymlinks(t *testing.T) {
	root := newTestRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root.Path(), "inside"), 0o755))

	require.NoError(t, os.Symlink(outside, filepath.Join(root.Path(), "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root.Path(), "inside"), filepath.Join(root.Path(), "alias")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root.Path(), "dangling")))

	t.Run("symlink pointing outside the root", func(t *testing.T) {
		_, err := root.Sanitize("escape")
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	})

	t.Run("missing path below an escaping symlink", func(t *testing.T) {
		_, err := root.Sanitize("escape/new/dir")
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	})

	t.Run("dangling symlink", func(t *testing.T) {
		_, err := root.Sanitize("dangling/x")
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	})

	t.Run("symlink staying inside the root", func(t *testing.T) {
		got, err := root.Sanitize("alias/new")
		require.NoError(t, err)
		assert.Equal(t, RelativePath{"alias", "new"}, got)
	})
}

func TestSanitizeRootBehindSymlink(t *testing.T) {
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(target, link))

	root, err := NewRoot(link)
	require.NoError(t, err)

	got, err := root.Sanitize("reports/2024")
	require.NoError(t, err)
	assert.Equal(t, "reports/2024", got.String())
}

func TestRelativePath(t *testing.T) {
	p := RelativePath{"reports", "2024", "invoice.pdf"}

	assert.Equal(t, "reports/2024/invoice.pdf", p.String())
	assert.Equal(t, "invoice.pdf", p.Base())
	assert.Equal(t, RelativePath{"reports", "2024"}, p.Dir())
	assert.False(t, p.IsRoot())

	var empty RelativePath
	assert.True(t, empty.IsRoot())
	assert.Equal(t, "", empty.Base())
	assert.Equal(t, "", empty.String())
}

func TestPolicy(t *testing.T) {
	policy := Policy{MaxSize: 10, AllowedExtensions: []string{".pdf", ".PNG"}}

	tests := []struct {
		name string
		want bool
	}{
		{"invoice.pdf", true},
		{"INVOICE.PDF", true},
		{"scan.png", true},
		{"archive.tar.pdf", true},
		{"notes.txt", false},
		{"pdf", false},
		{".pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.name))
		})
	}
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_.pdf", SafeFilename(`a/b\c:d*e?f"g<h>i|.pdf`))
	assert.Equal(t, "factura 2024 (1).pdf", SafeFilename("factura 2024 (1).pdf"))
}

package documents_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/docs-stash/internal/database"
	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
)

func TestRegistryUpload(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("registers the document and writes the file", func(t *testing.T) {
		content := strings.Repeat("x", 500)
		req := env.upload("invoice.pdf", content, "reports/2024")
		req.ClientID = &env.acme.ID

		doc, err := env.registry.Upload(ctx, req)
		require.NoError(t, err)

		sum := sha256.Sum256([]byte(content))
		assert.Equal(t, hex.EncodeToString(sum[:]), doc.FileHash)
		assert.Equal(t, "invoice.pdf", doc.Filename)
		assert.Equal(t, "Factura", doc.DocumentType)
		assert.Equal(t, "Financiero", doc.Category)
		require.NotNil(t, doc.Client)
		assert.Equal(t, "ACME", *doc.Client)
		assert.Equal(t, int64(500), doc.FileSize)
		assert.Equal(t, filepath.Join(env.root.Path(), "reports", "2024", "invoice.pdf"), doc.LocalPath)
		assert.Equal(t, env.clock.Now(), doc.UploadDate)
		assert.True(t, doc.FileExists)
		assert.FileExists(t, doc.LocalPath)

		stored, err := env.registry.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.FileHash, stored.FileHash)
		assert.True(t, stored.FileExists)
	})

	t.Run("explicit upload date", func(t *testing.T) {
		date := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
		req := env.upload("receipt.pdf", "receipt", "reports/2023")
		req.UploadDate = &date

		doc, err := env.registry.Upload(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, date, doc.UploadDate)
	})

	t.Run("identical content under another name is a conflict", func(t *testing.T) {
		_, err := env.registry.Upload(ctx, env.upload("copy.pdf", strings.Repeat("x", 500), "elsewhere"))
		assert.ErrorIs(t, err, domain.ErrConflict)

		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "document", conflict.ResourceType)
		assert.NoFileExists(t, filepath.Join(env.root.Path(), "elsewhere", "copy.pdf"))
	})

	t.Run("same name in the same directory is a conflict", func(t *testing.T) {
		_, err := env.registry.Upload(ctx, env.upload("invoice.pdf", "different bytes", "reports/2024"))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown references are validation errors", func(t *testing.T) {
		missing := int64(999)

		req := env.upload("a.pdf", "a", "refs")
		req.DocumentTypeID = missing
		_, err := env.registry.Upload(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)

		req = env.upload("a.pdf", "a", "refs")
		req.CategoryID = missing
		_, err = env.registry.Upload(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)

		req = env.upload("a.pdf", "a", "refs")
		req.ClientID = &missing
		_, err = env.registry.Upload(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)

		assert.NoFileExists(t, filepath.Join(env.root.Path(), "refs", "a.pdf"))
	})

	t.Run("file validations run first", func(t *testing.T) {
		_, err := env.registry.Upload(ctx, env.upload("notes.txt", "n", "misc"))
		assert.ErrorIs(t, err, domain.ErrInvalidFileType)

		_, err = env.registry.Upload(ctx, env.upload("big.pdf", strings.Repeat("b", 1<<20+1), "misc"))
		assert.ErrorIs(t, err, domain.ErrTooLarge)

		_, err = env.registry.Upload(ctx, env.upload("evil.pdf", "e", "../misc"))
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	})
}

type failingInsertRepo struct {
	*database.Repository
}

func (r failingInsertRepo) CreateDocument(context.Context, *documents.Document) error {
	return errors.New("disk I/O error")
}

func TestRegistryUploadRemovesFileWhenInsertFails(t *testing.T) {
	env := setup(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := documents.NewRegistry(env.files, failingInsertRepo{env.repo}, env.clock, logger)

	_, err := registry.Upload(context.Background(), env.upload("invoice.pdf", "bytes", "reports"))
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(env.root.Path(), "reports", "invoice.pdf"))
}

func TestRegistryDelete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("registered document removes row and file", func(t *testing.T) {
		doc, err := env.registry.Upload(ctx, env.upload("invoice.pdf", "registered", "reports/2024"))
		require.NoError(t, err)

		result, err := env.registry.Delete(ctx, "reports/2024/invoice.pdf")
		require.NoError(t, err)
		assert.True(t, result.FromDatabase)
		require.NotNil(t, result.Document)
		assert.Equal(t, doc.ID, result.Document.ID)
		assert.Equal(t, env.clock.Now(), result.DeletedAt)

		_, err = env.files.Resolve("reports/2024/invoice.pdf")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = env.registry.Get(ctx, doc.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unregistered file removes only the file", func(t *testing.T) {
		_, err := env.files.Upload("loose.pdf", []byte("loose"), "reports")
		require.NoError(t, err)

		result, err := env.registry.Delete(ctx, "reports/loose.pdf")
		require.NoError(t, err)
		assert.False(t, result.FromDatabase)
		assert.Nil(t, result.Document)
		assert.NoFileExists(t, filepath.Join(env.root.Path(), "reports", "loose.pdf"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := env.registry.Delete(ctx, "reports/missing.pdf")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("bare filename", func(t *testing.T) {
		_, err := env.registry.Delete(ctx, "invoice.pdf")
		assert.ErrorIs(t, err, domain.ErrInvalidPath)
	})

	t.Run("same content can be registered again after deletion", func(t *testing.T) {
		_, err := env.registry.Upload(ctx, env.upload("invoice.pdf", "registered", "reports/2024"))
		assert.NoError(t, err)
	})
}

func TestRegistryDeleteKeepsRowWhenFileRemovalFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	env := setup(t)
	ctx := context.Background()

	doc, err := env.registry.Upload(ctx, env.upload("invoice.pdf", "locked", "locked"))
	require.NoError(t, err)

	dir := filepath.Join(env.root.Path(), "locked")
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	_, err = env.registry.Delete(ctx, "locked/invoice.pdf")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := env.registry.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.FileExists)
}

func TestRecursiveDirectoryDeleteLeavesRowsUnreconciled(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	registered, err := env.registry.Upload(ctx, env.upload("invoice.pdf", "registered", "archive/2024"))
	require.NoError(t, err)
	_, err = env.files.Upload("loose.pdf", []byte("loose"), "archive/2024")
	require.NoError(t, err)

	require.NoError(t, env.dirs.DeleteRecursive("archive"))

	assert.NoFileExists(t, registered.LocalPath)
	assert.NoFileExists(t, filepath.Join(env.root.Path(), "archive", "2024", "loose.pdf"))

	doc, err := env.registry.Get(ctx, registered.ID)
	require.NoError(t, err)
	assert.False(t, doc.FileExists)

	docs, err := env.registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].FileExists)

	_, err = env.registry.Delete(ctx, "archive/2024/invoice.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The stale row still holds the hash.
	_, err = env.registry.Upload(ctx, env.upload("invoice.pdf", "registered", "archive/2025"))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

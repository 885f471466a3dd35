package documents_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/docs-stash/internal/database"
	"github.com/pavel-fokin/docs-stash/internal/database/migrations"
	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/fs"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

func (c *stubClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	root       *fs.Root
	files      *fs.Files
	dirs       *fs.Directories
	repo       *database.Repository
	clock      *stubClock
	registry   *documents.Registry
	references *documents.References

	factura    *documents.DocumentType
	financiero *documents.Category
	acme       *documents.Client
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	root, err := fs.NewRoot(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	policy := fs.Policy{MaxSize: 1 << 20, AllowedExtensions: []string{".pdf"}}

	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.MigrateUp(db, database.DriverSQLite))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := database.NewRepository(db, database.DriverSQLite, logger)
	clock := &stubClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	files := fs.NewFiles(root, policy)

	env := &testEnv{
		root:       root,
		files:      files,
		dirs:       fs.NewDirectories(root, policy),
		repo:       repo,
		clock:      clock,
		registry:   documents.NewRegistry(files, repo, clock, logger),
		references: documents.NewReferences(repo, clock, logger),
	}

	ctx := context.Background()
	env.factura, err = env.references.CreateDocumentType(ctx, &documents.CreateDocumentTypeRequest{Name: "Factura"})
	require.NoError(t, err)
	env.financiero, err = env.references.CreateCategory(ctx, &documents.CreateCategoryRequest{Name: "Financiero", Color: "#10b981"})
	require.NoError(t, err)
	env.acme, err = env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "ACME", Email: "info@acme.test"})
	require.NoError(t, err)

	return env
}

func (env *testEnv) upload(filename, content, dest string) documents.UploadRequest {
	return documents.UploadRequest{
		Filename:       filename,
		Content:        []byte(content),
		Destination:    dest,
		DocumentTypeID: env.factura.ID,
		CategoryID:     env.financiero.ID,
	}
}

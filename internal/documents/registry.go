package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// Registry writes uploaded files through the file store and keeps the
// metadata store in step with them.
type Registry struct {
	files  FileStorage
	repo   Repository
	clock  Clock
	logger *slog.Logger
}

// NewRegistry creates a document registry.
func NewRegistry(files FileStorage, repo Repository, clock Clock, logger *slog.Logger) *Registry {
	return &Registry{
		files:  files,
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// UploadRequest is a file upload with its metadata references.
type UploadRequest struct {
	Filename       string
	Content        []byte
	Destination    string
	DocumentTypeID int64
	CategoryID     int64
	ClientID       *int64
	UploadDate     *time.Time // defaults to now
}

// Upload validates the file and its metadata, rejects content that is already
// registered and only then writes the file and inserts the document row. When
// the insert or the commit fails after the write, the written file is removed
// again so no unregistered file is left behind.
func (r *Registry) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	upload, err := r.files.Prepare(req.Filename, req.Content, req.Destination)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(req.Content)
	hash := hex.EncodeToString(sum[:])

	now := r.clock.Now()
	doc := &Document{
		Filename:       upload.Name,
		FileHash:       hash,
		DocumentTypeID: req.DocumentTypeID,
		CategoryID:     req.CategoryID,
		ClientID:       req.ClientID,
		LocalPath:      upload.AbsPath(),
		UploadDate:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.UploadDate != nil {
		doc.UploadDate = req.UploadDate.UTC()
	}

	written := false
	err = r.repo.ExecTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.FindDocumentByHash(ctx, hash)
		switch {
		case err == nil:
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a document with the same content already exists: %s", existing.Filename),
				ResourceType: "document",
				ResourceID:   strconv.FormatInt(existing.ID, 10),
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if err := r.resolveReferences(ctx, doc); err != nil {
			return err
		}

		stored, err := r.files.Write(upload)
		if err != nil {
			return err
		}
		written = true
		doc.FileSize = stored.Size

		return r.repo.CreateDocument(ctx, doc)
	})
	if err != nil {
		if written {
			if rmErr := r.files.Remove(upload.AbsPath()); rmErr != nil {
				r.logger.Error("Failed to remove unregistered file", "path", upload.Path(), "error", rmErr)
			}
		}
		return nil, err
	}

	doc.FileExists = true
	r.logger.Info("Document registered",
		"document_id", doc.ID,
		"path", upload.Path(),
		"size", doc.FileSize,
		"hash", hash,
	)
	return doc, nil
}

// resolveReferences checks that every referenced entity exists and copies
// their names onto doc.
func (r *Registry) resolveReferences(ctx context.Context, doc *Document) error {
	docType, err := r.repo.FindDocumentType(ctx, doc.DocumentTypeID)
	if err != nil {
		return missingReference(err, "document type", doc.DocumentTypeID)
	}
	doc.DocumentType = docType.Name

	category, err := r.repo.FindCategory(ctx, doc.CategoryID)
	if err != nil {
		return missingReference(err, "category", doc.CategoryID)
	}
	doc.Category = category.Name

	if doc.ClientID != nil {
		client, err := r.repo.FindClient(ctx, *doc.ClientID)
		if err != nil {
			return missingReference(err, "client", *doc.ClientID)
		}
		doc.Client = &client.Name
	}
	return nil
}

func missingReference(err error, kind string, id int64) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s %d does not exist", domain.ErrValidation, kind, id)
	}
	return err
}

// Delete removes the file at filePath together with the document registered
// for it, if any. The row is deleted first in the same transaction as the
// file; when the file cannot be removed the row deletion is rolled back.
func (r *Registry) Delete(ctx context.Context, filePath string) (*DeletionResult, error) {
	abs, err := r.files.Resolve(filePath)
	if err != nil {
		return nil, err
	}

	result := &DeletionResult{Path: filePath}
	err = r.repo.ExecTx(ctx, func(ctx context.Context) error {
		doc, err := r.repo.FindDocumentByPath(ctx, abs)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			result.FromDatabase = false
		case err != nil:
			return err
		default:
			if err := r.repo.DeleteDocument(ctx, doc.ID); err != nil {
				return err
			}
			doc.FileExists = false
			result.FromDatabase = true
			result.Document = doc
		}

		return r.files.Remove(abs)
	})
	if err != nil {
		return nil, err
	}

	result.DeletedAt = r.clock.Now()
	r.logger.Info("File deleted", "path", filePath, "from_database", result.FromDatabase)
	return result, nil
}

// Get returns a document by id.
func (r *Registry) Get(ctx context.Context, id int64) (*Document, error) {
	doc, err := r.repo.FindDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.FileExists = r.files.Exists(doc.LocalPath)
	return doc, nil
}

// List returns every registered document, newest first.
func (r *Registry) List(ctx context.Context) ([]Document, error) {
	docs, err := r.repo.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].FileExists = r.files.Exists(docs[i].LocalPath)
	}
	return docs, nil
}

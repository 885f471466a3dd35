package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// Repository implements documents.Repository on database/sql.
type Repository struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

var _ documents.Repository = (*Repository)(nil)

// NewRepository creates a repository over an open, migrated database.
func NewRepository(db *sql.DB, driver string, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		driver: driver,
		logger: logger,
	}
}

const selectDocument = `
	SELECT d.id, d.filename, d.file_hash,
		d.document_type_id, t.name, d.category_id, c.name, d.client_id, cl.name,
		d.local_path, d.file_size, d.upload_date, d.created_at, d.updated_at
	FROM documents d
	JOIN document_types t ON t.id = d.document_type_id
	JOIN categories c ON c.id = d.category_id
	LEFT JOIN clients cl ON cl.id = d.client_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*documents.Document, error) {
	var (
		doc        documents.Document
		clientID   sql.NullInt64
		clientName sql.NullString
	)
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.FileHash,
		&doc.DocumentTypeID,
		&doc.DocumentType,
		&doc.CategoryID,
		&doc.Category,
		&clientID,
		&clientName,
		&doc.LocalPath,
		&doc.FileSize,
		&doc.UploadDate,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		doc.ClientID = &clientID.Int64
	}
	if clientName.Valid {
		doc.Client = &clientName.String
	}
	return &doc, nil
}

// CreateDocument inserts doc and sets its ID.
func (r *Repository) CreateDocument(ctx context.Context, doc *documents.Document) error {
	query := `
	INSERT INTO documents (filename, file_hash, document_type_id, category_id, client_id,
		local_path, file_size, upload_date, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`

	err := r.queryRow(ctx, query,
		doc.Filename,
		doc.FileHash,
		doc.DocumentTypeID,
		doc.CategoryID,
		nullInt64(doc.ClientID),
		doc.LocalPath,
		doc.FileSize,
		doc.UploadDate,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&doc.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return &domain.ConflictError{
				Message:      "a document with the same content already exists",
				ResourceType: "document",
				ResourceID:   doc.FileHash,
			}
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: referenced document type, category or client does not exist", domain.ErrValidation)
		}
		return fmt.Errorf("failed to create document record: %w", storageErr(err))
	}
	return nil
}

// FindDocumentByID retrieves a document by ID
func (r *Repository) FindDocumentByID(ctx context.Context, id int64) (*documents.Document, error) {
	return r.findDocument(ctx, "document "+strconv.FormatInt(id, 10), selectDocument+` WHERE d.id = ?`, id)
}

// FindDocumentByHash retrieves a document by content hash
func (r *Repository) FindDocumentByHash(ctx context.Context, hash string) (*documents.Document, error) {
	return r.findDocument(ctx, "document with hash "+hash, selectDocument+` WHERE d.file_hash = ?`, hash)
}

// FindDocumentByPath retrieves the most recent document stored at localPath
func (r *Repository) FindDocumentByPath(ctx context.Context, localPath string) (*documents.Document, error) {
	return r.findDocument(ctx, "document at "+localPath,
		selectDocument+` WHERE d.local_path = ? ORDER BY d.id DESC LIMIT 1`, localPath)
}

func (r *Repository) findDocument(ctx context.Context, what, query string, args ...any) (*documents.Document, error) {
	doc, err := scanDocument(r.queryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find %s: %w", what, storageErr(err))
	}
	return doc, nil
}

// ListDocuments retrieves all documents, newest first
func (r *Repository) ListDocuments(ctx context.Context) ([]documents.Document, error) {
	rows, err := r.query(ctx, selectDocument+` ORDER BY d.upload_date DESC, d.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", storageErr(err))
	}
	defer rows.Close()

	docs := []documents.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", storageErr(err))
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", storageErr(err))
	}
	return docs, nil
}

// DeleteDocument removes a document by ID
func (r *Repository) DeleteDocument(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "documents", "document", id)
}

func (r *Repository) deleteByID(ctx context.Context, table, what string, id int64) error {
	result, err := r.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s %d is referenced by documents", domain.ErrInUse, what, id)
		}
		return fmt.Errorf("failed to delete %s: %w", what, storageErr(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", storageErr(err))
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) countDocuments(ctx context.Context, column string, id int64) (int, error) {
	var n int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM documents WHERE `+column+` = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", storageErr(err))
	}
	return n, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to find %s: %w", what, storageErr(err))
}

func conflictOr(err error, resourceType, name string) error {
	if isUniqueViolation(err) {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("%s named %q already exists", resourceType, name),
			ResourceType: resourceType,
			ResourceID:   name,
		}
	}
	return fmt.Errorf("failed to save %s: %w", resourceType, storageErr(err))
}

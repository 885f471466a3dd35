package documents

import (
	"context"

	"github.com/pavel-fokin/docs-stash/internal/fs"
)

// TxFn runs inside a transaction carried by ctx.
type TxFn func(ctx context.Context) error

// TransactionManager runs fn in a single transaction, committing when fn
// returns nil and rolling back otherwise.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

// DocumentRepository persists documents. Find methods fail with
// domain.ErrNotFound when no row matches.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	FindDocumentByID(ctx context.Context, id int64) (*Document, error)
	FindDocumentByHash(ctx context.Context, hash string) (*Document, error)
	FindDocumentByPath(ctx context.Context, localPath string) (*Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// ReferenceRepository persists document types, categories and clients.
type ReferenceRepository interface {
	CreateDocumentType(ctx context.Context, t *DocumentType) error
	UpdateDocumentType(ctx context.Context, t *DocumentType) error
	DeleteDocumentType(ctx context.Context, id int64) error
	FindDocumentType(ctx context.Context, id int64) (*DocumentType, error)
	FindDocumentTypeByName(ctx context.Context, name string) (*DocumentType, error)
	ListDocumentTypes(ctx context.Context) ([]DocumentType, error)
	CountDocumentsByType(ctx context.Context, id int64) (int, error)

	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id int64) error
	FindCategory(ctx context.Context, id int64) (*Category, error)
	FindCategoryByName(ctx context.Context, name string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CountDocumentsByCategory(ctx context.Context, id int64) (int, error)

	CreateClient(ctx context.Context, c *Client) error
	UpdateClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, id int64) error
	FindClient(ctx context.Context, id int64) (*Client, error)
	FindClientByName(ctx context.Context, name string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	CountDocumentsByClient(ctx context.Context, id int64) (int, error)
}

// Repository is the metadata store.
type Repository interface {
	TransactionManager
	DocumentRepository
	ReferenceRepository
}

// FileStorage is the part of the file store the registry writes through.
type FileStorage interface {
	Prepare(filename string, content []byte, destination string) (*fs.PendingUpload, error)
	Write(upload *fs.PendingUpload) (*fs.StoredFile, error)
	Resolve(filePath string) (string, error)
	Remove(abs string) error
	Exists(abs string) bool
}

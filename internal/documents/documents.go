// Package documents registers uploaded files as documents with relational
// metadata and manages the reference entities they point to.
package documents

import (
	"time"
)

// Document links a stored file to its metadata.
type Document struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	FileHash       string    `json:"file_hash"`
	DocumentTypeID int64     `json:"document_type_id"`
	DocumentType   string    `json:"document_type"`
	CategoryID     int64     `json:"category_id"`
	Category       string    `json:"category"`
	ClientID       *int64    `json:"client_id"`
	Client         *string   `json:"client"`
	LocalPath      string    `json:"local_path"`
	FileSize       int64     `json:"file_size"`
	UploadDate     time.Time `json:"upload_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// FileExists is computed from the filesystem when the document is read.
	FileExists bool `json:"file_exists"`
}

// DocumentType classifies documents (invoice, contract, receipt...).
type DocumentType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category groups documents by subject.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client is the optional owner of a document.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeletionResult reports what a document deletion removed.
type DeletionResult struct {
	Path         string    `json:"path"`
	FromDatabase bool      `json:"from_database"`
	Document     *Document `json:"document,omitempty"`
	DeletedAt    time.Time `json:"deleted_at"`
}

const (
	DefaultIcon  = "fas fa-file-pdf"
	DefaultColor = "#3b82f6"
)

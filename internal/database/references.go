package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pavel-fokin/docs-stash/internal/documents"
)

// Document types

const selectDocumentType = `SELECT id, name, description, icon, is_active, created_at, updated_at FROM document_types`

func scanDocumentType(row scanner) (*documents.DocumentType, error) {
	var t documents.DocumentType
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Icon, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) CreateDocumentType(ctx context.Context, t *documents.DocumentType) error {
	query := `
	INSERT INTO document_types (name, description, icon, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id
	`
	err := r.queryRow(ctx, query, t.Name, t.Description, t.Icon, t.IsActive, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return conflictOr(err, "document_type", t.Name)
	}
	return nil
}

func (r *Repository) UpdateDocumentType(ctx context.Context, t *documents.DocumentType) error {
	query := `
	UPDATE document_types SET name = ?, description = ?, icon = ?, is_active = ?, updated_at = ?
	WHERE id = ?
	`
	if _, err := r.exec(ctx, query, t.Name, t.Description, t.Icon, t.IsActive, t.UpdatedAt, t.ID); err != nil {
		return conflictOr(err, "document_type", t.Name)
	}
	return nil
}

func (r *Repository) DeleteDocumentType(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "document_types", "document type", id)
}

func (r *Repository) FindDocumentType(ctx context.Context, id int64) (*documents.DocumentType, error) {
	t, err := scanDocumentType(r.queryRow(ctx, selectDocumentType+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "document type "+strconv.FormatInt(id, 10))
	}
	return t, nil
}

func (r *Repository) FindDocumentTypeByName(ctx context.Context, name string) (*documents.DocumentType, error) {
	t, err := scanDocumentType(r.queryRow(ctx, selectDocumentType+` WHERE name = ?`, name))
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("document type %q", name))
	}
	return t, nil
}

func (r *Repository) ListDocumentTypes(ctx context.Context) ([]documents.DocumentType, error) {
	rows, err := r.query(ctx, selectDocumentType+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query document types: %w", storageErr(err))
	}
	defer rows.Close()

	types := []documents.DocumentType{}
	for rows.Next() {
		t, err := scanDocumentType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document type row: %w", storageErr(err))
		}
		types = append(types, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document type rows: %w", storageErr(err))
	}
	return types, nil
}

func (r *Repository) CountDocumentsByType(ctx context.Context, id int64) (int, error) {
	return r.countDocuments(ctx, "document_type_id", id)
}

// Categories

const selectCategory = `SELECT id, name, description, color, is_active, created_at, updated_at FROM categories`

func scanCategory(row scanner) (*documents.Category, error) {
	var c documents.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *documents.Category) error {
	query := `
	INSERT INTO categories (name, description, color, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id
	`
	err := r.queryRow(ctx, query, c.Name, c.Description, c.Color, c.IsActive, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return conflictOr(err, "category", c.Name)
	}
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *documents.Category) error {
	query := `
	UPDATE categories SET name = ?, description = ?, color = ?, is_active = ?, updated_at = ?
	WHERE id = ?
	`
	if _, err := r.exec(ctx, query, c.Name, c.Description, c.Color, c.IsActive, c.UpdatedAt, c.ID); err != nil {
		return conflictOr(err, "category", c.Name)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "categories", "category", id)
}

func (r *Repository) FindCategory(ctx context.Context, id int64) (*documents.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, selectCategory+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "category "+strconv.FormatInt(id, 10))
	}
	return c, nil
}

func (r *Repository) FindCategoryByName(ctx context.Context, name string) (*documents.Category, error) {
	c, err := scanCategory(r.queryRow(ctx, selectCategory+` WHERE name = ?`, name))
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("category %q", name))
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]documents.Category, error) {
	rows, err := r.query(ctx, selectCategory+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", storageErr(err))
	}
	defer rows.Close()

	categories := []documents.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", storageErr(err))
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", storageErr(err))
	}
	return categories, nil
}

func (r *Repository) CountDocumentsByCategory(ctx context.Context, id int64) (int, error) {
	return r.countDocuments(ctx, "category_id", id)
}

// Clients

const selectClient = `SELECT id, name, email, phone, address, notes, is_active, created_at, updated_at FROM clients`

func scanClient(row scanner) (*documents.Client, error) {
	var c documents.Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateClient(ctx context.Context, c *documents.Client) error {
	query := `
	INSERT INTO clients (name, email, phone, address, notes, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`
	err := r.queryRow(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.Notes, c.IsActive, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return conflictOr(err, "client", c.Name)
	}
	return nil
}

func (r *Repository) UpdateClient(ctx context.Context, c *documents.Client) error {
	query := `
	UPDATE clients SET name = ?, email = ?, phone = ?, address = ?, notes = ?, is_active = ?, updated_at = ?
	WHERE id = ?
	`
	if _, err := r.exec(ctx, query, c.Name, c.Email, c.Phone, c.Address, c.Notes, c.IsActive, c.UpdatedAt, c.ID); err != nil {
		return conflictOr(err, "client", c.Name)
	}
	return nil
}

func (r *Repository) DeleteClient(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "clients", "client", id)
}

func (r *Repository) FindClient(ctx context.Context, id int64) (*documents.Client, error) {
	c, err := scanClient(r.queryRow(ctx, selectClient+` WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "client "+strconv.FormatInt(id, 10))
	}
	return c, nil
}

func (r *Repository) FindClientByName(ctx context.Context, name string) (*documents.Client, error) {
	c, err := scanClient(r.queryRow(ctx, selectClient+` WHERE name = ?`, name))
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("client %q", name))
	}
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]documents.Client, error) {
	rows, err := r.query(ctx, selectClient+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", storageErr(err))
	}
	defer rows.Close()

	clients := []documents.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client row: %w", storageErr(err))
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating client rows: %w", storageErr(err))
	}
	return clients, nil
}

func (r *Repository) CountDocumentsByClient(ctx context.Context, id int64) (int, error) {
	return r.countDocuments(ctx, "client_id", id)
}

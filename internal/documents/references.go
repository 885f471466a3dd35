package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

const (
	maxTypeNameLength     = 100
	maxCategoryNameLength = 100
	maxClientNameLength   = 255
	maxIconLength         = 100
	maxPhoneLength        = 50
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// References manages document types, categories and clients.
type References struct {
	repo   Repository
	clock  Clock
	logger *slog.Logger
}

// NewReferences creates the reference-entity service.
func NewReferences(repo Repository, clock Clock, logger *slog.Logger) *References {
	return &References{
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// CreateDocumentTypeRequest is the payload for creating a document type.
type CreateDocumentTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateDocumentTypeRequest changes only the fields that are not nil.
type UpdateDocumentTypeRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	IsActive    *bool   `json:"is_active"`
}

// CreateCategoryRequest is the payload for creating a category.
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateCategoryRequest changes only the fields that are not nil.
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"is_active"`
}

// CreateClientRequest is the payload for creating a client.
type CreateClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
	IsActive *bool  `json:"is_active"`
}

// UpdateClientRequest changes only the fields that are not nil.
type UpdateClientRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Notes    *string `json:"notes"`
	IsActive *bool   `json:"is_active"`
}

// Document types

func (s *References) CreateDocumentType(ctx context.Context, req *CreateDocumentTypeRequest) (*DocumentType, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxTypeNameLength)),
		validation.Field(&req.Icon, validation.Length(0, maxIconLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.clock.Now()
	docType := &DocumentType{
		Name:        req.Name,
		Description: req.Description,
		Icon:        withDefault(req.Icon, DefaultIcon),
		IsActive:    boolOr(req.IsActive, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if err := nameAvailable(ctx, s.repo.FindDocumentTypeByName, "document_type", docType.Name, 0); err != nil {
			return err
		}
		return s.repo.CreateDocumentType(ctx, docType)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document type created", "id", docType.ID, "name", docType.Name)
	return docType, nil
}

func (s *References) UpdateDocumentType(ctx context.Context, id int64, req *UpdateDocumentTypeRequest) (*DocumentType, error) {
	trimPtr(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, maxTypeNameLength)),
		validation.Field(&req.Icon, validation.Length(0, maxIconLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var docType *DocumentType
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		docType, err = s.repo.FindDocumentType(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != docType.Name {
			if err := nameAvailable(ctx, s.repo.FindDocumentTypeByName, "document_type", *req.Name, id); err != nil {
				return err
			}
		}

		assign(&docType.Name, req.Name)
		assign(&docType.Description, req.Description)
		assign(&docType.Icon, req.Icon)
		assign(&docType.IsActive, req.IsActive)
		docType.UpdatedAt = s.clock.Now()

		return s.repo.UpdateDocumentType(ctx, docType)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document type updated", "id", id)
	return docType, nil
}

// DeleteDocumentType fails with domain.ErrInUse while documents reference the type.
func (s *References) DeleteDocumentType(ctx context.Context, id int64) error {
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindDocumentType(ctx, id); err != nil {
			return err
		}
		if err := notInUse(ctx, s.repo.CountDocumentsByType, "document type", id); err != nil {
			return err
		}
		return s.repo.DeleteDocumentType(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Document type deleted", "id", id)
	return nil
}

func (s *References) GetDocumentType(ctx context.Context, id int64) (*DocumentType, error) {
	return s.repo.FindDocumentType(ctx, id)
}

func (s *References) ListDocumentTypes(ctx context.Context) ([]DocumentType, error) {
	return s.repo.ListDocumentTypes(ctx)
}

// Categories

func (s *References) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxCategoryNameLength)),
		validation.Field(&req.Color, validation.Match(hexColor).Error("must be a hex color like #3b82f6")),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.clock.Now()
	category := &Category{
		Name:        req.Name,
		Description: req.Description,
		Color:       withDefault(req.Color, DefaultColor),
		IsActive:    boolOr(req.IsActive, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if err := nameAvailable(ctx, s.repo.FindCategoryByName, "category", category.Name, 0); err != nil {
			return err
		}
		return s.repo.CreateCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Category created", "id", category.ID, "name", category.Name)
	return category, nil
}

func (s *References) UpdateCategory(ctx context.Context, id int64, req *UpdateCategoryRequest) (*Category, error) {
	trimPtr(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, maxCategoryNameLength)),
		validation.Field(&req.Color, validation.Match(hexColor).Error("must be a hex color like #3b82f6")),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var category *Category
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		category, err = s.repo.FindCategory(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != category.Name {
			if err := nameAvailable(ctx, s.repo.FindCategoryByName, "category", *req.Name, id); err != nil {
				return err
			}
		}

		assign(&category.Name, req.Name)
		assign(&category.Description, req.Description)
		assign(&category.Color, req.Color)
		assign(&category.IsActive, req.IsActive)
		category.UpdatedAt = s.clock.Now()

		return s.repo.UpdateCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Category updated", "id", id)
	return category, nil
}

// DeleteCategory fails with domain.ErrInUse while documents reference the category.
func (s *References) DeleteCategory(ctx context.Context, id int64) error {
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindCategory(ctx, id); err != nil {
			return err
		}
		if err := notInUse(ctx, s.repo.CountDocumentsByCategory, "category", id); err != nil {
			return err
		}
		return s.repo.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Category deleted", "id", id)
	return nil
}

func (s *References) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return s.repo.FindCategory(ctx, id)
}

func (s *References) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// Clients

func (s *References) CreateClient(ctx context.Context, req *CreateClientRequest) (*Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxClientNameLength)),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.Phone, validation.Length(0, maxPhoneLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.clock.Now()
	client := &Client{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Notes:     req.Notes,
		IsActive:  boolOr(req.IsActive, true),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if err := nameAvailable(ctx, s.repo.FindClientByName, "client", client.Name, 0); err != nil {
			return err
		}
		return s.repo.CreateClient(ctx, client)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Client created", "id", client.ID, "name", client.Name)
	return client, nil
}

func (s *References) UpdateClient(ctx context.Context, id int64, req *UpdateClientRequest) (*Client, error) {
	trimPtr(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, maxClientNameLength)),
		validation.Field(&req.Email, is.EmailFormat),
		validation.Field(&req.Phone, validation.Length(0, maxPhoneLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var client *Client
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		client, err = s.repo.FindClient(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil && *req.Name != client.Name {
			if err := nameAvailable(ctx, s.repo.FindClientByName, "client", *req.Name, id); err != nil {
				return err
			}
		}

		assign(&client.Name, req.Name)
		assign(&client.Email, req.Email)
		assign(&client.Phone, req.Phone)
		assign(&client.Address, req.Address)
		assign(&client.Notes, req.Notes)
		assign(&client.IsActive, req.IsActive)
		client.UpdatedAt = s.clock.Now()

		return s.repo.UpdateClient(ctx, client)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Client updated", "id", id)
	return client, nil
}

// DeleteClient fails with domain.ErrInUse while documents reference the client.
func (s *References) DeleteClient(ctx context.Context, id int64) error {
	err := s.repo.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindClient(ctx, id); err != nil {
			return err
		}
		if err := notInUse(ctx, s.repo.CountDocumentsByClient, "client", id); err != nil {
			return err
		}
		return s.repo.DeleteClient(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Client deleted", "id", id)
	return nil
}

func (s *References) GetClient(ctx context.Context, id int64) (*Client, error) {
	return s.repo.FindClient(ctx, id)
}

func (s *References) ListClients(ctx context.Context) ([]Client, error) {
	return s.repo.ListClients(ctx)
}

// nameAvailable fails with a ConflictError when another row already uses name.
// Names are compared exactly, inactive rows included.
func nameAvailable[T any](ctx context.Context, find func(context.Context, string) (*T, error), resourceType, name string, selfID int64) error {
	existing, err := find(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	id := idOf(existing)
	if id == selfID {
		return nil
	}
	return &domain.ConflictError{
		Message:      fmt.Sprintf("%s named %q already exists", strings.ReplaceAll(resourceType, "_", " "), name),
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(id, 10),
	}
}

func idOf(v any) int64 {
	switch e := v.(type) {
	case *DocumentType:
		return e.ID
	case *Category:
		return e.ID
	case *Client:
		return e.ID
	}
	return 0
}

func notInUse(ctx context.Context, count func(context.Context, int64) (int, error), kind string, id int64) error {
	n, err := count(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s %d is referenced by %d document(s)", domain.ErrInUse, kind, id, n)
	}
	return nil
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

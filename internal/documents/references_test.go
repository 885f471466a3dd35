package documents_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestCreateReferenceEntities(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t, documents.DefaultIcon, env.factura.Icon)
		assert.True(t, env.factura.IsActive)
		assert.Equal(t, "#10b981", env.financiero.Color)

		category, err := env.references.CreateCategory(ctx, &documents.CreateCategoryRequest{Name: "Legal"})
		require.NoError(t, err)
		assert.Equal(t, documents.DefaultColor, category.Color)

		inactive, err := env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "Old client", IsActive: ptr(false)})
		require.NoError(t, err)
		assert.False(t, inactive.IsActive)
	})

	t.Run("names are trimmed and required", func(t *testing.T) {
		docType, err := env.references.CreateDocumentType(ctx, &documents.CreateDocumentTypeRequest{Name: "  Contrato "})
		require.NoError(t, err)
		assert.Equal(t, "Contrato", docType.Name)

		_, err = env.references.CreateDocumentType(ctx, &documents.CreateDocumentTypeRequest{Name: "   "})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("field validation", func(t *testing.T) {
		_, err := env.references.CreateDocumentType(ctx, &documents.CreateDocumentTypeRequest{Name: strings.Repeat("n", 101)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = env.references.CreateCategory(ctx, &documents.CreateCategoryRequest{Name: "Blue", Color: "blue"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "Bad mail", Email: "not-an-email"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: strings.Repeat("c", 255)})
		assert.NoError(t, err)
	})

	t.Run("duplicate names conflict", func(t *testing.T) {
		_, err := env.references.CreateDocumentType(ctx, &documents.CreateDocumentTypeRequest{Name: "Factura"})
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = env.references.CreateCategory(ctx, &documents.CreateCategoryRequest{Name: "Financiero"})
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "ACME"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("inactive rows still hold their name", func(t *testing.T) {
		_, err := env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "Old client"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestUpdateReferenceEntities(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("only provided fields change", func(t *testing.T) {
		env.clock.Advance(time.Hour)

		updated, err := env.references.UpdateCategory(ctx, env.financiero.ID, &documents.UpdateCategoryRequest{
			Description: ptr("Bills and invoices"),
		})
		require.NoError(t, err)

		assert.Equal(t, "Financiero", updated.Name)
		assert.Equal(t, "#10b981", updated.Color)
		assert.Equal(t, "Bills and invoices", updated.Description)
		assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

		stored, err := env.references.GetCategory(ctx, env.financiero.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bills and invoices", stored.Description)
	})

	t.Run("explicit false is applied", func(t *testing.T) {
		updated, err := env.references.UpdateDocumentType(ctx, env.factura.ID, &documents.UpdateDocumentTypeRequest{IsActive: ptr(false)})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
		assert.Equal(t, documents.DefaultIcon, updated.Icon)
	})

	t.Run("keeping the same name is not a conflict", func(t *testing.T) {
		_, err := env.references.UpdateClient(ctx, env.acme.ID, &documents.UpdateClientRequest{Name: ptr("ACME"), Phone: ptr("+34 600 000 000")})
		assert.NoError(t, err)
	})

	t.Run("taking another entity's name conflicts", func(t *testing.T) {
		other, err := env.references.CreateClient(ctx, &documents.CreateClientRequest{Name: "Globex"})
		require.NoError(t, err)

		_, err = env.references.UpdateClient(ctx, other.ID, &documents.UpdateClientRequest{Name: ptr("ACME")})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := env.references.UpdateCategory(ctx, env.financiero.ID, &documents.UpdateCategoryRequest{Name: ptr(" ")})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := env.references.UpdateDocumentType(ctx, 999, &documents.UpdateDocumentTypeRequest{Name: ptr("X")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDeleteReferenceEntities(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	req := env.upload("invoice.pdf", "referenced", "reports")
	req.ClientID = &env.acme.ID
	_, err := env.registry.Upload(ctx, req)
	require.NoError(t, err)

	t.Run("in use", func(t *testing.T) {
		assert.ErrorIs(t, env.references.DeleteDocumentType(ctx, env.factura.ID), domain.ErrInUse)
		assert.ErrorIs(t, env.references.DeleteCategory(ctx, env.financiero.ID), domain.ErrInUse)
		assert.ErrorIs(t, env.references.DeleteClient(ctx, env.acme.ID), domain.ErrInUse)
	})

	t.Run("deletable once no document references them", func(t *testing.T) {
		_, err := env.registry.Delete(ctx, "reports/invoice.pdf")
		require.NoError(t, err)

		require.NoError(t, env.references.DeleteDocumentType(ctx, env.factura.ID))
		require.NoError(t, env.references.DeleteCategory(ctx, env.financiero.ID))
		require.NoError(t, env.references.DeleteClient(ctx, env.acme.ID))

		types, err := env.references.ListDocumentTypes(ctx)
		require.NoError(t, err)
		assert.Empty(t, types)
	})

	t.Run("missing entity", func(t *testing.T) {
		assert.ErrorIs(t, env.references.DeleteClient(ctx, env.acme.ID), domain.ErrNotFound)
	})
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// uploadDateLayouts are the ISO-8601 forms accepted for upload_date.
var uploadDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseUploadDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range uploadDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: upload_date %q is not an ISO-8601 date", domain.ErrValidation, value)
}

func parseID(field, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrValidation, field)
	}
	return id, nil
}

func parseOptionalID(field, value string) (*int64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type documentUploadResponse struct {
	Message    string              `json:"message"`
	Document   *documents.Document `json:"document"`
	UploadedAt time.Time           `json:"uploaded_at"`
}

func uploadDocument(registry *documents.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, err := readUpload(r)
		if err != nil {
			handleError(w, r, err)
			return
		}

		req, err := documentUploadRequest(r, upload)
		if err != nil {
			handleError(w, r, err)
			return
		}

		doc, err := registry.Upload(r.Context(), req)
		if err != nil {
			slog.Info("Document upload rejected", "filename", upload.Filename, "path", req.Destination, "error", err)
			handleError(w, r, err)
			return
		}

		respondJSON(w, http.StatusCreated, documentUploadResponse{
			Message:    fmt.Sprintf("document %q uploaded", doc.Filename),
			Document:   doc,
			UploadedAt: doc.CreatedAt,
		})
	}
}

func documentUploadRequest(r *http.Request, upload *uploadedFile) (documents.UploadRequest, error) {
	req := documents.UploadRequest{
		Filename:    upload.Filename,
		Content:     upload.Content,
		Destination: r.FormValue("path"),
	}

	var err error
	if req.DocumentTypeID, err = parseID("document_type_id", r.FormValue("document_type_id")); err != nil {
		return req, err
	}
	if req.CategoryID, err = parseID("category_id", r.FormValue("category_id")); err != nil {
		return req, err
	}
	if req.ClientID, err = parseOptionalID("client_id", r.FormValue("client_id")); err != nil {
		return req, err
	}
	if req.UploadDate, err = parseUploadDate(r.FormValue("upload_date")); err != nil {
		return req, err
	}
	return req, nil
}

func getDocument(registry *documents.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID("id", r.PathValue("id"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		doc, err := registry.Get(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, doc)
	}
}

func listDocuments(registry *documents.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := registry.List(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, docs)
	}
}

// Reference entities

func registerCRUD[T, C, U any](
	mux *http.ServeMux,
	prefix string,
	list func(context.Context) ([]T, error),
	get func(context.Context, int64) (*T, error),
	create func(context.Context, *C) (*T, error),
	update func(context.Context, int64, *U) (*T, error),
	del func(context.Context, int64) error,
) {
	mux.HandleFunc("GET "+prefix, listEntities(list))
	mux.HandleFunc("POST "+prefix, createEntity(create))
	mux.HandleFunc("GET "+prefix+"/{id}", getEntity(get))
	mux.HandleFunc("PATCH "+prefix+"/{id}", updateEntity(update))
	mux.HandleFunc("PUT "+prefix+"/{id}", updateEntity(update))
	mux.HandleFunc("DELETE "+prefix+"/{id}", deleteEntity(del))
}

func listEntities[T any](list func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := list(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, entities)
	}
}

func getEntity[T any](get func(context.Context, int64) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID("id", r.PathValue("id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		entity, err := get(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, entity)
	}
}

func createEntity[T, C any](create func(context.Context, *C) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req C
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		entity, err := create(r.Context(), &req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, entity)
	}
}

func updateEntity[T, U any](update func(context.Context, int64, *U) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID("id", r.PathValue("id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		var req U
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		entity, err := update(r.Context(), id, &req)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, entity)
	}
}

func deleteEntity(del func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID("id", r.PathValue("id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if err := del(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isBodyTooLarge(err) {
			return fmt.Errorf("request body: %w", domain.ErrTooLarge)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	return nil
}

package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
	"github.com/pavel-fokin/docs-stash/internal/fs"
)

// maxMemory is how much of a multipart form is kept in memory before
// spilling to temporary files.
const maxMemory = 32 << 20

type directoryResponse struct {
	Message string `json:"message"`
	*fs.Directory
}

func createDirectory(dirs *fs.Directories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.FormValue("path")
		slog.Info("Creating directory", "path", path)

		dir, err := dirs.Create(path)
		if err != nil {
			handleError(w, r, err)
			return
		}

		respondJSON(w, http.StatusCreated, directoryResponse{
			Message:   fmt.Sprintf("directory %q created", dir.Path),
			Directory: dir,
		})
	}
}

func listDirectories(dirs *fs.Directories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paths, err := dirs.List()
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, paths)
	}
}

func inspectDirectory(dirs *fs.Directories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir, err := dirs.Inspect(pathValue(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, dir)
	}
}

func deleteDirectory(dirs *fs.Directories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := pathValue(r)
		slog.Info("Deleting directory", "path", path)

		if err := dirs.DeleteRecursive(path); err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("directory %q deleted", path),
			"path":    path,
		})
	}
}

// uploadedFile is the "file" part of a multipart upload, fully buffered.
type uploadedFile struct {
	Filename string
	Content  []byte
}

func readUpload(r *http.Request) (*uploadedFile, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if isBodyTooLarge(err) {
			return nil, fmt.Errorf("request body: %w", domain.ErrTooLarge)
		}
		return nil, fmt.Errorf("%w: failed to parse multipart form: %v", domain.ErrValidation, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: no file provided", domain.ErrValidation)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, fmt.Errorf("request body: %w", domain.ErrTooLarge)
		}
		return nil, fmt.Errorf("failed to read upload: %w: %w", domain.ErrStorage, err)
	}

	return &uploadedFile{Filename: header.Filename, Content: content}, nil
}

type fileUploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	*fs.StoredFile
	UploadedAt time.Time `json:"uploaded_at"`
}

func uploadFile(files *fs.Files) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, err := readUpload(r)
		if err != nil {
			handleError(w, r, err)
			return
		}
		path := r.FormValue("path")

		stored, err := files.Upload(upload.Filename, upload.Content, path)
		if err != nil {
			slog.Info("Upload rejected", "filename", upload.Filename, "path", path, "error", err)
			handleError(w, r, err)
			return
		}

		slog.Info("File uploaded", "path", stored.Path, "size", stored.Size)
		respondJSON(w, http.StatusCreated, fileUploadResponse{
			Message:    fmt.Sprintf("file %q uploaded", stored.Name),
			Filename:   stored.Name,
			StoredFile: stored,
			UploadedAt: time.Now().UTC(),
		})
	}
}

func listFiles(files *fs.Files) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := pathValue(r)

		list, err := files.List(path)
		if err != nil {
			handleError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func downloadFile(files *fs.Files) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := pathValue(r)
		slog.Info("Downloading file", "path", path)

		file, stored, err := files.Open(path)
		if err != nil {
			handleError(w, r, err)
			return
		}
		defer file.Close()

		contentType := mime.TypeByExtension(stored.Extension)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": stored.Name})
		if disposition == "" {
			disposition = "attachment"
		}
		w.Header().Set("Content-Disposition", disposition)
		w.Header().Set("Content-Length", strconv.FormatInt(stored.Size, 10))
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, file); err != nil {
			slog.Error("Failed to stream file", "path", path, "error", err)
		}
	}
}

type deletionResponse struct {
	Message string `json:"message"`
	*documents.DeletionResult
}

// deleteFile serves both DELETE /files and DELETE /documents: the registry
// removes the metadata row when one exists.
func deleteFile(registry *documents.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := pathValue(r)
		slog.Info("Deleting file", "path", path)

		result, err := registry.Delete(r.Context(), path)
		if err != nil {
			handleError(w, r, err)
			return
		}

		message := fmt.Sprintf("file %q deleted", path)
		if result.FromDatabase {
			message = fmt.Sprintf("document %q deleted from storage and database", path)
		}
		respondJSON(w, http.StatusOK, deletionResponse{Message: message, DeletionResult: result})
	}
}

package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/cors"

	"github.com/pavel-fokin/docs-stash/internal/database"
	"github.com/pavel-fokin/docs-stash/internal/database/migrations"
	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/fs"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// Services are the components request handlers work with, constructed once
// per process.
type Services struct {
	Root        *fs.Root
	Directories *fs.Directories
	Files       *fs.Files
	Registry    *documents.Registry
	References  *documents.References

	db        *sql.DB
	startedAt time.Time
}

// NewServices opens and migrates the metadata store, creates the storage
// root and wires the components together.
func NewServices(cfg *Config, logger *slog.Logger) (*Services, error) {
	root, err := fs.NewRoot(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db, cfg.DBDriver); err != nil {
		db.Close()
		return nil, err
	}

	policy := cfg.Policy()
	files := fs.NewFiles(root, policy)
	repo := database.NewRepository(db, cfg.DBDriver, logger)
	clock := documents.RealClock{}

	logger.Info("Storage ready",
		"root", root.Path(),
		"max_size", humanize.IBytes(uint64(policy.MaxSize)),
		"allowed_extensions", policy.AllowedExtensions,
		"db_driver", cfg.DBDriver,
	)

	return &Services{
		Root:        root,
		Directories: fs.NewDirectories(root, policy),
		Files:       files,
		Registry:    documents.NewRegistry(files, repo, clock, logger),
		References:  documents.NewReferences(repo, clock, logger),
		db:          db,
		startedAt:   time.Now(),
	}, nil
}

// Close releases the metadata store.
func (s *Services) Close() error {
	return s.db.Close()
}

// New builds the HTTP server for cfg.
func New(cfg *Config, svc *Services) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewHandler(cfg, svc),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// NewHandler registers every route and wraps them in the middleware chain.
func NewHandler(cfg *Config, svc *Services) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /api/v1/health", health(svc))

	mux.HandleFunc("POST /api/v1/directories", createDirectory(svc.Directories))
	mux.HandleFunc("GET /api/v1/directories", listDirectories(svc.Directories))
	mux.HandleFunc("GET /api/v1/directories/{path...}", inspectDirectory(svc.Directories))
	mux.HandleFunc("DELETE /api/v1/directories/{path...}", deleteDirectory(svc.Directories))

	mux.HandleFunc("POST /api/v1/files/upload", uploadFile(svc.Files))
	mux.HandleFunc("GET /api/v1/files/download/{path...}", downloadFile(svc.Files))
	mux.HandleFunc("GET /api/v1/files/{path...}", listFiles(svc.Files))
	mux.HandleFunc("DELETE /api/v1/files/{path...}", deleteFile(svc.Registry))

	mux.HandleFunc("POST /api/v1/documents/upload", uploadDocument(svc.Registry))
	mux.HandleFunc("GET /api/v1/documents", listDocuments(svc.Registry))
	mux.HandleFunc("GET /api/v1/documents/{id}", getDocument(svc.Registry))
	mux.HandleFunc("DELETE /api/v1/documents/{path...}", deleteFile(svc.Registry))

	refs := svc.References
	mux.HandleFunc("GET /api/v1/documents/types", listEntities(refs.ListDocumentTypes))
	mux.HandleFunc("GET /api/v1/documents/categories", listEntities(refs.ListCategories))
	mux.HandleFunc("GET /api/v1/documents/clients", listEntities(refs.ListClients))

	registerCRUD(mux, "/api/v1/document-types", refs.ListDocumentTypes, refs.GetDocumentType,
		refs.CreateDocumentType, refs.UpdateDocumentType, refs.DeleteDocumentType)
	registerCRUD(mux, "/api/v1/categories", refs.ListCategories, refs.GetCategory,
		refs.CreateCategory, refs.UpdateCategory, refs.DeleteCategory)
	registerCRUD(mux, "/api/v1/clients", refs.ListClients, refs.GetClient,
		refs.CreateClient, refs.UpdateClient, refs.DeleteClient)

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(cfg.StaticDir, "index.html"))
		})
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", requestIDHeader},
		AllowCredentials: false,
	})

	return loggingMiddleware(recovery(c.Handler(limitBody(mux, cfg.MaxSize+multipartOverhead))))
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func health(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Version:   Version,
			Uptime:    time.Since(svc.startedAt).Seconds(),
			Timestamp: time.Now().UTC(),
		})
	}
}

func pathValue(r *http.Request) string {
	return r.PathValue("path")
}

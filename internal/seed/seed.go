// Package seed loads reference entities from TOML and inserts the missing ones.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/pavel-fokin/docs-stash/internal/documents"
	"github.com/pavel-fokin/docs-stash/internal/domain"
)

//go:embed defaults.toml
var defaults []byte

// Data is the content of a seed file.
type Data struct {
	DocumentTypes []documents.CreateDocumentTypeRequest `toml:"document_types"`
	Categories    []documents.CreateCategoryRequest     `toml:"categories"`
	Clients       []documents.CreateClientRequest       `toml:"clients"`
}

// Result counts the entities a Seed call created and skipped.
type Result struct {
	Created int
	Skipped int
}

// Read decodes seed data from r.
func Read(r io.Reader) (*Data, error) {
	var data Data
	if _, err := toml.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode seed data: %w", err)
	}
	return &data, nil
}

// Load reads seed data from path, or the built-in defaults when path is empty.
func Load(path string) (*Data, error) {
	if path == "" {
		var data Data
		if err := toml.Unmarshal(defaults, &data); err != nil {
			return nil, fmt.Errorf("failed to decode default seed data: %w", err)
		}
		return &data, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Seeder inserts seed data through the reference-entity service.
type Seeder struct {
	references *documents.References
	logger     *slog.Logger
}

func NewSeeder(references *documents.References, logger *slog.Logger) *Seeder {
	return &Seeder{
		references: references,
		logger:     logger,
	}
}

// Seed creates every entity of data whose name is not taken yet. Running it
// twice creates nothing the second time.
func (s *Seeder) Seed(ctx context.Context, data *Data) (Result, error) {
	var result Result

	for i := range data.DocumentTypes {
		_, err := s.references.CreateDocumentType(ctx, &data.DocumentTypes[i])
		if err := s.count(&result, "document_type", data.DocumentTypes[i].Name, err); err != nil {
			return result, err
		}
	}
	for i := range data.Categories {
		_, err := s.references.CreateCategory(ctx, &data.Categories[i])
		if err := s.count(&result, "category", data.Categories[i].Name, err); err != nil {
			return result, err
		}
	}
	for i := range data.Clients {
		_, err := s.references.CreateClient(ctx, &data.Clients[i])
		if err := s.count(&result, "client", data.Clients[i].Name, err); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *Seeder) count(result *Result, kind, name string, err error) error {
	switch {
	case err == nil:
		result.Created++
		return nil
	case errors.Is(err, domain.ErrConflict):
		result.Skipped++
		s.logger.Debug("Seed entity already exists", "kind", kind, "name", name)
		return nil
	}
	return fmt.Errorf("seed %s %q: %w", kind, name, err)
}

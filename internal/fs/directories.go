package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// Directory is a directory under the storage root as seen at inspection time.
type Directory struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	FilesCount int       `json:"files_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Directories creates, lists, inspects and deletes directories under a Root.
type Directories struct {
	root   *Root
	policy Policy
}

// NewDirectories creates a directory store. The policy decides which files
// count towards Directory.FilesCount.
func NewDirectories(root *Root, policy Policy) *Directories {
	return &Directories{
		root:   root,
		policy: policy,
	}
}

// Create creates the directory and any missing ancestors. It succeeds if the
// directory already exists.
func (d *Directories) Create(path string) (*Directory, error) {
	rel, err := d.root.Sanitize(path)
	if err != nil {
		return nil, err
	}
	if rel.IsRoot() {
		return nil, fmt.Errorf("directory path is empty: %w", domain.ErrInvalidPath)
	}

	abs := d.root.Abs(rel)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		if isNotDir(err) {
			return nil, fmt.Errorf("create directory %q: %w", rel, domain.ErrNotADirectory)
		}
		return nil, fmt.Errorf("create directory %q: %w: %w", rel, domain.ErrStorage, err)
	}

	return d.inspect(rel)
}

// List walks the whole root and returns every directory below it as a
// slash-delimited relative path. The order is unspecified.
func (d *Directories) List() ([]string, error) {
	base := d.root.Path()
	paths := []string{}

	err := filepath.WalkDir(base, func(path string, entry iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() || path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage root: %w: %w", domain.ErrStorage, err)
	}

	return paths, nil
}

// Inspect returns the metadata of an existing directory.
func (d *Directories) Inspect(path string) (*Directory, error) {
	rel, err := d.root.Sanitize(path)
	if err != nil {
		return nil, err
	}
	return d.inspect(rel)
}

// DeleteRecursive removes the directory and everything below it. A failure
// midway leaves the tree partially deleted.
func (d *Directories) DeleteRecursive(path string) error {
	rel, err := d.root.Sanitize(path)
	if err != nil {
		return err
	}
	if rel.IsRoot() {
		return fmt.Errorf("the storage root cannot be deleted: %w", domain.ErrInvalidPath)
	}
	if _, err := d.inspect(rel); err != nil {
		return err
	}

	if err := os.RemoveAll(d.root.Abs(rel)); err != nil {
		return fmt.Errorf("delete directory %q: %w: %w", rel, domain.ErrStorage, err)
	}
	return nil
}

func (d *Directories) inspect(rel RelativePath) (*Directory, error) {
	abs := d.root.Abs(rel)

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) || isNotDir(err) {
			return nil, fmt.Errorf("directory %q: %w", rel, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stat directory %q: %w: %w", rel, domain.ErrStorage, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q: %w", rel, domain.ErrNotADirectory)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w: %w", rel, domain.ErrStorage, err)
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && d.policy.Allows(entry.Name()) {
			count++
		}
	}

	name := rel.Base()
	if rel.IsRoot() {
		name = filepath.Base(abs)
	}

	return &Directory{
		Name:       name,
		Path:       rel.String(),
		FilesCount: count,
		CreatedAt:  changeTime(info),
	}, nil
}

// isNotDir reports whether err was caused by a path component being a file.
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

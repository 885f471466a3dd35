// Package fs maps untrusted, slash-delimited paths onto a single storage root
// and implements the directory and file stores on top of it.
package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// RelativePath is a traversal-free location under a Root, one element per segment.
// The zero value is the root itself.
type RelativePath []string

// String returns the slash-delimited form of the path.
func (p RelativePath) String() string {
	return strings.Join(p, "/")
}

// IsRoot reports whether the path points at the root itself.
func (p RelativePath) IsRoot() bool {
	return len(p) == 0
}

// Dir returns the path without its last segment.
func (p RelativePath) Dir() RelativePath {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Base returns the last segment, or "" for the root.
func (p RelativePath) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Root is the storage root every managed path lives under.
type Root struct {
	path string
}

// NewRoot makes path absolute and creates the directory if it does not exist.
func NewRoot(path string) (*Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %q: %w: %w", path, domain.ErrStorage, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w: %w", abs, domain.ErrStorage, err)
	}
	return &Root{path: abs}, nil
}

// Path returns the absolute path of the root as configured.
func (r *Root) Path() string {
	return r.path
}

// Abs joins a sanitized path onto the root.
func (r *Root) Abs(p RelativePath) string {
	return filepath.Join(append([]string{r.path}, p...)...)
}

// Sanitize validates raw and returns it as a path guaranteed to stay inside the
// root. It is evaluated against the filesystem on every call; results must not
// be cached across requests.
func (r *Root) Sanitize(raw string) (RelativePath, error) {
	segments, err := splitSegments(raw)
	if err != nil {
		return nil, err
	}

	rootResolved, err := filepath.EvalSymlinks(r.path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w: %w", domain.ErrStorage, err)
	}

	resolved, err := resolveExisting(r.Abs(segments))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPath) {
			return nil, fmt.Errorf("path %q: %w", raw, err)
		}
		return nil, fmt.Errorf("resolve path %q: %w: %w", raw, domain.ErrStorage, err)
	}

	if !isDescendant(rootResolved, resolved) {
		return nil, fmt.Errorf("path %q escapes the storage root: %w", raw, domain.ErrInvalidPath)
	}

	return segments, nil
}

// splitSegments splits raw on both separators and rejects traversal and
// absolute-path markers. Empty segments are dropped.
func splitSegments(raw string) (RelativePath, error) {
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) || filepath.IsAbs(raw) || filepath.VolumeName(raw) != "" {
		return nil, fmt.Errorf("path %q is absolute: %w", raw, domain.ErrInvalidPath)
	}

	var segments RelativePath
	for _, segment := range strings.FieldsFunc(raw, isSeparator) {
		switch {
		case segment == "." || segment == "..":
			return nil, fmt.Errorf("path %q contains a %q segment: %w", raw, segment, domain.ErrInvalidPath)
		case strings.ContainsRune(segment, 0):
			return nil, fmt.Errorf("path %q contains a NUL byte: %w", raw, domain.ErrInvalidPath)
		case filepath.VolumeName(segment) != "":
			return nil, fmt.Errorf("path %q contains a volume name: %w", raw, domain.ErrInvalidPath)
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\' || r == filepath.Separator
}

// resolveExisting follows symlinks in the deepest existing ancestor of p and
// appends the segments that do not exist yet.
func resolveExisting(p string) (string, error) {
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, iofs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", err
		}
		// A dangling symlink has no target to check against the root.
		if info, lerr := os.Lstat(p); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("dangling symlink: %w", domain.ErrInvalidPath)
		}

		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		missing = append([]string{filepath.Base(p)}, missing...)
		p = parent
	}
}

// isDescendant reports whether child is parent or lies below it.
func isDescendant(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pavel-fokin/docs-stash/internal/domain"
)

// StoredFile is a file on disk as read back from the filesystem.
type StoredFile struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Extension  string    `json:"extension"`
	ModifiedAt time.Time `json:"modified_at"`
}

// PendingUpload is an upload that passed every validation and has not been
// written yet.
type PendingUpload struct {
	Name    string
	Dir     RelativePath
	Content []byte

	abs string
}

// Path returns the slash-delimited relative path the file will be written to.
func (u *PendingUpload) Path() string {
	return path.Join(u.Dir.String(), u.Name)
}

// AbsPath returns the absolute path the file will be written to.
func (u *PendingUpload) AbsPath() string {
	return u.abs
}

// Files stores uploaded files under a Root.
type Files struct {
	root   *Root
	policy Policy
}

// NewFiles creates a file store enforcing policy on uploads.
func NewFiles(root *Root, policy Policy) *Files {
	return &Files{
		root:   root,
		policy: policy,
	}
}

// Upload validates and writes content as filename inside destination.
func (f *Files) Upload(filename string, content []byte, destination string) (*StoredFile, error) {
	upload, err := f.Prepare(filename, content, destination)
	if err != nil {
		return nil, err
	}
	return f.Write(upload)
}

// Prepare runs every upload validation without writing anything to disk.
func (f *Files) Prepare(filename string, content []byte, destination string) (*PendingUpload, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is empty: %w", domain.ErrInvalidFileType)
	}
	if !f.policy.Allows(filename) {
		return nil, fmt.Errorf("%q: extension not allowed, accepted: %v: %w", filename, f.policy.AllowedExtensions, domain.ErrInvalidFileType)
	}

	dir, err := f.root.Sanitize(destination)
	if err != nil {
		return nil, err
	}
	if dir.IsRoot() {
		return nil, fmt.Errorf("files cannot be stored at the root, a destination directory is required: %w", domain.ErrInvalidPath)
	}

	name := SafeFilename(filename)
	abs := f.root.Abs(append(dir[:len(dir):len(dir)], name))

	switch info, err := os.Stat(abs); {
	case err == nil && info.IsDir():
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("a directory named %q already exists in %q", name, dir),
			ResourceType: "directory",
			ResourceID:   path.Join(dir.String(), name),
		}
	case err == nil:
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("file %q already exists in %q", name, dir),
			ResourceType: "file",
			ResourceID:   path.Join(dir.String(), name),
		}
	case errors.Is(err, iofs.ErrNotExist):
	case isNotDir(err):
		return nil, fmt.Errorf("destination %q: %w", dir, domain.ErrNotADirectory)
	default:
		return nil, fmt.Errorf("stat %q: %w: %w", path.Join(dir.String(), name), domain.ErrStorage, err)
	}

	if size := int64(len(content)); size > f.policy.MaxSize {
		return nil, fmt.Errorf("%q is %s, the limit is %s: %w",
			filename, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(f.policy.MaxSize)), domain.ErrTooLarge)
	}

	return &PendingUpload{
		Name:    name,
		Dir:     dir,
		Content: content,
		abs:     abs,
	}, nil
}

// Write creates the destination directory and the file. The file is created
// exclusively, an existing file is never overwritten.
func (f *Files) Write(upload *PendingUpload) (*StoredFile, error) {
	if err := os.MkdirAll(f.root.Abs(upload.Dir), 0o755); err != nil {
		if isNotDir(err) {
			return nil, fmt.Errorf("destination %q: %w", upload.Dir, domain.ErrNotADirectory)
		}
		return nil, fmt.Errorf("create directory %q: %w: %w", upload.Dir, domain.ErrStorage, err)
	}

	file, err := os.OpenFile(upload.abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("file %q already exists in %q", upload.Name, upload.Dir),
				ResourceType: "file",
				ResourceID:   upload.Path(),
			}
		}
		return nil, fmt.Errorf("create file %q: %w: %w", upload.Path(), domain.ErrStorage, err)
	}

	if _, err := file.Write(upload.Content); err != nil {
		file.Close()
		os.Remove(upload.abs)
		return nil, fmt.Errorf("write file %q: %w: %w", upload.Path(), domain.ErrStorage, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(upload.abs)
		return nil, fmt.Errorf("close file %q: %w: %w", upload.Path(), domain.ErrStorage, err)
	}

	info, err := os.Stat(upload.abs)
	if err != nil {
		return nil, fmt.Errorf("stat file %q: %w: %w", upload.Path(), domain.ErrStorage, err)
	}
	return storedFile(upload.Dir, info), nil
}

// List returns the files with an allowed extension directly inside dir.
func (f *Files) List(dir string) ([]StoredFile, error) {
	rel, err := f.root.Sanitize(dir)
	if err != nil {
		return nil, err
	}
	abs := f.root.Abs(rel)

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

	files := []StoredFile{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !f.policy.Allows(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %q: %w: %w", entry.Name(), domain.ErrStorage, err)
		}
		files = append(files, *storedFile(rel, info))
	}
	return files, nil
}

// Resolve maps a "directory/filename" path onto the absolute path of an
// existing regular file. Files directly at the root are not addressable.
func (f *Files) Resolve(filePath string) (string, error) {
	_, abs, err := f.resolve(filePath)
	return abs, err
}

// Open resolves filePath and opens it for reading.
func (f *Files) Open(filePath string) (*os.File, *StoredFile, error) {
	rel, abs, err := f.resolve(filePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, iofs.ErrPermission) {
			return nil, nil, fmt.Errorf("open file %q: %w", rel, domain.ErrForbidden)
		}
		return nil, nil, fmt.Errorf("open file %q: %w: %w", rel, domain.ErrStorage, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat file %q: %w: %w", rel, domain.ErrStorage, err)
	}
	return file, storedFile(rel.Dir(), info), nil
}

// Delete resolves filePath and removes the file.
func (f *Files) Delete(filePath string) error {
	abs, err := f.Resolve(filePath)
	if err != nil {
		return err
	}
	return f.Remove(abs)
}

// Remove deletes a file previously returned by Resolve or PendingUpload.AbsPath.
func (f *Files) Remove(abs string) error {
	if err := os.Remove(abs); err != nil {
		name := f.relative(abs)
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("file %q: %w", name, domain.ErrNotFound)
		}
		if errors.Is(err, iofs.ErrPermission) {
			return fmt.Errorf("remove file %q: %w", name, domain.ErrForbidden)
		}
		return fmt.Errorf("remove file %q: %w: %w", name, domain.ErrStorage, err)
	}
	return nil
}

// relative renders abs relative to the root for error messages.
func (f *Files) relative(abs string) string {
	rel, err := filepath.Rel(f.root.Path(), abs)
	if err != nil {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}

// Exists reports whether abs is an existing regular file.
func (f *Files) Exists(abs string) bool {
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

func (f *Files) resolve(filePath string) (RelativePath, string, error) {
	rel, err := f.root.Sanitize(filePath)
	if err != nil {
		return nil, "", err
	}
	if len(rel) < 2 {
		return nil, "", fmt.Errorf("%q: a file path needs a directory and a filename: %w", filePath, domain.ErrInvalidPath)
	}

	abs := f.root.Abs(rel)
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) || isNotDir(err) {
			return nil, "", fmt.Errorf("file %q: %w", rel, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("stat file %q: %w: %w", rel, domain.ErrStorage, err)
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("%q: %w", rel, domain.ErrNotAFile)
	}
	return rel, abs, nil
}

func storedFile(dir RelativePath, info iofs.FileInfo) *StoredFile {
	return &StoredFile{
		Name:       info.Name(),
		Path:       path.Join(dir.String(), info.Name()),
		Size:       info.Size(),
		Extension:  Extension(info.Name()),
		ModifiedAt: info.ModTime(),
	}
}

package fs

import (
	"path/filepath"
	"slices"
	"strings"
)

// Policy is the upload size ceiling and extension allow-list.
type Policy struct {
	MaxSize           int64
	AllowedExtensions []string // dot-prefixed, compared case-insensitively
}

// Allows reports whether name carries one of the allowed extensions.
func (p Policy) Allows(name string) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	return slices.ContainsFunc(p.AllowedExtensions, func(allowed string) bool {
		return strings.EqualFold(allowed, ext)
	})
}

// Extension returns the lower-cased extension of name, including the dot.
// A name whose only dot is the leading one has no extension.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return strings.ToLower(ext)
}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SafeFilename replaces characters that are unsafe in a filename with an underscore.
func SafeFilename(name string) string {
	return unsafeFilenameChars.Replace(name)
}

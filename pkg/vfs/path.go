package vfs

import (
	"errors"
	"strings"
)

// Path helpers every backend (memfs, diskfs, overlayfs) normalizes
// user-supplied paths through before touching its own storage, so
// "../etc" and "//bin//sh" resolve the same way regardless of which
// backend is mounted.

// Common path-related errors.
var (
	ErrEmptyPath   = errors.New("vfs: empty path")
	ErrInvalidPath = errors.New("vfs: invalid path")
	ErrPathTooLong = errors.New("vfs: path too long")
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// Clean normalizes the path by removing unnecessary elements
// and handling relative paths. It is similar to filepath.Clean
// but operates on string paths without filesystem access.
func Clean(p string) string {
	if p == "" {
		return "/"
	}

	// Ensure we use forward slashes
	p = strings.ReplaceAll(p, "\\", "/")

	// Handle root
	if p[0] != '/' {
		p = "/" + p
	}

	// Split into components
	components := strings.Split(p, "/")
	var result []string

	for _, comp := range components {
		switch comp {
		case "", ".":
			// Skip empty and current directory
			continue
		case "..":
			// Go up one level, but not past root
			if len(result) > 0 {
				result = result[:len(result)-1]
			}
		default:
			result = append(result, comp)
		}
	}

	// Reconstruct path
	if len(result) == 0 {
		return "/"
	}

	return "/" + strings.Join(result, "/")
}

// Dir returns all but the last element of the path.
func Dir(p string) string {
	p = Clean(p)

	lastSlash := strings.LastIndex(p, "/")
	if lastSlash == 0 {
		return "/"
	}

	return p[:lastSlash]
}

// ValidatePath checks if the path is valid for use in the VFS.
func ValidatePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}

	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}

	// Check for null bytes
	if strings.Contains(p, "\x00") {
		return ErrInvalidPath
	}

	return nil
}

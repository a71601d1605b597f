// Package overlayfs provides a layered filesystem implementation.
// It combines a read-only lower filesystem with a read-write upper
// filesystem. The kernel uses this to let a booted process write
// scratch files freely into an in-memory upper layer while still
// resolving program images against a real on-disk lower layer, so
// nothing a process does ever touches the host filesystem the kernel
// was launched from.
package overlayfs

import (
	"os"

	vfs "webos/pkg/vfs"
)

// FS layers a writable upper filesystem over a read-mostly lower one.
// WriteFile and MkdirAll always land in upper; Open and ReadFile check
// upper first, falling back to lower so a program image that only exists
// on the lower layer is still visible without ever being copied there.
// A file Open finds only on the lower layer is returned as the lower
// layer's own handle, so writes through that handle reach lower.
type FS struct {
	upper vfs.FileSystem
	lower vfs.FileSystem
}

// New creates a new overlay filesystem with the given upper (writable)
// and lower (read-only) filesystems.
func New(upper, lower vfs.FileSystem) *FS {
	return &FS{upper: upper, lower: lower}
}

// Open implements vfs.FileSystem.Open.
func (fs *FS) Open(path string) (vfs.File, error) {
	f, err := fs.upper.Open(path)
	if err == nil {
		return f, nil
	}
	return fs.lower.Open(path)
}

// ReadFile implements vfs.FileSystem.ReadFile.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	data, err := fs.upper.ReadFile(path)
	if err == nil {
		return data, nil
	}
	return fs.lower.ReadFile(path)
}

// WriteFile implements vfs.FileSystem.WriteFile. Writes always land in
// the upper layer; the lower layer is never modified.
func (fs *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return fs.upper.WriteFile(path, data, perm)
}

// MkdirAll implements vfs.FileSystem.MkdirAll, creating the directory
// in the upper layer only.
func (fs *FS) MkdirAll(path string, perm os.FileMode) error {
	return fs.upper.MkdirAll(path, perm)
}

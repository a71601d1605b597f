// Package diskfs provides a disk-based filesystem implementation.
// It wraps the standard library's os functions to provide a
// VFS-compatible interface. The kernel mounts one of these as
// overlayfs's lower, read-mostly layer when booted with a real on-disk
// bin directory, so program images can be read straight off the host
// filesystem without any process write ever reaching it.
package diskfs

import (
	"os"
	"path/filepath"

	vfs "webos/pkg/vfs"
)

// FS represents a disk-based filesystem.
type FS struct {
	root string
}

// New creates a new disk-based filesystem rooted at the given directory.
func New(root string) *FS {
	return &FS{root: filepath.Clean(root)}
}

// Open implements vfs.FileSystem.Open.
func (fs *FS) Open(path string) (vfs.File, error) {
	file, err := os.OpenFile(fs.fullPath(path), os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &diskFile{file: file}, nil
}

// ReadFile implements vfs.FileSystem.ReadFile.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(fs.fullPath(path))
}

// WriteFile implements vfs.FileSystem.WriteFile.
func (fs *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(fs.fullPath(path), data, perm)
}

// MkdirAll implements vfs.FileSystem.MkdirAll.
func (fs *FS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(fs.fullPath(path), perm)
}

// fullPath converts a VFS path to an absolute filesystem path.
func (fs *FS) fullPath(path string) string {
	cleanPath := vfs.Clean(path)
	if cleanPath == "/" {
		return fs.root
	}
	return filepath.Join(fs.root, cleanPath[1:])
}

// diskFile wraps an os.File to implement vfs.File.
type diskFile struct {
	file *os.File
}

func (f *diskFile) Read(b []byte) (int, error) {
	return f.file.Read(b)
}

func (f *diskFile) Write(b []byte) (int, error) {
	return f.file.Write(b)
}

func (f *diskFile) Truncate(size int64) error {
	return f.file.Truncate(size)
}

func (f *diskFile) Close() error {
	return f.file.Close()
}

// Package memfs provides an in-memory filesystem implementation. The
// kernel boots on one of these by default — program images, scratch
// files, and every write a running process makes live entirely in
// process memory unless a disk root is configured and overlayfs layers
// a real directory underneath.
package memfs

import (
	"errors"
	"io"
	"os"
	"sync"

	vfs "webos/pkg/vfs"
)

// ErrFileNotFound is returned when a file is not found.
var ErrFileNotFound = errors.New("memfs: file not found")

// FS is an in-memory filesystem: a flat map of cleaned path to file
// contents, guarded by a single mutex. It does not model directories
// as distinct nodes — MkdirAll only needs to remember a directory was
// created so ReadFile/Open/WriteFile never have to walk a tree to find
// anything.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// New creates an empty in-memory filesystem rooted at "/".
func New() *FS {
	return &FS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// Open implements vfs.FileSystem.Open.
func (fs *FS) Open(path string) (vfs.File, error) {
	if err := vfs.ValidatePath(path); err != nil {
		return nil, err
	}
	path = vfs.Clean(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, ok := fs.files[path]
	if !ok {
		return nil, ErrFileNotFound
	}
	return &memFile{fs: fs, path: path, data: append([]byte(nil), data...)}, nil
}

// ReadFile implements vfs.FileSystem.ReadFile.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	if err := vfs.ValidatePath(path); err != nil {
		return nil, err
	}
	path = vfs.Clean(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, ok := fs.files[path]
	if !ok {
		return nil, ErrFileNotFound
	}
	return append([]byte(nil), data...), nil
}

// WriteFile implements vfs.FileSystem.WriteFile.
func (fs *FS) WriteFile(path string, data []byte, _ os.FileMode) error {
	if err := vfs.ValidatePath(path); err != nil {
		return err
	}
	path = vfs.Clean(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.dirs[vfs.Dir(path)] = true
	fs.files[path] = append([]byte(nil), data...)
	return nil
}

// MkdirAll implements vfs.FileSystem.MkdirAll.
func (fs *FS) MkdirAll(path string, _ os.FileMode) error {
	if err := vfs.ValidatePath(path); err != nil {
		return err
	}
	path = vfs.Clean(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for path != "/" {
		fs.dirs[path] = true
		path = vfs.Dir(path)
	}
	fs.dirs["/"] = true
	return nil
}

// memFile is an open handle onto one file's bytes. Write and Truncate
// mutate a private copy and flush it back to fs immediately, so a
// second Open of the same path sees every write made so far, matching
// the no-buffering behavior WriteFile already gives callers that don't
// go through Open at all.
type memFile struct {
	fs     *FS
	path   string
	data   []byte
	offset int
	closed bool
}

func (f *memFile) Read(b []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(b, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *memFile) Write(b []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	needed := f.offset + len(b)
	if needed > len(f.data) {
		grown := make([]byte, needed)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.offset:], b)
	f.offset += len(b)
	f.flush()
	return len(b), nil
}

func (f *memFile) Truncate(size int64) error {
	if f.closed {
		return os.ErrClosed
	}
	if size < 0 {
		return errors.New("memfs: truncate to negative size")
	}

	if int(size) < len(f.data) {
		f.data = f.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}
	if f.offset > int(size) {
		f.offset = int(size)
	}
	f.flush()
	return nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

func (f *memFile) flush() {
	f.fs.mu.Lock()
	f.fs.files[f.path] = append([]byte(nil), f.data...)
	f.fs.mu.Unlock()
}

package vfs

import "os"

// FileSystem is the filesystem collaborator a process executes
// against. Execute resolves argv[0] to an ELF image through it, and
// kernel.mountBuiltins persists the synthesized builtin images it
// writes at boot through it — Open, ReadFile, WriteFile, and MkdirAll
// are the entire surface either caller exercises, so they are the
// entire interface.
type FileSystem interface {
	// Open opens the file at path for reading and writing. The file
	// must already exist.
	Open(path string) (File, error)

	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to the file at path, creating it (and
	// overwriting any existing contents) if necessary.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory at path and any necessary parents.
	// It is not an error if path already exists as a directory.
	MkdirAll(path string, perm os.FileMode) error
}

// File is an open file handle. A process holds its own executable open
// this way for its entire lifetime so DenyWrite, layered on top of it,
// can block writes to the bytes it's executing out of.
type File interface {
	// Read reads up to len(b) bytes from the file into b.
	Read(b []byte) (int, error)

	// Write writes len(b) bytes from b to the file.
	Write(b []byte) (int, error)

	// Truncate changes the size of the file.
	Truncate(size int64) error

	// Close closes the file, making it unusable for further I/O.
	Close() error
}

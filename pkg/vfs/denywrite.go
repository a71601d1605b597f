package vfs

import "errors"

// ErrDenyWrite is returned by Write and Truncate on a file wrapped by
// DenyWrite.
var ErrDenyWrite = errors.New("vfs: write denied on executable in use")

// denyWriteFile wraps a File so every Write and Truncate call fails,
// while Read and Close pass straight through.
type denyWriteFile struct {
	File
}

// DenyWrite wraps f so it can still be read and closed, but never
// written to or truncated. A process holds its executable open
// this way for its entire lifetime, the same protection Pintos's
// file_deny_write/process_exit pairing gives a running program's
// backing file: another process can still open the same path to read
// it, but not to modify the bytes this process is executing out of.
func DenyWrite(f File) File {
	return denyWriteFile{File: f}
}

func (denyWriteFile) Write(p []byte) (int, error) {
	return 0, ErrDenyWrite
}

func (denyWriteFile) Truncate(size int64) error {
	return ErrDenyWrite
}

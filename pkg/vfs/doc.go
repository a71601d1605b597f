// Package vfs is the external filesystem collaborator a process
// resolves its executable and the kernel persists builtin program
// images through. It defines FileSystem and File down to exactly the
// surface the kernel exercises — Open, ReadFile, WriteFile, MkdirAll,
// and a file handle's Read/Write/Truncate/Close — plus DenyWrite, the
// decorator that keeps a process's own executable open and unwritable
// for its entire lifetime.
//
// Three backends implement FileSystem: memfs (in-memory, the default),
// diskfs (a real on-disk directory), and overlayfs (a writable upper
// layer over a read-mostly lower one, letting a process's scratch
// writes stay in memory while program images still resolve against a
// real directory underneath).
package vfs

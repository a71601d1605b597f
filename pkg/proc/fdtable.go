package proc

import (
	"errors"

	"webos/pkg/vfs"
)

// ErrBadFD is returned by LookupFile/CloseFile for a descriptor that was
// never installed, was already closed, or is one of the reserved
// console descriptors this table does not manage directly.
var ErrBadFD = errors.New("proc: bad file descriptor")

// InstallFile reserves the next free descriptor (starting at fdStart,
// since 0 and 1 are reserved for the console) and associates it with f.
// Grounded on mit-pdos-biscuit's Fd_insert/fd_insert_inner: both reuse
// the lowest free slot rather than only ever growing, achieved here the
// same way — nextFD only ever increases, CloseFile just drops the
// entry, and InstallFile scans from fdStart for the first gap before
// advancing nextFD further.
func (p *Process) InstallFile(f vfs.File) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for fd := fdStart; fd < p.nextFD; fd++ {
		if _, taken := p.fds[fd]; !taken {
			p.fds[fd] = f
			return fd
		}
	}
	fd := p.nextFD
	p.nextFD++
	p.fds[fd] = f
	return fd
}

// LookupFile returns the vfs.File installed under fd.
func (p *Process) LookupFile(fd int) (vfs.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.fds[fd]
	if !ok {
		return nil, ErrBadFD
	}
	return f, nil
}

// CloseFile closes and removes fd from the table. The slot becomes
// available for reuse by a later InstallFile, matching
// mit-pdos-biscuit's fd_del_inner behavior of not permanently retiring a
// descriptor number.
func (p *Process) CloseFile(fd int) error {
	p.mu.Lock()
	f, ok := p.fds[fd]
	if !ok {
		p.mu.Unlock()
		return ErrBadFD
	}
	delete(p.fds, fd)
	p.mu.Unlock()
	return f.Close()
}

// CloseAllFiles closes every descriptor still open, called from Exit.
// Errors are collected but do not stop the sweep — a process exiting
// should not get stuck because one descriptor's Close failed.
func (p *Process) CloseAllFiles() []error {
	p.mu.Lock()
	fds := make([]int, 0, len(p.fds))
	for fd := range p.fds {
		fds = append(fds, fd)
	}
	p.mu.Unlock()

	var errs []error
	for _, fd := range fds {
		if err := p.CloseFile(fd); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

package proc

import (
	"io"

	"webos/pkg/thread"
)

// Execute starts cmdline as a child of p, the process-facing half of
// the Execute syscall: a running Program or pthread body calls this
// rather than reaching for the table directly, the same way a user
// program only ever sees exec() and never the kernel's process table.
func (p *Process) Execute(cmdline string, stdout, stderr io.Writer) (*Process, error) {
	return p.table.Execute(p, cmdline, stdout, stderr)
}

// Wait blocks caller, a thread belonging to p, until the child process
// identified by childPID has exited, then returns its exit status.
//
// Implements the resolution to spec.md's open question on waiting for
// an already-exited child: the child's Exit unconditionally calls Up on
// the join semaphore regardless of whether anyone is waiting yet, so if
// the child exited before this call, Down below returns immediately
// instead of blocking. A second Wait for the same childPID fails with
// ErrNotAChild rather than blocking forever on a semaphore nothing will
// ever Up again, since the first Wait already consumed it.
func (p *Process) Wait(childPID thread.ID, caller *thread.Thread) (Status, error) {
	p.mu.Lock()
	if p.waited[childPID] {
		p.mu.Unlock()
		return Status{}, ErrNotAChild
	}
	sem, hasSem := p.joinSems[childPID]
	child, hasChild := p.children[childPID]
	if !hasSem || !hasChild {
		p.mu.Unlock()
		return Status{}, ErrNotAChild
	}
	p.mu.Unlock()

	sem.Down(caller)

	p.mu.Lock()
	p.waited[childPID] = true
	delete(p.joinSems, childPID)
	delete(p.children, childPID)
	p.mu.Unlock()

	child.mu.Lock()
	code := child.exitCode
	child.mu.Unlock()

	return Status{PID: childPID, ExitCode: code}, nil
}

// Children returns the PIDs of every child not yet reaped by Wait,
// including children that have already exited.
func (p *Process) Children() []thread.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]thread.ID, 0, len(p.children))
	for pid := range p.children {
		out = append(out, pid)
	}
	return out
}

// ExitCode returns the process's exit status and whether it has
// actually exited yet.
func (p *Process) ExitCode() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// RequestExit records the status a secondary thread wants this process
// to exit with, for a Program body to pick up via PendingExit and return
// once that thread has been joined. See pcb.go's pendingExit doc comment
// for why this is the exit()-from-any-thread path rather than a direct
// call into Table.finishProcess.
func (p *Process) RequestExit(code int32) {
	p.mu.Lock()
	p.pendingExit = code
	p.hasPendingExit = true
	p.mu.Unlock()
}

// PendingExit returns the status set by RequestExit, if any.
func (p *Process) PendingExit() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingExit, p.hasPendingExit
}

package proc

import (
	"errors"

	"webos/pkg/ksync"
	"webos/pkg/thread"
	"webos/pkg/vm"
)

// ErrUnknownThread is returned by JoinThread for a tid that is not a
// live, unjoined secondary thread of this process.
var ErrUnknownThread = errors.New("proc: unknown or already-joined thread")

// ErrStackExhausted is returned by ReserveThreadStack when no room is
// left below the main thread's reserved stack region for another
// secondary thread's stack.
var ErrStackExhausted = errors.New("proc: no address space left for a new thread stack")

// ReserveThreadStack installs one zeroed, writable page for a new
// secondary thread's user stack and returns its top (the initial stack
// pointer for that thread). See pcb.go's nextStackTop doc comment for
// why a descending counter stands in for accessed-bit probing here.
func (p *Process) ReserveThreadStack() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	top := p.nextStackTop
	if top-vm.PageSize < 0 {
		return 0, ErrStackExhausted
	}
	if err := p.as.InstallZeroPage(top-1, true); err != nil {
		return 0, err
	}
	p.nextStackTop = top - vm.PageSize
	return top, nil
}

// ReleaseThreadStack frees the page reserved by ReserveThreadStack,
// called from pthread_exit.
func (p *Process) ReleaseThreadStack(top int) error {
	return p.as.UninstallPage(top - 1)
}

// CreateThreadJoinRecord allocates the join semaphore for a newly
// created secondary thread, called before that thread's goroutine is
// started so pthread_join can never race ahead of the record existing.
func (p *Process) CreateThreadJoinRecord(tid thread.ID) {
	p.mu.Lock()
	p.threadJoinSems[tid] = ksync.NewSemaphore(p.sched, 0)
	p.mu.Unlock()
}

// JoinThread blocks caller until the secondary thread tid has exited,
// exactly once. A second join attempt, or a join against a tid this
// process never created (or already reaped), fails with
// ErrUnknownThread rather than blocking forever.
func (p *Process) JoinThread(tid thread.ID, caller *thread.Thread) error {
	p.mu.Lock()
	if p.threadJoinWaited[tid] {
		p.mu.Unlock()
		return ErrUnknownThread
	}
	sem, ok := p.threadJoinSems[tid]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownThread
	}
	p.mu.Unlock()

	sem.Down(caller)

	p.mu.Lock()
	p.threadJoinWaited[tid] = true
	delete(p.threadJoinSems, tid)
	p.mu.Unlock()
	return nil
}

// SignalThreadExit wakes anyone joined on tid. Safe to call even if
// nobody ever joins: the semaphore simply holds value 1 until it does,
// the same persistent-signal behavior Wait relies on for processes.
func (p *Process) SignalThreadExit(tid thread.ID) {
	p.mu.Lock()
	sem := p.threadJoinSems[tid]
	p.mu.Unlock()
	if sem != nil {
		sem.Up()
	}
}

// PthreadJoinMain blocks caller until the process's main thread has run
// pthread_exit_main, or returns immediately if it already has.
func (p *Process) PthreadJoinMain(caller *thread.Thread) {
	p.mu.Lock()
	if p.mainExited {
		p.mu.Unlock()
		return
	}
	p.mainJoinWaiters = append(p.mainJoinWaiters, caller)
	p.mu.Unlock()
	p.sched.Block(caller)
}

// ExitMain runs the main thread's share of process teardown ordering:
// release every thread currently joined on main, then block until every
// remaining peer thread has itself exited, so fd/address-space teardown
// never races a peer still running against it. It does not perform
// process-level teardown itself (closing fds, signaling the parent) —
// the caller does that once this returns. Exposed at the process level,
// rather than living only in pkg/uthread, so Table.Execute's goroutine
// can call it without pkg/proc depending on pkg/uthread.
func (p *Process) ExitMain() {
	p.SignalMainExited()
	for _, t := range p.Threads() {
		if t.ID() == p.mainThread.ID() {
			continue
		}
		_ = p.JoinThread(t.ID(), p.mainThread)
	}
}

// SignalMainExited wakes every thread currently blocked in
// PthreadJoinMain, exactly once each, and causes every future
// PthreadJoinMain call to return immediately. This is the fix to
// spec.md §9's open question: rather than reusing a single-count
// semaphore that only one joiner can ever successfully down, each
// waiter is tracked explicitly and unblocked individually, so joiner
// count no longer matters.
func (p *Process) SignalMainExited() {
	p.mu.Lock()
	p.mainExited = true
	waiters := p.mainJoinWaiters
	p.mainJoinWaiters = nil
	p.mu.Unlock()
	for _, w := range waiters {
		p.sched.Unblock(w)
	}
}

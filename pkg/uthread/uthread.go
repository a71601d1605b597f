// Package uthread implements user-thread lifecycle inside one process's
// address space: pthread_execute, pthread_join, pthread_exit, and the
// main-thread variant pthread_exit_main. It is grounded on
// original_source/pintos/src/userprog/process.c's start_process
// trampoline, generalized from "the one and only thread of a fresh
// address space" to "one more peer sharing an address space someone
// else already set up". Per-tid join records are ksync.Semaphore values
// kept on the Process.
package uthread

import (
	"webos/pkg/proc"
	"webos/pkg/thread"
)

// Context is what a user thread's body sees: its own Thread, the
// process it belongs to (for fd/sync-object syscalls and further
// pthread calls), and the argument it was created with. It deliberately
// does not expose the process's argv/Stdout the way usermode.Context
// does for a process entrypoint — a secondary thread reaches those
// through Process if it needs them, the same way real user code would
// reach process-wide state rather than receiving a copy of it.
type Context struct {
	Thread  *thread.Thread
	Process *proc.Process
	Arg     interface{}
}

// Func is a user thread's body. If it returns, the thread implicitly
// calls pthread_exit, matching spec.md §4.1's create() note that a
// thread which returns from its entry point terminates itself.
type Func func(ctx *Context)

// PthreadExecute creates a new user thread in p, sharing p's address
// space, running fn(arg) once dispatched at the given base priority. It
// mirrors proc.Table.Execute's shape at a smaller scale: reserve
// resources (here, a stack page) before anything is visible, only
// register the thread and hand it to the scheduler once that succeeds.
func PthreadExecute(p *proc.Process, priority int, fn Func, arg interface{}) (thread.ID, error) {
	stackTop, err := p.ReserveThreadStack()
	if err != nil {
		return 0, err
	}

	t := p.ThreadRegistry().Allocate(p.Cmd()+"-pthread", priority)
	t.SetUserStackBase(stackTop)
	p.AddThread(t)
	p.CreateThreadJoinRecord(t.ID())

	go runThread(p, t, fn, arg)
	p.Scheduler().Spawn(t)

	return t.ID(), nil
}

// runThread is the goroutine backing a secondary user thread: park on
// the baton, run the body, then exit exactly as PthreadExit would if
// the body had called it explicitly.
func runThread(p *proc.Process, t *thread.Thread, fn Func, arg interface{}) {
	<-t.Gate
	ctx := &Context{Thread: t, Process: p, Arg: arg}
	fn(ctx)
	PthreadExit(ctx)
}

// PthreadJoin blocks caller until the thread tid (of the same process)
// has exited. Joining the process's main thread is redirected to
// PthreadJoinMain's multi-waiter protocol instead of the regular
// per-tid join record, since the main thread's exit releases the whole
// process rather than just itself.
func PthreadJoin(p *proc.Process, caller *thread.Thread, tid thread.ID) error {
	if tid == p.MainThread().ID() {
		p.PthreadJoinMain(caller)
		return nil
	}
	return p.JoinThread(tid, caller)
}

// PthreadExit is the secondary-thread exit path: signal anyone joined
// on this thread, drop it from the process's roster, free its stack
// page, and terminate it. Called automatically when a Func returns, but
// also callable directly from within a Func body for an early exit.
func PthreadExit(ctx *Context) {
	t := ctx.Thread
	p := ctx.Process

	p.SignalThreadExit(t.ID())
	p.RemoveThread(t.ID())
	if base := t.UserStackBase(); base != 0 {
		_ = p.ReleaseThreadStack(base)
	}
	p.Scheduler().Exit(t)
}

// PthreadExitMain is the main-thread exit path's syscall-facing name;
// the actual teardown ordering lives on Process itself (ExitMain) so
// pkg/proc's own Execute/Exit path can invoke it without depending on
// this package.
func PthreadExitMain(p *proc.Process) {
	p.ExitMain()
}


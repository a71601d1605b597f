// Package proc implements the process control block: the per-process
// state that groups a roster of kernel threads, a file descriptor table,
// the kernel-mediated lock/semaphore tables user code references by
// small integer handle, and the parent/child join bookkeeping Execute,
// Wait, and Exit operate on. It is grounded on the teacher's
// pkg/process/manager.go (ProcessManager's process table, CreateConfig,
// Fork/Terminate/Wait/reapZombies) and pkg/process/process.go (the
// Process struct's mutex-guarded field access pattern), generalized from
// a process model with no address space or threads of its own to one
// that owns both.
package proc

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"webos/pkg/elf"
	"webos/pkg/ksync"
	"webos/pkg/sched"
	"webos/pkg/thread"
	"webos/pkg/usermode"
	"webos/pkg/vfs"
	"webos/pkg/vm"
)

// Reserved file descriptors, matching Pintos's STDIN_FILENO/STDOUT_FILENO
// convention: these never appear as keys in a Process's fd table because
// they resolve directly to the process's inherited streams rather than
// to a vfs.File.
const (
	FDStdin  = 0
	FDStdout = 1

	// fdStart is the first file descriptor InstallFile ever hands out.
	fdStart = 2

	// syncIDStart is the first id SyncCreateLock/SyncCreateSemaphore ever
	// hand out; 0 is reserved so a zero-valued handle is recognizably
	// invalid rather than aliasing a real lock or semaphore.
	syncIDStart = 1

	// defaultStackSize is how much of the address space's top the
	// loader reserves for the initial user stack, matching Pintos's
	// single-page initial stack convention extended slightly to leave
	// room for a realistic argv.
	defaultStackSize = 4 * vm.PageSize

	// defaultAddressSpaceSize bounds how large a simulated address
	// space Execute allocates; real Pintos bounds this by PHYS_BASE,
	// which this package has no hardware analogue of, so it is instead
	// a generous fixed constant generous enough for any test program's
	// code, data, and stack: 64 pages above 0x08048000, the i386 load
	// address every synthesized program image uses.
	defaultAddressSpaceSize = 0x08048000 + 64*vm.PageSize
)

// Status is the result a Wait call returns once a child has exited.
type Status struct {
	PID      thread.ID
	ExitCode int32
}

// Process is the kernel's process control block. Every field access goes
// through mu except for the scheduler/thread-registry/vm handles, which
// are themselves already safe for concurrent use.
type Process struct {
	mu sync.Mutex

	pid  thread.ID // the main thread's ID; a process's identity IS its main thread's
	argv []string
	cmd  string

	parent   *Process
	children map[thread.ID]*Process

	exited   bool
	exitCode int32

	// joinSems is one counting semaphore per child, keyed by child PID,
	// Up'd exactly once by the child's Exit and Down'd by the parent's
	// first Wait for that PID. A child that exits before its parent
	// ever calls Wait leaves its semaphore at value 1, so Wait returns
	// immediately instead of blocking — the resolution to spec.md's
	// open question about waiting on an already-exited child.
	joinSems map[thread.ID]*ksync.Semaphore
	// waited records which children have already been reaped by Wait,
	// so a second Wait for the same PID fails with ErrNotAChild instead
	// of blocking forever on a semaphore nothing will ever Up again.
	waited map[thread.ID]bool

	mainThread *thread.Thread
	threads    map[thread.ID]*thread.Thread

	as *vm.AddressSpace

	fds    map[int]vfs.File
	nextFD int

	locks      map[int]*ksync.Lock
	semaphores map[int]*ksync.Semaphore
	nextSyncID int

	exe vfs.File // the executable, held open (and write-protected) for the process's lifetime

	stdout, stderr io.Writer

	// nextStackTop is the user-virtual address immediately above the next
	// free page a secondary thread's stack will be carved from, counting
	// down from just below the main thread's reserved stack region. Real
	// Pintos finds this by probing accessed bits page by page from the
	// top of the address space; nothing here sets or clears accessed
	// bits, so a descending counter gives the same "first untouched page"
	// answer without needing to simulate that hardware state, as long as
	// no stack page has been released: a page ReleaseThreadStack frees is
	// not handed out again.
	nextStackTop int

	// threadJoinSems/threadJoinWaited are the join records for secondary
	// user threads of this process, keyed by tid — the per-process analog
	// of joinSems/waited for child processes.
	threadJoinSems   map[thread.ID]*ksync.Semaphore
	threadJoinWaited map[thread.ID]bool

	// mainJoinWaiters holds every thread currently blocked in
	// PthreadJoinMain, woken exactly once each when the main thread
	// signals mainExited — the resolution to spec.md §9's open question
	// about the PCB semaphore needing to multiplex more than one joiner.
	mainJoinWaiters []*thread.Thread
	mainExited      bool

	// pendingExit/hasPendingExit hold an exit status set by RequestExit,
	// for exit() called from a secondary thread rather than by the main
	// thread returning from its Program. The execution model resolves a
	// process's exit status by what its Program closure returns (see
	// pkg/usermode's doc comment), so a secondary thread cannot itself
	// make runMain return early the way a real kernel's exit() can abandon
	// every other thread's kernel stack outright; it instead leaves this
	// status for the main thread to notice and echo back as its own
	// return value once it next runs.
	pendingExit    int32
	hasPendingExit bool

	sched     *sched.Scheduler
	threadReg *thread.Registry
	fs        vfs.FileSystem
	programs  *usermode.Registry
	log       *zap.Logger

	// table is the process table p was registered in, kept so a running
	// Program or pthread body can spawn a child of its own via
	// Process.Execute without needing the table threaded through every
	// syscall-facing call site.
	table *Table
}

// newProcess allocates a bare PCB. Callers (Table.Execute) are
// responsible for loading an executable into it before letting its main
// thread run.
func newProcess(
	mainThread *thread.Thread,
	parent *Process,
	argv []string,
	s *sched.Scheduler,
	threadReg *thread.Registry,
	fs vfs.FileSystem,
	programs *usermode.Registry,
	stdout, stderr io.Writer,
	log *zap.Logger,
) *Process {
	p := &Process{
		pid:        mainThread.ID(),
		argv:       argv,
		cmd:        argv[0],
		parent:     parent,
		children:   make(map[thread.ID]*Process),
		joinSems:   make(map[thread.ID]*ksync.Semaphore),
		waited:     make(map[thread.ID]bool),
		mainThread: mainThread,
		threads:    map[thread.ID]*thread.Thread{mainThread.ID(): mainThread},
		as:         vm.New(defaultAddressSpaceSize),
		fds:        make(map[int]vfs.File),
		nextFD:     fdStart,
		locks:      make(map[int]*ksync.Lock),
		semaphores: make(map[int]*ksync.Semaphore),
		nextSyncID: syncIDStart,
		nextStackTop:     defaultAddressSpaceSize - defaultStackSize,
		threadJoinSems:   make(map[thread.ID]*ksync.Semaphore),
		threadJoinWaited: make(map[thread.ID]bool),
		sched:      s,
		threadReg:  threadReg,
		fs:         fs,
		programs:   programs,
		stdout:     stdout,
		stderr:     stderr,
		log:        log,
	}
	return p
}

// PID returns the process's identity: its main thread's thread.ID.
func (p *Process) PID() thread.ID {
	return p.pid
}

// Cmd returns the program name the process was started with.
func (p *Process) Cmd() string {
	return p.cmd
}

// Argv returns the process's argument vector, argv[0] being Cmd.
func (p *Process) Argv() []string {
	return p.argv
}

// AddressSpace returns the process's simulated address space.
func (p *Process) AddressSpace() *vm.AddressSpace {
	return p.as
}

// MainThread returns the process's main thread.
func (p *Process) MainThread() *thread.Thread {
	return p.mainThread
}

// String implements fmt.Stringer for log fields and diagnostics.
func (p *Process) String() string {
	return fmt.Sprintf("proc(pid=%d cmd=%q)", p.pid, p.cmd)
}

// Scheduler returns the scheduler this process's threads run under.
func (p *Process) Scheduler() *sched.Scheduler {
	return p.sched
}

// ThreadRegistry returns the all-threads registry new user threads must
// be allocated from.
func (p *Process) ThreadRegistry() *thread.Registry {
	return p.threadReg
}

// Stdout returns the stream this process's standard output is attached
// to.
func (p *Process) Stdout() io.Writer {
	return p.stdout
}

// Stderr returns the stream this process's standard error is attached
// to.
func (p *Process) Stderr() io.Writer {
	return p.stderr
}

// AddThread registers a pthread as belonging to this process, called by
// pkg/uthread when a new user thread is created inside it.
func (p *Process) AddThread(t *thread.Thread) {
	p.mu.Lock()
	p.threads[t.ID()] = t
	p.mu.Unlock()
}

// RemoveThread drops a pthread from the roster once it has exited and
// been joined.
func (p *Process) RemoveThread(id thread.ID) {
	p.mu.Lock()
	delete(p.threads, id)
	p.mu.Unlock()
}

// Threads returns every thread currently registered to this process,
// main thread included.
func (p *Process) Threads() []*thread.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*thread.Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}

// loadExecutable runs the ELF loader against exe's contents, maps its
// segments into p.as, reserves and populates the initial user stack with
// argv, and returns the entry point. exe is kept open on the Process (as
// p.exe) for the remainder of its lifetime, per spec.md's rule that a
// running executable's backing file cannot be written to out from under
// it.
func (p *Process) loadExecutable(exe vfs.File, data []byte) (entry uint32, esp int, err error) {
	img, err := elf.Parse(data)
	if err != nil {
		return 0, 0, fmt.Errorf("proc: parsing %s: %w", p.cmd, err)
	}
	entryAddr, err := elf.Load(img, p.as)
	if err != nil {
		return 0, 0, fmt.Errorf("proc: loading %s: %w", p.cmd, err)
	}

	stackTop := defaultAddressSpaceSize
	for off := 0; off < defaultStackSize; off += vm.PageSize {
		if err := p.as.InstallZeroPage(stackTop-off-1, true); err != nil {
			return 0, 0, fmt.Errorf("proc: reserving stack: %w", err)
		}
	}

	sp, err := elf.PackArguments(p.as, stackTop, p.argv)
	if err != nil {
		return 0, 0, fmt.Errorf("proc: packing arguments: %w", err)
	}

	p.exe = exe
	return entryAddr, sp, nil
}

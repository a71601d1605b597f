// Package usermode is the thin architecture module standing in for
// "jump to user mode via a fabricated interrupt frame": there is no real
// CPU to execute the machine code an ELF image's entry point actually
// contains, so a loaded executable's name resolves instead to a
// registered Go closure that receives a Context exposing exactly what a
// user program may touch — its argument vector, its address space, its
// standard streams — and nothing of the kernel beyond that. Real
// interrupt-frame construction and the page-table switch pkg/vm already
// stands in for are the external collaborators spec.md's purpose section
// explicitly scopes out; this package is the seam where that
// substitution is made explicit and total, rather than silently assumed.
package usermode

import (
	"io"
	"sync"

	"webos/pkg/thread"
	"webos/pkg/vm"
)

// Context is everything a registered Program may see and do. It is
// deliberately narrow: a Program cannot reach the owning process's file
// descriptor table, sync-object tables, or thread roster except through
// the fields and callbacks given here, the same boundary a real user
// program crossing into the kernel only through defined syscalls would
// respect.
type Context struct {
	// Thread is the kernel thread this program is running on.
	Thread *thread.Thread
	// AS is the process's simulated address space, already populated by
	// the ELF loader with the program's segments and an initial stack.
	AS *vm.AddressSpace
	// Argv is the command-line argument vector, argv[0] being the
	// program name.
	Argv []string
	// Stdout and Stderr are the process's inherited output streams.
	Stdout io.Writer
	Stderr io.Writer

	// Proc is an opaque handle to the owning *proc.Process, set by
	// pkg/proc's Table before a Program ever runs. It is untyped here
	// for the same reason thread.Thread.WaitingOnLock is: pkg/proc
	// already depends on this package for Program/Registry, so this
	// package cannot import pkg/proc back without a cycle. A Program
	// that needs syscalls beyond this narrow Context — pthread_create,
	// lock/semaphore operations, fd table access — recovers the concrete
	// type with a type assertion against *proc.Process.
	Proc interface{}
}

// Program is a loaded executable's entry point, standing in for the
// machine code a real loader would jump to at e_entry. Its return value
// is the process's exit status, exactly as a real _start's fall-through
// to exit() would deliver the return value of main.
type Program func(ctx *Context) int32

// Registry resolves a loaded image's program name to the Go closure that
// realizes it. One Registry is owned by the kernel Context, generalizing
// the teacher's package-level processManager singleton
// (pkg/process/scheduler.go's SetProcessManager/GetProcessManager) into
// an instance value instead, per spec.md's note that global kernel state
// belongs on one context object.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewRegistry returns an empty program registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]Program)}
}

// Register installs program under name, overwriting any existing
// registration — used both for built-ins at boot and for tests that want
// a throwaway program under a unique name.
func (r *Registry) Register(name string, program Program) {
	r.mu.Lock()
	r.programs[name] = program
	r.mu.Unlock()
}

// Lookup resolves name to its registered Program. ok is false if no
// program with that name was ever registered, the Go-native analogue of
// the loader failing to find an executable on disk.
func (r *Registry) Lookup(name string) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}

// Names returns every registered program name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.programs))
	for name := range r.programs {
		out = append(out, name)
	}
	return out
}

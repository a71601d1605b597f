// Package kernel assembles the global, process-wide state spec.md §9
// calls out as singletons — the ready queue and all-threads list (owned
// by pkg/sched and pkg/thread), the boot filesystem, the program
// registry, and the process table — into one Context value carried
// explicitly rather than reached through package-level globals, per
// spec.md's own instruction to model thread_init/userprog_init/
// thread_start's globals as "a single kernel context value carried by a
// context handle." It is grounded on the teacher's pkg/process/
// scheduler.go processManager/SetProcessManager/GetProcessManager
// package-level singleton, inverted into a constructor that returns a
// value instead of mutating a package variable.
package kernel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"webos/pkg/elf"
	"webos/pkg/proc"
	"webos/pkg/sched"
	"webos/pkg/thread"
	"webos/pkg/usermode"
	"webos/pkg/vfs"
	"webos/pkg/vfs/diskfs"
	"webos/pkg/vfs/memfs"
	"webos/pkg/vfs/overlayfs"
)

// Context is the booted kernel: every shared service a running process
// ultimately touches, reachable from this one value instead of from
// package-level globals.
type Context struct {
	ID uuid.UUID

	Log *zap.Logger

	Sched     *sched.Scheduler
	ThreadReg *thread.Registry
	FS        vfs.FileSystem
	Programs  *usermode.Registry
	Table     *proc.Table

	// BootThread is the scheduler's initial running thread, standing in
	// for the boot-time kernel thread real Pintos's thread_start creates
	// for itself before any user process exists. Table.Execute and
	// Table.Wait both need a live *thread.Thread to block/unblock against
	// for a process with no parent; callers driving the kernel directly
	// (cmd/kernel, tests) use this one rather than allocating their own.
	BootThread *thread.Thread

	config Config
}

// parsePolicy maps the kernel command-line scheduler selector
// (spec.md §6: -sched=fifo|prio|fair|mlfqs) onto pkg/sched's Policy
// enum.
func parsePolicy(name string) (sched.Policy, error) {
	switch name {
	case "", "fifo":
		return sched.FIFO, nil
	case "prio":
		return sched.PRIO, nil
	case "fair":
		return sched.FAIR, nil
	case "mlfqs":
		return sched.MLFQS, nil
	default:
		return 0, fmt.Errorf("kernel: unknown scheduler policy %q", name)
	}
}

// Boot constructs and wires every kernel-global service, synthesizes
// and mounts the builtin programs' executable images, and returns a
// ready-to-use Context. The only running thread is the boot thread,
// dispatched on the caller's behalf — no process exists until the
// caller uses Table.Execute.
func Boot(cfg Config, log *zap.Logger) (*Context, error) {
	if log == nil {
		var err error
		log, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("kernel: building logger: %w", err)
		}
	}

	policy, err := parsePolicy(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	if err := seedFileDescriptorLimit(cfg.NoFileLimit); err != nil {
		log.Warn("could not raise file descriptor limit", zap.Error(err))
	}

	threadReg := thread.NewRegistry()
	s := sched.New(threadReg, policy)

	fs, err := bootFilesystem(cfg)
	if err != nil {
		return nil, fmt.Errorf("kernel: assembling boot filesystem: %w", err)
	}

	programs := usermode.NewRegistry()
	usermode.RegisterBuiltins(programs)

	if err := mountBuiltins(fs, programs, cfg.BinDir); err != nil {
		return nil, fmt.Errorf("kernel: mounting builtins: %w", err)
	}

	table := proc.NewTable(s, threadReg, fs, programs, log, cfg.BinDir)

	bootThread := threadReg.Allocate("boot", thread.PriorityDefault)
	s.Spawn(bootThread)
	<-bootThread.Gate

	id := uuid.New()
	log.Info("kernel booted",
		zap.String("boot_id", id.String()),
		zap.String("scheduler", policy.String()),
		zap.String("bin_dir", cfg.BinDir),
	)

	return &Context{
		ID:         id,
		Log:        log,
		Sched:      s,
		ThreadReg:  threadReg,
		FS:         fs,
		Programs:   programs,
		Table:      table,
		BootThread: bootThread,
		config:     cfg,
	}, nil
}

// bootFilesystem assembles the default layered filesystem: an
// in-memory, read-write upper layer over a disk-backed lower layer when
// a disk root is configured, or a purely in-memory filesystem
// otherwise. Using overlayfs even in the disk-backed case means every
// write a running process makes (e.g. to a scratch file) never touches
// the host disk, while still being able to read real on-disk program
// images placed under cfg.DiskRoot.
func bootFilesystem(cfg Config) (vfs.FileSystem, error) {
	upper := memfs.New()
	if cfg.DiskRoot == "" {
		return upper, nil
	}
	lower := diskfs.New(cfg.DiskRoot)
	return overlayfs.New(upper, lower), nil
}

// mountBuiltins synthesizes a minimal valid ELF image for every
// registered builtin program and writes it into fs under binDir, so
// Table.Execute's normal "read file, parse ELF, load segments" path
// runs even for programs with no real compiled binary. Each image is
// built and written concurrently via an errgroup, since the writes
// target disjoint paths and share no mutable state beyond the
// filesystem's own internal locking.
func mountBuiltins(fs vfs.FileSystem, programs *usermode.Registry, binDir string) error {
	if err := fs.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	names := programs.Names()
	g, _ := errgroup.WithContext(context.Background())
	for _, name := range names {
		name := name
		g.Go(func() error {
			image := elf.Synthesize(0x08048000, []byte(name))
			path := binDir + "/" + name
			return fs.WriteFile(path, image, 0o755)
		})
	}
	return g.Wait()
}

// seedFileDescriptorLimit raises the process's soft RLIMIT_NOFILE to at
// least want, leaving it unchanged if it is already higher or the hard
// limit does not allow it. A teaching kernel running many simulated
// processes each with their own fd table still shares one real process's
// fd limit for its own logging/filesystem backing, so this guards
// against that shared limit being the thing that fails first.
func seedFileDescriptorLimit(want uint64) error {
	if want == 0 {
		return nil
	}
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return err
	}
	if rlim.Cur >= want {
		return nil
	}
	target := want
	if rlim.Max < target {
		target = rlim.Max
	}
	rlim.Cur = target
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}

// Shutdown flushes logs and releases anything Boot acquired. There is
// no running-process teardown here: Shutdown assumes every process has
// already exited, matching spec.md's scope of "process/thread teardown"
// as something each process does to itself via exit(), not something a
// kernel-wide shutdown forces.
func (k *Context) Shutdown() error {
	return k.Log.Sync()
}

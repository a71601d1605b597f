package uthread

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"webos/pkg/elf"
	"webos/pkg/proc"
	"webos/pkg/sched"
	"webos/pkg/thread"
	"webos/pkg/usermode"
	"webos/pkg/vfs/memfs"
)

// bootOneProcess installs a single program under name and runs it as a
// root process, handing the caller both the booted table (so it can
// Wait on the result) and the boot thread Wait needs as its caller.
func bootOneProcess(t *testing.T, name string, prog usermode.Program) (*proc.Table, *proc.Process, *thread.Thread) {
	t.Helper()

	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/bin", 0o755))
	image := elf.Synthesize(0x08048000, []byte(name))
	require.NoError(t, fs.WriteFile("/bin/"+name, image, 0o755))

	reg := usermode.NewRegistry()
	reg.Register(name, prog)

	threadReg := thread.NewRegistry()
	s := sched.New(threadReg, sched.FIFO)
	table := proc.NewTable(s, threadReg, fs, reg, zap.NewNop(), "/bin")

	boot := threadReg.Allocate("boot", thread.PriorityDefault)
	s.Spawn(boot)
	<-boot.Gate

	p, err := table.Execute(nil, name, io.Discard, io.Discard)
	require.NoError(t, err)

	return table, p, boot
}

func TestPthreadExecuteAndJoinRunsBodyToCompletion(t *testing.T) {
	var ran bool
	var mu sync.Mutex

	table, p, boot := bootOneProcess(t, "spawn-one", func(ctx *usermode.Context) int32 {
		proc := ctx.Proc.(*proc.Process)
		tid, err := PthreadExecute(proc, thread.PriorityDefault, func(uctx *Context) {
			mu.Lock()
			ran = true
			mu.Unlock()
		}, nil)
		if err != nil {
			return -1
		}
		if err := PthreadJoin(proc, ctx.Thread, tid); err != nil {
			return -1
		}
		return 0
	})

	status, err := table.Wait(p.PID(), boot)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
	mu.Lock()
	defer mu.Unlock()
	require.True(t, ran)
}

func TestPthreadJoinOnUnknownTidFails(t *testing.T) {
	table, p, boot := bootOneProcess(t, "join-bogus", func(ctx *usermode.Context) int32 {
		proc := ctx.Proc.(*proc.Process)
		if err := PthreadJoin(proc, ctx.Thread, thread.ID(99999)); err == nil {
			return -1
		}
		return 0
	})

	status, err := table.Wait(p.PID(), boot)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
}

func TestExitMainJoinsRemainingPeerThread(t *testing.T) {
	// The main thread returns without joining its secondary thread; the
	// main thread's ExitMain teardown joins every remaining peer thread,
	// and that join must complete rather than deadlock.
	table, p, boot := bootOneProcess(t, "outlives-main", func(ctx *usermode.Context) int32 {
		proc := ctx.Proc.(*proc.Process)
		sem, err := proc.SyncCreateSemaphore(0)
		if err != nil {
			return -1
		}
		_, err = PthreadExecute(proc, thread.PriorityDefault, func(uctx *Context) {
			_ = proc.SemaDown(sem, uctx.Thread)
		}, nil)
		if err != nil {
			return -1
		}
		_ = proc.SemaUp(sem)
		return 0
	})

	status, err := table.Wait(p.PID(), boot)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
}

func TestPthreadExecuteReservesDistinctStacks(t *testing.T) {
	var bases []int
	var mu sync.Mutex

	table, p, boot := bootOneProcess(t, "two-stacks", func(ctx *usermode.Context) int32 {
		proc := ctx.Proc.(*proc.Process)
		record := func(uctx *Context) {
			mu.Lock()
			bases = append(bases, uctx.Thread.UserStackBase())
			mu.Unlock()
		}
		tid1, err := PthreadExecute(proc, thread.PriorityDefault, record, nil)
		if err != nil {
			return -1
		}
		tid2, err := PthreadExecute(proc, thread.PriorityDefault, record, nil)
		if err != nil {
			return -1
		}
		_ = PthreadJoin(proc, ctx.Thread, tid1)
		_ = PthreadJoin(proc, ctx.Thread, tid2)
		return 0
	})

	status, err := table.Wait(p.PID(), boot)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bases, 2)
	require.NotEqual(t, bases[0], bases[1])
}

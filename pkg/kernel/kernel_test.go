package kernel

import (
	"bytes"
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
	"webos/pkg/uthread"
)

// installProgram registers a test program and mounts a synthesized ELF
// image for it under the kernel's bin directory, exactly as Boot's
// mountBuiltins does for the real builtins — a test-only program never
// has a compiled binary either.
func installProgram(t *testing.T, k *Context, name string, prog usermode.Program) {
	t.Helper()
	k.Programs.Register(name, prog)
	image := elf.Synthesize(0x08048000, []byte(name))
	require.NoError(t, k.FS.WriteFile("/bin/"+name, image, 0o755))
}

func bootTestKernel(t *testing.T) *Context {
	t.Helper()
	k, err := Boot(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return k
}

func TestScenarioEchoHelloWorld(t *testing.T) {
	k := bootTestKernel(t)

	var stdout bytes.Buffer
	p, err := k.Table.Execute(nil, "echo hello world", &stdout, io.Discard)
	require.NoError(t, err)

	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
	require.Equal(t, "hello world\necho: exit(0)\n", stdout.String())
}

func TestScenarioParentWaitsOnceOnChildExitCode(t *testing.T) {
	k := bootTestKernel(t)

	installProgram(t, k, "wait-once-42", func(ctx *usermode.Context) int32 {
		p := ctx.Proc.(*proc.Process)
		child, err := p.Execute("exit 42", io.Discard, io.Discard)
		if err != nil {
			return -1
		}
		status, err := p.Wait(child.PID(), ctx.Thread)
		if err != nil {
			return -1
		}
		if _, err := p.Wait(child.PID(), ctx.Thread); err == nil {
			return -1
		}
		return status.ExitCode
	})

	p, err := k.Table.Execute(nil, "wait-once-42", io.Discard, io.Discard)
	require.NoError(t, err)
	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(42), status.ExitCode)
}

func TestScenarioWaitInReverseSpawnOrder(t *testing.T) {
	k := bootTestKernel(t)

	installProgram(t, k, "wait-reverse", func(ctx *usermode.Context) int32 {
		p := ctx.Proc.(*proc.Process)
		first, err := p.Execute("exit 7", io.Discard, io.Discard)
		if err != nil {
			return -1
		}
		second, err := p.Execute("exit 8", io.Discard, io.Discard)
		if err != nil {
			return -1
		}
		secondStatus, err := p.Wait(second.PID(), ctx.Thread)
		if err != nil || secondStatus.ExitCode != 8 {
			return -1
		}
		firstStatus, err := p.Wait(first.PID(), ctx.Thread)
		if err != nil || firstStatus.ExitCode != 7 {
			return -1
		}
		return 0
	})

	p, err := k.Table.Execute(nil, "wait-reverse", io.Discard, io.Discard)
	require.NoError(t, err)
	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
}

func TestScenarioTwoThreadsShareCounterUnderOneLock(t *testing.T) {
	k := bootTestKernel(t)
	const iterations = 100000

	installProgram(t, k, "counter-threads", func(ctx *usermode.Context) int32 {
		p := ctx.Proc.(*proc.Process)
		lockID := p.SyncCreateLock()
		counter := 0
		var raceGuard sync.Mutex

		worker := func(uctx *uthread.Context) {
			for i := 0; i < iterations; i++ {
				_ = p.AcquireLock(lockID, uctx.Thread)
				raceGuard.Lock()
				counter++
				raceGuard.Unlock()
				_ = p.ReleaseLock(lockID, uctx.Thread)
			}
		}

		tid1, err := uthread.PthreadExecute(p, thread.PriorityDefault, func(uctx *uthread.Context) { worker(uctx) }, nil)
		if err != nil {
			return -1
		}
		tid2, err := uthread.PthreadExecute(p, thread.PriorityDefault, func(uctx *uthread.Context) { worker(uctx) }, nil)
		if err != nil {
			return -1
		}
		if err := uthread.PthreadJoin(p, ctx.Thread, tid1); err != nil {
			return -1
		}
		if err := uthread.PthreadJoin(p, ctx.Thread, tid2); err != nil {
			return -1
		}
		if counter != 2*iterations {
			return -1
		}
		return 0
	})

	p, err := k.Table.Execute(nil, "counter-threads", io.Discard, io.Discard)
	require.NoError(t, err)
	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)
}

func TestScenarioPriorityDonationOrdersHighBeforeMedium(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler = "prio"
	k, err := Boot(cfg, zap.NewNop())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	installProgram(t, k, "donation-race", func(ctx *usermode.Context) int32 {
		p := ctx.Proc.(*proc.Process)
		lockID := p.SyncCreateLock()
		readySem, err := p.SyncCreateSemaphore(0)
		if err != nil {
			return -1
		}

		low := func(uctx *uthread.Context) {
			_ = p.AcquireLock(lockID, uctx.Thread)
			record("low-acquired")
			_ = p.SemaUp(readySem)
			for i := 0; i < 40; i++ {
				if p.Scheduler().Tick(uctx.Thread) {
					p.Scheduler().Yield(uctx.Thread)
				}
			}
			record("low-released")
			_ = p.ReleaseLock(lockID, uctx.Thread)
		}
		medium := func(uctx *uthread.Context) {
			for i := 0; i < 200; i++ {
				if p.Scheduler().Tick(uctx.Thread) {
					p.Scheduler().Yield(uctx.Thread)
				}
			}
			record("medium-done")
		}
		high := func(uctx *uthread.Context) {
			_ = p.AcquireLock(lockID, uctx.Thread)
			record("high-acquired")
			_ = p.ReleaseLock(lockID, uctx.Thread)
		}

		lowTid, err := uthread.PthreadExecute(p, 10, low, nil)
		if err != nil {
			return -1
		}
		_ = p.SemaDown(readySem, ctx.Thread)

		medTid, err := uthread.PthreadExecute(p, 30, medium, nil)
		if err != nil {
			return -1
		}
		highTid, err := uthread.PthreadExecute(p, 50, high, nil)
		if err != nil {
			return -1
		}

		_ = uthread.PthreadJoin(p, ctx.Thread, lowTid)
		_ = uthread.PthreadJoin(p, ctx.Thread, highTid)
		_ = uthread.PthreadJoin(p, ctx.Thread, medTid)
		return 0
	})

	p, err := k.Table.Execute(nil, "donation-race", io.Discard, io.Discard)
	require.NoError(t, err)
	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(0), status.ExitCode)

	highIdx, medIdx := -1, -1
	for i, name := range order {
		if name == "high-acquired" {
			highIdx = i
		}
		if name == "medium-done" {
			medIdx = i
		}
	}
	require.NotEqual(t, -1, highIdx, "high thread never acquired the lock: %v", order)
	require.NotEqual(t, -1, medIdx, "medium thread never finished: %v", order)
	require.Less(t, highIdx, medIdx, "expected high to finish before medium: %v", order)
}

func TestScenarioSemaphoreHandoffDeliversExitCode(t *testing.T) {
	k := bootTestKernel(t)

	installProgram(t, k, "sema-exit-three", func(ctx *usermode.Context) int32 {
		p := ctx.Proc.(*proc.Process)
		semID, err := p.SyncCreateSemaphore(0)
		if err != nil {
			return -1
		}

		tid, err := uthread.PthreadExecute(p, thread.PriorityDefault, func(uctx *uthread.Context) {
			_ = p.SemaDown(semID, uctx.Thread)
			p.RequestExit(3)
		}, nil)
		if err != nil {
			return -1
		}

		_ = p.SemaUp(semID)
		if err := uthread.PthreadJoin(p, ctx.Thread, tid); err != nil {
			return -1
		}
		if code, ok := p.PendingExit(); ok {
			return code
		}
		return 0
	})

	p, err := k.Table.Execute(nil, "sema-exit-three", io.Discard, io.Discard)
	require.NoError(t, err)
	status, err := k.Table.Wait(p.PID(), k.BootThread)
	require.NoError(t, err)
	require.Equal(t, int32(3), status.ExitCode)
}

func TestBootParsesEveryPolicyName(t *testing.T) {
	for _, name := range []string{"", "fifo", "prio", "fair", "mlfqs"} {
		p, err := parsePolicy(name)
		require.NoError(t, err)
		_ = p.String()
	}
	_, err := parsePolicy("bogus")
	require.Error(t, err)
}

func TestBootMountsBuiltinsUnderBinDir(t *testing.T) {
	k := bootTestKernel(t)
	for _, name := range k.Programs.Names() {
		_, err := k.FS.ReadFile("/bin/" + name)
		require.NoError(t, err)
	}
}

func TestSchedulerPolicyThreadedThroughConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler = "mlfqs"
	k, err := Boot(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, sched.MLFQS, k.Sched.Policy())
}

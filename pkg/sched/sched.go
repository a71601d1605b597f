// Package sched implements the pluggable scheduling policies and the
// single-CPU dispatcher that decides, at every Block/Yield/Exit/Unblock,
// which thread.Thread actually holds the CPU. It is grounded on the
// teacher's pkg/process/scheduler.go (PriorityScheduler's queues-by-level
// shape, Yield/GetNextRunnable naming) generalized from a process
// scheduler that never really ran anything to one that, here, actually
// hands a goroutine the baton to execute.
//
// There is no real hardware interrupt to preempt a running thread
// mid-instruction, so preemption is cooperative: a thread only gives up
// the CPU at Block, Yield, or Exit, or when Tick reports its slice is
// spent and the caller (code simulating CPU-bound work by calling Tick
// itself) chooses to act on that by calling Yield. This mirrors how
// original_source/pintos/src/threads/thread.c's timer interrupt handler
// itself does nothing but request a yield on return from interrupt;
// here nothing schedules that request asynchronously, so the caller has
// to cooperate by checking it.
package sched

import (
	"sync"

	"webos/pkg/thread"
)

// Policy names the scheduling discipline in effect.
type Policy int

const (
	// FIFO runs ready threads strictly in arrival order, ignoring
	// priority entirely.
	FIFO Policy = iota
	// PRIO always runs the highest effective-priority ready thread,
	// breaking ties by arrival order, and honors donation.
	PRIO
	// FAIR decays recent_cpu once per second (SecondTick) and always runs
	// the lowest-recent_cpu ready thread, breaking ties by lower nice. It
	// does not recompute priority; only MLFQS does that.
	FAIR
	// MLFQS is PRIO scheduling over priorities FAIR's estimator
	// continuously recomputes, rather than over a user-set priority: a
	// multi-level feedback queue built from the same fixed-point engine.
	MLFQS
)

func (p Policy) String() string {
	switch p {
	case FIFO:
		return "fifo"
	case PRIO:
		return "prio"
	case FAIR:
		return "fair"
	case MLFQS:
		return "mlfqs"
	default:
		return "unknown"
	}
}

// TicksPerSlice is the number of timer ticks a thread may run before the
// PRIO/MLFQS policies consider its quantum spent, matching Pintos's
// TIME_SLICE of 4 ticks.
const TicksPerSlice = 4

// Scheduler is the kernel's single-CPU dispatcher. Every field is guarded
// by mu, which stands in for "interrupts disabled" the way a real kernel
// would bracket a scheduling decision — no two goroutines ever observe or
// mutate ready-queue membership concurrently.
type Scheduler struct {
	mu sync.Mutex

	policy Policy
	reg    *thread.Registry
	ready  *thread.Queue // arrival-ordered; policies scan or pop it differently
	running *thread.Thread

	loadAvg int64 // 17.14 fixed point, FAIR/MLFQS only

	priMax int

	onSwitch func(from, to *thread.Thread) // optional hook for logging/tracing
}

// New returns a Scheduler over reg's thread registry, starting with no
// thread running and an empty ready queue.
func New(reg *thread.Registry, policy Policy) *Scheduler {
	return &Scheduler{
		policy: policy,
		reg:    reg,
		ready:  thread.NewQueue(),
		priMax: thread.PriorityMax,
	}
}

// OnSwitch installs a hook invoked every time the scheduler actually hands
// the CPU from one thread to another (from may be nil at boot, to may be
// nil when the CPU goes idle).
func (s *Scheduler) OnSwitch(fn func(from, to *thread.Thread)) {
	s.mu.Lock()
	s.onSwitch = fn
	s.mu.Unlock()
}

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy switches the active policy. Threads already queued keep their
// current priority/recent_cpu bookkeeping; only future dispatch decisions
// change discipline.
func (s *Scheduler) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// Running returns the thread currently holding the CPU, or nil if idle.
func (s *Scheduler) Running() *thread.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// pickNextLocked selects and removes the next thread to run from the
// ready queue according to the active policy. Returns nil if the ready
// queue is empty. Caller must hold s.mu.
func (s *Scheduler) pickNextLocked() *thread.Thread {
	switch s.policy {
	case FIFO:
		return s.ready.PopFront()
	case PRIO, MLFQS:
		return s.pickHighestPriorityLocked()
	case FAIR:
		return s.pickLowestRecentCPULocked()
	default:
		return s.ready.PopFront()
	}
}

func (s *Scheduler) pickHighestPriorityLocked() *thread.Thread {
	var best *thread.Thread
	bestPrio := -1
	s.ready.Each(func(t *thread.Thread) {
		if p := t.EffectivePriority(); p > bestPrio {
			bestPrio = p
			best = t
		}
	})
	if best != nil {
		s.ready.Remove(best)
	}
	return best
}

func (s *Scheduler) pickLowestRecentCPULocked() *thread.Thread {
	var best *thread.Thread
	var bestCPU int64
	first := true
	s.ready.Each(func(t *thread.Thread) {
		cpu := t.RecentCPU()
		if first || cpu < bestCPU || (cpu == bestCPU && t.Niceness() < best.Niceness()) {
			best = t
			bestCPU = cpu
			first = false
		}
	})
	if best != nil {
		s.ready.Remove(best)
	}
	return best
}

// dispatchLocked makes next the running thread and hands it the CPU by
// sending on its Gate. It does not block: Gate is buffered, and next's
// goroutine (parked on <-next.Gate) will wake asynchronously. Caller must
// hold s.mu; releases nothing itself.
func (s *Scheduler) dispatchLocked(next *thread.Thread) {
	prev := s.running
	if next != nil {
		next.SetState(thread.Running)
		next.ResetSlice()
	}
	s.running = next
	if s.onSwitch != nil {
		s.onSwitch(prev, next)
	}
	if next != nil {
		next.Gate <- struct{}{}
	}
}

// Spawn registers t as Ready. If the CPU is currently idle (nothing
// running — there is nothing to preempt), t is dispatched immediately.
// Otherwise t is enqueued and, if its effective priority exceeds the
// running thread's, the running thread is made to yield immediately.
//
// Spawn must be called from the currently running thread's own goroutine
// — there is no other caller, since every other thread is parked on its
// own Gate and executing no code at all. That invariant is what makes
// calling s.Yield(s.running) safe here: the "victim" being forced to
// yield is always the same goroutine making this call, never some other
// thread reached into from the outside.
func (s *Scheduler) Spawn(t *thread.Thread) {
	s.mu.Lock()
	if s.running == nil {
		s.dispatchLocked(t)
		s.mu.Unlock()
		return
	}
	s.ready.PushBack(t)
	preempt := t.EffectivePriority() > s.running.EffectivePriority() && (s.policy == PRIO || s.policy == MLFQS)
	s.mu.Unlock()
	if preempt {
		s.Yield(s.running)
	}
}

// Block transitions t (which must be the running thread) to Blocked and
// hands the CPU to the next ready thread, if any. The caller's goroutine
// parks on <-t.Gate until a future Unblock dispatches it again.
func (s *Scheduler) Block(t *thread.Thread) {
	s.mu.Lock()
	t.SetState(thread.Blocked)
	next := s.pickNextLocked()
	s.dispatchLocked(next)
	s.mu.Unlock()
	<-t.Gate
}

// Unblock moves t from Blocked to Ready. If the CPU is currently idle,
// unblocking t is not preemption of anything and t is dispatched right
// away — there is no running thread to protect and no idle spinner to
// eventually notice t sitting ready. If some other thread is running,
// Unblock only enqueues t; per spec.md it does not itself force a switch.
func (s *Scheduler) Unblock(t *thread.Thread) {
	s.mu.Lock()
	t.SetState(thread.Ready)
	if s.running == nil {
		s.dispatchLocked(t)
		s.mu.Unlock()
		return
	}
	s.ready.PushBack(t)
	s.mu.Unlock()
}

// Yield transitions t (the running thread) back to Ready and lets the
// scheduler reconsider. If t is still the best choice (e.g. FIFO with an
// empty queue, or PRIO and t is still highest priority) it keeps the CPU
// without any channel handoff. caller identifies which thread is
// yielding so Spawn can force a yield on a specific victim rather than
// "whoever happens to call CurrentThread".
func (s *Scheduler) Yield(t *thread.Thread) {
	s.mu.Lock()
	t.SetState(thread.Ready)
	s.ready.PushBack(t)
	next := s.pickNextLocked()
	if next == t {
		t.SetState(thread.Running)
		s.running = t
		s.mu.Unlock()
		return
	}
	s.dispatchLocked(next)
	s.mu.Unlock()
	<-t.Gate
}

// Exit removes t from scheduling permanently and hands the CPU to the
// next ready thread. The caller terminates its goroutine (by returning
// from it) immediately after Exit returns; Exit
// itself never returns control to t in any scheduled sense.
func (s *Scheduler) Exit(t *thread.Thread) {
	s.mu.Lock()
	t.SetState(thread.Dying)
	s.ready.Remove(t)
	next := s.pickNextLocked()
	s.dispatchLocked(next)
	s.mu.Unlock()
}

// Tick advances t's time-slice counter by one timer tick and reports
// whether its quantum is now spent under the PRIO/MLFQS policies (FIFO
// and FAIR have no quantum; they always report false). Callers that
// simulate CPU-bound work poll this and call Yield when it returns true,
// since nothing here can interrupt them asynchronously.
func (s *Scheduler) Tick(t *thread.Thread) bool {
	if s.Policy() == FIFO || s.Policy() == FAIR {
		return false
	}
	return t.AddTick() >= TicksPerSlice
}

// SecondTick runs the FAIR/MLFQS once-per-second recalculation: load_avg
// over all Ready-or-Running threads, then recent_cpu and (for MLFQS)
// priority for every thread the registry knows about.
func (s *Scheduler) SecondTick() {
	s.mu.Lock()
	policy := s.policy
	if policy != FAIR && policy != MLFQS {
		s.mu.Unlock()
		return
	}
	readyThreads := int64(s.ready.Len())
	if s.running != nil {
		readyThreads++
	}
	s.loadAvg = recalcLoadAvg(s.loadAvg, readyThreads)
	loadAvg := s.loadAvg
	priMax := s.priMax
	s.mu.Unlock()

	s.reg.Each(func(t *thread.Thread) {
		nice := t.Niceness()
		rc := recalcRecentCPU(t.RecentCPU(), loadAvg, nice)
		t.SetRecentCPU(rc)
		if policy == MLFQS {
			t.SetBasePriority(recalcPriority(priMax, rc, nice))
		}
	})
}

// AccrueRecentCPU adds one tick of CPU time to the running thread's
// recent_cpu (harmless bookkeeping under FIFO/PRIO, load-bearing under
// FAIR/MLFQS). Neither Tick nor SecondTick calls it; a caller that
// simulates timer ticks calls it itself.
func (s *Scheduler) AccrueRecentCPU(t *thread.Thread) {
	t.SetRecentCPU(t.RecentCPU() + toFixed(1))
}

// LoadAvg returns the current 17.14 fixed-point load average.
func (s *Scheduler) LoadAvg() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAvg
}

// LoadAvgRounded returns the load average rounded to the nearest integer,
// for display purposes.
func (s *Scheduler) LoadAvgRounded() int64 {
	return fixedToIntRound(s.LoadAvg())
}

// ReadyLen reports how many threads are currently sitting in the ready
// queue, for diagnostics and tests.
func (s *Scheduler) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Len()
}

// Package thread models a kernel-level thread of control: the unit the
// scheduler in pkg/sched actually dispatches. A Thread is pure bookkeeping —
// state, priority, and queue linkage — separate from whatever goroutine is
// standing in for its execution, the same separation the teacher draws
// between a Process record and the code that happens to be running it.
package thread

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// State is the scheduling state of a thread, modeled on the teacher's
// ProcessState enum but renamed to the kernel-thread vocabulary spec.md
// uses throughout.
type State int

const (
	// Ready means the thread is eligible to run and sitting in a ready
	// queue, waiting for the scheduler to dispatch it.
	Ready State = iota
	// Running means the thread currently holds the CPU.
	Running
	// Blocked means the thread is waiting on a sync object, a join, or
	// an I/O result and cannot be dispatched until something unblocks it.
	Blocked
	// Dying means the thread has called Exit and is unwinding; it will
	// never run again and is no longer a member of any queue.
	Dying
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	default:
		return "unknown"
	}
}

// transition table mirrors the teacher's state.go ValidTransitions, but
// the vocabulary is thread scheduling states rather than process states.
var validTransitions = map[State][]State{
	Ready:   {Running},
	Running: {Ready, Blocked, Dying},
	Blocked: {Ready},
	Dying:   {},
}

// ErrInvalidTransition is returned by setState when the requested move
// is not one validTransitions allows.
var ErrInvalidTransition = errors.New("thread: invalid state transition")

// PriorityMin and PriorityMax bound the priority a thread may be created
// or donated to, matching Pintos's PRI_MIN/PRI_MAX range.
const (
	PriorityMin = 0
	PriorityMax = 63
	// PriorityDefault is the priority assigned to a thread whose creator
	// did not specify one.
	PriorityDefault = 31
)

// ID uniquely identifies a thread for the lifetime of the kernel. Thread 1
// is always the first thread created (conventionally the boot thread);
// a process's PID is the ID of that process's main thread.
type ID int32

// Thread is the scheduler's view of a kernel thread: base priority,
// donated priority, scheduling state, and queue linkage. It carries no
// knowledge of what Go code is actually running on its behalf — that is
// the gate/baton mechanism in pkg/sched.
type Thread struct {
	mu sync.Mutex

	id   ID
	name string

	state State

	basePriority     int
	donatedPriority  int
	donors           []*Thread // threads currently donating to this one
	waitingOnLock    interface{} // opaque lock identity; set by pkg/ksync
	niceness         int
	recentCPU        int64 // 17.14 fixed-point, owned by pkg/sched
	ticksInSlice     int

	// userStackBase is the user-virtual top of this thread's own stack,
	// set only for a secondary user thread (the main thread's stack
	// belongs to the process, not to any one thread). Zero means unset.
	userStackBase int

	createdAt time.Time

	// Gate is the baton channel the dispatcher in pkg/sched sends on to
	// hand this thread the CPU, and the thread's own goroutine blocks on
	// to wait for its turn. Buffered to 1 so a dispatch send never blocks
	// the dispatcher itself.
	Gate chan struct{}

	// element links this Thread into whichever container/list ready
	// queue currently holds it, so Remove is O(1) without a linear scan.
	element *list.Element
}

// New allocates a Thread in the Ready state at the given base priority.
// It does not enqueue the thread anywhere; the caller (pkg/sched) decides
// which ready queue it belongs in.
func New(id ID, name string, priority int) *Thread {
	if priority < PriorityMin {
		priority = PriorityMin
	}
	if priority > PriorityMax {
		priority = PriorityMax
	}
	return &Thread{
		id:           id,
		name:         name,
		state:        Ready,
		basePriority: priority,
		createdAt:    time.Now(),
		Gate:         make(chan struct{}, 1),
	}
}

// ID returns the thread's identity.
func (t *Thread) ID() ID {
	return t.id
}

// Name returns the thread's human-readable name, typically the loaded
// program's basename.
func (t *Thread) Name() string {
	return t.name
}

// State returns the thread's current scheduling state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setState validates and performs a state transition. Callers must already
// hold whatever higher-level scheduling lock serializes decisions; this
// mutex only protects the field itself against concurrent Thread accessors
// like EffectivePriority.
func (t *Thread) setState(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ok := range validTransitions[t.state] {
		if ok == to {
			t.state = to
			return nil
		}
	}
	return ErrInvalidTransition
}

// SetState is the pkg/sched-facing entry point for forcing a transition;
// it is a thin, exported wrapper so the scheduler package — the only
// intended caller outside this package — is not reaching into unexported
// machinery.
func (t *Thread) SetState(to State) error {
	return t.setState(to)
}

// BasePriority returns the priority the thread was created or most
// recently nice-adjusted to, ignoring any donation.
func (t *Thread) BasePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.basePriority
}

// SetBasePriority changes the thread's own priority, independent of
// anything donated to it. Used by the MLFQS policy's once-per-second
// recalculation in pkg/sched.
func (t *Thread) SetBasePriority(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p < PriorityMin {
		p = PriorityMin
	}
	if p > PriorityMax {
		p = PriorityMax
	}
	t.basePriority = p
}

// EffectivePriority returns the higher of the thread's base priority and
// the highest priority it has been donated, per spec.md's donation rule.
func (t *Thread) EffectivePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.donatedPriority > t.basePriority {
		return t.donatedPriority
	}
	return t.basePriority
}

// Donors returns the threads currently donating priority to this one,
// most recent last.
func (t *Thread) Donors() []*Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Thread, len(t.donors))
	copy(out, t.donors)
	return out
}

// AddDonor records donor as donating to this thread and recomputes the
// cached donatedPriority. Donation is nested: a thread may hold several
// locks, each contended by a different higher-priority waiter, so the
// donated value is the max over every current donor.
func (t *Thread) AddDonor(donor *Thread) {
	t.mu.Lock()
	for _, d := range t.donors {
		if d == donor {
			t.mu.Unlock()
			return
		}
	}
	t.donors = append(t.donors, donor)
	t.recomputeDonationLocked()
	t.mu.Unlock()
}

// RemoveDonor drops donor from this thread's donor set, e.g. once the lock
// it was waiting on has been released to it or it gave up waiting.
func (t *Thread) RemoveDonor(donor *Thread) {
	t.mu.Lock()
	for i, d := range t.donors {
		if d == donor {
			t.donors = append(t.donors[:i], t.donors[i+1:]...)
			break
		}
	}
	t.recomputeDonationLocked()
	t.mu.Unlock()
}

func (t *Thread) recomputeDonationLocked() {
	max := 0
	for _, d := range t.donors {
		if p := d.EffectivePriority(); p > max {
			max = p
		}
	}
	t.donatedPriority = max
}

// SetWaitingOnLock records the opaque lock identity this thread is
// blocked acquiring, so donation chains can be walked lock-holder to
// lock-holder. A nil value means the thread is not waiting on a lock.
func (t *Thread) SetWaitingOnLock(lock interface{}) {
	t.mu.Lock()
	t.waitingOnLock = lock
	t.mu.Unlock()
}

// WaitingOnLock returns the opaque lock identity set by SetWaitingOnLock.
func (t *Thread) WaitingOnLock() interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitingOnLock
}

// Niceness returns the FAIR policy's nice value, in [-20, 20].
func (t *Thread) Niceness() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.niceness
}

// SetNiceness sets the FAIR policy's nice value.
func (t *Thread) SetNiceness(n int) {
	t.mu.Lock()
	t.niceness = n
	t.mu.Unlock()
}

// RecentCPU returns the 17.14 fixed-point recent_cpu value pkg/sched's
// FAIR estimator maintains for this thread.
func (t *Thread) RecentCPU() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recentCPU
}

// SetRecentCPU stores a new recent_cpu value.
func (t *Thread) SetRecentCPU(v int64) {
	t.mu.Lock()
	t.recentCPU = v
	t.mu.Unlock()
}

// TicksInSlice returns how many timer ticks the thread has run for within
// its current time slice, used by the PRIO/MLFQS policies' 4-tick quantum.
func (t *Thread) TicksInSlice() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticksInSlice
}

// AddTick increments the thread's slice tick counter and returns the new
// value.
func (t *Thread) AddTick() int {
	t.mu.Lock()
	t.ticksInSlice++
	v := t.ticksInSlice
	t.mu.Unlock()
	return v
}

// ResetSlice zeroes the slice tick counter, called whenever the thread is
// freshly dispatched.
func (t *Thread) ResetSlice() {
	t.mu.Lock()
	t.ticksInSlice = 0
	t.mu.Unlock()
}

// UserStackBase returns the top of this secondary thread's user stack,
// or 0 if it was never set (the main thread, or a purely kernel-side
// thread).
func (t *Thread) UserStackBase() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userStackBase
}

// SetUserStackBase records the top of a newly reserved user stack for a
// secondary thread, called once by pthread_execute.
func (t *Thread) SetUserStackBase(addr int) {
	t.mu.Lock()
	t.userStackBase = addr
	t.mu.Unlock()
}

// CreatedAt returns when the thread was allocated.
func (t *Thread) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Thread) setElement(e *list.Element) {
	t.element = e
}

func (t *Thread) getElement() *list.Element {
	return t.element
}

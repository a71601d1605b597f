// Package ksync implements the kernel-mediated synchronization objects
// user threads acquire by a small integer handle: a priority-donating
// Lock and a counting Semaphore. Both block the calling thread through
// pkg/sched rather than a bare sync.Mutex, so a thread waiting on one of
// these is a first-class Blocked thread the scheduler and priority
// donation machinery both know about — the same relationship the teacher
// draws in pkg/process/ipc between a primitive (channel, buffer) and the
// ProcessManager-visible object wrapping it.
package ksync

import (
	"errors"
	"sync"

	"webos/pkg/sched"
	"webos/pkg/thread"
)

// ErrNotHeld is returned by Release when the calling thread does not
// currently hold the lock.
var ErrNotHeld = errors.New("ksync: lock not held by calling thread")

// ErrAlreadyHeld is returned by Acquire when the calling thread already
// holds the lock. Without this check the caller would donate priority
// to itself and deadlock permanently waiting on a lock it is already
// holding.
var ErrAlreadyHeld = errors.New("ksync: lock already held by calling thread")

// Lock is a kernel-mediated mutual-exclusion lock with priority donation:
// a thread blocked trying to Acquire a held Lock donates its effective
// priority to the holder for as long as it waits, so a low-priority
// holder cannot indefinitely starve a higher-priority waiter — spec.md's
// central scheduling invariant.
type Lock struct {
	s      *sched.Scheduler
	mu     sync.Mutex
	holder *thread.Thread
	waiters []*thread.Thread
}

// NewLock returns an unheld lock whose Acquire/Release block through s.
func NewLock(s *sched.Scheduler) *Lock {
	return &Lock{s: s}
}

// Acquire blocks the calling thread t until the lock is free, then takes
// it. If the lock is already held, t donates its effective priority to
// the holder (and transitively to whatever the holder is itself waiting
// on) for the duration of the wait. Acquire fails with ErrAlreadyHeld if
// t already holds the lock, rather than donating to itself and blocking
// forever.
func (l *Lock) Acquire(t *thread.Thread) error {
	for {
		l.mu.Lock()
		if l.holder == nil {
			l.holder = t
			l.mu.Unlock()
			return nil
		}
		if l.holder == t {
			l.mu.Unlock()
			return ErrAlreadyHeld
		}
		holder := l.holder
		l.waiters = append(l.waiters, t)
		l.mu.Unlock()

		t.SetWaitingOnLock(l)
		donateChain(t, holder)

		l.s.Block(t)
		// Unblocked by Release; loop to retry acquiring — another
		// waiter may have raced us (Release hands off by waking every
		// waiter, not just the one it chose as next holder), so this
		// is a real retry loop, not a formality.
	}
}

// donateChain walks from donor through the chain of lock holders donor
// is (transitively) waiting behind, adding donor as a donor on each, so
// a holder blocked on its own second lock still receives the donation —
// spec.md's nested-donation requirement.
func donateChain(donor *thread.Thread, holder *thread.Thread) {
	seen := map[*thread.Thread]bool{}
	for holder != nil && !seen[holder] {
		seen[holder] = true
		holder.AddDonor(donor)
		next := holder.WaitingOnLock()
		lk, ok := next.(*Lock)
		if !ok || lk == nil {
			break
		}
		lk.mu.Lock()
		nextHolder := lk.holder
		lk.mu.Unlock()
		holder = nextHolder
	}
}

// Release gives up the lock. The calling thread must currently hold it.
// Every waiter is woken and donation from the releasing thread is
// dropped; whichever waiter re-acquires first (decided by the scheduler,
// not by Release) becomes the new holder. Because priority may have
// changed, Release yields the caller so the scheduler can reconsider who
// should run next.
func (l *Lock) Release(t *thread.Thread) error {
	l.mu.Lock()
	if l.holder != t {
		l.mu.Unlock()
		return ErrNotHeld
	}
	l.holder = nil
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()

	for _, w := range waiters {
		t.RemoveDonor(w)
		w.SetWaitingOnLock(nil)
		l.s.Unblock(w)
	}
	l.s.Yield(t)
	return nil
}

// Holder returns the thread currently holding the lock, or nil.
func (l *Lock) Holder() *thread.Thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// Semaphore is a kernel-mediated counting semaphore: sema_down/sema_up
// over a value that, unlike a resource-limiting semaphore, is allowed to
// climb arbitrarily high (repeated Up calls with no matching Down is
// valid Pintos usage, e.g. signaling N waiters that do not yet exist).
// golang.org/x/sync/semaphore's Weighted was considered for this but
// rejected: it fixes a maximum capacity at construction and panics on an
// over-release, which cannot express sema_up's unbounded-counter
// semantics; x/sync is used instead in pkg/kernel, where its errgroup
// fits boot-sequence fan-out far better than it would fit here.
type Semaphore struct {
	s       *sched.Scheduler
	mu      sync.Mutex
	value   int
	waiters []*thread.Thread
}

// NewSemaphore returns a semaphore initialized to value, matching the
// Pintos sema_init(value) contract.
func NewSemaphore(s *sched.Scheduler, value int) *Semaphore {
	return &Semaphore{s: s, value: value}
}

// Down (sema_down) blocks the calling thread t until the semaphore's
// value is positive, then atomically decrements it.
func (sem *Semaphore) Down(t *thread.Thread) {
	for {
		sem.mu.Lock()
		if sem.value > 0 {
			sem.value--
			sem.mu.Unlock()
			return
		}
		sem.waiters = append(sem.waiters, t)
		sem.mu.Unlock()
		sem.s.Block(t)
	}
}

// Up (sema_up) increments the semaphore's value and, if any thread is
// parked in Down, unblocks the one that has waited longest.
func (sem *Semaphore) Up() {
	sem.mu.Lock()
	sem.value++
	var woken *thread.Thread
	if len(sem.waiters) > 0 {
		woken = sem.waiters[0]
		sem.waiters = sem.waiters[1:]
	}
	sem.mu.Unlock()
	if woken != nil {
		sem.s.Unblock(woken)
	}
}

// Value returns the semaphore's current count.
func (sem *Semaphore) Value() int {
	sem.mu.Lock()
	defer sem.mu.Unlock()
	return sem.value
}

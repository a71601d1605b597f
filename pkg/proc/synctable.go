package proc

import (
	"errors"

	"webos/pkg/ksync"
	"webos/pkg/thread"
)

// ErrBadSyncID is returned when a lock or semaphore id was never
// allocated by this process or has already been destroyed.
var ErrBadSyncID = errors.New("proc: bad lock or semaphore id")

// ErrNegativeSemaValue is returned by SyncCreateSemaphore when asked to
// initialize a semaphore to a negative value.
var ErrNegativeSemaValue = errors.New("proc: semaphore initial value must not be negative")

// SyncCreateLock allocates a new kernel-mediated lock and returns the
// small integer handle user code will pass to Acquire/Release — the
// Go-realized analogue of Pintos's lock_init over a user-visible lock id
// rather than an in-struct lock value, since here the lock lives in the
// kernel (this table), not in the process's own memory.
func (p *Process) SyncCreateLock() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSyncID
	p.nextSyncID++
	p.locks[id] = ksync.NewLock(p.sched)
	return id
}

// SyncCreateSemaphore allocates a new counting semaphore initialized to
// value and returns its handle. value must not be negative.
func (p *Process) SyncCreateSemaphore(value int) (int, error) {
	if value < 0 {
		return 0, ErrNegativeSemaValue
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSyncID
	p.nextSyncID++
	p.semaphores[id] = ksync.NewSemaphore(p.sched, value)
	return id, nil
}

func (p *Process) lockByID(id int) (*ksync.Lock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[id]
	if !ok {
		return nil, ErrBadSyncID
	}
	return l, nil
}

func (p *Process) semaphoreByID(id int) (*ksync.Semaphore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.semaphores[id]
	if !ok {
		return nil, ErrBadSyncID
	}
	return s, nil
}

// AcquireLock blocks caller until lock id is free, then takes it.
func (p *Process) AcquireLock(id int, caller *thread.Thread) error {
	l, err := p.lockByID(id)
	if err != nil {
		return err
	}
	return l.Acquire(caller)
}

// ReleaseLock releases lock id, which caller must currently hold.
func (p *Process) ReleaseLock(id int, caller *thread.Thread) error {
	l, err := p.lockByID(id)
	if err != nil {
		return err
	}
	return l.Release(caller)
}

// SemaDown blocks caller on semaphore id until its value is positive,
// then decrements it.
func (p *Process) SemaDown(id int, caller *thread.Thread) error {
	s, err := p.semaphoreByID(id)
	if err != nil {
		return err
	}
	s.Down(caller)
	return nil
}

// SemaUp increments semaphore id and wakes its longest-waiting blocked
// thread, if any.
func (p *Process) SemaUp(id int) error {
	s, err := p.semaphoreByID(id)
	if err != nil {
		return err
	}
	s.Up()
	return nil
}

// DestroySync removes a lock or semaphore from the process's tables once
// user code is done with it. The handle is not reused.
func (p *Process) DestroySync(id int) {
	p.mu.Lock()
	delete(p.locks, id)
	delete(p.semaphores, id)
	p.mu.Unlock()
}

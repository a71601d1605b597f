package thread

import "sync"

// Registry is the all-threads list: every Thread the kernel has ever
// created and not yet reclaimed, keyed by ID. It is the generalization of
// the teacher's ProcessManager.processes sync.Map, narrowed to the single
// concern of "does this ID exist" — scheduling membership lives in Queue,
// not here.
type Registry struct {
	mu      sync.RWMutex
	threads map[ID]*Thread
	nextID  ID
}

// NewRegistry returns an empty thread registry. IDs are assigned starting
// at 1, so ID 0 can be used as a sentinel for "no thread".
func NewRegistry() *Registry {
	return &Registry{
		threads: make(map[ID]*Thread),
		nextID:  1,
	}
}

// Allocate reserves the next ID, creates a Thread for it, and registers it.
func (r *Registry) Allocate(name string, priority int) *Thread {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	t := New(id, name, priority)
	r.threads[id] = t
	r.mu.Unlock()
	return t
}

// Lookup returns the thread registered under id, or nil if none exists.
func (r *Registry) Lookup(id ID) *Thread {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threads[id]
}

// Remove unregisters a thread. proc.Table.Execute calls it to discard the
// main thread of a process whose image failed to load; threads that exit
// normally stay registered.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	delete(r.threads, id)
	r.mu.Unlock()
}

// Each calls fn for every currently registered thread. fn must not mutate
// the registry.
func (r *Registry) Each(fn func(*Thread)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.threads {
		fn(t)
	}
}

// Count returns the number of threads currently registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threads)
}

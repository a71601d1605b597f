package thread

import "container/list"

// Queue is a FIFO list of Ready threads. It underlies every scheduling
// policy in pkg/sched: FIFO pops it directly, PRIO/MLFQS linearly scan it
// for the highest effective priority, and FAIR scans it for the lowest
// recent_cpu. container/list gives O(1) PushBack/Remove, which a plain
// slice does not once threads leave from the middle (an unblocked thread
// re-joining, a donor walking off a lock) rather than only from the head.
type Queue struct {
	l *list.List
}

// NewQueue returns an empty ready queue.
func NewQueue() *Queue {
	return &Queue{l: list.New()}
}

// PushBack enqueues t at the tail, preserving FIFO order among threads of
// equal priority.
func (q *Queue) PushBack(t *Thread) {
	e := q.l.PushBack(t)
	t.setElement(e)
}

// PopFront removes and returns the thread at the head of the queue, or
// nil if the queue is empty.
func (q *Queue) PopFront() *Thread {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	t := e.Value.(*Thread)
	t.setElement(nil)
	return t
}

// Remove takes t out of the queue wherever it sits, a no-op if t is not
// currently linked into this queue.
func (q *Queue) Remove(t *Thread) {
	if e := t.getElement(); e != nil {
		q.l.Remove(e)
		t.setElement(nil)
	}
}

// Len returns the number of threads currently queued.
func (q *Queue) Len() int {
	return q.l.Len()
}

// Each calls fn for every queued thread, head to tail. fn must not mutate
// the queue.
func (q *Queue) Each(fn func(*Thread)) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*Thread))
	}
}

// Peek returns the head of the queue without removing it, or nil if empty.
func (q *Queue) Peek() *Thread {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Thread)
}

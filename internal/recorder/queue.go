package recorder

import "sync"

// queue is a FIFO ring buffer that doubles its capacity when it reaches
// 70% full, up to maxCapacity. Once at maxCapacity a push evicts the
// oldest entry.
type queue[T any] struct {
	mu          sync.Mutex
	buf         []T
	head        int // read position
	tail        int // write position
	count       int
	maxCapacity int
	closed      bool

	pushed  int64
	drained int64
	evicted int64
	resizes int
}

func newQueue[T any](initialCapacity, maxCapacity int) *queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	return &queue[T]{
		buf:         make([]T, initialCapacity),
		maxCapacity: maxCapacity,
	}
}

// push appends item and returns the queue length. Returns false once the
// queue is closed.
func (q *queue[T]) push(item T) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return q.count, false
	}

	capacity := len(q.buf)
	threshold := max((capacity*70)/100, 1)
	if q.count+1 >= threshold && capacity < q.maxCapacity {
		q.grow(min(capacity*2, q.maxCapacity))
	}

	if q.count == len(q.buf) {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.evicted++
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++
	return q.count, true
}

// drain removes up to limit items in FIFO order. limit <= 0 drains all.
func (q *queue[T]) drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
	}
	q.count -= n
	q.drained += int64(n)
	return out
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *queue[T]) stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.count,
		Capacity: len(q.buf),
		Pushed:   q.pushed,
		Drained:  q.drained,
		Evicted:  q.evicted,
		Resizes:  q.resizes,
	}
}

// QueueStats describes the recorder's pending queue.
type QueueStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Drained  int64
	Evicted  int64
	Resizes  int
}

// grow moves the contents into a buffer of newCapacity. Must be called
// with the lock held.
func (q *queue[T]) grow(newCapacity int) {
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count % newCapacity
	q.resizes++
}

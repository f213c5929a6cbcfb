package ttl

import (
	"container/heap"
	"fmt"
	"time"
)

// Expiration asks the scheduler to delete Key once Deadline has passed.
//
// Generation is the store generation of the write that registered the
// record. It is only consulted in strict mode.
type Expiration struct {
	Key        string
	Deadline   time.Time
	Generation uint64
}

// before orders records by deadline, then by key for a deterministic
// tie-break.
func (e Expiration) before(other Expiration) bool {
	if !e.Deadline.Equal(other.Deadline) {
		return e.Deadline.Before(other.Deadline)
	}
	return e.Key < other.Key
}

// expirationHeap implements heap.Interface as a min-heap on (Deadline, Key).
type expirationHeap []Expiration

func (h expirationHeap) Len() int           { return len(h) }
func (h expirationHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h expirationHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *expirationHeap) Push(x any) { *h = append(*h, x.(Expiration)) }

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Expiration{}
	*h = old[:n-1]
	return item
}

// queue is the deadline-ordered priority queue owned by the scheduler loop.
// It is not safe for concurrent use.
type queue struct {
	h expirationHeap
}

func (q *queue) push(e Expiration) {
	heap.Push(&q.h, e)
}

// peek returns the earliest record without removing it.
func (q *queue) peek() (Expiration, bool) {
	if len(q.h) == 0 {
		return Expiration{}, false
	}
	return q.h[0], true
}

func (q *queue) pop() (Expiration, bool) {
	if len(q.h) == 0 {
		return Expiration{}, false
	}
	return heap.Pop(&q.h).(Expiration), true
}

func (q *queue) len() int {
	return len(q.h)
}

// maxMillis is the largest millisecond count representable as a time.Duration.
const maxMillis = uint64(1<<63-1) / uint64(time.Millisecond)

// FromMillis converts a TTL in milliseconds, rejecting values that overflow
// time.Duration.
func FromMillis(ms uint64) (time.Duration, error) {
	if ms > maxMillis {
		return 0, fmt.Errorf("%d ms is too large", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

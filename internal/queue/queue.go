// Package queue provides the in-memory dispatch queue that orders task
// IDs for the worker pool. The queue is advisory: the database remains
// the source of truth, and workers re-check task state after dequeue.
package queue

import (
	"container/heap"
	"context"
	"sync"
)

// Item is a queued reference to a stored task.
type Item struct {
	TaskID   int64
	Priority int

	seq int64
}

// entries implements heap.Interface ordered by priority, then by
// enqueue sequence so equal-priority items dequeue FIFO.
type entries []*Item

func (e entries) Len() int { return len(e) }

func (e entries) Less(i, j int) bool {
	if e[i].Priority != e[j].Priority {
		return e[i].Priority < e[j].Priority
	}
	return e[i].seq < e[j].seq
}

func (e entries) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *entries) Push(x any) { *e = append(*e, x.(*Item)) }

func (e *entries) Pop() any {
	old := *e
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*e = old[:n-1]
	return item
}

// DispatchQueue is a thread-safe priority queue of task IDs. Lower
// priority values dequeue first; ties break in enqueue order.
type DispatchQueue struct {
	mu      sync.Mutex
	items   entries
	nextSeq int64
	ready   chan struct{}
	closed  bool
}

// New returns an empty DispatchQueue.
func New() *DispatchQueue {
	return &DispatchQueue{
		ready: make(chan struct{}, 1),
	}
}

// Put enqueues a task reference. Duplicate IDs are allowed; workers
// discard references whose task is no longer pending.
func (q *DispatchQueue) Put(taskID int64, priority int) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.nextSeq++
	heap.Push(&q.items, &Item{TaskID: taskID, Priority: priority, seq: q.nextSeq})
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Take blocks until an item is available or the context is done. It
// returns the lowest-priority-value item, breaking ties FIFO.
func (q *DispatchQueue) Take(ctx context.Context) (*Item, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(*Item)
			remaining := q.items.Len()
			q.mu.Unlock()

			// Wake another waiter if items remain.
			if remaining > 0 {
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryTake dequeues without blocking. Returns nil when the queue is
// empty.
func (q *DispatchQueue) TryTake() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Item)
}

// Len reports the number of queued items.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close marks the queue closed. Further Put calls are dropped; queued
// items remain takeable so workers can drain.
func (q *DispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDispatchQueue_PriorityOrder(t *testing.T) {
	q := New()

	// Ten normal-priority items, then one urgent item.
	for i := int64(1); i <= 10; i++ {
		q.Put(i, 5)
	}
	q.Put(99, 1)

	item := q.TryTake()
	if item == nil {
		t.Fatal("expected an item")
	}
	if item.TaskID != 99 {
		t.Errorf("first dequeue = task %d, want urgent task 99", item.TaskID)
	}
}

func TestDispatchQueue_FIFOWithinPriority(t *testing.T) {
	q := New()
	q.Put(1, 5)
	q.Put(2, 5)
	q.Put(3, 5)

	for want := int64(1); want <= 3; want++ {
		item := q.TryTake()
		if item == nil {
			t.Fatalf("queue empty at position %d", want)
		}
		if item.TaskID != want {
			t.Errorf("dequeue = task %d, want %d", item.TaskID, want)
		}
	}
}

func TestDispatchQueue_TakeBlocksUntilPut(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan int64, 1)
	go func() {
		item, err := q.Take(ctx)
		if err != nil {
			t.Errorf("take: %v", err)
			return
		}
		got <- item.TaskID
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(7, 5)

	select {
	case id := <-got:
		if id != 7 {
			t.Errorf("took task %d, want 7", id)
		}
	case <-ctx.Done():
		t.Fatal("Take did not wake after Put")
	}
}

func TestDispatchQueue_TakeHonorsContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Take(ctx); err != context.Canceled {
		t.Errorf("Take on cancelled context returned %v", err)
	}
}

func TestDispatchQueue_ConcurrentTakers(t *testing.T) {
	q := New()
	const n = 50
	for i := int64(0); i < n; i++ {
		q.Put(i, int(i%3)+1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	taken := make(chan int64, n)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Take(ctx)
				if err != nil {
					return
				}
				taken <- item.TaskID
			}
		}()
	}

	seen := make(map[int64]bool)
	for len(seen) < n {
		select {
		case id := <-taken:
			if seen[id] {
				t.Errorf("task %d dequeued twice", id)
			}
			seen[id] = true
		case <-ctx.Done():
			t.Fatalf("drained %d distinct tasks before timeout, want %d", len(seen), n)
		}
	}
	cancel()
	wg.Wait()

	if len(seen) != n {
		t.Errorf("dequeued %d distinct tasks, want %d", len(seen), n)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d after drain, want 0", q.Len())
	}
}

func TestDispatchQueue_CloseDropsPuts(t *testing.T) {
	q := New()
	q.Put(1, 5)
	q.Close()
	q.Put(2, 5)

	if q.Len() != 1 {
		t.Errorf("length after closed Put = %d, want 1", q.Len())
	}
	item := q.TryTake()
	if item == nil || item.TaskID != 1 {
		t.Errorf("drain after close returned %+v, want task 1", item)
	}
}

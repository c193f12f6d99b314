package recorder

import (
	"sync"
	"testing"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[int](10, 100)

	for i := 0; i < 5; i++ {
		if _, ok := q.push(i); !ok {
			t.Fatalf("push(%d) returned false", i)
		}
	}
	if q.len() != 5 {
		t.Errorf("len() = %d, want 5", q.len())
	}

	got := q.drain(0)
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if q.len() != 0 {
		t.Errorf("len() = %d, want 0", q.len())
	}
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := newQueue[int](10, 100)

	for i := 0; i < 7; i++ {
		q.push(i)
	}

	stats := q.stats()
	if stats.Capacity != 20 {
		t.Errorf("Capacity = %d, want 20 after 70%% fill", stats.Capacity)
	}
	if stats.Resizes != 1 {
		t.Errorf("Resizes = %d, want 1", stats.Resizes)
	}
}

func TestQueue_EvictsOldestAtCeiling(t *testing.T) {
	q := newQueue[int](4, 8)

	for i := 1; i <= 10; i++ {
		q.push(i)
	}

	stats := q.stats()
	if stats.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", stats.Capacity)
	}
	if stats.Evicted != 2 {
		t.Errorf("Evicted = %d, want 2", stats.Evicted)
	}

	got := q.drain(0)
	want := []int{3, 4, 5, 6, 7, 8, 9, 10}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_DrainLimit(t *testing.T) {
	q := newQueue[int](10, 100)
	for i := 0; i < 10; i++ {
		q.push(i)
	}

	first := q.drain(4)
	if len(first) != 4 || first[0] != 0 || first[3] != 3 {
		t.Errorf("drain(4) = %v", first)
	}
	rest := q.drain(0)
	if len(rest) != 6 || rest[0] != 4 {
		t.Errorf("drain(0) = %v", rest)
	}
	if q.drain(0) != nil {
		t.Error("drain on empty queue should return nil")
	}
}

func TestQueue_WrapAround(t *testing.T) {
	q := newQueue[int](5, 100)

	q.push(1)
	q.push(2)
	q.push(3)
	q.drain(2)

	for i := 4; i <= 8; i++ {
		q.push(i)
	}

	got := q.drain(0)
	want := []int{3, 4, 5, 6, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestQueue_Closed(t *testing.T) {
	q := newQueue[int](4, 4)
	q.push(1)
	q.close()

	if _, ok := q.push(2); ok {
		t.Error("push should return false after close")
	}
	if got := q.drain(0); len(got) != 1 || got[0] != 1 {
		t.Errorf("drain after close = %v, want [1]", got)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := newQueue[int](10, 10000)
	const workers, perWorker = 4, 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.push(base + i)
			}
		}(w * perWorker)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, v := range q.drain(0) {
		seen[v] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("drained %d distinct items, want %d", len(seen), workers*perWorker)
	}
}

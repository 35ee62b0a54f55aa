package ringqueue

import (
	"sync"
	"testing"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if q.Push(99) {
		t.Fatalf("push into full queue should fail")
	}

	for i := 0; i < 2; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %d, %v", i, v, ok)
		}
	}

	if !q.Push(4) || !q.Push(5) {
		t.Fatalf("push after draining two slots should succeed")
	}

	want := []int{2, 3, 4, 5}
	for _, w := range want {
		v, ok := q.Pop()
		if !ok || v != w {
			t.Fatalf("pop order mismatch: want %d got %d (%v)", w, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop from empty queue should fail")
	}
}

func TestPopOnEmptyNeverBlocks(t *testing.T) {
	q := New[string](2)
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty pop to fail")
	}
}

func TestConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	const n = 100000
	q := New[int](256)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if q.Push(i) {
				i++
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			if v, ok := q.Pop(); ok {
				got = append(got, v)
			}
		}
	}()

	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("order violated at index %d: got %d", i, v)
		}
	}
}

func TestCapacityAndSize(t *testing.T) {
	q := New[int](1) // clamps to 2
	if q.Cap() != 2 {
		t.Fatalf("expected capacity clamp to 2, got %d", q.Cap())
	}
	if q.Size() != 0 {
		t.Fatalf("expected empty queue size 0, got %d", q.Size())
	}
	q.Push(1)
	if q.Size() != 1 {
		t.Fatalf("expected size 1, got %d", q.Size())
	}
}

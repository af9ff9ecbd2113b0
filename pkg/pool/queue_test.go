package pool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBoundedQueue_PutTake(t *testing.T) {
	q := newBoundedQueue(2)

	if err := q.put(qj(0)); err != nil {
		t.Fatalf("put() error = %v", err)
	}
	if err := q.put(qj(1)); err != nil {
		t.Fatalf("put() error = %v", err)
	}
	if q.len() != 2 {
		t.Errorf("len() = %d, want 2", q.len())
	}

	got, ok := q.take()
	if !ok || got.id != "id-0" {
		t.Errorf("take() = %v, %v, want id-0", got, ok)
	}
	got, ok = q.take()
	if !ok || got.id != "id-1" {
		t.Errorf("take() = %v, %v, want id-1", got, ok)
	}
}

func TestBoundedQueue_TryPutBackpressure(t *testing.T) {
	q := newBoundedQueue(1)

	if err := q.tryPut(qj(0)); err != nil {
		t.Fatalf("tryPut() error = %v", err)
	}
	if err := q.tryPut(qj(1)); err != ErrPoolFull {
		t.Errorf("tryPut() at capacity = %v, want ErrPoolFull", err)
	}
}

func TestBoundedQueue_PutBlocksAtCapacity(t *testing.T) {
	q := newBoundedQueue(1)
	q.put(qj(0))

	var unblocked int64
	go func() {
		q.put(qj(1)) // must block until a take frees a slot
		atomic.StoreInt64(&unblocked, 1)
	}()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt64(&unblocked) != 0 {
		t.Fatal("put() should block while queue is at capacity")
	}

	q.take()
	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&unblocked) == 1 })
}

func TestBoundedQueue_TakeBlocksWhenEmpty(t *testing.T) {
	q := newBoundedQueue(1)

	var gotID atomic.Value
	go func() {
		if item, ok := q.take(); ok {
			gotID.Store(item.id)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	if gotID.Load() != nil {
		t.Fatal("take() should block while queue is empty")
	}

	q.put(qj(7))
	waitFor(t, time.Second, func() bool { return gotID.Load() == "id-7" })
}

func TestBoundedQueue_CloseWakesBlockedPut(t *testing.T) {
	q := newBoundedQueue(1)
	q.put(qj(0))

	putDone := make(chan error, 1)
	go func() {
		putDone <- q.put(qj(1)) // blocks: queue full
	}()

	time.Sleep(50 * time.Millisecond)
	q.close()

	select {
	case err := <-putDone:
		if err != ErrPoolClosed {
			t.Errorf("blocked put() after close = %v, want ErrPoolClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked put() not woken by close")
	}

	if err := q.put(qj(2)); err != ErrPoolClosed {
		t.Errorf("put() after close = %v, want ErrPoolClosed", err)
	}
	if err := q.tryPut(qj(2)); err != ErrPoolClosed {
		t.Errorf("tryPut() after close = %v, want ErrPoolClosed", err)
	}
}

func TestBoundedQueue_CloseWakesBlockedTake(t *testing.T) {
	q := newBoundedQueue(1)

	takeDone := make(chan bool, 1)
	go func() {
		_, ok := q.take()
		takeDone <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	q.close()

	select {
	case ok := <-takeDone:
		if ok {
			t.Error("take() woken by close on an empty queue should return ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked take() not woken by close")
	}
}

func TestBoundedQueue_TakeServesRemainingAfterClose(t *testing.T) {
	q := newBoundedQueue(4)
	q.put(qj(0))
	q.put(qj(1))
	q.close()

	// A closed queue still serves what it holds
	got, ok := q.take()
	if !ok || got.id != "id-0" {
		t.Errorf("take() = %v, %v, want id-0", got, ok)
	}
	got, ok = q.take()
	if !ok || got.id != "id-1" {
		t.Errorf("take() = %v, %v, want id-1", got, ok)
	}

	// Then reports closed-and-empty
	if _, ok := q.take(); ok {
		t.Error("take() on closed empty queue should return ok=false")
	}
}

func TestBoundedQueue_CloseIdempotent(t *testing.T) {
	q := newBoundedQueue(1)
	q.close()
	q.close()

	if _, ok := q.take(); ok {
		t.Error("take() after close should return ok=false")
	}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStopAndWait(t *testing.T) {
	h := New()
	var iterations uint64
	h.Go(func() {
		for !h.Stopped() {
			atomic.AddUint64(&iterations, 1)
			time.Sleep(time.Millisecond)
		}
	})
	time.Sleep(10 * time.Millisecond)
	h.StopAndWait()
	if atomic.LoadUint64(&iterations) == 0 {
		t.Fatal("goroutine never observed running state")
	}
	if !h.Stopped() {
		t.Fatal("Stopped() = false after StopAndWait")
	}
}

func TestMultipleGoroutinesJoin(t *testing.T) {
	h := New()
	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		h.Go(func() {
			for !h.Stopped() {
				time.Sleep(time.Millisecond)
			}
			done <- i
		})
	}
	time.Sleep(5 * time.Millisecond)
	h.StopAndWait()
	close(done)
	count := 0
	for range done {
		count++
	}
	if count != 3 {
		t.Fatalf("got %d completions, want 3", count)
	}
}

package ring

import (
	"testing"
	"time"

	"github.com/mdfh-labs/feedhub/record"
)

func TestNewPanicsOnBadSize(t *testing.T) {
	bad := []int{0, 3, 1000} // 3 and 1000 are not powers of two
	for _, sz := range bad {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("New(%d) should panic", sz)
				}
			}()
			_ = New(sz)
		}()
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	r := New(8)
	var want record.Slot
	want.Raw.Seq = 42

	if !r.TryPush(want) {
		t.Fatal("first push must succeed")
	}
	var got record.Slot
	if !r.TryPop(&got) {
		t.Fatal("pop should have succeeded")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if r.TryPop(&got) {
		t.Fatal("ring should now be empty")
	}
}

func TestPushFailsWhenFull(t *testing.T) {
	r := New(4)
	var slot record.Slot
	for i := 0; i < 4; i++ {
		if !r.TryPush(slot) {
			t.Fatalf("push %d unexpectedly failed", i)
		}
	}
	if r.TryPush(slot) {
		t.Fatal("push into full ring should return false")
	}
}

func TestPopFailsWhenEmpty(t *testing.T) {
	r := New(4)
	var out record.Slot
	if r.TryPop(&out) {
		t.Fatal("pop on empty ring returned true")
	}
}

func TestWrapAround(t *testing.T) {
	const size = 4
	r := New(size)
	for i := 0; i < 10; i++ {
		var slot record.Slot
		slot.Raw.Seq = uint64(i)
		if !r.TryPush(slot) {
			t.Fatalf("push %d failed unexpectedly", i)
		}
		var got record.Slot
		if !r.TryPop(&got) {
			t.Fatalf("pop %d failed unexpectedly", i)
		}
		if got.Raw.Seq != uint64(i) {
			t.Fatalf("iteration %d: got %d, want %d", i, got.Raw.Seq, i)
		}
	}
}

func TestTryPushBulk(t *testing.T) {
	r := New(4)
	slots := make([]record.Slot, 6)
	for i := range slots {
		slots[i].Raw.Seq = uint64(i)
	}
	n := r.TryPushBulk(slots)
	if n != 4 {
		t.Fatalf("pushed %d, want 4 (ring capacity)", n)
	}
	if r.Size() != 4 {
		t.Fatalf("size %d, want 4", r.Size())
	}
}

func TestTryPopBulk(t *testing.T) {
	r := New(8)
	for i := 0; i < 5; i++ {
		var slot record.Slot
		slot.Raw.Seq = uint64(i)
		if !r.TryPush(slot) {
			t.Fatalf("push %d failed", i)
		}
	}
	out := make([]record.Slot, 8)
	n := r.TryPopBulk(out)
	if n != 5 {
		t.Fatalf("popped %d, want 5", n)
	}
	for i := uint64(0); i < n; i++ {
		if out[i].Raw.Seq != i {
			t.Fatalf("out[%d].Raw.Seq = %d, want %d", i, out[i].Raw.Seq, i)
		}
	}
}

func TestTryPushOrBlockDrop(t *testing.T) {
	r := New(2)
	var slot record.Slot
	r.TryPush(slot)
	r.TryPush(slot)
	if r.TryPushOrBlock(slot, 0, Drop) {
		t.Fatal("Drop mode should behave like TryPush on a full ring")
	}
}

func TestTryPushOrBlockUnblocks(t *testing.T) {
	r := New(1)
	var slot record.Slot
	if !r.TryPush(slot) {
		t.Fatal("initial push failed")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		var out record.Slot
		r.TryPop(&out)
	}()

	if !r.TryPushOrBlock(slot, time.Second, Block) {
		t.Fatal("blocking push should have succeeded once space freed")
	}
}

func TestTryPushOrBlockTimesOut(t *testing.T) {
	r := New(1)
	var slot record.Slot
	r.TryPush(slot)

	if r.TryPushOrBlock(slot, 10*time.Millisecond, Block) {
		t.Fatal("blocking push into a permanently full ring should time out")
	}
}

func TestHighWaterMark(t *testing.T) {
	r := New(4)
	var slot record.Slot
	r.TryPush(slot)
	r.TryPush(slot)
	if hw := r.HighWaterMark(); hw != 2 {
		t.Fatalf("high water mark %d, want 2", hw)
	}
	var out record.Slot
	r.TryPop(&out)
	r.TryPop(&out)
	if hw := r.HighWaterMark(); hw != 2 {
		t.Fatalf("high water mark should not decrease on pop, got %d", hw)
	}
}

func TestCapacity(t *testing.T) {
	r := New(16)
	if r.Capacity() != 16 {
		t.Fatalf("Capacity() = %d, want 16", r.Capacity())
	}
}

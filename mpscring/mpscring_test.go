package mpscring

import (
	"sync"
	"testing"

	"github.com/mdfh-labs/feedhub/record"
)

func TestSingleProducerFIFO(t *testing.T) {
	r := New(8)
	for i := uint64(1); i <= 5; i++ {
		if !r.TryPush(record.FeedSlot{Base: record.Slot{Raw: record.Record{Seq: i, Price: 1, Quantity: 1}}}) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := uint64(1); i <= 5; i++ {
		var out record.FeedSlot
		if !r.TryPop(&out) {
			t.Fatalf("pop %d failed", i)
		}
		if out.Base.Raw.Seq != i {
			t.Fatalf("pop order: got seq %d, want %d", out.Base.Raw.Seq, i)
		}
	}
}

func TestFullRejectsPush(t *testing.T) {
	r := New(4)
	for i := 0; i < 4; i++ {
		if !r.TryPush(record.FeedSlot{OriginID: 1}) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if r.TryPush(record.FeedSlot{OriginID: 1}) {
		t.Fatal("push into full ring should fail")
	}
}

// TestConcurrentProducersPreserveOrigin checks that within one origin's
// sequence (produced by exactly one goroutine), pop order matches push
// order — cross-origin interleaving is explicitly not guaranteed.
func TestConcurrentProducersPreserveOrigin(t *testing.T) {
	const perOrigin = 2000
	const origins = 4
	r := New(1 << 14)

	var wg sync.WaitGroup
	for o := uint32(0); o < origins; o++ {
		wg.Add(1)
		go func(origin uint32) {
			defer wg.Done()
			for seq := uint64(1); seq <= perOrigin; seq++ {
				for !r.TryPush(record.FeedSlot{OriginID: origin, Base: record.Slot{Raw: record.Record{Seq: seq, Price: 1, Quantity: 1}}}) {
				}
			}
		}(o)
	}
	wg.Wait()

	lastSeq := make(map[uint32]uint64)
	total := origins * perOrigin
	for i := 0; i < total; i++ {
		var out record.FeedSlot
		for !r.TryPop(&out) {
		}
		if out.Base.Raw.Seq <= lastSeq[out.OriginID] {
			t.Fatalf("origin %d: seq %d did not increase past %d", out.OriginID, out.Base.Raw.Seq, lastSeq[out.OriginID])
		}
		lastSeq[out.OriginID] = out.Base.Raw.Seq
	}
}

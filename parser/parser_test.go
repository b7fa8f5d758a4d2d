package parser

import (
	"testing"

	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/ring"
)

type collectSink struct {
	slots []record.Slot
}

func (s *collectSink) Push(slot record.Slot) bool {
	s.slots = append(s.slots, slot)
	return true
}

func encodeRecord(seq uint64, price float64, qty int32) []byte {
	buf := make([]byte, record.Size)
	record.Encode(buf, record.Record{Seq: seq, Price: price, Quantity: qty})
	return buf
}

func TestFeedSingleChunkWholeRecords(t *testing.T) {
	p := New()
	sink := &collectSink{}

	var chunk []byte
	for i := uint64(1); i <= 3; i++ {
		chunk = append(chunk, encodeRecord(i, float64(i)*1.5, int32(i*10))...)
	}

	n, err := p.Feed(chunk, 0, sink)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if n != 3 || len(sink.slots) != 3 {
		t.Fatalf("decoded %d records, want 3", n)
	}
	for i, slot := range sink.slots {
		want := uint64(i + 1)
		if slot.Raw.Seq != want {
			t.Errorf("slot %d seq = %d, want %d", i, slot.Raw.Seq, want)
		}
		if slot.RxTS == 0 {
			t.Errorf("slot %d RxTS should be nonzero", i)
		}
	}
}

func TestFeedRecordSplitAcrossChunks(t *testing.T) {
	p := New()
	sink := &collectSink{}

	full := encodeRecord(42, 100.25, 7)
	first := full[:12]
	second := full[12:]

	n, err := p.Feed(first, 0, sink)
	if err != nil {
		t.Fatalf("Feed(first): %v", err)
	}
	if n != 0 || len(sink.slots) != 0 {
		t.Fatalf("expected no records from partial chunk, got %d", n)
	}

	n, err = p.Feed(second, 0, sink)
	if err != nil {
		t.Fatalf("Feed(second): %v", err)
	}
	if n != 1 || len(sink.slots) != 1 {
		t.Fatalf("expected exactly 1 record after completing the split, got %d", n)
	}
	if sink.slots[0].Raw.Seq != 42 {
		t.Fatalf("seq = %d, want 42", sink.slots[0].Raw.Seq)
	}
}

func TestFeedTrailingPartialCarriesOver(t *testing.T) {
	p := New()
	sink := &collectSink{}

	full := encodeRecord(1, 1, 1)
	chunk := append(append([]byte{}, full...), full[:5]...)

	n, err := p.Feed(chunk, 0, sink)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if n != 1 {
		t.Fatalf("decoded %d records, want 1", n)
	}
	if p.carryLen != 5 {
		t.Fatalf("carryLen = %d, want 5", p.carryLen)
	}
}

func TestFeedManySmallChunksReassembleRecords(t *testing.T) {
	p := New()
	sink := &collectSink{}

	var all []byte
	for i := uint64(1); i <= 10; i++ {
		all = append(all, encodeRecord(i, float64(i), int32(i))...)
	}

	total := 0
	for i := 0; i < len(all); i += 3 {
		end := i + 3
		if end > len(all) {
			end = len(all)
		}
		n, err := p.Feed(all[i:end], 0, sink)
		if err != nil {
			t.Fatalf("Feed chunk %d: %v", i, err)
		}
		total += n
	}
	if total != 10 || len(sink.slots) != 10 {
		t.Fatalf("decoded %d records across fragmented chunks, want 10", total)
	}
	for i, slot := range sink.slots {
		if slot.Raw.Seq != uint64(i+1) {
			t.Fatalf("slot %d seq = %d, want %d", i, slot.Raw.Seq, i+1)
		}
	}
}

// TestCarryOverflowGuardRejectsCorruptedState exercises the accumulation
// guard directly. Given carry capacity record.Size-1, no sequence of
// well-formed Feed calls can legitimately overflow it — every remainder
// is strictly smaller than record.Size by construction. The guard exists
// for a corrupted carryLen (a defensive invariant, not a reachable
// protocol error), so this test drives it by forcing that state directly.
func TestCarryOverflowGuardRejectsCorruptedState(t *testing.T) {
	p := New()
	sink := &collectSink{}
	p.carryLen = len(p.carry) + 1
	_, err := p.Feed(nil, 0, sink)
	if err == nil {
		t.Fatal("expected overflow guard to reject a corrupted carryLen")
	}
}

func TestRingSinkCountsDrops(t *testing.T) {
	r := ring.New(1)
	sink := &RingSink{Ring: r}
	slot := record.Slot{Raw: record.Record{Seq: 1}}
	if !sink.Push(slot) {
		t.Fatal("first push should succeed")
	}
	if sink.Push(slot) {
		t.Fatal("second push into full ring should fail")
	}
	if sink.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", sink.Dropped)
	}
}

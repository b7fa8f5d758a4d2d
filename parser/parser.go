// Package parser decodes a byte stream into fixed-width 20-byte Records
// and pushes each onto a Ring as a Slot. It is stateful: a chunk boundary
// may split a record, so the parser holds a small carry buffer (at most
// record.Size-1 bytes) between calls to Feed.
//
// Grounded on the teacher's HandleFrame's single-pass, allocation-free
// scanning idiom, applied to fixed-width binary decoding instead of
// variable-width JSON field scanning — the record-alignment invariant
// replaces HandleFrame's field-tag scanning, and the deduplication engine
// has no equivalent here: the protocol has no malformed records, only a
// carry-buffer overflow fault.
package parser

import (
	"time"

	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/ring"
)

// Sink receives every record the parser decodes, as one Push per record,
// so Feed itself stays free of any dependency beyond record.Slot and Ring.
// Counting drops is left to the implementation (RingSink keeps its own
// counter).
type Sink interface {
	// Push offers slot to the destination ring. Implementations that wrap
	// ring.Ring.TryPush and increment a drop counter on failure satisfy
	// this directly.
	Push(slot record.Slot) bool
}

// RingSink adapts a *ring.Ring to Sink, counting dropped pushes.
type RingSink struct {
	Ring    *ring.Ring
	Dropped uint64
}

func (s *RingSink) Push(slot record.Slot) bool {
	if s.Ring.TryPush(slot) {
		return true
	}
	s.Dropped++
	return false
}

// Parser is a stateful streaming decoder for one byte stream. It is not
// safe for concurrent use: exactly one goroutine (a FeedWorker's driver
// handler) calls Feed.
type Parser struct {
	carry    [record.Size - 1]byte
	carryLen int
}

// New returns a ready-to-use Parser with an empty carry buffer.
func New() *Parser {
	return &Parser{}
}

// Feed decodes as many complete records as chunk contains (including any
// bytes carried over from a previous call) and pushes each into sink. Every
// record decoded from this call is stamped with hwTimestampNS if it is
// non-zero — a driver-supplied hardware receive timestamp for the whole
// chunk — or with a direct software clock read otherwise, matching
// PacketDesc.TimestampNS's "0 means use software time" contract. It returns
// the number of records decoded and a fatal error only when chunk plus any
// carried prefix would overflow the carry buffer before a single record
// completes — the protocol has no other error condition, since every
// 20-byte sequence decodes to some Record.
//
// Feed already satisfies the zero-copy variant's semantics: whenever
// there is no pending carry, every full record is decoded directly out of
// chunk via record.Decode's slice view, never copied into carry. Only a
// trailing partial record, or a record split across two calls, ever
// touches the carry buffer.
func (p *Parser) Feed(chunk []byte, hwTimestampNS uint64, sink Sink) (int, error) {
	if p.carryLen > len(p.carry) {
		return 0, faults.Parser("parser: carry buffer overflow before first record")
	}
	// stamp resolves the timestamp for one emitted record: the driver's
	// hardware timestamp, uniform for the whole chunk, when it supplied
	// one, otherwise a fresh software clock read per record so a chunk
	// containing many records doesn't collapse them onto one instant.
	stamp := nowMonotonicNanos
	if hwTimestampNS != 0 {
		stamp = func() uint64 { return hwTimestampNS }
	}
	data := chunk
	n := 0
	if p.carryLen > 0 {
		// Combine carry with just enough of chunk to complete one record;
		// avoids allocating by reusing the carry array as scratch space
		// once we know how much of chunk to draw from.
		need := record.Size - p.carryLen
		if need > len(chunk) {
			if p.carryLen+len(chunk) > len(p.carry) {
				return 0, faults.Parser("parser: carry buffer overflow before first record")
			}
			copy(p.carry[p.carryLen:], chunk)
			p.carryLen += len(chunk)
			return 0, nil
		}
		var first [record.Size]byte
		copy(first[:], p.carry[:p.carryLen])
		copy(first[p.carryLen:], chunk[:need])
		p.carryLen = 0

		r := record.Decode(first[:])
		emit(sink, r, stamp())
		n++

		data = chunk[need:]
	}

	full := (len(data) / record.Size) * record.Size
	for off := 0; off < full; off += record.Size {
		r := record.Decode(data[off : off+record.Size])
		emit(sink, r, stamp())
		n++
	}

	rem := data[full:]
	if len(rem) > 0 {
		if len(rem) > len(p.carry) {
			return n, faults.Parser("parser: partial record exceeds carry capacity")
		}
		copy(p.carry[:], rem)
		p.carryLen = len(rem)
	}
	return n, nil
}

func emit(sink Sink, r record.Record, rxTS uint64) {
	sink.Push(record.Slot{Raw: r, RxTS: rxTS})
}

// nowMonotonicNanos stamps the receive timestamp with a direct clock read.
// This is the single hottest timestamp in the whole pipeline — it seeds the
// latency histogram that every downstream report is built from — so it
// reads the real clock instead of go-timecache's periodically-refreshed
// value: several records decoded inside one cache refresh window would
// otherwise collapse to the same RxTS and understate their latency spread.
func nowMonotonicNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

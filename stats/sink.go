package stats

import (
	"io"

	"github.com/sugawarayuuta/sonnet"

	"github.com/mdfh-labs/feedhub/obslog"
)

// Sink receives every Report the ingestor/dispatcher flushes, periodic or
// final. Implementations must not block the caller for long: the
// consumer thread calls Emit inline on its own loop.
type Sink interface {
	Emit(r Report)
}

// LogSink writes a line-per-report human-readable report through obslog's
// cold structured logger: a periodic line-per-second report plus a final
// one tagged final=true, each with the same counters and latency
// percentiles. cmd/ingestor and cmd/feedhub use it unless --json-stats is
// set.
type LogSink struct{}

func (LogSink) Emit(r Report) {
	event := obslog.Cold.Info()
	if r.Final {
		event = obslog.Cold.Info().Bool("final", true)
	}
	event.
		Dur("elapsed", r.Elapsed).
		Uint64("received", r.Received).
		Uint64("processed", r.Processed).
		Uint64("dropped", r.Dropped).
		Uint64("gaps", r.Gaps).
		Uint64("bytes", r.Bytes).
		Uint64("delta_received", r.DeltaReceived).
		Uint64("delta_bytes", r.DeltaBytes).
		Uint64("p50_ns", r.P50NS).
		Uint64("p90_ns", r.P90NS).
		Uint64("p95_ns", r.P95NS).
		Uint64("p99_ns", r.P99NS).
		Uint64("p999_ns", r.P999NS).
		Msg("stats flush")
}

// JSONSink writes one JSON object per line to w, using
// github.com/sugawarayuuta/sonnet for fast encoding — grounded on
// syncharvester.go's use of sonnet for fast JSON decode of RPC responses,
// here used for encode instead since the direction of the periodic flush
// is outbound. Optional alongside LogSink; no structured sink is
// mandated.
type JSONSink struct {
	W io.Writer
}

// jsonReport mirrors Report with json tags; kept separate so Report
// itself stays free of encoding concerns.
type jsonReport struct {
	Final          bool   `json:"final"`
	ElapsedNS      int64  `json:"elapsed_ns"`
	Received       uint64 `json:"received"`
	Processed      uint64 `json:"processed"`
	Dropped        uint64 `json:"dropped"`
	Gaps           uint64 `json:"gaps"`
	Bytes          uint64 `json:"bytes"`
	DeltaReceived  uint64 `json:"delta_received"`
	DeltaProcessed uint64 `json:"delta_processed"`
	DeltaBytes     uint64 `json:"delta_bytes"`
	P50NS          uint64 `json:"p50_ns"`
	P90NS          uint64 `json:"p90_ns"`
	P95NS          uint64 `json:"p95_ns"`
	P99NS          uint64 `json:"p99_ns"`
	P999NS         uint64 `json:"p999_ns"`
	Samples        uint64 `json:"samples"`
}

func (s JSONSink) Emit(r Report) {
	line, err := sonnet.Marshal(jsonReport{
		Final:          r.Final,
		ElapsedNS:      r.Elapsed.Nanoseconds(),
		Received:       r.Received,
		Processed:      r.Processed,
		Dropped:        r.Dropped,
		Gaps:           r.Gaps,
		Bytes:          r.Bytes,
		DeltaReceived:  r.DeltaReceived,
		DeltaProcessed: r.DeltaProcessed,
		DeltaBytes:     r.DeltaBytes,
		P50NS:          r.P50NS,
		P90NS:          r.P90NS,
		P95NS:          r.P95NS,
		P99NS:          r.P99NS,
		P999NS:         r.P999NS,
		Samples:        r.Samples,
	})
	if err != nil {
		obslog.Cold.Error().Err(err).Msg("stats: JSON encode failed")
		return
	}
	line = append(line, '\n')
	if _, err := s.W.Write(line); err != nil {
		obslog.Cold.Error().Err(err).Msg("stats: JSON sink write failed")
	}
}

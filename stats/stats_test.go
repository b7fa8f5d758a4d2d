package stats

import (
	"testing"
	"time"
)

func TestHistogramRecordAndBucket(t *testing.T) {
	var h Histogram
	h.Record(500)    // bin 0
	h.Record(1500)   // bin 1
	h.Record(999500) // bin 999
	h.Record(5_000_000)
	if h.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", h.Total())
	}
	if h.bins[0] != 1 || h.bins[1] != 1 || h.bins[999] != 1 {
		t.Fatalf("unexpected bin distribution: %v", h.bins[:1001])
	}
	if h.bins[OverflowBin] != 1 {
		t.Fatalf("expected overflow bin to hold the >=1ms sample")
	}
}

func TestHistogramPercentileEmpty(t *testing.T) {
	var h Histogram
	if p := h.Percentile(0.5); p != OverflowBin {
		t.Fatalf("Percentile on empty histogram = %d, want overflow bin", p)
	}
}

func TestHistogramPercentileMonotonicDistribution(t *testing.T) {
	var h Histogram
	for i := 0; i < 100; i++ {
		h.Record(uint64(i) * 1000)
	}
	p50 := h.Percentile(0.5)
	p99 := h.Percentile(0.99)
	if p50 <= 0 || p50 >= 100 {
		t.Fatalf("p50 bin = %d, want within [1,99]", p50)
	}
	if p99 < p50 {
		t.Fatalf("p99 bin (%d) should not be less than p50 bin (%d)", p99, p50)
	}
}

func TestHistogramResetClearsBins(t *testing.T) {
	var h Histogram
	h.Record(1000)
	h.Reset()
	if h.Total() != 0 {
		t.Fatalf("Total() after Reset = %d, want 0", h.Total())
	}
}

func TestTrackerFlushComputesDeltasAndResetsHistogram(t *testing.T) {
	tr := New()
	tr.Counters.AddReceived(10)
	tr.Counters.AddProcessed(9)
	tr.Counters.AddBytes(200)
	tr.Histogram.Record(2000)
	tr.Histogram.Record(3000)

	r1 := tr.Flush(time.Now())
	if r1.Received != 10 || r1.DeltaReceived != 10 {
		t.Fatalf("first flush received=%d delta=%d, want 10,10", r1.Received, r1.DeltaReceived)
	}
	if r1.Samples != 2 {
		t.Fatalf("first flush samples = %d, want 2", r1.Samples)
	}
	if tr.Histogram.Total() != 0 {
		t.Fatal("expected histogram reset after periodic flush")
	}

	tr.Counters.AddReceived(5)
	r2 := tr.Flush(time.Now())
	if r2.Received != 15 || r2.DeltaReceived != 5 {
		t.Fatalf("second flush received=%d delta=%d, want 15,5", r2.Received, r2.DeltaReceived)
	}
	if r2.Samples != 0 {
		t.Fatalf("second flush samples = %d, want 0 (no new latency observations)", r2.Samples)
	}
}

func TestTrackerFinalReportDoesNotResetHistogram(t *testing.T) {
	tr := New()
	tr.Histogram.Record(1000)
	r := tr.FinalReport(time.Now())
	if !r.Final {
		t.Fatal("expected Final=true")
	}
	if tr.Histogram.Total() != 1 {
		t.Fatal("FinalReport must not reset the histogram")
	}
}

func TestShouldFlushRespectsOneSecondWindow(t *testing.T) {
	tr := New()
	now := time.Now()
	if tr.ShouldFlush(now.Add(500 * time.Millisecond)) {
		t.Fatal("should not flush before 1s has elapsed")
	}
	if !tr.ShouldFlush(now.Add(1100 * time.Millisecond)) {
		t.Fatal("should flush once >=1s has elapsed")
	}
}

// Package synthgen produces a bounded-rate stream of synthetic market
// data, encodes it with an encoding.Encoder, and writes the result to any
// io.Writer.
//
// Grounded on original_source/include/mdfh/simulator.hpp's
// MarketDataGenerator (seeded RNG, price jitter, quantity bounds) and
// timing.hpp's RateLimiter (fixed-interval catch-up-then-busy-spin
// pacing), re-expressed as an instance-scoped rate limiter rather than
// the teacher's control package's global hot/stop flags.
package synthgen

import (
	"io"
	"math/rand"
	"time"

	"github.com/mdfh-labs/feedhub/encoding"
	"github.com/mdfh-labs/feedhub/record"
)

// Config mirrors the original's SimulatorConfig market-data-generation and
// pacing fields; network/transport settings live outside this package
// since Generator only ever writes to an io.Writer.
type Config struct {
	// Seed drives a reproducible RNG; zero means "seed from the current
	// time" rather than the original's fixed default of 42, since a
	// package default of a fixed seed would make every unconfigured
	// caller emit an identical stream.
	Seed uint64

	BasePrice   float64 // starting price
	PriceJitter float64 // max absolute price movement per tick
	MaxQuantity int32   // maximum absolute order quantity

	RatePerSecond uint32 // messages per second, 0 = unbounded
	BatchSize     uint32 // messages generated and written per tick

	MaxSeconds  time.Duration // 0 = unbounded
	MaxMessages uint64        // 0 = unbounded

	Encoder encoding.Encoder // defaults to encoding.BinaryEncoder{}
}

func (c *Config) applyDefaults() {
	if c.BasePrice == 0 {
		c.BasePrice = 100.0
	}
	if c.PriceJitter == 0 {
		c.PriceJitter = 0.05
	}
	if c.MaxQuantity == 0 {
		c.MaxQuantity = 100
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.Encoder == nil {
		c.Encoder = encoding.BinaryEncoder{}
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
}

// generator produces one Record at a time, walking current price by a
// uniformly-distributed jitter step and quantity by a uniformly
// distributed magnitude with a randomly chosen side, mirroring
// MarketDataGenerator::generate_batch.
type generator struct {
	rng          *rand.Rand
	currentPrice float64
	seq          uint64
	cfg          Config
}

func newGenerator(cfg Config) *generator {
	return &generator{
		rng:          rand.New(rand.NewSource(int64(cfg.Seed))),
		currentPrice: cfg.BasePrice,
		cfg:          cfg,
	}
}

func (g *generator) next() record.Record {
	g.seq++
	jitter := (g.rng.Float64()*2 - 1) * g.cfg.PriceJitter
	g.currentPrice += jitter
	if g.currentPrice <= 0 {
		g.currentPrice = g.cfg.BasePrice
	}

	qty := int32(g.rng.Intn(int(g.cfg.MaxQuantity))) + 1
	if g.rng.Intn(2) == 0 {
		qty = -qty
	}

	return record.Record{Seq: g.seq, Price: g.currentPrice, Quantity: qty}
}

// rateLimiter paces batches to RatePerSecond messages per second, matching
// timing.hpp's RateLimiter: on each Wait, advance the next-tick deadline
// forward by whole intervals until it's back ahead of now (catch-up
// without a burst of stalled ticks), then busy-spin until that deadline.
type rateLimiter struct {
	interval time.Duration
	nextTick time.Time
}

func newRateLimiter(ratePerSecond, batchSize uint32) *rateLimiter {
	if ratePerSecond == 0 {
		return nil
	}
	interval := time.Duration(float64(time.Second) * float64(batchSize) / float64(ratePerSecond))
	return &rateLimiter{interval: interval, nextTick: time.Now()}
}

func (r *rateLimiter) wait() {
	if r == nil {
		return
	}
	now := time.Now()
	for !r.nextTick.After(now) {
		r.nextTick = r.nextTick.Add(r.interval)
	}
	for time.Now().Before(r.nextTick) {
	}
}

// Generator drives generation, pacing, encoding, and writing.
type Generator struct {
	cfg   Config
	gen   *generator
	limit *rateLimiter
	w     io.Writer

	sent uint64
}

// New returns a Generator that writes encoded batches to w.
func New(w io.Writer, cfg Config) *Generator {
	cfg.applyDefaults()
	return &Generator{
		cfg:   cfg,
		gen:   newGenerator(cfg),
		limit: newRateLimiter(cfg.RatePerSecond, cfg.BatchSize),
		w:     w,
	}
}

// Run generates and writes batches until MaxSeconds elapses, MaxMessages
// is reached, or a Write fails, whichever comes first. A zero MaxSeconds
// and MaxMessages together mean "run until w.Write returns an error" —
// callers wanting a bounded demo should set at least one.
func (g *Generator) Run() error {
	start := time.Now()
	buf := make([]byte, 0, int(g.cfg.BatchSize)*record.Size)

	for {
		if g.cfg.MaxSeconds > 0 && time.Since(start) >= g.cfg.MaxSeconds {
			return nil
		}
		if g.cfg.MaxMessages > 0 && g.sent >= g.cfg.MaxMessages {
			return nil
		}

		g.limit.wait()

		batch := g.cfg.BatchSize
		if g.cfg.MaxMessages > 0 && g.cfg.MaxMessages-g.sent < uint64(batch) {
			batch = uint32(g.cfg.MaxMessages - g.sent)
		}

		msgs := make([]record.Record, batch)
		for i := range msgs {
			msgs[i] = g.gen.next()
		}

		buf = g.cfg.Encoder.Encode(msgs, buf[:0])
		if _, err := g.w.Write(buf); err != nil {
			return err
		}
		g.sent += uint64(batch)
	}
}

// MessagesSent reports how many records have been written so far.
func (g *Generator) MessagesSent() uint64 {
	return g.sent
}

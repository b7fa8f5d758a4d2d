//go:build amd64 && !noasm

// ring_atomic_amd64.go
//
// Function stubs whose bodies live in ring_atomic_amd64.s. x86-64 is
// already total-store-order, so both reduce to a plain MOVQ and exist
// mainly to act as compiler barriers without paying for MFENCE.

package ring

// loadAcquireUint64 returns *p with acquire ordering.
//
//go:noescape
//go:nosplit
func loadAcquireUint64(p *uint64) (v uint64)

// storeReleaseUint64 performs *p = v with release ordering.
//
//go:noescape
//go:nosplit
func storeReleaseUint64(p *uint64, v uint64)

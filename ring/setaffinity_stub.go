//go:build !linux || tinygo

package ring

// setAffinity is a no-op outside Linux: CPU pinning is a best-effort
// optimization, never a correctness requirement, so portable builds just
// skip it.
func setAffinity(int) {}

// PinCurrentThread is a no-op outside Linux. See setaffinity_linux.go.
func PinCurrentThread(cpu int) { setAffinity(cpu) }

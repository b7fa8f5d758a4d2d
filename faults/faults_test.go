package faults

import "testing"

func TestIs(t *testing.T) {
	err := Parser("carry buffer overflow")
	if !Is(err, CodeParser) {
		t.Fatalf("Is(%v, %s) = false, want true", err, CodeParser)
	}
	if Is(err, CodeConnection) {
		t.Fatalf("Is(%v, %s) = true, want false", err, CodeConnection)
	}
}

func TestWrapPreservesCode(t *testing.T) {
	base := Connection("reset by peer")
	wrapped := ConfigurationWrap(base, "feed init failed")
	if !Is(wrapped, CodeConfiguration) {
		t.Fatalf("wrapped error missing outer code: %v", wrapped)
	}
}

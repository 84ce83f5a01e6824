package riscv

import "testing"

// assert is a minimal fail-with-context helper for the hot-path core
// tests.
func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

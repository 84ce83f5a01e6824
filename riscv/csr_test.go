package riscv

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
)

func TestCSRMtvecMscratchRoundTrip(t *testing.T) {
	c := NewCSRFile(logr.Discard())

	if err := c.Write64(CSRMtvec, 0x8000_0000); err != nil {
		t.Fatalf("write mtvec: %v", err)
	}
	v, err := c.Read64(CSRMtvec)
	assert(t, err == nil, "read mtvec: %v", err)
	assert(t, v == 0x8000_0000, "mtvec = %#x, want 0x80000000", v)

	if err := c.Write64(CSRMscratch, 0xCAFEBABE); err != nil {
		t.Fatalf("write mscratch: %v", err)
	}
	v, err = c.Read64(CSRMscratch)
	assert(t, err == nil, "read mscratch: %v", err)
	assert(t, v == 0xCAFEBABE, "mscratch = %#x, want 0xCAFEBABE", v)
}

func TestCSRMhartidReadOnlyZero(t *testing.T) {
	c := NewCSRFile(logr.Discard())

	v, err := c.Read64(CSRMhartid)
	assert(t, err == nil, "read mhartid: %v", err)
	assert(t, v == 0, "mhartid = %d, want 0", v)

	assert(t, c.Write64(CSRMhartid, 42) == nil, "write to mhartid must not fault")

	v, _ = c.Read64(CSRMhartid)
	assert(t, v == 0, "mhartid must stay 0 after write attempt, got %d", v)
}

func TestCSRUnsupportedIndexFaults(t *testing.T) {
	c := NewCSRFile(logr.Discard())

	_, err := c.Read64(0x999)
	assert(t, err != nil, "expected UnsupportedCsr fault")
	assert(t, errors.Is(err, ErrUnsupportedCSR), "expected errors.Is match against ErrUnsupportedCSR")

	err = c.Write64(0x999, 1)
	assert(t, errors.Is(err, ErrUnsupportedCSR), "expected errors.Is match against ErrUnsupportedCSR on write")
}

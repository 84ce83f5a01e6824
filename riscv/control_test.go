package riscv

import (
	"testing"

	"github.com/go-logr/logr"
)

func newTestCore(t *testing.T, size uint64) *Core {
	t.Helper()
	bus := NewBus(logr.Discard())
	ram := NewRAM(0, size)
	if err := bus.AttachRAM(ram); err != nil {
		t.Fatalf("attach ram: %v", err)
	}
	csr := NewCSRFile(logr.Discard())
	cpu := NewCPU(bus, csr, logr.Discard())
	return NewCore(cpu, bus, logr.Discard())
}

func TestBreakpointHaltsBeforeBudget(t *testing.T) {
	core := newTestCore(t, 64)
	// Five ADDI x0,x0,0 instructions back to back, so each retires and pc+=4.
	nop := []byte{0x13, 0x00, 0x00, 0x00}
	image := append(append(append(append(nop, nop...), nop...), nop...), nop...)
	if err := core.LoadImage(0, image); err != nil {
		t.Fatalf("load image: %v", err)
	}
	core.AddBreakpoint(8) // third instruction's address

	ev := core.ContinueFor(1_000_000)
	assert(t, ev.Kind == EventBreakpoint, "expected EventBreakpoint, got %v", ev.Kind)
	assert(t, ev.PC == 8, "expected pc=8 at breakpoint, got %#x", ev.PC)
	assert(t, core.GetNumExecutedInstructions() < 1_000_000, "expected fewer than the budget retired")
	assert(t, core.GetNumExecutedInstructions() == 2, "expected exactly 2 instructions retired, got %d", core.GetNumExecutedInstructions())
}

func TestContinueYieldsMaxInstructions(t *testing.T) {
	core := newTestCore(t, 16)
	nop := []byte{0x13, 0x00, 0x00, 0x00}
	if err := core.LoadImage(0, append(append(nop, nop...), nop...)); err != nil {
		t.Fatalf("load image: %v", err)
	}

	ev := core.ContinueFor(2)
	assert(t, ev.Kind == EventMaxInstructions, "expected EventMaxInstructions, got %v", ev.Kind)
	assert(t, core.GetNumExecutedInstructions() == 2, "expected 2 retired, got %d", core.GetNumExecutedInstructions())
}

func TestFaultRefusesContinueUntilReload(t *testing.T) {
	core := newTestCore(t, 16)
	if err := core.LoadImage(0, []byte{0x7F, 0x00, 0x00, 0x00}); err != nil { // Unknown32 opcode
		t.Fatalf("load image: %v", err)
	}

	ev := core.ContinueFor(10)
	assert(t, ev.Kind == EventFault, "expected EventFault, got %v", ev.Kind)

	ev2 := core.ContinueFor(10)
	assert(t, ev2.Kind == EventFault, "Continue after a fault must keep yielding the fault until reload")

	if err := core.LoadImage(0, []byte{0x13, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	ev3 := core.ContinueFor(1)
	assert(t, ev3.Kind == EventMaxInstructions, "expected fresh LoadImage to clear the fault, got %v", ev3.Kind)
}

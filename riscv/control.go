package riscv

import "github.com/go-logr/logr"

// State is the control loop's state machine.
type State int

const (
	Stopped State = iota
	Running
	StoppedAtBreakpoint
)

// ExecEvent is what ContinueFor yields when it stops running: the budget
// ran out, a breakpoint was hit, or the CPU faulted.
type ExecEvent struct {
	Kind  ExecEventKind
	PC    uint64
	Fault *Fault
}

type ExecEventKind int

const (
	EventMaxInstructions ExecEventKind = iota
	EventBreakpoint
	EventFault
)

// Core is the control loop driving a CPU against a Bus: LoadImage,
// ContinueFor and Stop, honoring breakpoints and instruction budgets.
type Core struct {
	cpu         *CPU
	bus         *Bus
	breakpoints map[uint64]struct{}
	state       State
	log         logr.Logger

	// fault is set once a ContinueFor call yields a fault; ContinueFor
	// refuses to run again until a fresh LoadImage.
	fault *Fault
}

// NewCore constructs a Core in the Stopped state.
func NewCore(cpu *CPU, bus *Bus, log logr.Logger) *Core {
	return &Core{
		cpu:         cpu,
		bus:         bus,
		breakpoints: make(map[uint64]struct{}),
		state:       Stopped,
		log:         log,
	}
}

// State returns the control loop's current state.
func (c *Core) State() State { return c.state }

// LoadImage copies bytes into RAM at addr, sets PC to addr, clears any
// prior fault, and returns the core to Stopped.
func (c *Core) LoadImage(addr uint64, image []byte) error {
	if err := c.bus.LoadImage(addr, image); err != nil {
		return err
	}
	c.cpu.SetPC(addr)
	c.fault = nil
	c.state = Stopped
	c.log.V(1).Info("image loaded", "addr", addr, "size", len(image))
	return nil
}

// AddBreakpoint registers addr as a breakpoint.
func (c *Core) AddBreakpoint(addr uint64) {
	c.breakpoints[addr] = struct{}{}
}

// RemoveBreakpoint unregisters addr.
func (c *Core) RemoveBreakpoint(addr uint64) {
	delete(c.breakpoints, addr)
}

func (c *Core) atBreakpoint(pc uint64) bool {
	_, ok := c.breakpoints[pc]
	return ok
}

// ContinueFor executes up to maxInstr instructions, stopping early at a
// breakpoint or fault. After a fault the core stays in a terminal state:
// registers and memory remain inspectable, but ContinueFor keeps yielding
// the same fault until a fresh LoadImage resets it.
func (c *Core) ContinueFor(maxInstr uint64) ExecEvent {
	if c.fault != nil {
		return ExecEvent{Kind: EventFault, PC: c.cpu.PC(), Fault: c.fault}
	}

	c.state = Running
	for i := uint64(0); i < maxInstr; i++ {
		if err := c.cpu.Step(); err != nil {
			fault, ok := err.(*Fault)
			if !ok {
				fault = &Fault{Kind: FaultIllegalInstruction, PC: c.cpu.PC()}
			}
			c.fault = fault
			c.state = Stopped
			c.log.Error(fault, "core fault", "pc", fault.PC)
			return ExecEvent{Kind: EventFault, PC: c.cpu.PC(), Fault: fault}
		}

		if c.atBreakpoint(c.cpu.PC()) {
			c.state = StoppedAtBreakpoint
			return ExecEvent{Kind: EventBreakpoint, PC: c.cpu.PC()}
		}
	}

	c.state = Stopped
	return ExecEvent{Kind: EventMaxInstructions, PC: c.cpu.PC()}
}

// Stop transitions the core back to Stopped. There is no preemption point
// mid-ContinueFor; Stop takes effect once the current batch yields.
func (c *Core) Stop() {
	c.state = Stopped
}

// GetPC returns the current program counter.
func (c *Core) GetPC() uint64 { return c.cpu.PC() }

// GetRegs returns a snapshot of the 32 general registers.
func (c *Core) GetRegs() [32]uint64 { return c.cpu.Regs() }

// GetNumExecutedInstructions returns the count of instructions retired.
func (c *Core) GetNumExecutedInstructions() uint64 { return c.cpu.NumExecutedInstructions() }

// GetRAMSlice returns a read-only view of size bytes of RAM at addr.
func (c *Core) GetRAMSlice(addr, size uint64) ([]byte, bool) {
	return c.bus.RAMSlice(addr, size)
}

// SetRAMSize resizes the bus's RAM region.
func (c *Core) SetRAMSize(n uint64) error {
	return c.bus.SetRAMSize(n)
}

package riscv

import "github.com/go-logr/logr"

// CPU is the RV64I+RVC+Zicsr register file and execution engine. It has no
// notion of breakpoints or instruction budgets; those belong to the
// control loop (control.go).
type CPU struct {
	x           [32]uint64
	pc          uint64
	reservation uint64

	bus *Bus
	csr *CSRFile
	log logr.Logger

	numExecInstr uint64
}

// NewCPU constructs a CPU wired to bus and csr, pc initialized to zero.
// The embedder is expected to set PC via LoadImage / SetPC before running.
func NewCPU(bus *Bus, csr *CSRFile, log logr.Logger) *CPU {
	return &CPU{bus: bus, csr: csr, log: log}
}

func (c *CPU) PC() uint64 { return c.pc }

func (c *CPU) SetPC(pc uint64) { c.pc = pc }

// Regs returns a snapshot of the 32 general registers.
func (c *CPU) Regs() [32]uint64 { return c.x }

// NumExecutedInstructions returns the count of instructions retired so far.
func (c *CPU) NumExecutedInstructions() uint64 { return c.numExecInstr }

// regsW64 writes v to register rd; writes to x0 are silently discarded.
func (c *CPU) regsW64(rd uint8, v uint64) {
	if rd == 0 {
		return
	}
	c.x[rd] = v
}

func (c *CPU) regsR64(rs uint8) uint64 { return c.x[rs] }

func (c *CPU) regsRI64(rs uint8) int64 { return int64(c.x[rs]) }

func (c *CPU) pcInc() { c.pc += 4 }

func (c *CPU) pcIncRVC() { c.pc += 2 }

// Step fetches, decodes and executes exactly one instruction at PC,
// advancing PC and the executed-instruction counter on success.
func (c *CPU) Step() error {
	word, err := c.bus.Read32(c.pc)
	if err != nil {
		return err
	}

	if InstrIsRVC(uint16(word)) {
		if err := c.executeRVC(Decode16(uint16(word))); err != nil {
			return err
		}
	} else {
		if err := c.execute(Decode32(word)); err != nil {
			return err
		}
	}

	c.numExecInstr++
	return nil
}

func (c *CPU) execute(ins Instr32) error {
	switch v := ins.(type) {
	case Lui:
		c.regsW64(v.Rd, v.Imm20)
		c.pcInc()
	case Auipc:
		c.regsW64(v.Rd, c.pc+v.Imm20)
		c.pcInc()
	case Jal:
		return c.exeJal(v.Imm21, v.Rd)
	case Jalr:
		return c.exeJalr(v.Imm12, v.Rs1, v.Rd)
	case Branch:
		return c.exeBranch(v.Off13, v.Rs2, v.Rs1, v.Funct3)
	case Load:
		return c.exeLoad(v.Imm12, v.Rs1, v.Funct3, v.Rd)
	case Store:
		return c.exeStore(v.Imm12, v.Rs2, v.Rs1, v.Funct3)
	case OpImm:
		return c.exeOpImm(v.Imm12, v.Rs1, v.Funct3, v.Rd, false)
	case Op:
		return c.exeOp(v.Funct7, v.Rs2, v.Rs1, v.Funct3, v.Rd, false)
	case System:
		return c.exeSystem(v.CSR, v.Rs1, v.Funct3, v.Rd)
	case Amo:
		return c.exeAmo(v.Funct5, v.Rs2, v.Rs1, v.Funct3, v.Rd)
	case Unknown32:
		return illegalInstruction(c.pc, v.Word)
	default:
		return illegalInstruction(c.pc, 0)
	}
	return nil
}

func (c *CPU) executeRVC(ins Instr16) error {
	switch v := ins.(type) {
	case CNop:
		c.pcIncRVC()
	case CAddi:
		return c.exeOpImm(v.Imm6.ToI12(), v.Rd, F3OpImmADDI, v.Rd, true)
	case CLi:
		c.regsW64(v.Rd, uint64(int64(v.Imm6)))
		c.pcIncRVC()
	case CLui:
		c.regsW64(v.Rd, uint64(int64(v.Imm6))<<12)
		c.pcIncRVC()
	case CAddi16Sp:
		c.x[2] = uint64(int64(v.Imm6)<<4) + c.x[2]
		c.pcIncRVC()
	case CSlli:
		if v.Rd != 0 {
			c.x[v.Rd] = c.x[v.Rd] << (v.Uimm6 & 0x3f)
		}
		c.pcIncRVC()
	case CJr:
		return c.exeJalr(0, v.Rs1, 0)
	case CAdd:
		return c.exeOp(F7OpADD, v.Rs2, v.Rd, 0b000, v.Rd, true)
	case CJ:
		return c.exeJal(v.Imm12.ToI21(), 0)
	case CHint:
		c.pcIncRVC()
	case CReserved:
		return illegalInstruction(c.pc, uint32(0))
	case Unknown16:
		return illegalInstruction(c.pc, uint32(v.Halfword))
	default:
		return illegalInstruction(c.pc, 0)
	}
	return nil
}

func (c *CPU) exeJal(imm I21, rd uint8) error {
	oldPC := c.pc
	c.regsW64(rd, oldPC+4)
	c.pc = imm.AddTo64(oldPC)
	return nil
}

func (c *CPU) exeJalr(imm I12, rs1, rd uint8) error {
	target := imm.AddTo64(c.regsR64(rs1)) &^ 1
	oldPC := c.pc
	c.regsW64(rd, oldPC+4)
	c.pc = target
	return nil
}

func (c *CPU) exeBranch(off I13, rs2, rs1 uint8, funct3 uint32) error {
	a, b := c.regsR64(rs1), c.regsR64(rs2)
	var taken bool
	switch funct3 {
	case F3BranchBEQ:
		taken = a == b
	case F3BranchBNE:
		taken = a != b
	case F3BranchBLT:
		taken = c.regsRI64(rs1) < c.regsRI64(rs2)
	default:
		return illegalInstruction(c.pc, 0)
	}

	if taken {
		c.pc = off.AddTo64(c.pc)
	} else {
		c.pcInc()
	}
	return nil
}

func (c *CPU) exeLoad(imm I12, rs1 uint8, funct3 uint32, rd uint8) error {
	addr := imm.AddTo64(c.regsR64(rs1))
	switch funct3 {
	case F3LoadLB:
		b, err := c.bus.Read8(addr)
		if err != nil {
			return err
		}
		c.regsW64(rd, uint64(int64(int8(b))))
	case F3LoadLBU:
		b, err := c.bus.Read8(addr)
		if err != nil {
			return err
		}
		c.regsW64(rd, uint64(b))
	case F3LoadLW:
		w, err := c.bus.Read32(addr)
		if err != nil {
			return err
		}
		c.regsW64(rd, uint64(int64(int32(w))))
	default:
		return illegalInstruction(c.pc, 0)
	}
	c.pcInc()
	return nil
}

func (c *CPU) exeStore(imm I12, rs2, rs1 uint8, funct3 uint32) error {
	addr := imm.AddTo64(c.regsR64(rs1))
	switch funct3 {
	case F3StoreSW:
		if err := c.bus.Write32(addr, uint32(c.regsR64(rs2))); err != nil {
			return err
		}
	default:
		return illegalInstruction(c.pc, 0)
	}
	c.pcInc()
	return nil
}

func (c *CPU) exeOpImm(imm I12, rs1 uint8, funct3 uint32, rd uint8, rvc bool) error {
	switch funct3 {
	case F3OpImmADDI:
		c.regsW64(rd, imm.AddTo64(c.regsR64(rs1)))
	default:
		return illegalInstruction(c.pc, 0)
	}
	if rvc {
		c.pcIncRVC()
	} else {
		c.pcInc()
	}
	return nil
}

func (c *CPU) exeOp(funct7 uint32, rs2, rs1 uint8, funct3 uint32, rd uint8, rvc bool) error {
	switch {
	case funct3 == 0 && funct7 == F7OpADD:
		c.regsW64(rd, c.regsR64(rs1)+c.regsR64(rs2))
	case funct3 == 0 && funct7 == F7OpSUB:
		c.regsW64(rd, c.regsR64(rs1)-c.regsR64(rs2))
	default:
		return illegalInstruction(c.pc, 0)
	}
	if rvc {
		c.pcIncRVC()
	} else {
		c.pcInc()
	}
	return nil
}

func (c *CPU) exeSystem(csrIdx uint16, rs1 uint8, funct3 uint32, rd uint8) error {
	if funct3 != F3SystemCSRRS {
		return illegalInstruction(c.pc, 0)
	}

	old, err := c.csr.Read64(csrIdx)
	if err != nil {
		return err
	}
	c.regsW64(rd, old)
	if err := c.csr.Write64(csrIdx, old|c.regsR64(rs1)); err != nil {
		return err
	}
	c.pcInc()
	return nil
}

// exeAmo implements the word-width AMO subset: LR.W, AMOSWAP.W, AMOADD.W.
func (c *CPU) exeAmo(funct5 uint32, rs2, rs1 uint8, funct3 uint32, rd uint8) error {
	if funct3 != F3AmoWord {
		return illegalInstruction(c.pc, 0)
	}

	addr := c.regsR64(rs1)
	w, err := c.bus.Read32(addr)
	if err != nil {
		return err
	}
	loaded := uint64(int64(int32(w)))
	// rs2 must be read before rd is written: rd == rs2 is legal.
	src := uint32(c.regsR64(rs2))

	switch funct5 {
	case F5AmoLRW:
		if rs2 != 0 {
			return illegalInstruction(c.pc, 0)
		}
		c.regsW64(rd, loaded)
		c.reservation = addr
	case F5AmoSwapW:
		c.regsW64(rd, loaded)
		if err := c.bus.Write32(addr, src); err != nil {
			return err
		}
	case F5AmoAddW:
		c.regsW64(rd, loaded)
		if err := c.bus.Write32(addr, w+src); err != nil {
			return err
		}
	default:
		return illegalInstruction(c.pc, 0)
	}

	c.pcInc()
	return nil
}

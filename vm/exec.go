package vm

import "tinymach/isa"

// decodedOperand is the operand of one instruction word, already split into
// addressing mode and raw argument - the form Step consumes on every tick.
type decodedOperand struct {
	present bool
	mode    isa.Mode
	arg     int32
}

// fetchValue resolves an operand to the value an instruction like ld/add/cmp
// reads. ModeValue is the argument itself; ModeDirect and ModeDeref both
// read memory once at arg (the distinction between them only matters for
// address-producing operands, see resolveAddress); ModeDeref2 reads twice.
func (c *cpu) fetchValue(o decodedOperand) int32 {
	switch o.mode {
	case isa.ModeValue:
		return o.arg
	case isa.ModeDirect, isa.ModeDeref:
		return c.mem.GetWord(o.arg)
	case isa.ModeDeref2:
		return c.mem.GetWord(c.mem.GetWord(o.arg))
	default:
		return 0
	}
}

// resolveAddress resolves an operand to the address st writes through.
// ModeDirect names the address outright (zero reads); ModeDeref reads
// memory once to find it (one indirection beyond direct).
func (c *cpu) resolveAddress(o decodedOperand) int32 {
	switch o.mode {
	case isa.ModeDirect:
		return o.arg
	case isa.ModeDeref:
		return c.mem.GetWord(o.arg)
	default:
		return o.arg
	}
}

// cpu bundles the datapath with the memory and port table it operates on -
// the control unit's working set for one Step.
type cpu struct {
	regs  Registers
	mem   *Memory
	ports *portTable
	prog  []decodedInstruction
	isrs  int // count of completed fi/iret events, for interrupt bookkeeping
}

// decodedInstruction is one word of the image pre-decoded into its opcode
// and operand, indexed by word address (word index = byte address / 4).
// valid is false for data words and out-of-range slots.
type decodedInstruction struct {
	op      isa.Op
	operand decodedOperand
	line    int
	valid   bool
}

// wordAt returns the instruction at the given byte address, or ok=false if
// that address does not hold a decoded instruction (either out of range or
// a data word).
func (c *cpu) wordAt(addr int32) (decodedInstruction, bool) {
	idx := int(addr / wordSize)
	if idx < 0 || idx >= len(c.prog) || !c.prog[idx].valid {
		return decodedInstruction{}, false
	}
	return c.prog[idx], true
}

// step executes exactly one instruction, advancing PC first (per the
// spec's fetch-then-execute ordering so that branches overwrite it) and
// returns the tick cost charged. It panics with a *FatalError for every
// runtime fatal condition; Run recovers once at the top level.
func (c *cpu) step() int {
	instr, ok := c.wordAt(c.regs.PC)
	if !ok {
		panic(&FatalError{Kind: "unknown_opcode", PC: c.regs.PC, Msg: "no instruction at this address"})
	}

	c.regs.PC += wordSize
	cost := instr.op.TickCost()

	switch instr.op {
	case isa.Nop:
	case isa.Ld:
		v := c.fetchValue(instr.operand)
		c.regs.AC = v
		c.regs.setFlags(v)
	case isa.St:
		addr := c.resolveAddress(instr.operand)
		c.mem.SetWord(addr, c.regs.AC)
	case isa.Add:
		c.regs.alu(aluAdd, c.fetchValue(instr.operand))
	case isa.Sub:
		c.regs.alu(aluSub, c.fetchValue(instr.operand))
	case isa.Mul:
		c.regs.alu(aluMul, c.fetchValue(instr.operand))
	case isa.Div:
		divisor := c.fetchValue(instr.operand)
		if divisor == 0 {
			panic(withSite(fatalDivByZero(), c.regs.PC-wordSize, instr.line))
		}
		c.regs.alu(aluDiv, divisor)
	case isa.And:
		c.regs.alu(aluAnd, c.fetchValue(instr.operand))
	case isa.Or:
		c.regs.alu(aluOr, c.fetchValue(instr.operand))
	case isa.Cmp:
		result := c.regs.AC - c.fetchValue(instr.operand)
		c.regs.setFlags(result)
	case isa.Inc:
		c.regs.AC++
		c.regs.setFlags(c.regs.AC)
	case isa.Dec:
		c.regs.AC--
		c.regs.setFlags(c.regs.AC)
	case isa.Asr:
		c.regs.AC = c.regs.AC >> 1
		c.regs.setFlags(c.regs.AC)
	case isa.Lsl:
		c.regs.AC = c.regs.AC << 1
		c.regs.setFlags(c.regs.AC)
	case isa.Jmp:
		c.regs.PC = instr.operand.arg
	case isa.Jz:
		if c.regs.Z {
			c.regs.PC = instr.operand.arg
		}
	case isa.Jnz:
		if !c.regs.Z {
			c.regs.PC = instr.operand.arg
		}
	case isa.Jn:
		if c.regs.N {
			c.regs.PC = instr.operand.arg
		}
	case isa.Jp:
		if !c.regs.N {
			c.regs.PC = instr.operand.arg
		}
	case isa.Out:
		p := c.ports.get(instr.operand.arg)
		p.out = append(p.out, byte(c.regs.AC))
	case isa.In:
		p := c.ports.get(instr.operand.arg)
		if len(p.in) == 0 {
			panic(withSite(fatalPortUnderflow(instr.operand.arg), c.regs.PC-wordSize, instr.line))
		}
		b := p.in[0]
		p.in = p.in[1:]
		if len(p.in) == 0 {
			p.irq = false
		}
		c.regs.AC = int32(uint32(b))
		c.regs.setFlags(c.regs.AC)
	case isa.Int:
		c.acceptInterrupt(int(instr.operand.arg))
	case isa.Eni:
		c.regs.IE = true
	case isa.Dii:
		c.regs.IE = false
	case isa.Fi, isa.Iret:
		if !c.regs.InISR {
			panic(withSite(fatalISRMismatch(instr.op.String()), c.regs.PC-wordSize, instr.line))
		}
		c.regs.AC = c.mem.GetWord(saveSlotAC)
		c.regs.PC = c.mem.GetWord(saveSlotPC)
		c.regs.IE = true
		c.regs.InISR = false
		c.isrs++
	case isa.Hlt:
		panic(haltSignal{})
	default:
		panic(&FatalError{Kind: "unknown_opcode", PC: c.regs.PC - wordSize, Msg: "opcode not in dispatch table"})
	}

	return cost
}

func withSite(e *FatalError, pc int32, line int) *FatalError {
	e.PC = pc
	e.Line = line
	return e
}

// haltSignal is panicked by hlt to unwind to Run without being mistaken for
// a FatalError - a clean stop, not a fault.
type haltSignal struct{}

// acceptInterrupt performs the save-and-vector dance shared by a synchronous
// int n and the asynchronous port-driven path checked between instructions.
// vectorNum is 1-based, matching int1..int8 and the int n operand. Nested
// interrupts are rejected here rather than left to the async path's own
// guard, since a synchronous int n reaches this with no IE check of its own
// and would otherwise clobber the single saveSlotAC/saveSlotPC pair.
func (c *cpu) acceptInterrupt(vectorNum int) {
	if c.regs.InISR {
		return
	}
	target := c.mem.GetWord(int32((vectorNum - 1) * wordSize))
	if target == 0 {
		return // unbound vector slot: untriggerable
	}
	c.mem.SetWord(saveSlotAC, c.regs.AC)
	c.mem.SetWord(saveSlotPC, c.regs.PC)
	c.regs.PC = target
	c.regs.IE = false
	c.regs.InISR = true
}

// checkAsyncInterrupts runs at each instruction boundary: if interrupts are
// enabled, no ISR is active, and any port's IRQ line is asserted, the
// lowest-numbered requesting port's vector is taken. Ports outside 1..8
// have no vector and are ignored.
func (c *cpu) checkAsyncInterrupts() {
	if !c.regs.IE || c.regs.InISR {
		return
	}
	requested := c.ports.requestedVectors()
	if len(requested) == 0 {
		return
	}
	var lowest int32
	for _, v := range requested {
		if v >= 1 && v <= 8 && (lowest == 0 || v < lowest) {
			lowest = v
		}
	}
	if lowest == 0 {
		return
	}
	c.acceptInterrupt(int(lowest))
}

// saveSlotAC and saveSlotPC are the two reserved prologue words (index 8, 9)
// used to save AC/PC across an interrupt - not a stack, so nested
// interrupts are structurally impossible.
const (
	saveSlotAC = int32((8) * wordSize)
	saveSlotPC = int32((9) * wordSize)
)

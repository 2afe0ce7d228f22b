// Package vm implements the simulator half of the toolchain: a control unit
// that executes an assembled image tick by tick on a simulated accumulator
// CPU, with byte-addressed memory, port-mapped I/O, and a vectored
// interrupt controller.
package vm

import (
	"fmt"

	"tinymach/asm"
	"tinymach/isa"
)

// ExtraDataWords is the scratch memory region reserved past the end of the
// image, available to programs that compute addresses beyond their own
// data section. Not dictated by the spec; a generous default.
const ExtraDataWords = 4096

// TerminationReason names how a run ended.
type TerminationReason string

const (
	Halt           TerminationReason = "halt"
	TicksExhausted TerminationReason = "ticks_exhausted"
)

// Report is everything the driver gets back from a run: the termination
// reason, accumulated output bytes per port, final register state, and
// tick/interrupt accounting.
type Report struct {
	Reason    TerminationReason
	Ticks     int
	Registers Registers
	Outputs   map[int32][]byte
	ISREvents int
}

// DecodedImage is an assembled image pre-loaded into simulator-ready form:
// memory initialized with every data word and a dense, word-indexed
// instruction table. Building it once lets Run and Debug share the same
// loader.
type DecodedImage struct {
	mem     *Memory
	prog    []decodedInstruction
	startPC int32
}

// Load decodes image into simulator-ready memory and instruction tables.
func Load(image asm.Image) (DecodedImage, error) {
	prog, memWords, err := decode(image)
	if err != nil {
		return DecodedImage{}, err
	}

	// Only data words (vector slots, save words, and .data) need a memory
	// presence; instructions execute out of the pre-decoded prog table, so
	// int n and st can still read/write the vector and save slots as data.
	mem := NewMemory(memWords, ExtraDataWords)
	for i, rec := range image {
		if rec.IsData() && rec.Value != nil {
			mem.SetWord(int32(i*wordSize), *rec.Value)
		}
	}

	return DecodedImage{mem: mem, prog: prog, startPC: asm.StartByteAddr}, nil
}

// Run decodes image and executes it to completion, stalling only on hlt, a
// fatal error, or exhausting maxTicks - the driver surface's run(image,
// inputs, max_ticks) -> outputs + report operation.
func Run(image asm.Image, inputs []InputEvent, maxTicks int) (Report, error) {
	decoded, err := Load(image)
	if err != nil {
		return Report{}, err
	}

	c := &cpu{
		mem:   decoded.mem,
		ports: newPortTable(),
		prog:  decoded.prog,
	}
	c.regs.PC = decoded.startPC

	pending := scheduleInputs(inputs)

	var reason TerminationReason
	var tick int

runLoop:
	for {
		var due []InputEvent
		for len(pending) > 0 && pending[0].Tick <= tick {
			due = append(due, pending[0])
			pending = pending[1:]
		}
		if len(due) > 0 {
			c.ports.deliver(due)
		}

		if tick >= maxTicks {
			reason = TicksExhausted
			break
		}

		result := func() (res struct {
			reason TerminationReason
			err    error
			cost   int
		}) {
			defer func() {
				if r := recover(); r != nil {
					switch v := r.(type) {
					case haltSignal:
						res.reason = Halt
					case *FatalError:
						res.err = v
					default:
						panic(r)
					}
				}
			}()
			res.cost = c.step()
			return
		}()

		if result.err != nil {
			return Report{
				Reason:    result.err.(*FatalError).Reason(),
				Ticks:     tick,
				Registers: c.regs,
				Outputs:   c.ports.outputs(),
				ISREvents: c.isrs,
			}, nil
		}
		if result.reason == Halt {
			reason = Halt
			break runLoop
		}

		tick += result.cost
		c.checkAsyncInterrupts()
	}

	return Report{
		Reason:    reason,
		Ticks:     tick,
		Registers: c.regs,
		Outputs:   c.ports.outputs(),
		ISREvents: c.isrs,
	}, nil
}

// decode pre-parses every image record into a dense, word-indexed
// instruction table, resolving mode strings once up front so the control
// unit's hot loop never touches the image or does string comparisons.
func decode(image asm.Image) ([]decodedInstruction, int, error) {
	prog := make([]decodedInstruction, len(image))
	for i, rec := range image {
		if rec.IsData() {
			continue
		}
		op, ok := isa.OpFromString(rec.Opcode)
		if !ok {
			return nil, 0, fmt.Errorf("image word %d: unknown opcode %q", i, rec.Opcode)
		}

		instr := decodedInstruction{op: op, line: rec.Line, valid: true}
		if op.RequiresOperand() {
			if rec.Arg == nil {
				return nil, 0, fmt.Errorf("image word %d: %s requires an operand", i, rec.Opcode)
			}
			mode := isa.ModeValue
			if rec.Mode != "" {
				m, err := isa.ModeFromString(rec.Mode)
				if err != nil {
					return nil, 0, fmt.Errorf("image word %d: %w", i, err)
				}
				mode = m
			}
			instr.operand = decodedOperand{present: true, mode: mode, arg: *rec.Arg}
		}
		prog[i] = instr
	}
	return prog, len(image), nil
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"context"

	"github.com/ezrec/rvm/isa"
	"github.com/ezrec/rvm/objimage"
)

// PreemptionThreshold is the number of dispatched instructions, greedy
// ones included, after which the loop marks a preemption point at the
// next non-greedy instruction, per spec.md §4.8. The reference value
// is 2.
const PreemptionThreshold = 2

// haltIP is the sentinel "no next instruction" word index an executor
// returns to stop the dispatch loop (HALT, or RETURN past the bottom
// frame).
const haltIP = ^uint64(0)

// Interpreter is one single-threaded, cooperatively preemptible VM
// process: its text and rodata segments, symbol table, call stack,
// and stack-break allocator.
type Interpreter struct {
	Text    []isa.Word
	Rodata  []byte
	Symbols []objimage.Symbol
	Trace   *Trace

	// OnPreempt, if set, is invoked at every preemption point the loop
	// reaches (a non-greedy instruction after PreemptionThreshold
	// dispatches). Tests use it to verify no preemption point falls
	// inside a greedy bundle.
	OnPreempt func(ip uint64)

	calls   CallStack
	process *Process
	ip      uint64
	cycle   int

	rodataObjects map[uint64]objimage.Symbol
}

// New prepares an Interpreter to run prog from its entry point.
func New(prog *Program, trace *Trace) *Interpreter {
	it := &Interpreter{
		Text:          prog.Text,
		Rodata:        prog.Rodata,
		Symbols:       prog.Symbols,
		Trace:         trace,
		process:       NewProcess(),
		ip:            prog.Entry,
		rodataObjects: map[uint64]objimage.Symbol{},
	}
	for _, sym := range prog.Symbols {
		if sym.Type == objimage.SymObject {
			it.rodataObjects[sym.Value] = sym
		}
	}
	it.calls.Push(&Frame{Return: haltIP, ResultReg: isa.Void})
	return it
}

// IP returns the current word-index instruction pointer.
func (it *Interpreter) IP() uint64 { return it.ip }

// Frame returns the active call frame, or nil if the process has
// already halted.
func (it *Interpreter) Frame() *Frame { return it.calls.Current() }

// Run dispatches instructions until HALT, an unrecoverable error, or
// ctx is canceled. Cancellation is checked at the top of every
// iteration, per spec.md §5's cooperative cancellation model.
func (it *Interpreter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if it.ip >= uint64(len(it.Text)) {
			return ErrTrap{IP: it.ip, Err: ErrTextOutOfRange}
		}

		word := it.Text[it.ip]
		if it.Trace != nil {
			it.Trace.Instruction(it.ip, word)
		}

		frame := it.calls.Current()
		if frame == nil {
			return nil
		}

		next, err := it.dispatch(word, frame)
		if err != nil {
			return ErrTrap{IP: it.ip, Err: err}
		}
		if next == haltIP {
			return nil
		}

		it.cycle++
		if !word.Greedy() {
			if it.cycle >= PreemptionThreshold {
				it.cycle = 0
				if it.OnPreempt != nil {
					it.OnPreempt(it.ip)
				}
			}
		}

		it.ip = next
	}
}

// dispatch decodes word against its format and routes it to the
// matching per-opcode executor.
func (it *Interpreter) dispatch(word isa.Word, frame *Frame) (uint64, error) {
	switch word.Opcode() {
	case isa.NOOP:
		return it.ip + 1, nil
	case isa.HALT:
		return haltIP, nil
	case isa.EBREAK:
		it.Trace.Dump(frame)
		return it.ip + 1, nil
	case isa.DELETE:
		ops := isa.DecodeS(word)
		frame.Delete(ops.Out)
		return it.ip + 1, nil
	case isa.FRAME:
		return it.execFrame(word, frame)
	case isa.CALL:
		return it.execCall(word, frame)
	case isa.RETURN:
		return it.execReturn(word, frame)
	case isa.STRING:
		return it.execString(word, frame)
	case isa.ATOM:
		return it.execAtom(word, frame)
	case isa.LUI, isa.LUIU:
		return it.execLui(word, frame, word.Opcode())
	case isa.LHI, isa.LLO:
		return it.execCarrier(word, frame, word.Opcode())
	case isa.AA:
		return it.execAA(word, frame)
	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.MOD:
		return it.execArithT(word, frame, word.Opcode())
	case isa.ADDI, isa.ADDIU, isa.SUBI, isa.SUBIU, isa.MULI, isa.MULIU, isa.DIVI, isa.DIVIU:
		return it.execArithR(word, frame, word.Opcode())
	case isa.BITSHL, isa.BITSHR, isa.BITASHR, isa.BITROL, isa.BITROR, isa.BITAND, isa.BITOR, isa.BITXOR:
		return it.execBitwiseT(word, frame, word.Opcode())
	case isa.BITNOT:
		return it.execBitnot(word, frame)
	case isa.EQ, isa.LT, isa.GT, isa.CMP, isa.AND, isa.OR:
		return it.execCompareT(word, frame, word.Opcode())
	case isa.NOT:
		return it.execNot(word, frame)
	}
	return 0, ErrDecode
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import "github.com/ezrec/rvm/isa"

// stringValue is the boxed handle STRING produces: a slice of the
// image's rodata, exposed as text.
type stringValue struct {
	s string
}

func (v *stringValue) Release()       {}
func (v *stringValue) String() string { return v.s }

// atomValue is the boxed handle ATOM produces: an interned symbolic
// name, rendered with its "#" sigil for trace dumps.
type atomValue struct {
	s string
}

func (v *atomValue) Release()       {}
func (v *atomValue) String() string { return "#" + v.s }

// rodataString resolves a STRING/ATOM byte offset to its text: the
// offset must land exactly on an object symbol's value, whose Size
// bounds how many rodata bytes belong to it.
func (it *Interpreter) rodataString(offset uint64) (string, bool) {
	sym, ok := it.rodataObjects[offset]
	if !ok || offset+sym.Size > uint64(len(it.Rodata)) {
		return "", false
	}
	return string(it.Rodata[offset : offset+sym.Size]), true
}

// execString loads a boxed string value from the rodata offset
// carried in the instruction's immediate.
func (it *Interpreter) execString(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeE(word)
	text, ok := it.rodataString(ops.Imm)
	if !ok {
		return 0, ErrInvalidOperand{Reason: "string: offset does not name a rodata object"}
	}
	frame.Set(ops.Out, BoxedValue(&stringValue{s: text}))
	return it.ip + 1, nil
}

// execAtom loads a boxed atom value, its name resolved through the
// symbol-table index cooked into the instruction's input register.
func (it *Interpreter) execAtom(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeD(word)
	symIdx := frame.Get(ops.In).Uint64()
	if symIdx >= uint64(len(it.Symbols)) {
		return 0, ErrUnknownSymbol
	}
	sym := it.Symbols[symIdx]
	text, ok := it.rodataString(sym.Value)
	if !ok {
		return 0, ErrUnknownSymbol
	}
	frame.Set(ops.Out, BoxedValue(&atomValue{s: text}))
	return it.ip + 1, nil
}

// execLui loads the 36-bit immediate into the high bits of a 64-bit
// value, tagged signed or unsigned per opcode. The li pseudo-instruction
// expansion follows it with an ADD that folds in the low bits built in
// a scratch register.
func (it *Interpreter) execLui(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeE(word)
	payload := ops.Imm << 28
	if op == isa.LUI {
		frame.Set(ops.Out, SignedValue(int64(payload)))
	} else {
		frame.Set(ops.Out, UnsignedValue(payload))
	}
	return it.ip + 1, nil
}

// execCarrier folds a 32-bit half into the destination register's raw
// payload: LHI into the high word, LLO into the low word. Used only by
// the assembler's cooked CALL/ATOM carrier sequences, always LHI then
// LLO on the same scratch register.
func (it *Interpreter) execCarrier(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeF(word)
	cur := frame.Get(ops.Out).Uint64()
	var next uint64
	if op == isa.LHI {
		next = (cur & 0xffffffff) | (uint64(ops.Imm) << 32)
	} else {
		next = (cur &^ uint64(0xffffffff)) | uint64(ops.Imm)
	}
	frame.Set(ops.Out, UnsignedValue(next))
	return it.ip + 1, nil
}

// execAA bumps the process's stack-break allocator by the byte count
// in its input register and writes the resulting pointer to its
// output register.
func (it *Interpreter) execAA(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeD(word)
	size := frame.Get(ops.In)
	if size.Tag != TagUnsigned {
		return 0, ErrInvalidOperand{Reason: "aa: size operand must be unsigned"}
	}
	ptr := it.process.Allocate(size.Uint64())
	frame.Set(ops.Out, UnsignedValue(ptr))
	return it.ip + 1, nil
}

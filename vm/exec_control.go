// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"github.com/ezrec/rvm/isa"
	"github.com/ezrec/rvm/objimage"
)

// execFrame opens a fresh outgoing-parameter staging file. The
// requested slot count is accepted but not enforced: the register
// file is always fixed-size, so a request larger than RegisterCount
// simply never gets written past index 255.
func (it *Interpreter) execFrame(word isa.Word, frame *Frame) (uint64, error) {
	frame.Staging = &RegisterFile{}
	return it.ip + 1, nil
}

// execCall resolves the symbol-table index cooked into its carrier
// register (built at runtime by a preceding LHI/LLO pair, per the
// assembler's call-cooking scheme) against the loaded symbol table,
// pushes a new frame carrying the staged parameters, and transfers
// control to the resolved function's entry word.
func (it *Interpreter) execCall(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeD(word)

	carrier := frame.Get(ops.In)
	symIdx := carrier.Uint64()
	if symIdx >= uint64(len(it.Symbols)) {
		return 0, ErrUnknownSymbol
	}
	sym := it.Symbols[symIdx]
	if sym.Type != objimage.SymFunction {
		return 0, ErrUnknownSymbol
	}

	var params RegisterFile
	if frame.Staging != nil {
		params = *frame.Staging
		frame.Staging = nil
	}

	callee := &Frame{
		Params:     params,
		Return:     it.ip + 1,
		ResultReg:  ops.Out,
		StackBreak: it.process.StackBreak,
	}
	if !it.calls.Push(callee) {
		return 0, ErrStackOverflow
	}

	return sym.Value / 8, nil
}

// execReturn pops the active frame, delivers its result to the
// caller's result register, and resumes the caller at its saved
// return address. Returning from the bottom-most frame halts the
// process, matching a direct-execution image's HALT semantics.
func (it *Interpreter) execReturn(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeS(word)
	result := frame.Get(ops.Out)

	returning, ok := it.calls.Pop()
	if !ok {
		return 0, ErrStackUnderflow
	}

	caller := it.calls.Current()
	if caller == nil {
		return haltIP, nil
	}
	caller.Set(returning.ResultReg, result)
	return returning.Return, nil
}

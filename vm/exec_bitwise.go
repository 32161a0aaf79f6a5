// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"math/bits"

	"github.com/ezrec/rvm/isa"
)

// execBitwiseT implements the three-register bitwise family. Shift and
// rotate counts are masked to 6 bits (a 64-bit word has no more than 63
// bits to shift by); the result carries the left operand's tag.
func (it *Interpreter) execBitwiseT(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeT(word)
	lhs := frame.Get(ops.Lhs)
	rhs := frame.Get(ops.Rhs)

	a := lhs.Uint64()
	shift := int(rhs.Uint64() & 0x3f)

	var result uint64
	switch op {
	case isa.BITSHL:
		result = a << shift
	case isa.BITSHR:
		result = a >> shift
	case isa.BITASHR:
		result = uint64(lhs.Int64() >> shift)
	case isa.BITROL:
		result = bits.RotateLeft64(a, shift)
	case isa.BITROR:
		result = bits.RotateLeft64(a, -shift)
	case isa.BITAND:
		result = a & rhs.Uint64()
	case isa.BITOR:
		result = a | rhs.Uint64()
	case isa.BITXOR:
		result = a ^ rhs.Uint64()
	}

	frame.Set(ops.Out, Value{Tag: lhs.Tag, Payload: result})
	return it.ip + 1, nil
}

// execBitnot implements the unary bitwise-complement instruction.
func (it *Interpreter) execBitnot(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeD(word)
	in := frame.Get(ops.In)
	frame.Set(ops.Out, Value{Tag: in.Tag, Payload: ^in.Uint64()})
	return it.ip + 1, nil
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import "github.com/ezrec/rvm/isa"

// boolValue renders a comparison result as the canonical Unsigned 0/1
// pair; the ISA has no dedicated boolean tag.
func boolValue(b bool) Value {
	if b {
		return UnsignedValue(1)
	}
	return UnsignedValue(0)
}

// signedCompare orders a and b, treating the comparison as signed if
// either operand is tagged Signed.
func signedCompare(a, b Value) int {
	if a.Tag == TagSigned || b.Tag == TagSigned {
		ai, bi := a.Int64(), b.Int64()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	au, bu := a.Uint64(), b.Uint64()
	switch {
	case au < bu:
		return -1
	case au > bu:
		return 1
	default:
		return 0
	}
}

// execCompareT implements EQ/LT/GT/CMP/AND/OR. CMP writes a
// three-valued Signed result (-1/0/1) instead of a boolean; the rest
// write the canonical boolean encoding.
func (it *Interpreter) execCompareT(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeT(word)
	lhs := frame.Get(ops.Lhs)
	rhs := frame.Get(ops.Rhs)

	if op == isa.CMP {
		frame.Set(ops.Out, SignedValue(int64(signedCompare(lhs, rhs))))
		return it.ip + 1, nil
	}

	var result bool
	switch op {
	case isa.EQ:
		result = lhs.Tag == rhs.Tag && lhs.Payload == rhs.Payload
	case isa.LT:
		result = signedCompare(lhs, rhs) < 0
	case isa.GT:
		result = signedCompare(lhs, rhs) > 0
	case isa.AND:
		result = lhs.Payload != 0 && rhs.Payload != 0
	case isa.OR:
		result = lhs.Payload != 0 || rhs.Payload != 0
	}

	frame.Set(ops.Out, boolValue(result))
	return it.ip + 1, nil
}

// execNot implements the unary logical-negation instruction.
func (it *Interpreter) execNot(word isa.Word, frame *Frame) (uint64, error) {
	ops := isa.DecodeD(word)
	in := frame.Get(ops.In)
	frame.Set(ops.Out, boolValue(in.Payload == 0))
	return it.ip + 1, nil
}

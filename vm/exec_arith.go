// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import "github.com/ezrec/rvm/isa"

// execArithT implements the three-register ADD/SUB/MUL/DIV/MOD family:
// the result carries the left operand's tag, and division or modulo by
// zero is a fatal trap rather than a saturated or NaN-like result.
func (it *Interpreter) execArithT(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeT(word)
	lhs := frame.Get(ops.Lhs)
	rhs := frame.Get(ops.Rhs)

	var result uint64
	switch op {
	case isa.ADD:
		result = lhs.Uint64() + rhs.Uint64()
	case isa.SUB:
		result = lhs.Uint64() - rhs.Uint64()
	case isa.MUL:
		result = lhs.Uint64() * rhs.Uint64()
	case isa.DIV:
		if rhs.Uint64() == 0 {
			return 0, ErrDivideByZero
		}
		if lhs.Tag == TagSigned {
			result = uint64(lhs.Int64() / rhs.Int64())
		} else {
			result = lhs.Uint64() / rhs.Uint64()
		}
	case isa.MOD:
		if rhs.Uint64() == 0 {
			return 0, ErrDivideByZero
		}
		if lhs.Tag == TagSigned {
			result = uint64(lhs.Int64() % rhs.Int64())
		} else {
			result = lhs.Uint64() % rhs.Uint64()
		}
	}

	frame.Set(ops.Out, Value{Tag: lhs.Tag, Payload: result})
	return it.ip + 1, nil
}

// execArithR implements the register-plus-immediate arithmetic family
// (ADDI/ADDIU/SUBI/.../DIVIU): a Void input reads as zero, and the
// result is tagged signed or unsigned by the opcode itself rather than
// by either operand.
func (it *Interpreter) execArithR(word isa.Word, frame *Frame, op isa.Opcode) (uint64, error) {
	ops := isa.DecodeR(word)

	var base uint64
	if !ops.In.Void {
		base = frame.Get(ops.In).Uint64()
	}
	imm := uint64(ops.Immed)

	signed := op == isa.ADDI || op == isa.SUBI || op == isa.MULI || op == isa.DIVI

	var result uint64
	switch op {
	case isa.ADDI, isa.ADDIU:
		result = base + imm
	case isa.SUBI, isa.SUBIU:
		result = base - imm
	case isa.MULI, isa.MULIU:
		result = base * imm
	case isa.DIVI, isa.DIVIU:
		if imm == 0 {
			return 0, ErrDivideByZero
		}
		if signed {
			result = uint64(int64(base) / int64(imm))
		} else {
			result = base / imm
		}
	}

	tag := TagUnsigned
	if signed {
		tag = TagSigned
	}
	frame.Set(ops.Out, Value{Tag: tag, Payload: result})
	return it.ip + 1, nil
}

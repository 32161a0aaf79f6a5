// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import "github.com/ezrec/rvm/isa"

// mask36 covers the high 36 bits of a 64-bit word (bits 28-63); mask28
// covers the low 28 bits. The two never overlap, so a 64-bit value
// splits cleanly into (high36<<28) | low28.
const (
	mask36 = uint64(0xfffffffff0000000)
	mask28 = uint64(0x0fffffff)
	mask24 = uint32(0x00ffffff)

	liMultiplier = 16
)

// liTempA and liTempB are the scratch registers the li expansion uses
// to build the low part before folding it into the destination. They
// sit above any register index a hand-written program is expected to
// use for its own state.
const (
	liTempA = uint8(252)
	liTempB = uint8(253)
)

// decomposeLoadImmediate splits v into the pieces the li pseudo's
// expansion assembles back into v: a 36-bit high part shifted into
// place by LUI/LUIU, and a low 28-bit part expressed either directly
// (when it fits 24 bits) or as base*multiplier+remainder.
func decomposeLoadImmediate(v uint64) (high36 uint64, base, multiplier, remainder uint32) {
	high36 = (v & mask36) >> 28
	low := uint32(v & mask28)

	if low&mask24 == low {
		return high36, low, 0, 0
	}

	multiplier = liMultiplier
	remainder = low % liMultiplier
	base = (low - remainder) / liMultiplier
	return
}

// expandLoadImmediate lowers `li dest, v` into the minimal instruction
// sequence the interpreter can execute directly, given the signedness
// the caller has already selected for v. Every emitted instruction but
// the last carries the greedy bit, so the sequence is atomic with
// respect to preemption.
func expandLoadImmediate(dest isa.RegisterAccess, v uint64, signed bool) []isa.Word {
	luiOp, addOp := isa.LUIU, isa.ADDIU
	if signed {
		luiOp, addOp = isa.LUI, isa.ADDI
	}

	high36, base, multiplier, remainder := decomposeLoadImmediate(v)

	// Fast path: a bare low value with no high bits needs only a
	// single, non-greedy ADDIU/ADDI-from-void.
	if high36 == 0 && multiplier == 0 {
		return []isa.Word{
			isa.EncodeR(addOp, false, isa.OperandsR{Out: dest, In: isa.Void, Immed: base}),
		}
	}

	var words []isa.Word
	t0 := isa.RegisterAccess{Index: liTempA}
	t1 := isa.RegisterAccess{Index: liTempB}

	if high36 != 0 {
		words = append(words, isa.EncodeE(luiOp, true, isa.OperandsE{Out: dest, Imm: high36}))
	} else {
		words = append(words, isa.EncodeR(addOp, true, isa.OperandsR{Out: dest, In: isa.Void, Immed: 0}))
	}

	if multiplier == 0 {
		words = append(words, isa.EncodeR(addOp, true, isa.OperandsR{Out: t0, In: isa.Void, Immed: base}))
	} else {
		words = append(words,
			isa.EncodeR(addOp, true, isa.OperandsR{Out: t0, In: isa.Void, Immed: base}),
			isa.EncodeR(addOp, true, isa.OperandsR{Out: t1, In: isa.Void, Immed: multiplier}),
			isa.EncodeT(isa.MUL, true, isa.OperandsT{Out: t0, Lhs: t0, Rhs: t1}),
			isa.EncodeR(addOp, true, isa.OperandsR{Out: t1, In: isa.Void, Immed: remainder}),
			isa.EncodeT(isa.ADD, true, isa.OperandsT{Out: t0, Lhs: t0, Rhs: t1}),
		)
	}

	words = append(words, isa.EncodeT(isa.ADD, false, isa.OperandsT{Out: dest, Lhs: dest, Rhs: t0}))

	return words
}

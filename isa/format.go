// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package isa defines the fixed-width instruction word encoding, the
// register access field, and the opcode table shared by the assembler
// and the interpreter.
package isa

import (
	"fmt"

	"github.com/ezrec/rvm/translate"
)

// RegisterSet selects which per-frame register file a RegisterAccess
// addresses.
type RegisterSet uint8

const (
	SetLocal      = RegisterSet(0) // local
	SetParameters = RegisterSet(1) // parameters
)

// String returns the register set's name ("local"/"parameters").
func (rs RegisterSet) String() string {
	switch rs {
	case SetLocal:
		return "local"
	case SetParameters:
		return "parameters"
	default:
		return fmt.Sprintf("RegisterSet(%d)", uint8(rs))
	}
}

// RegisterAccess is the decoded form of a 16-bit register access field:
// a set index, a direct/indirect bit, and an 8-bit register index.
type RegisterAccess struct {
	Set      RegisterSet
	Indirect bool
	Index    uint8
	Void     bool
}

// Void is the distinguished "no register" RegisterAccess.
var Void = RegisterAccess{Void: true}

// void16 is the 16-bit wire encoding of the Void register access: all
// bits set, which is not reachable through any combination of a real
// set/indirect/index triple's low-order bits colliding with reserved
// zero bits.
const void16 = uint16(0xffff)

// EncodeRegisterAccess packs a RegisterAccess into its 16-bit wire form.
func EncodeRegisterAccess(ra RegisterAccess) uint16 {
	if ra.Void {
		return void16
	}

	var word uint16
	if ra.Set == SetParameters {
		word |= 1 << 0
	}
	if ra.Indirect {
		word |= 1 << 1
	}
	word |= uint16(ra.Index) << 8

	return word
}

// DecodeRegisterAccess unpacks a 16-bit wire form into a RegisterAccess.
func DecodeRegisterAccess(word uint16) (ra RegisterAccess) {
	if word == void16 {
		ra.Void = true
		return
	}

	if (word & (1 << 0)) != 0 {
		ra.Set = SetParameters
	} else {
		ra.Set = SetLocal
	}
	ra.Indirect = (word & (1 << 1)) != 0
	ra.Index = uint8(word >> 8)

	return
}

// String returns the assembly-syntax rendering of a register access,
// e.g. "$3", "*$3", "@2", "*@2", or "void".
func (ra RegisterAccess) String() string {
	if ra.Void {
		return "void"
	}

	sigil := "$"
	if ra.Set == SetParameters {
		sigil = "@"
	}
	indirect := ""
	if ra.Indirect {
		indirect = "*"
	}

	return fmt.Sprintf("%v%v%v", indirect, sigil, ra.Index)
}

// compactRegister is the 8-bit "out"/"in" register field used by the
// immediate-carrying formats (E, R, F). It always addresses a direct
// register in the LOCAL set; 0xff means void. Immediate-carrying
// instructions only ever target ordinary local registers, so the full
// 16-bit RegisterAccess (with indirection and the PARAMETERS set) is
// not needed here.
const voidCompact = uint8(0xff)

func encodeCompact(index uint8, void bool) uint8 {
	if void {
		return voidCompact
	}
	return index
}

func decodeCompact(word uint8) (index uint8, void bool) {
	if word == voidCompact {
		return 0, true
	}
	return word, false
}

// Format is the operand-shape tag of an instruction, stored in the top
// 4 bits (bits 12-15) of the instruction word's 16-bit opcode field.
type Format uint8

const (
	FormatN = Format(0) // no operands
	FormatS = Format(1) // one register access (out)
	FormatD = Format(2) // two register accesses (out, in)
	FormatT = Format(3) // three register accesses (out, lhs, rhs)
	FormatE = Format(4) // one register (out) + 36-bit immediate
	FormatR = Format(5) // two registers (out, in) + 24-bit immediate
	FormatF = Format(6) // one register (out) + 32-bit immediate

	formatMax = FormatF
)

// String returns the format's constant name ("FormatN", "FormatS", ...).
func (f Format) String() string {
	switch f {
	case FormatN:
		return "FormatN"
	case FormatS:
		return "FormatS"
	case FormatD:
		return "FormatD"
	case FormatT:
		return "FormatT"
	case FormatE:
		return "FormatE"
	case FormatR:
		return "FormatR"
	case FormatF:
		return "FormatF"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ErrFormatInvalid is returned by DecodeFormat for a format nibble
// outside the seven defined formats.
type ErrFormatInvalid uint8

func (e ErrFormatInvalid) Error() string {
	return translate.From("format %#x invalid", uint8(e))
}

// DecodeFormat validates a raw format nibble.
func DecodeFormat(raw uint8) (f Format, err error) {
	f = Format(raw)
	if f > formatMax {
		err = ErrFormatInvalid(raw)
	}
	return
}

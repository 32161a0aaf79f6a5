// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"math"
	"strings"

	"github.com/ezrec/rvm/isa"
	"github.com/ezrec/rvm/objimage"
)

// linkReg is the scratch register the cooking stage uses to carry a
// resolved symbol-table index into a CALL or ATOM instruction.
const linkReg = uint8(251)

// Result is everything the object-image writer needs. Function
// symbols, with their .text offsets and sizes, are in Input.Symbols.
type Result struct {
	Input objimage.Input
}

// Assemble runs the full pipeline: parse, then the ordered assembly
// stages (label collection, value-label resolution, long-immediate
// cooking, pseudo-instruction expansion, entry detection, bytecode
// emission, relocation-table construction).
func Assemble(path, src string) (*Result, error) {
	prog, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	return assembleProgram(path, prog)
}

func assembleProgram(path string, prog *Program) (*Result, error) {
	symbols := []objimage.Symbol{{Name: ""}}
	symIndex := map[string]int{}

	addSymbol := func(sym objimage.Symbol, line, column int) error {
		if _, dup := symIndex[sym.Name]; dup {
			return semanticErr(path, line, column, ErrDuplicateLabel)
		}
		symIndex[sym.Name] = len(symbols)
		symbols = append(symbols, sym)
		return nil
	}

	// Stage 1: load function labels.
	var entryFunc *FunctionDef
	for _, fn := range prog.Functions {
		binding := objimage.BindLocal
		extern := hasAttr(fn.Attrs, "extern")
		if extern || hasAttr(fn.Attrs, "global") || hasAttr(fn.Attrs, "export") {
			binding = objimage.BindGlobal
		}
		if hasAttr(fn.Attrs, "entry_point") {
			if entryFunc != nil {
				return nil, semanticErr(path, fn.Line, fn.Column, ErrDuplicateEntry)
			}
			entryFunc = fn
			binding = objimage.BindGlobal
		}
		if err := addSymbol(objimage.Symbol{
			Name:      fn.Name,
			Type:      objimage.SymFunction,
			Binding:   binding,
			Undefined: extern,
		}, fn.Line, fn.Column); err != nil {
			return nil, err
		}
	}

	// Stage 2: load value labels, appending their resolved bytes to
	// .rodata.
	var rodata []byte
	for _, lbl := range prog.Labels {
		var bytesVal []byte
		switch lbl.Type {
		case "string":
			for i := 0; i < lbl.Repeat; i++ {
				bytesVal = append(bytesVal, lbl.Value...)
			}
		case "atom":
			bytesVal = []byte(lbl.Value)
		}
		offset := uint64(len(rodata))
		rodata = append(rodata, bytesVal...)

		binding := objimage.BindLocal
		if hasAttr(lbl.Attrs, "global") || hasAttr(lbl.Attrs, "export") {
			binding = objimage.BindGlobal
		}
		if err := addSymbol(objimage.Symbol{
			Name:    lbl.Name,
			Type:    objimage.SymObject,
			Binding: binding,
			Value:   offset,
			Size:    uint64(len(bytesVal)),
		}, lbl.Line, lbl.Column); err != nil {
			return nil, err
		}
	}

	// Stages 3, 4 and 6: cook long immediates, expand pseudo-
	// instructions, and emit bytecode, one function body at a time.
	// A leading HALT occupies .text offset 0.
	text := []isa.Word{isa.EncodeN(isa.HALT, false, isa.OperandsN{})}
	var relocations []objimage.Relocation

	for _, fn := range prog.Functions {
		if hasAttr(fn.Attrs, "extern") {
			continue // declaration only, no body to emit
		}
		symIdx := symIndex[fn.Name]
		symbols[symIdx].Value = uint64(len(text)) * 8

		for _, instr := range fn.Instrs {
			words, relocs, err := emitInstruction(path, instr, symbols, symIndex, uint64(len(text))*8)
			if err != nil {
				return nil, err
			}
			text = append(text, words...)
			relocations = append(relocations, relocs...)
		}

		symbols[symIdx].Size = uint64(len(text))*8 - symbols[symIdx].Value
	}

	textBytes := make([]byte, 0, len(text)*8)
	for _, w := range text {
		textBytes = wordAppendLE(textBytes, uint64(w))
	}

	entrySymbol := ""
	if entryFunc != nil {
		entrySymbol = entryFunc.Name
	}

	return &Result{Input: objimage.Input{
		Text:        textBytes,
		Rodata:      rodata,
		Symbols:     symbols,
		Relocations: relocations,
		Comment:     "assembled by rvmasm",
		EntrySymbol: entrySymbol,
	}}, nil
}

func hasAttr(attrs []string, name string) bool {
	for _, a := range attrs {
		if a == name {
			return true
		}
	}
	return false
}

func wordAppendLE(buf []byte, w uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(w>>(8*i)))
	}
	return buf
}

// emitInstruction lowers one parsed instruction into zero or more
// instruction words plus any relocations it produces. wordOffset is the
// byte offset within .text the instruction would start at.
func emitInstruction(path string, instr *Instruction, symbols []objimage.Symbol, symIndex map[string]int, wordOffset uint64) ([]isa.Word, []objimage.Relocation, error) {
	mnemonic := strings.ToLower(instr.Mnemonic)

	switch mnemonic {
	case "li":
		return emitLoadImmediate(path, instr)
	case "call":
		return emitCookedD(path, instr, symIndex, wordOffset, isa.CALL, objimage.RelocJumpSlot)
	case "atom":
		return emitCookedD(path, instr, symIndex, wordOffset, isa.ATOM, objimage.RelocObject)
	case "string":
		return emitString(path, instr, symbols, symIndex)
	case "frame":
		return emitFrame(path, instr)
	}

	op, ok := isa.LookupMnemonic(mnemonic)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrUnknownMnemonic)
	}

	w, err := encodeGeneric(path, instr, op)
	if err != nil {
		return nil, nil, err
	}
	return []isa.Word{w}, nil, nil
}

func tokAt(instr *Instruction) Token {
	return Token{Line: instr.Line, Column: instr.Column}
}

func emitLoadImmediate(path string, instr *Instruction) ([]isa.Word, []objimage.Relocation, error) {
	if len(instr.Operands) != 2 {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	dest, ok := instr.Operands[0].(RegOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	imm, ok := instr.Operands[1].(ImmOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	// A literal that fits a signed 64-bit range loads as Signed, matching
	// the original's overload selection between op_li(int64_t) and
	// op_li(uint64_t); anything larger than math.MaxInt64 only fits the
	// unsigned overload.
	signed := imm.Signed || imm.Value <= math.MaxInt64
	return expandLoadImmediate(dest.Access, imm.Value, signed), nil, nil
}

func emitCookedD(path string, instr *Instruction, symIndex map[string]int, wordOffset uint64, op isa.Opcode, kind objimage.RelocationKind) ([]isa.Word, []objimage.Relocation, error) {
	if len(instr.Operands) != 2 {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	dest, ok := instr.Operands[0].(RegOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	ref, ok := instr.Operands[1].(LabelRefOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	symIdx, ok := symIndex[ref.Name]
	if !ok {
		return nil, nil, semanticErr(path, instr.Line, instr.Column, ErrUnknownLabel)
	}

	carrier := isa.RegisterAccess{Index: linkReg}
	hi := uint32(uint64(symIdx) >> 32)
	lo := uint32(uint64(symIdx))

	words := []isa.Word{
		isa.EncodeF(isa.LHI, true, isa.OperandsF{Out: carrier, Imm: hi}),
		isa.EncodeF(isa.LLO, true, isa.OperandsF{Out: carrier, Imm: lo}),
		isa.EncodeD(op, false, isa.OperandsD{Out: dest.Access, In: carrier}),
	}
	relocations := []objimage.Relocation{{Offset: wordOffset, Symbol: uint32(symIdx), Kind: kind}}
	return words, relocations, nil
}

func emitString(path string, instr *Instruction, symbols []objimage.Symbol, symIndex map[string]int) ([]isa.Word, []objimage.Relocation, error) {
	if len(instr.Operands) != 2 {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	dest, ok := instr.Operands[0].(RegOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	ref, ok := instr.Operands[1].(LabelRefOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	// STRING's immediate is the rodata byte offset itself; it is
	// resolvable locally and needs no cooking or relocation.
	symIdx, ok := symIndex[ref.Name]
	if !ok {
		return nil, nil, semanticErr(path, instr.Line, instr.Column, ErrUnknownLabel)
	}
	w := isa.EncodeE(isa.STRING, false, isa.OperandsE{Out: dest.Access, Imm: symbols[symIdx].Value})
	return []isa.Word{w}, nil, nil
}

func emitFrame(path string, instr *Instruction) ([]isa.Word, []objimage.Relocation, error) {
	if len(instr.Operands) != 1 {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	imm, ok := instr.Operands[0].(ImmOperand)
	if !ok {
		return nil, nil, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	w := isa.EncodeE(isa.FRAME, false, isa.OperandsE{Out: isa.Void, Imm: imm.Value})
	return []isa.Word{w}, nil, nil
}

func encodeGeneric(path string, instr *Instruction, op isa.Opcode) (isa.Word, error) {
	ops := instr.Operands
	switch op.Format() {
	case isa.FormatN:
		return isa.EncodeN(op, false, isa.OperandsN{}), nil
	case isa.FormatS:
		reg, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		return isa.EncodeS(op, false, isa.OperandsS{Out: reg}), nil
	case isa.FormatD:
		out, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		in, err := regOperand(path, instr, ops, 1)
		if err != nil {
			return 0, err
		}
		return isa.EncodeD(op, false, isa.OperandsD{Out: out, In: in}), nil
	case isa.FormatT:
		out, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		lhs, err := regOperand(path, instr, ops, 1)
		if err != nil {
			return 0, err
		}
		rhs, err := regOperand(path, instr, ops, 2)
		if err != nil {
			return 0, err
		}
		return isa.EncodeT(op, false, isa.OperandsT{Out: out, Lhs: lhs, Rhs: rhs}), nil
	case isa.FormatE:
		out, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		imm, err := immOperand(path, instr, ops, 1)
		if err != nil {
			return 0, err
		}
		return isa.EncodeE(op, false, isa.OperandsE{Out: out, Imm: imm}), nil
	case isa.FormatR:
		out, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		in, err := regOperand(path, instr, ops, 1)
		if err != nil {
			return 0, err
		}
		imm, err := immOperand(path, instr, ops, 2)
		if err != nil {
			return 0, err
		}
		return isa.EncodeR(op, false, isa.OperandsR{Out: out, In: in, Immed: uint32(imm)}), nil
	case isa.FormatF:
		out, err := regOperand(path, instr, ops, 0)
		if err != nil {
			return 0, err
		}
		imm, err := immOperand(path, instr, ops, 1)
		if err != nil {
			return 0, err
		}
		return isa.EncodeF(op, false, isa.OperandsF{Out: out, Imm: uint32(imm)}), nil
	}
	return 0, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
}

func regOperand(path string, instr *Instruction, ops []Operand, i int) (isa.RegisterAccess, error) {
	if i >= len(ops) {
		return isa.RegisterAccess{}, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	reg, ok := ops[i].(RegOperand)
	if !ok {
		return isa.RegisterAccess{}, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	return reg.Access, nil
}

func immOperand(path string, instr *Instruction, ops []Operand, i int) (uint64, error) {
	if i >= len(ops) {
		return 0, syntaxErr(path, tokAt(instr), ErrMissingOperand)
	}
	imm, ok := ops[i].(ImmOperand)
	if !ok {
		return 0, syntaxErr(path, tokAt(instr), ErrInvalidOperand)
	}
	return imm.Value, nil
}

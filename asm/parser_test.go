// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/rvm/isa"
)

func TestParseFunctionWithAttrs(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	prog, err := Parse("test.asm", `
.function main [[entry_point, export]]
	li $1, 42
	ebreak
	halt
.endfunction
`)
	require.NoError(err)
	require.Len(prog.Functions, 1)

	fn := prog.Functions[0]
	assert.Equal("main", fn.Name)
	assert.ElementsMatch([]string{"entry_point", "export"}, fn.Attrs)
	require.Len(fn.Instrs, 3)
	assert.Equal("li", fn.Instrs[0].Mnemonic)
	assert.Equal("ebreak", fn.Instrs[1].Mnemonic)
	assert.Equal("halt", fn.Instrs[2].Mnemonic)
}

func TestParseInstructionOperands(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	prog, err := Parse("test.asm", `
.function f
	add $1, $2, void
.endfunction
`)
	require.NoError(err)
	require.Len(prog.Functions, 1)
	instr := prog.Functions[0].Instrs[0]
	require.Len(instr.Operands, 3)

	out, ok := instr.Operands[0].(RegOperand)
	require.True(ok)
	assert.Equal(uint8(1), out.Access.Index)

	lhs, ok := instr.Operands[1].(RegOperand)
	require.True(ok)
	assert.Equal(uint8(2), lhs.Access.Index)

	rhs, ok := instr.Operands[2].(RegOperand)
	require.True(ok)
	assert.True(rhs.Access.Void)
}

func TestParseIndirectAndParameterRegisters(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	prog, err := Parse("test.asm", `
.function f
	delete *$3
	return @1
.endfunction
`)
	require.NoError(err)
	instrs := prog.Functions[0].Instrs
	require.Len(instrs, 2)

	del, ok := instrs[0].Operands[0].(RegOperand)
	require.True(ok)
	assert.True(del.Access.Indirect)
	assert.Equal(uint8(3), del.Access.Index)

	ret, ok := instrs[1].Operands[0].(RegOperand)
	require.True(ok)
	assert.Equal(isa.SetParameters, ret.Access.Set)
	assert.Equal(uint8(1), ret.Access.Index)
}

func TestParseStringLabel(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	prog, err := Parse("test.asm", `
.label greeting string
	"hi\n" * 2
`)
	require.NoError(err)
	require.Len(prog.Labels, 1)
	lbl := prog.Labels[0]
	assert.Equal("greeting", lbl.Name)
	assert.Equal("string", lbl.Type)
	assert.Equal("hi\n", lbl.Value)
	assert.Equal(2, lbl.Repeat)
}

func TestParseAtomLabel(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	prog, err := Parse("test.asm", `
.label kind atom
	#error
`)
	require.NoError(err)
	require.Len(prog.Labels, 1)
	assert.Equal("error", prog.Labels[0].Value)
}

func TestParseUnterminatedFunctionFails(t *testing.T) {
	_, err := Parse("test.asm", `
.function f
	halt
`)
	require.Error(t, err)
}

func TestParseUnknownMnemonicFails(t *testing.T) {
	_, err := Parse("test.asm", `
.function f
	bogusop $1
.endfunction
`)
	require.Error(t, err)
}

func TestParseEmptySourceFails(t *testing.T) {
	_, err := Parse("test.asm", "   ")
	require.Error(t, err)
	diag, ok := err.(Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindIO, diag.Kind)
}

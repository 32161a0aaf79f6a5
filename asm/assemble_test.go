// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/rvm/objimage"
)

func TestAssembleSimpleFunction(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	src := `
.function main [[entry_point]]
	li $1, 42
	ebreak
	halt
.endfunction
`
	result, err := Assemble("main.asm", src)
	require.NoError(err)
	assert.Equal("main", result.Input.EntrySymbol)

	buf := &bytes.Buffer{}
	require.NoError(objimage.Write(buf, result.Input))

	img, err := objimage.Load(buf.Bytes())
	require.NoError(err)

	entry, ok := img.EntryPoint()
	require.True(ok)
	assert.EqualValues(8, entry) // right after the leading HALT word
}

func TestAssembleStringRepetition(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	src := `
.label msg string
	"ab" * 3

.function main [[entry_point]]
	string $1, msg
	halt
.endfunction
`
	result, err := Assemble("strings.asm", src)
	require.NoError(err)
	assert.Equal([]byte("ababab"), result.Input.Rodata)

	var msgSym *objimage.Symbol
	for i := range result.Input.Symbols {
		if result.Input.Symbols[i].Name == "msg" {
			msgSym = &result.Input.Symbols[i]
		}
	}
	require.NotNil(msgSym)
	assert.EqualValues(6, msgSym.Size)
}

func TestAssembleDuplicateEntryPoint(t *testing.T) {
	require := require.New(t)

	src := `
.function first [[entry_point]]
	halt
.endfunction

.function second [[entry_point]]
	halt
.endfunction
`
	_, err := Assemble("dup.asm", src)
	require.Error(err)
	assert.Equal(t, KindSemantic, err.(Diagnostic).Kind)
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	require := require.New(t)

	src := `
.function main
	frobnicate $1
.endfunction
`
	_, err := Assemble("bad.asm", src)
	require.Error(err)
}

func TestAssembleCallRelocation(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	src := `
.function helper
	halt
.endfunction

.function main [[entry_point]]
	call $1, helper
	halt
.endfunction
`
	result, err := Assemble("call.asm", src)
	require.NoError(err)
	require.Len(result.Input.Relocations, 1)
	assert.Equal(objimage.RelocJumpSlot, result.Input.Relocations[0].Kind)
}

func TestAssembleExternFunctionStaysUndefined(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	src := `
.function foo [[extern]]
.endfunction

.function main [[entry_point]]
	call $1, foo
	halt
.endfunction
`
	result, err := Assemble("extern.asm", src)
	require.NoError(err)

	var fooSym *objimage.Symbol
	for i := range result.Input.Symbols {
		if result.Input.Symbols[i].Name == "foo" {
			fooSym = &result.Input.Symbols[i]
		}
	}
	require.NotNil(fooSym)
	assert.True(fooSym.Undefined)
	assert.Equal(objimage.BindGlobal, fooSym.Binding)
	assert.EqualValues(0, fooSym.Value)
	assert.EqualValues(0, fooSym.Size)

	buf := &bytes.Buffer{}
	require.NoError(objimage.Write(buf, result.Input))

	img, err := objimage.Load(buf.Bytes())
	require.NoError(err)

	var loadedFoo *objimage.Symbol
	for i := range img.Symbols {
		if img.Symbols[i].Name == "foo" {
			loadedFoo = &img.Symbols[i]
		}
	}
	require.NotNil(loadedFoo)
	assert.EqualValues(0, loadedFoo.Section, "extern symbol must not be patched to .text")
}

func TestAssembleEmptySource(t *testing.T) {
	_, err := Assemble("empty.asm", "   \n  ")
	require.Error(t, err)
}

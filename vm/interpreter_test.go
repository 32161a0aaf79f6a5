// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/rvm/asm"
	"github.com/ezrec/rvm/isa"
	"github.com/ezrec/rvm/objimage"
)

func assembleAndLoad(t *testing.T, src string) *Program {
	t.Helper()
	result, err := asm.Assemble(t.Name()+".asm", src)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, objimage.Write(buf, result.Input))

	prog, err := Load(buf.Bytes())
	require.NoError(t, err)
	return prog
}

func TestInterpreterLoadImmediateRoundTrip(t *testing.T) {
	prog := assembleAndLoad(t, `
.function main [[entry_point]]
	li $1, 42
	ebreak
	halt
.endfunction
`)

	it := New(prog, nil)
	require.NoError(t, it.Run(context.Background()))

	frame := it.Frame()
	require.NotNil(t, frame)
	got := frame.Get(isa.RegisterAccess{Index: 1})
	assert.Equal(t, TagSigned, got.Tag)
	assert.EqualValues(t, 42, got.Uint64())
}

func TestInterpreterLoadImmediateMultiWord(t *testing.T) {
	// A value with a nonzero 36-bit high part (16) and a small low part
	// (123) exercises the multi-word li expansion (LUI, ADDI into a
	// scratch register, ADD), not just the single-word fast path.
	prog := assembleAndLoad(t, `
.function main [[entry_point]]
	li $1, 4294967296123
	halt
.endfunction
`)

	it := New(prog, nil)
	require.NoError(t, it.Run(context.Background()))

	got := it.Frame().Get(isa.RegisterAccess{Index: 1})
	assert.EqualValues(t, 4294967296123, got.Uint64())
}

func TestInterpreterLoadImmediateUnsignedBeyondInt64(t *testing.T) {
	// A literal larger than math.MaxInt64 only fits the unsigned li
	// overload and must decode holding the full 64-bit value unsigned.
	prog := assembleAndLoad(t, `
.function main [[entry_point]]
	li $1, 0xdeadbeefdeadbeef
	delete $2
	delete $3
	ebreak
	halt
.endfunction
`)

	it := New(prog, nil)
	require.NoError(t, it.Run(context.Background()))

	frame := it.Frame()
	got := frame.Get(isa.RegisterAccess{Index: 1})
	assert.Equal(t, TagUnsigned, got.Tag)
	assert.EqualValues(t, uint64(0xdeadbeefdeadbeef), got.Uint64())
	assert.Equal(t, TagVoid, frame.Get(isa.RegisterAccess{Index: 2}).Tag)
	assert.Equal(t, TagVoid, frame.Get(isa.RegisterAccess{Index: 3}).Tag)
}

func TestInterpreterCallReturn(t *testing.T) {
	prog := assembleAndLoad(t, `
.function helper
	li $1, 7
	return $1
.endfunction

.function main [[entry_point]]
	call $2, helper
	halt
.endfunction
`)

	it := New(prog, nil)
	require.NoError(t, it.Run(context.Background()))

	got := it.Frame().Get(isa.RegisterAccess{Index: 2})
	assert.EqualValues(t, 7, got.Uint64())
}

func TestInterpreterDivideByZeroTraps(t *testing.T) {
	prog := assembleAndLoad(t, `
.function main [[entry_point]]
	li $1, 1
	li $2, 0
	div $3, $1, $2
	halt
.endfunction
`)

	it := New(prog, nil)
	err := it.Run(context.Background())
	require.Error(t, err)

	trap, ok := err.(ErrTrap)
	require.True(t, ok)
	assert.ErrorIs(t, trap.Err, ErrDivideByZero)
}

func TestInterpreterGreedyBundleNotPreempted(t *testing.T) {
	prog := &Program{
		Text: []isa.Word{
			isa.EncodeN(isa.NOOP, true, isa.OperandsN{}),
			isa.EncodeN(isa.NOOP, true, isa.OperandsN{}),
			isa.EncodeN(isa.NOOP, true, isa.OperandsN{}),
			isa.EncodeN(isa.NOOP, false, isa.OperandsN{}),
			isa.EncodeN(isa.HALT, false, isa.OperandsN{}),
		},
	}

	it := New(prog, nil)
	var preempts []uint64
	it.OnPreempt = func(ip uint64) { preempts = append(preempts, ip) }

	require.NoError(t, it.Run(context.Background()))
	require.Len(t, preempts, 1)
	assert.EqualValues(t, 3, preempts[0])
}

func TestLoadRejectsUnresolvedImage(t *testing.T) {
	result, err := asm.Assemble(t.Name()+".asm", `
.function main
	halt
.endfunction
`)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, objimage.Write(buf, result.Input))

	_, err = Load(buf.Bytes())
	assert.ErrorIs(t, err, ErrUnresolved)
}

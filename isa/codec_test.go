package isa

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randomAccess(r *rand.Rand) RegisterAccess {
	if r.Intn(8) == 0 {
		return RegisterAccess{Void: true}
	}
	set := SetLocal
	if r.Intn(2) == 1 {
		set = SetParameters
	}
	return RegisterAccess{
		Set:      set,
		Indirect: r.Intn(2) == 1,
		Index:    uint8(r.Intn(256)),
	}
}

func TestRegisterAccessRoundTrip(t *testing.T) {
	assert := assert.New(t)

	r := rand.New(rand.NewSource(1))
	for range 10000 {
		want := randomAccess(r)
		got := DecodeRegisterAccess(EncodeRegisterAccess(want))
		assert.Equal(want, got)
	}
}

func TestFormatN(t *testing.T) {
	assert := assert.New(t)
	w := EncodeN(NOOP, false, OperandsN{})
	assert.Equal(NOOP, w.Opcode())
	assert.Equal(FormatN, w.Format())
	assert.False(w.Greedy())
	assert.Equal(OperandsN{}, DecodeN(w))
}

func TestFormatSRoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(2))
	for range 10000 {
		want := OperandsS{Out: randomAccess(r)}
		w := EncodeS(DELETE, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeS(w))
	}
}

func TestFormatDRoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(3))
	for range 10000 {
		want := OperandsD{Out: randomAccess(r), In: randomAccess(r)}
		w := EncodeD(CALL, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeD(w))
	}
}

func TestFormatTRoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(4))
	for range 10000 {
		want := OperandsT{Out: randomAccess(r), Lhs: randomAccess(r), Rhs: randomAccess(r)}
		w := EncodeT(ADD, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeT(w))
	}
}

func randomCompact(r *rand.Rand) RegisterAccess {
	if r.Intn(8) == 0 {
		return RegisterAccess{Void: true}
	}
	return RegisterAccess{Index: uint8(r.Intn(255))} // 0xff reserved for void
}

func TestFormatERoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(5))
	for range 10000 {
		want := OperandsE{Out: randomCompact(r), Imm: uint64(r.Int63()) & imm36Mask}
		w := EncodeE(LUI, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeE(w))
	}
}

func TestFormatRRoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(6))
	for range 10000 {
		want := OperandsR{Out: randomCompact(r), In: randomCompact(r), Immed: uint32(r.Int31()) & imm24Mask}
		w := EncodeR(ADDI, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeR(w))
	}
}

func TestFormatFRoundTrip(t *testing.T) {
	assert := assert.New(t)
	r := rand.New(rand.NewSource(7))
	for range 10000 {
		want := OperandsF{Out: randomCompact(r), Imm: uint32(r.Int63())}
		w := EncodeF(LHI, r.Intn(2) == 1, want)
		assert.Equal(want, DecodeF(w))
	}
}

func TestGreedyBitPreserved(t *testing.T) {
	assert := assert.New(t)

	w := EncodeN(NOOP, true, OperandsN{})
	assert.True(w.Greedy())
	assert.Equal(NOOP, w.Opcode())

	w2 := w.WithGreedy(false)
	assert.False(w2.Greedy())
	assert.Equal(NOOP, w2.Opcode())
}

func FuzzWordFormatSafety(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(0xffffffffffffffff))
	f.Fuzz(func(t *testing.T, raw uint64) {
		w := Word(raw)
		// None of these may panic, regardless of the raw bit pattern.
		_ = DecodeN(w)
		_ = DecodeS(w)
		_ = DecodeD(w)
		_ = DecodeT(w)
		_ = DecodeE(w)
		_ = DecodeR(w)
		_ = DecodeF(w)
		_ = w.Opcode()
		_ = w.Format()
		_ = w.Greedy()
	})
}

func TestOpcodeTableConsistency(t *testing.T) {
	assert := assert.New(t)

	for op := Opcode(0); op < opcodeCount; op++ {
		assert.True(op.Valid())
		mnemonic := op.Mnemonic()
		assert.NotEmpty(mnemonic)
		got, ok := LookupMnemonic(mnemonic)
		assert.True(ok)
		assert.Equal(op, got)
	}
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/rvm/isa"
)

func regLocal(index uint8) isa.RegisterAccess {
	return isa.RegisterAccess{Index: index}
}

func TestDecomposeLoadImmediate(t *testing.T) {
	assert := assert.New(t)

	values := []uint64{
		0, 1, 0x00bedead, 0xdeadbeef, 0xdeadbeefd0adbeef,
		0xffffffffffffffff,
	}
	for x := uint64(1); x <= 0xf; x++ {
		values = append(values, (uint64(0xdeadbeefd0adbeef)&^(uint64(0xf)<<28))|(x<<28))
	}

	for _, v := range values {
		high36, base, multiplier, remainder := decomposeLoadImmediate(v)
		var reconstructed uint64
		if multiplier == 0 {
			reconstructed = (high36 << 28) | uint64(base)
		} else {
			reconstructed = (high36 << 28) | uint64(base*multiplier+remainder)
		}
		assert.Equal(v, reconstructed, "value %#x", v)
	}
}

func TestExpandLoadImmediateFastPath(t *testing.T) {
	assert := assert.New(t)

	words := expandLoadImmediate(regLocal(1), 42, false)
	assert.Len(words, 1)
	assert.False(words[0].Greedy())
}

func TestExpandLoadImmediateGreedyBundle(t *testing.T) {
	assert := assert.New(t)

	words := expandLoadImmediate(regLocal(1), 0xdeadbeefdeadbeef, false)
	assert.Greater(len(words), 1)
	for i, w := range words {
		if i == len(words)-1 {
			assert.False(w.Greedy(), "final instruction must not be greedy")
		} else {
			assert.True(w.Greedy(), "instruction %d must be greedy", i)
		}
	}
}

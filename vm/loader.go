// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"github.com/ezrec/rvm/isa"
	"github.com/ezrec/rvm/objimage"
)

// Program is an object image mapped into the form the interpreter
// consumes directly: a decoded instruction stream indexed by word
// (not byte) offset, the rodata payload STRING/ATOM addresses index
// into, the symbol table CALL/ATOM carriers resolve against, and the
// entry word index.
type Program struct {
	Text    []isa.Word
	Rodata  []byte
	Symbols []objimage.Symbol
	Entry   uint64 // word index
}

// Load maps raw into a Program ready for direct execution. Per
// spec.md §4.7, the loader does not perform a separate relocation
// pass against a module set; an image with no entry point is
// rejected outright rather than half-loaded.
func Load(raw []byte) (*Program, error) {
	img, err := objimage.Load(raw)
	if err != nil {
		return nil, err
	}

	entryByteOffset, ok := img.EntryPoint()
	if !ok {
		return nil, ErrUnresolved
	}

	textBytes, ok := img.FindFragment(objimage.SectionNameText)
	if !ok || len(textBytes)%8 != 0 {
		return nil, ErrTextOutOfRange
	}

	text := make([]isa.Word, len(textBytes)/8)
	for i := range text {
		text[i] = isa.Word(le64(textBytes[i*8:]))
	}

	rodata, _ := img.FindFragment(objimage.SectionNameRodata)

	return &Program{
		Text:    text,
		Rodata:  rodata,
		Symbols: img.Symbols,
		Entry:   entryByteOffset / 8,
	}, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

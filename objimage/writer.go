// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package objimage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ezrec/rvm/translate"
)

// ErrWrite wraps a failure while writing an image; both "cannot open
// the output file" and "cannot write" are surfaced as fatal exit
// conditions by callers (spec.md §4.2).
type ErrWrite struct {
	Err error
}

func (e ErrWrite) Error() string {
	return translate.From("objimage: write: %v", e.Err)
}

func (e ErrWrite) Unwrap() error {
	return e.Err
}

// Input is everything the writer needs to lay out an image: the
// text and rodata payloads (rodata holding the bytes of STRING/ATOM
// value labels), the symbol table, an optional relocation table, the
// comment string, and an optional entry symbol name.
type Input struct {
	Text        []byte
	Rodata      []byte
	Symbols     []Symbol
	Relocations []Relocation
	Comment     string
	EntrySymbol string // empty if the image is relocatable
}

// Write serializes in into the standardized object container and
// writes it to w. Section headers' and segment headers' Offset fields
// are backpatched after layout is computed, as required by spec.md
// §4.2.
func Write(w io.Writer, in Input) (err error) {
	strtab := newStringTable()
	shstrtab := newStringTable()

	// Section index assignment, fixed order per spec.md §4.2.
	const (
		secNull = iota
		secInterp
		secRel // present only if len(in.Relocations) != 0
		secText
		secRodata
		secComment
		secSymtab
		secStrtab
		secShstrtab
	)

	haveRel := len(in.Relocations) != 0

	// Section-index remap: when there is no relocation table, every
	// section after it shifts down by one.
	secIndex := func(logical int) uint16 {
		if !haveRel && logical > secRel {
			return uint16(logical - 1)
		}
		return uint16(logical)
	}

	// Patch function/object symbols' section index immediately before
	// writing the symbol table, per spec.md §4.2's writer contract.
	symbols := make([]Symbol, len(in.Symbols))
	copy(symbols, in.Symbols)
	for i := range symbols {
		if symbols[i].Undefined {
			continue // extern declaration: no body, section stays undefined
		}
		switch symbols[i].Type {
		case SymFunction:
			symbols[i].Section = secIndex(secText)
		case SymObject:
			symbols[i].Section = secIndex(secRodata)
		}
	}

	// Build the symbol table and its string table.
	symtabBuf := &bytes.Buffer{}
	for _, sym := range symbols {
		nameOff := strtab.intern(sym.Name)
		writeSymbolEntry(symtabBuf, nameOff, sym)
	}

	relBuf := &bytes.Buffer{}
	for _, rel := range in.Relocations {
		writeRelocationEntry(relBuf, rel)
	}

	interpBytes := append([]byte(Interpreter), 0)
	commentBytes := append([]byte(in.Comment), 0)

	sectionNames := []string{SectionNameNull, SectionNameInterp}
	if haveRel {
		sectionNames = append(sectionNames, SectionNameRel)
	}
	sectionNames = append(sectionNames,
		SectionNameText, SectionNameRodata, SectionNameComment,
		SectionNameSymtab, SectionNameStrtab, SectionNameShstrtab)

	shNameOff := make(map[string]uint32, len(sectionNames))
	for _, name := range sectionNames {
		shNameOff[name] = shstrtab.intern(name)
	}

	// Compute the on-disk layout in the order laid out by spec.md §4.2:
	// file header; program-header array; section-header array;
	// interpreter string; optional relocation table; .text; .rodata;
	// comment string; symbol table; symbol string table; section-header
	// name string table.
	shCount := len(sectionNames)
	phCount := 2 // NULL, INTERP, plus one LOAD per non-empty loadable section
	if len(in.Text) != 0 {
		phCount++
	}
	if len(in.Rodata) != 0 {
		phCount++
	}

	offset := uint64(headerSize)
	phOffset := offset
	offset += uint64(phCount) * segmentHeaderSize
	shOffset := offset
	offset += uint64(shCount) * sectionHeaderSize

	interpOffset := offset
	offset += uint64(len(interpBytes))

	relOffset := uint64(0)
	if haveRel {
		relOffset = offset
		offset += uint64(relBuf.Len())
	}

	textOffset := offset
	offset += uint64(len(in.Text))

	rodataOffset := offset
	offset += uint64(len(in.Rodata))

	commentOffset := offset
	offset += uint64(len(commentBytes))

	symtabOffset := offset
	offset += uint64(symtabBuf.Len())

	strtabBytes := strtab.bytes()
	strtabOffset := offset
	offset += uint64(len(strtabBytes))

	shstrtabBytes := shstrtab.bytes()
	shstrtabOffset := offset
	offset += uint64(len(shstrtabBytes))

	// Segment headers, backpatched with the offsets just computed.
	segments := make([]SegmentHeader, 0, phCount)
	segments = append(segments, SegmentHeader{
		Type:   SegmentNull,
		Offset: le64(Magic), // magic mirrored into the NULL segment, per spec.md §3
	})
	segments = append(segments, SegmentHeader{
		Type:     SegmentInterp,
		Offset:   interpOffset,
		FileSize: uint64(len(interpBytes)),
		MemSize:  uint64(len(interpBytes)),
	})

	var entry uint64
	var imageType = TypeRelocatable
	firstExecOffset := uint64(0)
	haveFirstExec := false

	if len(in.Text) != 0 {
		segments = append(segments, SegmentHeader{
			Type:     SegmentLoad,
			Flags:    SegmentFlagRead | SegmentFlagExec,
			Offset:   textOffset,
			FileSize: uint64(len(in.Text)),
			MemSize:  uint64(len(in.Text)),
		})
		firstExecOffset = textOffset
		haveFirstExec = true
	}
	if len(in.Rodata) != 0 {
		segments = append(segments, SegmentHeader{
			Type:     SegmentLoad,
			Flags:    SegmentFlagRead,
			Offset:   rodataOffset,
			FileSize: uint64(len(in.Rodata)),
			MemSize:  uint64(len(in.Rodata)),
		})
	}

	if in.EntrySymbol != "" {
		var found bool
		for _, sym := range symbols {
			if sym.Name == in.EntrySymbol && sym.Type == SymFunction {
				if !haveFirstExec {
					return ErrWrite{Err: translate.ErrPlain("objimage: entry symbol without a .text segment")}
				}
				entry = firstExecOffset + sym.Value
				imageType = TypeExecutable
				found = true
				break
			}
		}
		if !found {
			return ErrWrite{Err: translate.ErrPlain("objimage: entry symbol %q not found", in.EntrySymbol)}
		}
	}

	// Section headers.
	sections := make([]SectionHeader, 0, shCount)
	sections = append(sections, SectionHeader{NameOffset: shNameOff[SectionNameNull], Type: SectionNull})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameInterp], Type: SectionProgbits,
		Offset: interpOffset, Size: uint64(len(interpBytes)),
	})
	if haveRel {
		sections = append(sections, SectionHeader{
			NameOffset: shNameOff[SectionNameRel], Type: SectionRel,
			Offset: relOffset, Size: uint64(relBuf.Len()), Link: uint32(secIndex(secSymtab)),
		})
	}
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameText], Type: SectionProgbits,
		Offset: textOffset, Size: uint64(len(in.Text)),
	})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameRodata], Type: SectionProgbits,
		Offset: rodataOffset, Size: uint64(len(in.Rodata)),
	})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameComment], Type: SectionProgbits,
		Offset: commentOffset, Size: uint64(len(commentBytes)),
	})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameSymtab], Type: SectionSymtab,
		Offset: symtabOffset, Size: uint64(symtabBuf.Len()), Link: uint32(secIndex(secStrtab)),
	})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameStrtab], Type: SectionStrtab,
		Offset: strtabOffset, Size: uint64(len(strtabBytes)),
	})
	sections = append(sections, SectionHeader{
		NameOffset: shNameOff[SectionNameShstrtab], Type: SectionStrtab,
		Offset: shstrtabOffset, Size: uint64(len(shstrtabBytes)),
	})

	header := Header{
		Magic:    Magic,
		Class:    Class64,
		Endian:   EndianLittle,
		Version:  1,
		OSABI:    OSABIStandalone,
		Type:     imageType,
		Entry:    entry,
		PhOffset: phOffset,
		ShOffset: shOffset,
		PhCount:  uint16(len(segments)),
		ShCount:  uint16(len(sections)),
		ShStrndx: secIndex(secShstrtab),
	}

	buf := &bytes.Buffer{}
	writeHeader(buf, header)
	for _, seg := range segments {
		writeSegmentHeader(buf, seg)
	}
	for _, sec := range sections {
		writeSectionHeader(buf, sec)
	}
	buf.Write(interpBytes)
	if haveRel {
		buf.Write(relBuf.Bytes())
	}
	buf.Write(in.Text)
	buf.Write(in.Rodata)
	buf.Write(commentBytes)
	buf.Write(symtabBuf.Bytes())
	buf.Write(strtabBytes)
	buf.Write(shstrtabBytes)

	if _, err = w.Write(buf.Bytes()); err != nil {
		return ErrWrite{Err: err}
	}

	return nil
}

// le64 reads the first 8 bytes of b as a little-endian uint64. Used to
// mirror the magic marker into the NULL segment header's Offset field.
func le64(b [8]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

func writeHeader(buf *bytes.Buffer, h Header) {
	buf.Write(h.Magic[:])
	buf.WriteByte(h.Class)
	buf.WriteByte(h.Endian)
	buf.WriteByte(h.Version)
	buf.WriteByte(h.OSABI)
	binary.Write(buf, binary.LittleEndian, uint16(h.Type))
	binary.Write(buf, binary.LittleEndian, uint16(0)) // reserved, keeps the header 8-byte aligned
	binary.Write(buf, binary.LittleEndian, h.Entry)
	binary.Write(buf, binary.LittleEndian, h.PhOffset)
	binary.Write(buf, binary.LittleEndian, h.ShOffset)
	binary.Write(buf, binary.LittleEndian, h.PhCount)
	binary.Write(buf, binary.LittleEndian, h.ShCount)
	binary.Write(buf, binary.LittleEndian, h.ShStrndx)
}

func writeSegmentHeader(buf *bytes.Buffer, s SegmentHeader) {
	binary.Write(buf, binary.LittleEndian, uint32(s.Type))
	binary.Write(buf, binary.LittleEndian, s.Flags)
	binary.Write(buf, binary.LittleEndian, s.Offset)
	binary.Write(buf, binary.LittleEndian, s.FileSize)
	binary.Write(buf, binary.LittleEndian, s.MemSize)
}

func writeSectionHeader(buf *bytes.Buffer, s SectionHeader) {
	binary.Write(buf, binary.LittleEndian, s.NameOffset)
	binary.Write(buf, binary.LittleEndian, uint32(s.Type))
	binary.Write(buf, binary.LittleEndian, s.Offset)
	binary.Write(buf, binary.LittleEndian, s.Size)
	binary.Write(buf, binary.LittleEndian, s.Link)
}

func writeSymbolEntry(buf *bytes.Buffer, nameOff uint32, sym Symbol) {
	binary.Write(buf, binary.LittleEndian, nameOff)
	buf.WriteByte(byte(sym.Binding)<<4 | byte(sym.Type)&0xf)
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, sym.Section)
	binary.Write(buf, binary.LittleEndian, sym.Value)
	binary.Write(buf, binary.LittleEndian, sym.Size)
}

func writeRelocationEntry(buf *bytes.Buffer, rel Relocation) {
	binary.Write(buf, binary.LittleEndian, rel.Offset)
	binary.Write(buf, binary.LittleEndian, rel.Symbol)
	binary.Write(buf, binary.LittleEndian, uint32(rel.Kind))
}

// stringTable accumulates a string pool whose first byte is always
// zero, per spec.md §3's invariant "the first byte of every string
// table is zero" (the reserved empty name at offset 0).
type stringTable struct {
	buf  bytes.Buffer
	seen map[string]uint32
}

func newStringTable() *stringTable {
	st := &stringTable{seen: map[string]uint32{}}
	st.buf.WriteByte(0)
	st.seen[""] = 0
	return st
}

func (st *stringTable) intern(s string) uint32 {
	if off, ok := st.seen[s]; ok {
		return off
	}
	off := uint32(st.buf.Len())
	st.buf.WriteString(s)
	st.buf.WriteByte(0)
	st.seen[s] = off
	return off
}

func (st *stringTable) bytes() []byte {
	return st.buf.Bytes()
}

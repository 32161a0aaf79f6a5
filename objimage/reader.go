// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package objimage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ezrec/rvm/translate"
)

// ErrRead is returned when a byte slice cannot be parsed as an image:
// bad magic, truncated regions, or an offset that runs past the end of
// the file.
type ErrRead struct {
	Err error
}

func (e ErrRead) Error() string {
	return translate.From("objimage: read: %v", e.Err)
}

func (e ErrRead) Unwrap() error {
	return e.Err
}

// Fragment is one named, offset-addressed region of the data area:
// .text, .rodata, .comment, or the interpreter string.
type Fragment struct {
	Name   string
	Offset uint64
	Size   uint64
}

// Function describes one function-typed symbol resolved against .text.
type Function struct {
	Name  string
	Value uint64 // byte offset within .text
	Size  uint64
}

// Image is the parsed, queryable form of an object container.
type Image struct {
	Header      Header
	Segments    []SegmentHeader
	Sections    []SectionHeader
	Symbols     []Symbol
	Relocations []Relocation

	fragments map[string]Fragment
	raw       []byte
}

// Load parses raw as an object container.
func Load(raw []byte) (*Image, error) {
	if len(raw) < headerSize {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: truncated header")}
	}

	var magic [8]byte
	copy(magic[:], raw[:8])
	if magic != Magic {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: bad magic")}
	}

	h := Header{
		Magic:  magic,
		Class:  raw[8],
		Endian: raw[9],
		Version: raw[10],
		OSABI:   raw[11],
	}
	h.Type = ImageType(binary.LittleEndian.Uint16(raw[12:14]))
	// raw[14:16] reserved
	h.Entry = binary.LittleEndian.Uint64(raw[16:24])
	h.PhOffset = binary.LittleEndian.Uint64(raw[24:32])
	h.ShOffset = binary.LittleEndian.Uint64(raw[32:40])
	h.PhCount = binary.LittleEndian.Uint16(raw[40:42])
	h.ShCount = binary.LittleEndian.Uint16(raw[42:44])
	h.ShStrndx = binary.LittleEndian.Uint16(raw[44:46])

	if h.Class != Class64 || h.Endian != EndianLittle {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: unsupported class/endian")}
	}

	segments, err := readSegments(raw, h)
	if err != nil {
		return nil, err
	}
	sections, err := readSections(raw, h)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Header:    h,
		Segments:  segments,
		Sections:  sections,
		raw:       raw,
		fragments: map[string]Fragment{},
	}

	if int(h.ShStrndx) >= len(sections) {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: shstrndx out of range")}
	}
	shstrtab := sections[h.ShStrndx]
	shstrBytes, err := sliceAt(raw, shstrtab.Offset, shstrtab.Size)
	if err != nil {
		return nil, err
	}

	var symtabSection, strtabSection, relSection *SectionHeader
	for i := range sections {
		sec := &sections[i]
		name, err := cstringAt(shstrBytes, sec.NameOffset)
		if err != nil {
			return nil, err
		}
		switch sec.Type {
		case SectionSymtab:
			symtabSection = sec
		case SectionStrtab:
			if name != SectionNameShstrtab {
				strtabSection = sec
			}
		case SectionRel:
			relSection = sec
		}
		if sec.Type == SectionProgbits || sec.Type == SectionNull {
			img.fragments[name] = Fragment{Name: name, Offset: sec.Offset, Size: sec.Size}
		}
	}

	if symtabSection != nil && strtabSection != nil {
		strBytes, err := sliceAt(raw, strtabSection.Offset, strtabSection.Size)
		if err != nil {
			return nil, err
		}
		symtabBytes, err := sliceAt(raw, symtabSection.Offset, symtabSection.Size)
		if err != nil {
			return nil, err
		}
		symbols, err := readSymbols(symtabBytes, strBytes)
		if err != nil {
			return nil, err
		}
		img.Symbols = symbols
	}

	if relSection != nil {
		relBytes, err := sliceAt(raw, relSection.Offset, relSection.Size)
		if err != nil {
			return nil, err
		}
		img.Relocations, err = readRelocations(relBytes)
		if err != nil {
			return nil, err
		}
	}

	return img, nil
}

func readSegments(raw []byte, h Header) ([]SegmentHeader, error) {
	segments := make([]SegmentHeader, 0, h.PhCount)
	for i := uint16(0); i < h.PhCount; i++ {
		off := h.PhOffset + uint64(i)*segmentHeaderSize
		buf, err := sliceAt(raw, off, segmentHeaderSize)
		if err != nil {
			return nil, err
		}
		segments = append(segments, SegmentHeader{
			Type:     SegmentType(binary.LittleEndian.Uint32(buf[0:4])),
			Flags:    binary.LittleEndian.Uint32(buf[4:8]),
			Offset:   binary.LittleEndian.Uint64(buf[8:16]),
			FileSize: binary.LittleEndian.Uint64(buf[16:24]),
			MemSize:  binary.LittleEndian.Uint64(buf[24:32]),
		})
	}
	return segments, nil
}

func readSections(raw []byte, h Header) ([]SectionHeader, error) {
	sections := make([]SectionHeader, 0, h.ShCount)
	for i := uint16(0); i < h.ShCount; i++ {
		off := h.ShOffset + uint64(i)*sectionHeaderSize
		buf, err := sliceAt(raw, off, sectionHeaderSize)
		if err != nil {
			return nil, err
		}
		sections = append(sections, SectionHeader{
			NameOffset: binary.LittleEndian.Uint32(buf[0:4]),
			Type:       SectionType(binary.LittleEndian.Uint32(buf[4:8])),
			Offset:     binary.LittleEndian.Uint64(buf[8:16]),
			Size:       binary.LittleEndian.Uint64(buf[16:24]),
			Link:       binary.LittleEndian.Uint32(buf[24:28]),
		})
	}
	return sections, nil
}

func readSymbols(symtab, strtab []byte) ([]Symbol, error) {
	if len(symtab)%symbolEntrySize != 0 {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: malformed symbol table")}
	}
	count := len(symtab) / symbolEntrySize
	symbols := make([]Symbol, 0, count)
	for i := 0; i < count; i++ {
		e := symtab[i*symbolEntrySize:]
		nameOff := binary.LittleEndian.Uint32(e[0:4])
		info := e[4]
		section := binary.LittleEndian.Uint16(e[6:8])
		value := binary.LittleEndian.Uint64(e[8:16])
		size := binary.LittleEndian.Uint64(e[16:24])
		name, err := cstringAt(strtab, nameOff)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, Symbol{
			Name:    name,
			Binding: SymbolBinding(info >> 4),
			Type:    SymbolType(info & 0xf),
			Section: section,
			Value:   value,
			Size:    size,
		})
	}
	return symbols, nil
}

func readRelocations(relBytes []byte) ([]Relocation, error) {
	if len(relBytes)%relocationEntrySize != 0 {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: malformed relocation table")}
	}
	count := len(relBytes) / relocationEntrySize
	relocations := make([]Relocation, 0, count)
	for i := 0; i < count; i++ {
		e := relBytes[i*relocationEntrySize:]
		relocations = append(relocations, Relocation{
			Offset: binary.LittleEndian.Uint64(e[0:8]),
			Symbol: binary.LittleEndian.Uint32(e[8:12]),
			Kind:   RelocationKind(binary.LittleEndian.Uint32(e[12:16])),
		})
	}
	return relocations, nil
}

func sliceAt(raw []byte, offset, size uint64) ([]byte, error) {
	if offset > uint64(len(raw)) || size > uint64(len(raw))-offset {
		return nil, ErrRead{Err: translate.ErrPlain("objimage: region out of bounds")}
	}
	return raw[offset : offset+size], nil
}

func cstringAt(pool []byte, offset uint32) (string, error) {
	if uint64(offset) >= uint64(len(pool)) {
		return "", ErrRead{Err: translate.ErrPlain("objimage: string offset out of bounds")}
	}
	end := bytes.IndexByte(pool[offset:], 0)
	if end < 0 {
		return "", ErrRead{Err: translate.ErrPlain("objimage: unterminated string")}
	}
	return string(pool[offset : uint64(offset)+uint64(end)]), nil
}

// FindFragment resolves a named data-region fragment (".text", ".rodata",
// ".comment", ".interp") to its byte range within the original input.
func (img *Image) FindFragment(name string) ([]byte, bool) {
	f, ok := img.fragments[name]
	if !ok {
		return nil, false
	}
	b, err := sliceAt(img.raw, f.Offset, f.Size)
	if err != nil {
		return nil, false
	}
	return b, true
}

// EntryPoint returns the image's entry offset within .text, and whether
// the image is executable at all (a relocatable image has none).
func (img *Image) EntryPoint() (uint64, bool) {
	if img.Header.Type != TypeExecutable {
		return 0, false
	}
	text, ok := img.fragments[SectionNameText]
	if !ok || img.Header.Entry < text.Offset {
		return 0, false
	}
	return img.Header.Entry - text.Offset, true
}

// FunctionTable returns every function-typed symbol, keyed by its byte
// offset within .text.
func (img *Image) FunctionTable() map[uint64]Function {
	table := map[uint64]Function{}
	for _, sym := range img.Symbols {
		if sym.Type != SymFunction {
			continue
		}
		table[sym.Value] = Function{Name: sym.Name, Value: sym.Value, Size: sym.Size}
	}
	return table
}

// String implements fmt.Stringer for diagnostics.
func (f Fragment) String() string {
	return fmt.Sprintf("%s@%#x+%#x", f.Name, f.Offset, f.Size)
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package objimage reads and writes the standardized on-disk object
// container: a file header, an ordered section-header array, zero or
// more loadable segment headers, and a data region holding the
// interpreter-name string, an optional relocation table, .text,
// .rodata, a comment string, the symbol table, and the two string
// tables (symbol names, section names).
//
// This is deliberately not a general-purpose ELF implementation: the
// layout is fixed to the fragments listed above, in that order, and
// nothing else is supported.
package objimage

// Magic is the 8-byte marker required at offset 0 of every image, and
// mirrored into the NULL segment header's Offset field for external
// file-type recognizers.
var Magic = [8]byte{0x7f, 'V', 'I', 'U', 'A', 0x00, 0x00, 0x00}

// Interpreter is the fixed interpreter-name string recorded in the
// INTERP segment and referenced by the .comment-adjacent interpreter
// string fragment.
const Interpreter = "rvm"

// Class values (file bitness). Only 64-bit images are produced or
// accepted.
const (
	Class64 = uint8(2)
)

// Endian values. Only little-endian images are produced or accepted.
const (
	EndianLittle = uint8(1)
)

// OSABI identifies the ABI family. "Standalone" per spec.md §6.
const (
	OSABIStandalone = uint8(0)
)

// ImageType distinguishes a linked, directly-executable image from a
// relocatable one lacking an entry point.
type ImageType uint16

const (
	TypeRelocatable = ImageType(0)
	TypeExecutable  = ImageType(1)
)

// SegmentType is the type tag of a program (segment) header.
type SegmentType uint32

const (
	SegmentNull   = SegmentType(0)
	SegmentInterp = SegmentType(1)
	SegmentLoad   = SegmentType(2)
)

// Segment permission flags, combinable with |.
const (
	SegmentFlagExec  = uint32(1 << 0)
	SegmentFlagWrite = uint32(1 << 1)
	SegmentFlagRead  = uint32(1 << 2)
)

// SectionType is the type tag of a section header.
type SectionType uint32

const (
	SectionNull     = SectionType(0)
	SectionProgbits = SectionType(1) // .text, .rodata, .comment, interpreter string
	SectionSymtab   = SectionType(2)
	SectionStrtab   = SectionType(3)
	SectionRel      = SectionType(4)
)

// Fixed section names, in the on-disk layout order described by
// spec.md §4.2.
const (
	SectionNameNull     = ""
	SectionNameInterp   = ".interp"
	SectionNameRel      = ".rel.text"
	SectionNameText     = ".text"
	SectionNameRodata   = ".rodata"
	SectionNameComment  = ".comment"
	SectionNameSymtab   = ".symtab"
	SectionNameStrtab   = ".strtab"
	SectionNameShstrtab = ".shstrtab"
)

// SymbolBinding is the linkage visibility of a symbol.
type SymbolBinding uint8

const (
	BindLocal  = SymbolBinding(0)
	BindGlobal = SymbolBinding(1)
)

// SymbolType classifies what a symbol's Value refers to.
type SymbolType uint8

const (
	SymNoType   = SymbolType(0)
	SymObject   = SymbolType(1)
	SymFunction = SymbolType(2)
	SymFile     = SymbolType(3)
)

// Symbol is the in-memory form of a symbol-table entry. Name is
// resolved through the string table at (de)serialization time; callers
// of the package work with the resolved string directly.
type Symbol struct {
	Name    string
	Binding SymbolBinding
	Type    SymbolType
	Section uint16 // section index this symbol's Value is relative to
	Value   uint64 // byte offset within its section
	Size    uint64

	// Undefined marks an external declaration with no body in this
	// module (an extern function). Value and Size are meaningless for
	// such a symbol, and the writer leaves Section at the null/undefined
	// section index rather than patching it to .text.
	Undefined bool
}

// RelocationKind is the kind of fixup a Relocation describes.
type RelocationKind uint32

const (
	RelocJumpSlot = RelocationKind(0) // CALL target
	RelocObject   = RelocationKind(1) // ATOM/literal address target
)

// Relocation is a single fixup against the two cooked F-format words
// that precede a CALL or ATOM instruction.
type Relocation struct {
	Offset uint64 // byte offset within .text of the first cooked F-word
	Symbol uint32 // index into the symbol table
	Kind   RelocationKind
}

// Header is the fixed-size file header at offset 0.
type Header struct {
	Magic    [8]byte
	Class    uint8
	Endian   uint8
	Version  uint8
	OSABI    uint8
	Type     ImageType
	Entry    uint64 // 0 if the image is relocatable
	PhOffset uint64 // program (segment) header array offset
	ShOffset uint64 // section header array offset
	PhCount  uint16
	ShCount  uint16
	ShStrndx uint16 // section index of the section-header name string table
}

// headerSize is the on-disk byte size of Header, used for layout math.
const headerSize = 8 + 4 + 2 + 8 + 8 + 8 + 2 + 2 + 2 + 2 // padded, see writer.go marshal

// SegmentHeader describes one loadable (or informational) segment.
type SegmentHeader struct {
	Type     SegmentType
	Flags    uint32
	Offset   uint64
	FileSize uint64
	MemSize  uint64
}

const segmentHeaderSize = 4 + 4 + 8 + 8 + 8

// SectionHeader describes one named fragment of the data region.
type SectionHeader struct {
	NameOffset uint32
	Type       SectionType
	Offset     uint64
	Size       uint64
	Link       uint32 // e.g. .symtab -> .strtab section index
}

const sectionHeaderSize = 4 + 4 + 8 + 8 + 4

const symbolEntrySize = 4 + 1 + 1 + 2 + 8 + 8 // name, info, reserved, section, value, size

const relocationEntrySize = 8 + 4 + 4 // offset, symbol, kind

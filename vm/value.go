// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package vm implements the register-based interpreter: the tagged
// register file, call-frame stack, stack-break allocator, object-image
// loader, and the fetch/decode/dispatch loop with cooperative
// preemption.
package vm

import (
	"fmt"
	"math"
)

// Tag classifies the payload stored in a register slot. The payload
// itself is always a raw 64-bit word; the tag tells later operations
// how to interpret it.
type Tag uint8

const (
	TagVoid Tag = iota
	TagByte
	TagSigned
	TagUnsigned
	TagFloat32
	TagFloat64
	TagBoxed
)

// String implements fmt.Stringer.
func (t Tag) String() string {
	switch t {
	case TagVoid:
		return "void"
	case TagByte:
		return "byte"
	case TagSigned:
		return "signed"
	case TagUnsigned:
		return "unsigned"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	case TagBoxed:
		return "boxed"
	}
	return "?"
}

// Boxed is the capability set a boxed register value must satisfy:
// released when its owning slot is deleted or overwritten. There is no
// capture or shared-ownership operation; every boxed value is owned by
// exactly one slot.
type Boxed interface {
	Release()
	String() string
}

// Value is one register slot: a type tag plus its 64-bit payload, or a
// reference to a Boxed value.
type Value struct {
	Tag     Tag
	Payload uint64
	Box     Boxed
}

// Void is the distinguished empty slot value.
var Void = Value{Tag: TagVoid}

// SignedValue tags v as a signed integer.
func SignedValue(v int64) Value { return Value{Tag: TagSigned, Payload: uint64(v)} }

// UnsignedValue tags v as an unsigned integer.
func UnsignedValue(v uint64) Value { return Value{Tag: TagUnsigned, Payload: v} }

// ByteValue tags v as a single byte.
func ByteValue(v uint8) Value { return Value{Tag: TagByte, Payload: uint64(v)} }

// Float32Value tags v as a 32-bit float.
func Float32Value(v float32) Value {
	return Value{Tag: TagFloat32, Payload: uint64(math.Float32bits(v))}
}

// Float64Value tags v as a 64-bit float.
func Float64Value(v float64) Value {
	return Value{Tag: TagFloat64, Payload: math.Float64bits(v)}
}

// BoxedValue wraps an owned handle.
func BoxedValue(b Boxed) Value { return Value{Tag: TagBoxed, Box: b} }

// IsVoid reports whether the slot holds nothing.
func (v Value) IsVoid() bool { return v.Tag == TagVoid }

// Int64 reinterprets the payload as a signed 64-bit integer, regardless
// of tag; callers that care about the tag check it first.
func (v Value) Int64() int64 { return int64(v.Payload) }

// Uint64 reinterprets the payload as an unsigned 64-bit integer.
func (v Value) Uint64() uint64 { return v.Payload }

// Float32 reinterprets the payload as a 32-bit float.
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.Payload)) }

// Float64 reinterprets the payload as a 64-bit float.
func (v Value) Float64() float64 { return math.Float64frombits(v.Payload) }

// String implements fmt.Stringer, used by the trace stream's register
// dump (EBREAK).
func (v Value) String() string {
	switch v.Tag {
	case TagVoid:
		return "void"
	case TagByte:
		return fmt.Sprintf("Byte(%d)", uint8(v.Payload))
	case TagSigned:
		return fmt.Sprintf("Signed(%d)", v.Int64())
	case TagUnsigned:
		return fmt.Sprintf("Unsigned(%d)", v.Payload)
	case TagFloat32:
		return fmt.Sprintf("Float32(%v)", v.Float32())
	case TagFloat64:
		return fmt.Sprintf("Float64(%v)", v.Float64())
	case TagBoxed:
		if v.Box == nil {
			return "Boxed(nil)"
		}
		return fmt.Sprintf("Boxed(%v)", v.Box)
	}
	return "?"
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"fmt"
	"iter"

	"github.com/ezrec/rvm/isa"
)

// RegisterCount is the fixed size of a per-frame register file, per
// spec.md §3.
const RegisterCount = 256

// RegisterFile is one ordered sequence of 256 tagged slots.
type RegisterFile [RegisterCount]Value

// NonVoid yields every non-Void slot in index order, labelled with
// prefix ("$" for locals, "@" for parameters) so a caller chaining
// several register files together can still tell them apart.
func (rf *RegisterFile) NonVoid(prefix string) iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for i, v := range rf {
			if v.Tag == TagVoid {
				continue
			}
			if !yield(fmt.Sprintf("%s%d", prefix, i), v) {
				return
			}
		}
	}
}

// Get reads a slot by raw index.
func (rf *RegisterFile) Get(idx uint8) Value {
	return rf[idx]
}

// Set writes a slot by raw index, releasing whatever boxed value it
// held first.
func (rf *RegisterFile) Set(idx uint8, v Value) {
	rf.Delete(idx)
	rf[idx] = v
}

// Delete resets a slot to Void, releasing an owned boxed handle first.
func (rf *RegisterFile) Delete(idx uint8) {
	if rf[idx].Tag == TagBoxed && rf[idx].Box != nil {
		rf[idx].Box.Release()
	}
	rf[idx] = Void
}

// Frame is one call frame: the local and parameter register files
// visible to the running function, the return address, the caller's
// result register, and the stack-break watermark at frame entry.
type Frame struct {
	Locals     RegisterFile
	Params     RegisterFile
	Return     uint64 // word index to resume the caller at
	ResultReg  isa.RegisterAccess
	StackBreak uint64

	// Staging holds the outgoing parameter file being assembled between
	// a FRAME and the CALL that consumes it; nil outside that window.
	// Reads of the parameters set always see Params (the function's own
	// incoming arguments) — only writes are redirected here, so a
	// function can stage an outgoing call without corrupting the
	// arguments it was itself invoked with.
	Staging *RegisterFile
}

// resolve returns a pointer to the slot ra addresses. An indirect
// access uses the addressed register's payload as the index of the
// slot actually being read or written.
func (f *Frame) resolve(ra isa.RegisterAccess) *Value {
	set := &f.Locals
	if ra.Set == isa.SetParameters {
		set = &f.Params
	}
	idx := ra.Index
	if ra.Indirect {
		idx = uint8(set[ra.Index].Uint64())
	}
	return &set[idx]
}

// Get reads the value a RegisterAccess addresses; Void reads as Void.
func (f *Frame) Get(ra isa.RegisterAccess) Value {
	if ra.Void {
		return Void
	}
	return *f.resolve(ra)
}

// Set writes the value a RegisterAccess addresses; a Void destination
// discards the write, matching the "/dev/null" role void plays as an
// operand elsewhere in the ISA.
func (f *Frame) Set(ra isa.RegisterAccess, v Value) {
	if ra.Void {
		return
	}
	set := &f.Locals
	if ra.Set == isa.SetParameters {
		if f.Staging != nil {
			set = f.Staging
		} else {
			set = &f.Params
		}
	}
	idx := ra.Index
	if ra.Indirect {
		idx = uint8(set[ra.Index].Uint64())
	}
	set.Set(idx, v)
}

// Delete resets the addressed slot to Void; a Void access is a no-op.
func (f *Frame) Delete(ra isa.RegisterAccess) {
	if ra.Void {
		return
	}
	set := &f.Locals
	if ra.Set == isa.SetParameters {
		set = &f.Params
	}
	idx := ra.Index
	if ra.Indirect {
		idx = uint8(set[ra.Index].Uint64())
	}
	set.Delete(idx)
}

// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ezrec/rvm/internal"
	"github.com/ezrec/rvm/isa"
)

// Trace is the textual instruction/register-dump log described by
// spec.md §6, adapted from the teacher's byte-buffered tape idiom
// (io/tape.go): writes are batched through a bufio.Writer rather than
// flushed a byte at a time, and a nil *Trace silently discards everything
// so callers need not guard every call site with a verbosity check.
type Trace struct {
	w *bufio.Writer
}

// NewTrace wraps w as a Trace destination.
func NewTrace(w io.Writer) *Trace {
	return &Trace{w: bufio.NewWriter(w)}
}

// Instruction logs one dispatched instruction.
func (t *Trace) Instruction(ip uint64, word isa.Word) {
	if t == nil {
		return
	}
	fmt.Fprintf(t.w, "%#08x: %v\n", ip*8, word.Opcode())
	t.w.Flush()
}

// Dump logs every non-void register in frame, locals followed by
// parameters, in index order. Used by EBREAK.
func (t *Trace) Dump(frame *Frame) {
	if t == nil {
		return
	}
	registers := internal.IterSeq2Concat(frame.Locals.NonVoid("$"), frame.Params.NonVoid("@"))
	for name, v := range registers {
		fmt.Fprintf(t.w, "  %s = %v\n", name, v)
	}
	t.w.Flush()
}

// Printf logs a free-form trace line.
func (t *Trace) Printf(format string, args ...any) {
	if t == nil {
		return
	}
	fmt.Fprintf(t.w, format+"\n", args...)
	t.w.Flush()
}

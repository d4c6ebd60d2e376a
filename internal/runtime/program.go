// Package runtime implements one running program instance (C6): the
// frame-stack that executes a single compiled ProgramCode, dispatching
// every instruction internal/bytecode defines. It knows nothing about any
// other program, the scheduler, or model checking — those live in
// internal/vm (C7) and internal/checker (C8), which drive a Program
// through GlobalContext, the seam that keeps this package free of an
// import cycle back to its own caller.
package runtime

import (
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// GlobalContext is everything a Program needs from the wider VM to execute
// a global instruction: shared-memory access, the function/stdlib
// registries, spawning new programs, and this program's own channel
// mailbox. One GlobalContext is bound to exactly one program instance (the
// VM constructs a fresh adapter per pid), so it never needs a pid
// parameter of its own.
type GlobalContext interface {
	ReadGlobal(name string) (value.Value, bool)
	WriteGlobal(name string, v value.Value)

	// FunctionDef resolves a user-defined function by name.
	FunctionDef(name string) (*bytecode.ProgramCode, bool)
	// Method resolves the stdlib method name for receiver kind k.
	Method(k value.Kind, name string) (func(*value.Value, []value.Value) (value.Value, error), bool)

	// Spawn starts a new instance of program name with the given arguments,
	// returning its freshly assigned PID.
	Spawn(name string, args []value.Value) (int, error)

	ChannelPeek(name string) (value.Value, bool)
	ChannelPop(name string)
	Send(name string, v value.Value)
	Connect(senderPID int, senderChan string, receiverPID int, receiverChan string) error
}

// frame is one call-level of a Program: its own memory stack and
// instruction pointer into a single ProgramCode. The program's own body
// runs in frames[0]; a FnCall pushes an additional frame for the duration
// of a user function call and Return pops it.
type frame struct {
	code  *bytecode.ProgramCode
	ip    int
	stack []value.Value
}

// Program is one running instance of a compiled program (or, fleetingly, a
// called function's activation within it). The invariant that exactly one
// frame exists at any scheduler yield point is not enforced structurally
// here — it falls out of the compiler's restriction that
// atomic/wait/send/run/connect cannot appear inside a function body, so a
// global instruction is only ever reached with frames[0] as the sole
// frame. See Advance's yield condition.
type Program struct {
	PID     int
	Name    string
	frames  []*frame
	atomic  int
	lastDeps bytecode.WaitDependency
	done    bool
}

// New starts program name at the beginning of code with args bound as its
// parameters (already in declaration order, one per parameter slot).
func New(pid int, name string, code *bytecode.ProgramCode, args []value.Value) *Program {
	return &Program{
		PID:    pid,
		Name:   name,
		frames: []*frame{{code: code, stack: append([]value.Value(nil), args...)}},
	}
}

func (p *Program) top() *frame { return p.frames[len(p.frames)-1] }

// Done reports whether this program instance has run off the end of its
// code (executed EndProgram).
func (p *Program) Done() bool { return p.done }

// IP is the instruction offset of the program's outermost frame — the only
// frame that matters for state hashing, since global instructions never
// execute with more than one frame on the stack.
func (p *Program) IP() int { return p.frames[0].ip }

// Memory is a snapshot of the program's outermost frame's stack, the part
// of its state that feeds the model checker's hash.
func (p *Program) Memory() []value.Value {
	return append([]value.Value(nil), p.frames[0].stack...)
}

// AtomicDepth reports how many nested atomic blocks the program is
// currently inside; zero means the scheduler may freely interleave other
// programs around it.
func (p *Program) AtomicDepth() int { return p.atomic }

// LastWaitDependency is the dependency set announced by the most recently
// executed WaitStart, consulted when this program is Blocked: it is what
// the scheduler watches to know when to give the program another turn.
func (p *Program) LastWaitDependency() bytecode.WaitDependency { return p.lastDeps }

// Clone returns a deep, independent copy of the program, used by the
// checker whenever it branches a VM state.
func (p *Program) Clone() *Program {
	frames := make([]*frame, len(p.frames))
	for i, f := range p.frames {
		frames[i] = &frame{code: f.code, ip: f.ip, stack: cloneStack(f.stack)}
	}
	return &Program{PID: p.PID, Name: p.Name, frames: frames, atomic: p.atomic, lastDeps: p.lastDeps, done: p.done}
}

// Hash appends a deterministic encoding of the program's observable state
// to buf: its pid, program name, instruction pointer and memory stack.
// Function-call frames never survive to a yield point (see the invariant
// note above) so they never need to be hashed.
func (p *Program) Hash(buf []byte) []byte {
	buf = appendInt(buf, int64(p.PID))
	buf = append(buf, []byte(p.Name)...)
	buf = append(buf, 0)
	buf = appendInt(buf, int64(p.IP()))
	buf = appendInt(buf, int64(p.atomic))
	if p.done {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	for _, v := range p.frames[0].stack {
		buf = append(buf, value.Hash(v)...)
	}
	return buf
}

func appendInt(buf []byte, v int64) []byte {
	u := uint64(v)
	for s := 0; s < 64; s += 8 {
		buf = append(buf, byte(u>>s))
	}
	return buf
}

// CloneValue deep-copies v (only *value.List and value.Tuple actually need
// it; every other Value is immutable). internal/vm uses it to clone shared
// memory the same way Program.Clone clones a frame's stack.
func CloneValue(v value.Value) value.Value { return cloneValue(v) }

func cloneValue(v value.Value) value.Value {
	switch t := v.(type) {
	case *value.List:
		return t.Clone()
	case value.Tuple:
		out := make(value.Tuple, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneStack(s []value.Value) []value.Value {
	out := make([]value.Value, len(s))
	for i, v := range s {
		out[i] = cloneValue(v)
	}
	return out
}

func runtimeErr(pos *bytecode.SourcePosition, format string, args ...any) *diag.Error {
	var dp diag.Position
	if pos != nil {
		dp = diag.Position{File: pos.File, Line: pos.Line, Column: pos.Column, Offset: pos.Offset}
	}
	return diag.RuntimeError(dp, format, args...)
}

// Package bytecode defines Althread's instruction set: the flat,
// stack-based intermediate representation the compiler (internal/compile)
// produces and the VM (internal/runtime, internal/vm) executes.
//
// Every instruction is classified local or global (Control.IsGlobal): a
// local instruction never interleaves with other running programs, while a
// global instruction is a scheduler decision point.
package bytecode

import "github.com/althread/althread/internal/value"

// SourcePosition locates an instruction in the original .alt source, for
// diagnostics.
type SourcePosition struct {
	File   string
	Line   int
	Column int
	Offset int
}

// Instruction pairs a Control with the source position it was compiled
// from (absent for synthetic instructions the compiler inserts, such as
// the trailing EndProgram).
type Instruction struct {
	Pos     *SourcePosition
	Control Control
}

// Control is implemented by every instruction variant.
type Control interface {
	// IsGlobal reports whether executing this instruction is a scheduler
	// decision point.
	IsGlobal() bool
	// Mnemonic is the disassembler's opcode name.
	Mnemonic() string
}

// AssignOp is the combining operator of an assignment instruction. Plain
// (built by SetOp) means plain assignment (no combination with the prior
// value); otherwise Op is the value.BinaryOp of `var op= expr`.
type AssignOp struct {
	Op    value.BinaryOp
	Plain bool
}

func SetOp() AssignOp                   { return AssignOp{Plain: true} }
func CompoundOp(op value.BinaryOp) AssignOp { return AssignOp{Op: op} }

// --- local, non-interleaving instructions ---

type Empty struct{}

func (Empty) IsGlobal() bool  { return false }
func (Empty) Mnemonic() string { return "EMPTY" }

type Push struct{ Value value.Value }

func (Push) IsGlobal() bool   { return false }
func (Push) Mnemonic() string { return "PUSH" }

type Expression struct{ Tree Expr }

func (Expression) IsGlobal() bool   { return false }
func (Expression) Mnemonic() string { return "EXPRESSION" }

// GlobalReads is always global: reading a shared variable is itself an
// observable action that must be atomic with the Expression instruction
// that follows it.
type GlobalReads struct{ Names []string }

func (GlobalReads) IsGlobal() bool   { return true }
func (GlobalReads) Mnemonic() string { return "GLOBAL_READS" }

type GlobalAssignment struct {
	Name       string
	Op         AssignOp
	UnstackLen int
}

func (GlobalAssignment) IsGlobal() bool   { return true }
func (GlobalAssignment) Mnemonic() string { return "GLOBAL_ASSIGN" }

type LocalAssignment struct {
	Index      int
	Op         AssignOp
	UnstackLen int
}

func (LocalAssignment) IsGlobal() bool   { return false }
func (LocalAssignment) Mnemonic() string { return "LOCAL_ASSIGN" }

type Unstack struct{ N int }

func (Unstack) IsGlobal() bool   { return false }
func (Unstack) Mnemonic() string { return "UNSTACK" }

// Declaration pops the discarded scratch frame left by the simulated
// compile-time stack bookkeeping, leaving the initializer expression's
// value in place as the newly declared variable's slot.
type Declaration struct{ UnstackLen int }

func (Declaration) IsGlobal() bool   { return false }
func (Declaration) Mnemonic() string { return "DECLARATION" }

type Destruct struct{ N int }

func (Destruct) IsGlobal() bool   { return false }
func (Destruct) Mnemonic() string { return "DESTRUCT" }

type JumpIf struct {
	JumpFalse  int
	UnstackLen int
}

func (JumpIf) IsGlobal() bool   { return false }
func (JumpIf) Mnemonic() string { return "JUMP_IF" }

type Jump struct{ N int }

func (Jump) IsGlobal() bool   { return false }
func (Jump) Mnemonic() string { return "JUMP" }

type Break struct {
	Jump       int
	UnstackLen int
	StopAtomic bool
}

func (Break) IsGlobal() bool   { return false }
func (Break) Mnemonic() string { return "BREAK" }

type FnCall struct {
	Name       string
	UnstackLen int
	// VariableIdx, when non-nil, is the stack offset (from top, at the
	// point of the call) of the receiver for a method call; nil means a
	// user-defined function call with no receiver.
	VariableIdx *int
	Arguments   Expr
}

func (FnCall) IsGlobal() bool   { return false }
func (FnCall) Mnemonic() string { return "FN_CALL" }

// RunCall spawns a new instance of program Name. When BindsResult is set
// (the `let p = Foo(args);` form), the runtime pushes a value.Process
// handle for the freshly spawned instance once it has been assigned a
// PID, so a following Declaration can bind it to a local — this is the
// only way a program acquires another instance's PID for use as a
// Connect endpoint.
type RunCall struct {
	Name        string
	UnstackLen  int
	BindsResult bool
	Arguments   Expr
}

func (RunCall) IsGlobal() bool   { return true }
func (RunCall) Mnemonic() string { return "RUN_CALL" }

type EndProgram struct{}

func (EndProgram) IsGlobal() bool   { return true }
func (EndProgram) Mnemonic() string { return "END_PROGRAM" }

// WaitDependency is the read-set a WaitStart announces: the shared
// variables, channel mailboxes, and channel links whose change could
// unblock the wait.
type WaitDependency struct {
	Variables []string
	Channels  []ChannelKey
	Links     []LinkKey
}

// ChannelKey identifies a (pid, channel) mailbox.
type ChannelKey struct {
	PID  int
	Name string
}

// LinkKey identifies a directed (from pid/chan -> to pid/chan) link.
type LinkKey struct {
	FromPID  int
	FromChan string
	ToPID    int
	ToChan   string
}

type WaitStart struct {
	Dependencies WaitDependency
	StartAtomic  bool
}

func (WaitStart) IsGlobal() bool   { return false }
func (WaitStart) Mnemonic() string { return "WAIT_START" }

// Wait tests one wait-case's readiness: if Channel is non-nil, the
// case additionally requires a pending value on that mailbox before the
// boolean on top of stack (the case's condition/guard, default true when
// there is none to evaluate) is even consulted. On failure it falls
// through to Jump — the address of the next case's check, or back to the
// enclosing WaitStart for the last case, which is what turns a
// fully-failed pass into an actual block.
type Wait struct {
	Jump       int
	UnstackLen int
	Channel    *ChannelKey
}

// IsGlobal is always false: whether a wait blocks depends on the value on
// top of the stack, so internal/runtime decides it while executing and
// reports a block as ActionBlocked rather than through IsGlobal.
func (Wait) IsGlobal() bool   { return false }
func (Wait) Mnemonic() string { return "WAIT" }

type Send struct {
	ChannelName string
	UnstackLen  int
}

func (Send) IsGlobal() bool   { return true }
func (Send) Mnemonic() string { return "SEND" }

type ChannelPeek struct{ Name string }

func (ChannelPeek) IsGlobal() bool   { return false }
func (ChannelPeek) Mnemonic() string { return "CHANNEL_PEEK" }

type ChannelPop struct{ Name string }

func (ChannelPop) IsGlobal() bool   { return true }
func (ChannelPop) Mnemonic() string { return "CHANNEL_POP" }

type Connect struct {
	SenderPID     *int
	SenderChan    string
	ReceiverPID   *int
	ReceiverChan  string
}

func (Connect) IsGlobal() bool   { return true }
func (Connect) Mnemonic() string { return "CONNECT" }

type AtomicStart struct{}

func (AtomicStart) IsGlobal() bool   { return false }
func (AtomicStart) Mnemonic() string { return "ATOMIC_START" }

type AtomicEnd struct{}

func (AtomicEnd) IsGlobal() bool   { return false }
func (AtomicEnd) Mnemonic() string { return "ATOMIC_END" }

type Return struct{ HasValue bool }

func (Return) IsGlobal() bool   { return false }
func (Return) Mnemonic() string { return "RETURN" }

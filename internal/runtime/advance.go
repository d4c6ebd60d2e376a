package runtime

import (
	"fmt"

	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/value"
)

// ActionKind classifies why Advance returned control to the scheduler.
type ActionKind int

const (
	// ActionStepped means the program executed exactly one global
	// instruction and remains executable; the scheduler may run it again
	// whenever it likes.
	ActionStepped ActionKind = iota
	// ActionBlocked means the program tried every wait-case on its current
	// wait block and none was ready; it will not run again until
	// Dependencies changes.
	ActionBlocked
	// ActionEnded means the program ran off the end of its code.
	ActionEnded
	// ActionError means a runtime type/value error aborted execution.
	ActionError
)

func (k ActionKind) String() string {
	switch k {
	case ActionStepped:
		return "stepped"
	case ActionBlocked:
		return "blocked"
	case ActionEnded:
		return "ended"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// StepResult reports what one call to Advance did.
type StepResult struct {
	Kind         ActionKind
	Instruction  bytecode.Control        // the global instruction executed, for ActionStepped/ActionEnded
	Dependencies bytecode.WaitDependency // populated for ActionBlocked
	Err          error                   // populated for ActionError
}

// selfPID mirrors internal/compile's sentinel of the same name: a
// WaitDependency channel/link endpoint recorded with this PID refers to
// the executing program itself, resolved to its real PID only when
// reported outward (internal/vm matches dependencies against real pids).
const selfPID = -1

// Advance runs p from where it last left off until it performs a global
// action, blocks, ends, or errors — the unit of work the scheduler
// interleaves programs by. Instructions inside an atomic region never
// yield control back here; Advance keeps dispatching straight through
// AtomicStart/AtomicEnd pairs.
//
// A program can only ever block by looping back to its own WaitStart with
// no net progress: every case in a wait block failed, and the last case's
// failure jump always targets WaitStart itself (internal/compile's
// wait_lower.go). Advance detects that generically, by noticing the
// program's outermost frame return to a state (instruction pointer, atomic
// depth and memory stack, as Hash encodes them) it already had this call —
// which doubles as a guard against any other local loop that makes no
// progress, treated the same way: permanently unready, since it can never
// resolve without an external write anyway. A local loop that keeps
// changing its memory is not stopped by this check.
func (p *Program) Advance(ctx GlobalContext) StepResult {
	if p.done {
		return StepResult{Kind: ActionEnded}
	}
	visited := map[string]bool{}
	for {
		f := p.top()
		if f.ip < 0 || f.ip >= len(f.code.Instructions) {
			return StepResult{Kind: ActionError, Err: fmt.Errorf("runtime: instruction pointer %d out of range for %q", f.ip, f.code.Name)}
		}
		if len(p.frames) == 1 {
			key := string(p.Hash(nil))
			if visited[key] {
				return StepResult{Kind: ActionBlocked, Dependencies: p.resolvedLastDeps()}
			}
			visited[key] = true
		}

		instr := f.code.At(f.ip)
		global, result, err := p.dispatch(ctx, f, instr.Control, instr.Pos)
		if err != nil {
			return StepResult{Kind: ActionError, Err: err}
		}
		if p.done {
			return StepResult{Kind: ActionEnded, Instruction: instr.Control}
		}
		if result != nil {
			return *result
		}
		if global && p.atomic == 0 {
			return StepResult{Kind: ActionStepped, Instruction: instr.Control}
		}
	}
}

func (p *Program) resolvedLastDeps() bytecode.WaitDependency {
	deps := p.lastDeps
	chans := make([]bytecode.ChannelKey, len(deps.Channels))
	for i, c := range deps.Channels {
		if c.PID == selfPID {
			c.PID = p.PID
		}
		chans[i] = c
	}
	deps.Channels = chans
	return deps
}

// dispatch executes one instruction against f, the frame it belongs to.
// It returns whether the instruction was a global action (the caller
// decides whether that yields, based on atomic depth), and optionally a
// StepResult that must be returned immediately regardless of atomic depth.
// No instruction currently returns one: errors come back through the err
// return, and Advance itself detects a block.
func (p *Program) dispatch(ctx GlobalContext, f *frame, ctrl bytecode.Control, pos *bytecode.SourcePosition) (isGlobal bool, result *StepResult, err error) {
	switch n := ctrl.(type) {
	case bytecode.Empty:
		f.ip++

	case bytecode.Push:
		f.stack = append(f.stack, n.Value)
		f.ip++

	case bytecode.Expression:
		v, err := bytecode.Eval(n.Tree, bytecode.EvalContext{Stack: f.stack})
		if err != nil {
			return false, nil, runtimeErr(pos, "%s", err)
		}
		f.stack = append(f.stack, v)
		f.ip++

	case bytecode.GlobalReads:
		for _, name := range n.Names {
			v, ok := ctx.ReadGlobal(name)
			if !ok {
				return false, nil, runtimeErr(pos, "undefined shared variable %q", name)
			}
			f.stack = append(f.stack, v)
		}
		f.ip++
		return true, nil, nil

	case bytecode.GlobalAssignment:
		v := f.stack[len(f.stack)-1]
		newVal := v
		if !n.Op.Plain {
			cur, ok := ctx.ReadGlobal(n.Name)
			if !ok {
				return false, nil, runtimeErr(pos, "undefined shared variable %q", n.Name)
			}
			newVal, err = value.Binary(n.Op.Op, cur, v)
			if err != nil {
				return false, nil, runtimeErr(pos, "%s", err)
			}
		}
		ctx.WriteGlobal(n.Name, newVal)
		f.stack = f.stack[:len(f.stack)-(n.UnstackLen+1)]
		f.ip++
		return true, nil, nil

	case bytecode.LocalAssignment:
		v := f.stack[len(f.stack)-1]
		idx := len(f.stack) - 1 - n.Index
		newVal := v
		if !n.Op.Plain {
			newVal, err = value.Binary(n.Op.Op, f.stack[idx], v)
			if err != nil {
				return false, nil, runtimeErr(pos, "%s", err)
			}
		}
		f.stack[idx] = newVal
		f.stack = f.stack[:len(f.stack)-(n.UnstackLen+1)]
		f.ip++

	case bytecode.Unstack:
		f.stack = f.stack[:len(f.stack)-n.N]
		f.ip++

	case bytecode.Declaration:
		top := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1-n.UnstackLen]
		f.stack = append(f.stack, top)
		f.ip++

	case bytecode.Destruct:
		top := f.stack[len(f.stack)-1]
		tup, ok := top.(value.Tuple)
		if !ok {
			return false, nil, runtimeErr(pos, "internal error: destruct on non-tuple %s", top.Type())
		}
		f.stack = f.stack[:len(f.stack)-1]
		f.stack = append(f.stack, []value.Value(tup)...)
		f.ip++

	case bytecode.JumpIf:
		top := f.stack[len(f.stack)-1]
		b, ok := top.(value.Bool)
		if !ok {
			return false, nil, runtimeErr(pos, "internal error: jump_if on non-bool %s", top.Type())
		}
		f.stack = f.stack[:len(f.stack)-(n.UnstackLen+1)]
		if bool(b) {
			f.ip++
		} else {
			f.ip = n.JumpFalse
		}

	case bytecode.Jump:
		f.ip = n.N

	case bytecode.Break:
		f.stack = f.stack[:len(f.stack)-n.UnstackLen]
		if n.StopAtomic && p.atomic > 0 {
			p.atomic--
		}
		f.ip = n.Jump

	case bytecode.FnCall:
		return p.dispatchFnCall(ctx, f, n, pos)

	case bytecode.RunCall:
		args, err := bytecode.Eval(n.Arguments, bytecode.EvalContext{Stack: f.stack})
		if err != nil {
			return false, nil, runtimeErr(pos, "%s", err)
		}
		tup, ok := args.(value.Tuple)
		if !ok {
			tup = value.Tuple{args}
		}
		pid, err := ctx.Spawn(n.Name, []value.Value(tup))
		if err != nil {
			return false, nil, runtimeErr(pos, "%s", err)
		}
		if n.BindsResult {
			f.stack = append(f.stack, value.Process{Program: n.Name, PID: pid})
		}
		f.ip++
		return true, nil, nil

	case bytecode.EndProgram:
		p.done = true
		f.ip++
		return true, nil, nil

	case bytecode.WaitStart:
		// StartAtomic is descriptive only: if the wait sits inside an
		// atomic block, AtomicStart already incremented p.atomic once on
		// entry to that block, and it stays incremented across every
		// retry of this same wait — WaitStart must not touch it itself, or
		// a blocked-then-retried wait would inflate the depth on every
		// pass.
		p.lastDeps = n.Dependencies
		f.ip++

	case bytecode.Wait:
		ready := true
		top := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-(n.UnstackLen+1)]
		if n.Channel != nil {
			pid := n.Channel.PID
			if pid == selfPID {
				pid = p.PID
			}
			if _, ok := ctx.ChannelPeek(n.Channel.Name); !ok && pid == p.PID {
				ready = false
			}
		}
		if ready {
			b, ok := top.(value.Bool)
			if !ok {
				return false, nil, runtimeErr(pos, "internal error: wait guard is non-bool %s", top.Type())
			}
			ready = bool(b)
		}
		if ready {
			f.ip++
		} else {
			f.ip = n.Jump
		}

	case bytecode.Send:
		v := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-(n.UnstackLen+1)]
		ctx.Send(n.ChannelName, v)
		f.ip++
		return true, nil, nil

	case bytecode.ChannelPeek:
		v, ok := ctx.ChannelPeek(n.Name)
		if !ok {
			return false, nil, runtimeErr(pos, "internal error: channel_peek on empty mailbox %q", n.Name)
		}
		f.stack = append(f.stack, v)
		f.ip++

	case bytecode.ChannelPop:
		ctx.ChannelPop(n.Name)
		f.ip++
		return true, nil, nil

	case bytecode.Connect:
		senderPID := p.PID
		if n.SenderPID != nil {
			senderPID, err = p.resolveProcessLocal(f, *n.SenderPID, pos)
			if err != nil {
				return false, nil, err
			}
		}
		receiverPID := p.PID
		if n.ReceiverPID != nil {
			receiverPID, err = p.resolveProcessLocal(f, *n.ReceiverPID, pos)
			if err != nil {
				return false, nil, err
			}
		}
		if err := ctx.Connect(senderPID, n.SenderChan, receiverPID, n.ReceiverChan); err != nil {
			return false, nil, runtimeErr(pos, "%s", err)
		}
		f.ip++
		return true, nil, nil

	case bytecode.AtomicStart:
		p.atomic++
		f.ip++

	case bytecode.AtomicEnd:
		if p.atomic > 0 {
			p.atomic--
		}
		f.ip++

	case bytecode.Return:
		p.dispatchReturn(f, n)

	default:
		return false, nil, runtimeErr(pos, "unsupported instruction %s", ctrl.Mnemonic())
	}
	return ctrl.IsGlobal(), nil, nil
}

func (p *Program) resolveProcessLocal(f *frame, offset int, pos *bytecode.SourcePosition) (int, error) {
	idx := len(f.stack) - 1 - offset
	if idx < 0 || idx >= len(f.stack) {
		return 0, runtimeErr(pos, "internal error: connect endpoint offset %d out of range", offset)
	}
	proc, ok := f.stack[idx].(value.Process)
	if !ok {
		return 0, runtimeErr(pos, "connect endpoint is not a process handle")
	}
	return proc.PID, nil
}

// dispatchFnCall lowers a FnCall into either a stdlib method dispatch
// (VariableIdx set) or a user function activation (a fresh frame pushed
// onto p, to be popped by a matching Return). Both forms consume the same
// evaluated Arguments tuple and discard UnstackLen temporaries from the
// caller's stack before anything else changes.
func (p *Program) dispatchFnCall(ctx GlobalContext, f *frame, n bytecode.FnCall, pos *bytecode.SourcePosition) (bool, *StepResult, error) {
	argsVal, err := bytecode.Eval(n.Arguments, bytecode.EvalContext{Stack: f.stack})
	if err != nil {
		return false, nil, runtimeErr(pos, "%s", err)
	}
	tup, ok := argsVal.(value.Tuple)
	if !ok {
		tup = value.Tuple{argsVal}
	}
	args := []value.Value(tup)

	if n.VariableIdx != nil {
		idx := len(f.stack) - 1 - *n.VariableIdx
		if idx < 0 || idx >= len(f.stack) {
			return false, nil, runtimeErr(pos, "internal error: method receiver offset %d out of range", *n.VariableIdx)
		}
		recv := f.stack[idx]
		method, ok := ctx.Method(recv.Type().Kind, n.Name)
		if !ok {
			return false, nil, runtimeErr(pos, "%s has no method %q", recv.Type(), n.Name)
		}
		res, err := method(&recv, args)
		if err != nil {
			return false, nil, runtimeErr(pos, "%s", err)
		}
		f.stack[idx] = recv
		f.stack = f.stack[:len(f.stack)-n.UnstackLen]
		f.stack = append(f.stack, res)
		f.ip++
		return false, nil, nil
	}

	code, ok := ctx.FunctionDef(n.Name)
	if !ok {
		return false, nil, runtimeErr(pos, "undefined function %q", n.Name)
	}
	f.stack = f.stack[:len(f.stack)-n.UnstackLen]
	f.ip++
	p.frames = append(p.frames, &frame{code: code, stack: append([]value.Value(nil), args...)})
	return false, nil, nil
}

// dispatchReturn pops the current (callee) frame and delivers its result,
// if any, to the top of the caller's stack — a void function's implicit
// Null result keeps FnCall's "always exactly one pushed value" contract
// (internal/compile/call.go) true regardless of which function ran.
func (p *Program) dispatchReturn(f *frame, n bytecode.Return) {
	var result value.Value = value.Null{}
	if n.HasValue {
		result = f.stack[len(f.stack)-1]
	}
	p.frames = p.frames[:len(p.frames)-1]
	caller := p.top()
	caller.stack = append(caller.stack, result)
}

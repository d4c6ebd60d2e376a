package runtime

import (
	"fmt"
	"testing"

	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/value"
	"github.com/stretchr/testify/require"
)

// fakeCtx is a minimal GlobalContext good enough to drive Program.Advance
// in isolation, without a full vm.Machine — the same shape internal/vm's
// machineCtx provides, reduced to what these tests actually exercise.
type fakeCtx struct {
	globals map[string]value.Value
}

func newFakeCtx() *fakeCtx { return &fakeCtx{globals: map[string]value.Value{}} }

func (c *fakeCtx) ReadGlobal(name string) (value.Value, bool) { v, ok := c.globals[name]; return v, ok }
func (c *fakeCtx) WriteGlobal(name string, v value.Value)     { c.globals[name] = v }
func (c *fakeCtx) FunctionDef(name string) (*bytecode.ProgramCode, bool) { return nil, false }
func (c *fakeCtx) Method(k value.Kind, name string) (func(*value.Value, []value.Value) (value.Value, error), bool) {
	return nil, false
}
func (c *fakeCtx) Spawn(name string, args []value.Value) (int, error) {
	return 0, fmt.Errorf("spawn not supported by fakeCtx")
}
func (c *fakeCtx) ChannelPeek(name string) (value.Value, bool) { return nil, false }
func (c *fakeCtx) ChannelPop(name string)                      {}
func (c *fakeCtx) Send(name string, v value.Value)             {}
func (c *fakeCtx) Connect(senderPID int, senderChan string, receiverPID int, receiverChan string) error {
	return nil
}

func instr(ctrl bytecode.Control) bytecode.Instruction { return bytecode.Instruction{Control: ctrl} }

func TestAdvanceYieldsOnceThenEndsOnEndProgram(t *testing.T) {
	code := &bytecode.ProgramCode{Name: "p", Instructions: []bytecode.Instruction{
		instr(bytecode.Expression{Tree: bytecode.Lit{Value: value.Int(5)}}),
		instr(bytecode.GlobalAssignment{Name: "x", Op: bytecode.SetOp(), UnstackLen: 0}),
		instr(bytecode.EndProgram{}),
	}}
	ctx := newFakeCtx()
	p := New(0, "p", code, nil)

	res := p.Advance(ctx)
	require.Equal(t, ActionStepped, res.Kind)
	require.Equal(t, bytecode.GlobalAssignment{Name: "x", Op: bytecode.SetOp(), UnstackLen: 0}, res.Instruction)
	require.Equal(t, value.Int(5), ctx.globals["x"])
	require.False(t, p.Done())

	res = p.Advance(ctx)
	require.Equal(t, ActionEnded, res.Kind)
	require.True(t, p.Done())
}

func TestAdvanceDoesNotYieldInsideAtomicRegion(t *testing.T) {
	code := &bytecode.ProgramCode{Name: "p", Instructions: []bytecode.Instruction{
		instr(bytecode.AtomicStart{}),
		instr(bytecode.Expression{Tree: bytecode.Lit{Value: value.Int(1)}}),
		instr(bytecode.GlobalAssignment{Name: "x", Op: bytecode.SetOp(), UnstackLen: 0}),
		instr(bytecode.AtomicEnd{}),
		instr(bytecode.EndProgram{}),
	}}
	ctx := newFakeCtx()
	p := New(0, "p", code, nil)

	res := p.Advance(ctx)
	require.Equal(t, ActionEnded, res.Kind)
	require.Equal(t, value.Int(1), ctx.globals["x"])
	require.Equal(t, 0, p.AtomicDepth())
}

func TestAdvanceReportsBlockedWhenEveryWaitCaseFails(t *testing.T) {
	deps := bytecode.WaitDependency{Variables: []string{"x"}}
	code := &bytecode.ProgramCode{Name: "p", Instructions: []bytecode.Instruction{
		instr(bytecode.WaitStart{Dependencies: deps}),
		instr(bytecode.Expression{Tree: bytecode.Lit{Value: value.Bool(false)}}),
		instr(bytecode.Wait{Jump: 0, UnstackLen: 0}),
	}}
	ctx := newFakeCtx()
	p := New(0, "p", code, nil)

	res := p.Advance(ctx)
	require.Equal(t, ActionBlocked, res.Kind)
	require.Equal(t, []string{"x"}, res.Dependencies.Variables)
}

func TestAdvanceReportsErrorOnUndefinedGlobal(t *testing.T) {
	code := &bytecode.ProgramCode{Name: "p", Instructions: []bytecode.Instruction{
		instr(bytecode.GlobalReads{Names: []string{"missing"}}),
		instr(bytecode.EndProgram{}),
	}}
	ctx := newFakeCtx()
	p := New(0, "p", code, nil)

	res := p.Advance(ctx)
	require.Equal(t, ActionError, res.Kind)
	require.Error(t, res.Err)
}

func TestProgramCloneIsIndependent(t *testing.T) {
	code := &bytecode.ProgramCode{Name: "p", Instructions: []bytecode.Instruction{
		instr(bytecode.Expression{Tree: bytecode.Lit{Value: value.Int(5)}}),
		instr(bytecode.GlobalAssignment{Name: "x", Op: bytecode.SetOp(), UnstackLen: 0}),
		instr(bytecode.EndProgram{}),
	}}
	ctx := newFakeCtx()
	p := New(0, "p", code, nil)
	p.Advance(ctx)

	clone := p.Clone()
	clone.Advance(ctx)
	require.True(t, clone.Done())
	require.False(t, p.Done())
}

func TestActionKindString(t *testing.T) {
	require.Equal(t, "stepped", ActionStepped.String())
	require.Equal(t, "blocked", ActionBlocked.String())
	require.Equal(t, "ended", ActionEnded.String())
	require.Equal(t, "error", ActionError.String())
}

package compile

import (
	"testing"

	"github.com/althread/althread/internal/bytecode"
	"github.com/stretchr/testify/require"
)

// TestCompileWhileBreakPatchesToPostLoop exercises the while+break lowering:
// the outer while's JumpIf must target the instruction after the loop's
// back-edge Jump, and a break inside the body must patch to that same
// landing spot rather than to the loop's own condition check.
func TestCompileWhileBreakPatchesToPostLoop(t *testing.T) {
	f := mustParse(t, `
main {
	let mut x = 0;
	while x < 5 {
		x = x + 1;
		if x == 3 {
			break;
		}
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	prog := project.Programs["main"]

	var jumpIfIdx, backJumpIdx, breakIdx int = -1, -1, -1
	for i, insn := range prog.Instructions {
		switch insn.Control.(type) {
		case bytecode.JumpIf:
			if jumpIfIdx == -1 {
				jumpIfIdx = i
			}
		case bytecode.Break:
			breakIdx = i
		case bytecode.Jump:
			if j, ok := insn.Control.(bytecode.Jump); ok && j.N < i {
				backJumpIdx = i
			}
		}
	}
	require.NotEqual(t, -1, jumpIfIdx, "expected a JumpIf for the while condition")
	require.NotEqual(t, -1, backJumpIdx, "expected a back-edge Jump closing the loop")
	require.NotEqual(t, -1, breakIdx, "expected a Break instruction")

	postLoop := backJumpIdx + 1
	jumpIf := prog.Instructions[jumpIfIdx].Control.(bytecode.JumpIf)
	require.Equal(t, postLoop, jumpIf.JumpFalse, "while's JumpIf must land just past the loop's back-edge")

	brk := prog.Instructions[breakIdx].Control.(bytecode.Break)
	require.Equal(t, postLoop, brk.Jump, "break must land on the same post-loop instruction as the while's own exit")
}

// TestCompileBreakOutsideLoopIsRejected guards the compiler's structural
// check that break only ever appears lexically inside a loop body.
func TestCompileBreakOutsideLoopIsRejected(t *testing.T) {
	f := mustParse(t, `
main {
	break;
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.Contains(t, bag.Error(), "break outside a loop")
}

// TestCompileFunctionMissingReturnOnSomePath: a function whose `if` has no
// `else` can fall off the end without returning, which must be rejected
// even though one path through the body does return.
func TestCompileFunctionMissingReturnOnSomePath(t *testing.T) {
	f := mustParse(t, `
fn f(c: bool): int {
	if c {
		return 1;
	}
}

main { }
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.True(t, bag.HasErrors())
	require.Contains(t, bag.Error(), "does not return a value on every path")
}

// TestCompileFunctionReturnsOnEveryPathIsAccepted is the positive
// counterpart: an if/else where both branches return must compile cleanly.
func TestCompileFunctionReturnsOnEveryPathIsAccepted(t *testing.T) {
	f := mustParse(t, `
fn f(c: bool): int {
	if c {
		return 1;
	} else {
		return 0;
	}
}

main { }
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	def, ok := project.UserFunctions["f"]
	require.True(t, ok)
	require.False(t, def.IsVoid)
}

// TestCompileVoidFunctionGetsImplicitReturn confirms a void function body
// needs no explicit return and still ends with a synthetic Return.
func TestCompileVoidFunctionGetsImplicitReturn(t *testing.T) {
	f := mustParse(t, `
fn f() {
	let x = 1;
}

main { }
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	def, ok := project.UserFunctions["f"]
	require.True(t, ok)
	require.True(t, def.IsVoid)
	last := def.Code.Instructions[len(def.Code.Instructions)-1]
	require.Equal(t, bytecode.Return{HasValue: false}, last.Control)
}

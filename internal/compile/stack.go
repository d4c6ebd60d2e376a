package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
)

// emit appends an instruction to the program or function currently being
// lowered.
func (c *Compiler) emit(p ast.Pos, ctrl bytecode.Control) {
	bp := pos(p)
	c.code = append(c.code, bytecode.Instruction{Pos: &bp, Control: ctrl})
}

// emitSynthetic appends an instruction with no source position, for
// compiler-inserted code (the trailing EndProgram, a void function's
// implicit Return, a receive case's binding instructions).
func (c *Compiler) emitSynthetic(ctrl bytecode.Control) {
	c.code = append(c.code, bytecode.Instruction{Control: ctrl})
}

func (c *Compiler) here() int { return len(c.code) }

// pushDepth enters a new lexical scope.
func (c *Compiler) pushDepth() { c.currentStackDepth++ }

// unstackCurrentDepth pops every descriptor declared at the current depth,
// returns how many there were, and leaves depth decremented. Every
// lowering rule that opens a scope must close it with this, keeping the
// simulated stack's length symmetric around each compiled statement.
func (c *Compiler) unstackCurrentDepth() int {
	depth := c.currentStackDepth
	n := 0
	for len(c.stack) > 0 && c.stack[len(c.stack)-1].Depth == depth {
		c.stack = c.stack[:len(c.stack)-1]
		n++
	}
	c.currentStackDepth--
	return n
}

// declareLocal records a new stack slot at the current depth. It returns
// nothing: offsets are computed relative to the stack depth at the moment
// of reference, via resolveLocal.
func (c *Compiler) declareLocal(v Variable) {
	v.Depth = c.currentStackDepth
	c.stack = append(c.stack, v)
}

// resolveLocal finds the nearest (innermost) local declaration named name,
// returning its offset from the top of the stack (0 = current top) as it
// would be immediately after the most recent emitted instruction.
func (c *Compiler) resolveLocal(name string) (offset int, v Variable, ok bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].Name == name {
			return len(c.stack) - 1 - i, c.stack[i], true
		}
	}
	return 0, Variable{}, false
}

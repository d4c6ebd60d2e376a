package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// selfPID marks a channel endpoint as belonging to the executing program
// itself; the VM substitutes the program's real PID when it checks
// WaitDependency.Channels against pending mailbox state (a wait-case can
// only receive from one of its own channels, never another program's).
const selfPID = -1

// compileWait lowers a wait block. Cases are tried in source order every
// time the program is given a chance to run at this instruction: each
// case's Wait instruction consults an (optional) pending-channel check
// plus a boolean condition, and falls through into that case's body on
// success or jumps to the next case's condition on failure. The last
// case's failure jump lands back on WaitStart, which turns "every case
// failed" into an actual block. WaitFirst and WaitSeq publish the same
// dependency set; they differ only in the bytecode compileWaitCase emits
// after a case's body (see there).
func (c *Compiler) compileWait(n *ast.Wait) {
	if c.isAtomic {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "wait is not allowed inside an atomic block unless it is the block's own entry statement"))
		return
	}
	seen := map[string]bool{}
	var varOrder []string
	var chanKeys []bytecode.ChannelKey
	for _, wc := range n.Cases {
		if wc.Receive != nil {
			chanKeys = append(chanKeys, bytecode.ChannelKey{PID: selfPID, Name: wc.Receive.Channel})
			if wc.Receive.Guard != nil {
				c.collectGlobals(wc.Receive.Guard, seen, &varOrder)
			}
		} else {
			c.collectGlobals(wc.Cond, seen, &varOrder)
		}
	}

	waitStartIdx := c.here()
	c.emit(n.Pos_, bytecode.WaitStart{
		Dependencies: bytecode.WaitDependency{Variables: varOrder, Channels: chanKeys},
		StartAtomic:  c.isAtomic,
	})

	endJumps := make([]int, 0, len(n.Cases))
	for i, wc := range n.Cases {
		last := i == len(n.Cases)-1
		c.compileWaitCase(wc, waitStartIdx, last, n.Mode, &endJumps)
	}

	end := c.here()
	for _, idx := range endJumps {
		c.patchJump(idx, end)
	}
}

// compileWaitCase lowers one case of a wait block. The source's
// first/seq asymmetry lives entirely in whether a fired case jumps past
// the remaining cases: `first` does
// (only the first ready case runs per pass), `seq` falls straight
// through into the next case's check (every ready case runs per pass).
// The last case never needs the inter-case jump since there is nothing
// left to skip.
func (c *Compiler) compileWaitCase(wc ast.WaitCase, waitStartIdx int, last bool, mode ast.WaitMode, endJumps *[]int) {
	var boolExpr ast.Expr
	if wc.Receive != nil && wc.Receive.Guard != nil {
		boolExpr = wc.Receive.Guard
	} else if wc.Receive == nil {
		boolExpr = wc.Cond
	}
	if boolExpr == nil {
		boolExpr = &ast.Literal{Pos_: wc.Pos_, Value: value.Bool(true)}
	}

	pushed, err := c.emitPureExpr(wc.Pos_, boolExpr)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(wc.Pos_), "%s", err))
		return
	}

	var chanKey *bytecode.ChannelKey
	if wc.Receive != nil {
		chanKey = &bytecode.ChannelKey{PID: selfPID, Name: wc.Receive.Channel}
	}

	waitIdx := c.here()
	c.emit(wc.Pos_, bytecode.Wait{UnstackLen: pushed - 1, Channel: chanKey})

	c.pushDepth()
	if wc.Receive != nil {
		c.compileReceiveBind(wc.Receive)
	}
	for _, s := range wc.Body {
		c.compileStmt(s)
	}
	if m := c.unstackCurrentDepth(); m > 0 {
		c.emit(wc.Pos_, bytecode.Unstack{N: m})
	}

	if last || mode == ast.WaitFirst {
		endIdx := c.here()
		c.emit(wc.Pos_, bytecode.Jump{})
		*endJumps = append(*endJumps, endIdx)
	}
	// seq, non-last: falls through into the next case's check — no
	// inter-case Jump, so every ready case fires in a single pass.

	nextAddr := c.here()
	if last {
		nextAddr = waitStartIdx
	}
	c.patchJump(waitIdx, nextAddr)
}

func (c *Compiler) compileReceiveBind(rc *ast.ReceiveCase) {
	c.emitSynthetic(bytecode.ChannelPeek{Name: rc.Channel})

	n := len(rc.Pattern)
	if n > 1 {
		c.emitSynthetic(bytecode.Destruct{N: n})
		for i := n - 1; i >= 0; i-- {
			c.emitSynthetic(bytecode.Declaration{UnstackLen: 0})
			c.declareLocal(Variable{Name: rc.Pattern[i], Type: value.Void()})
		}
	} else if n == 1 {
		c.emitSynthetic(bytecode.Declaration{UnstackLen: 0})
		c.declareLocal(Variable{Name: rc.Pattern[0], Type: value.Void()})
	} else {
		c.emitSynthetic(bytecode.Unstack{N: 1})
	}

	c.emitSynthetic(bytecode.ChannelPop{Name: rc.Channel})
}

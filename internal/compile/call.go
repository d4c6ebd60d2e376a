package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
)

// emitCall lowers a bare call (free function or `receiver.method(args)`)
// into a single FnCall. Arguments must themselves be call-free — an
// argument containing a call is rejected here with a TypeError.
// The call's own temporaries (the global copies its arguments and receiver
// reference need) are discarded by FnCall's own UnstackLen, so unlike
// emitPureExpr, the caller always sees exactly one pushed value: the
// result.
func (c *Compiler) emitCall(call *ast.CallExpr) (pushed int, err error) {
	for _, a := range call.Args {
		if containsCall(a) {
			return 0, diag.TypeError(dpos(a.Position()), "calls cannot be nested inside a call argument")
		}
	}

	seen := map[string]bool{}
	var order []string

	var receiverName string
	var receiverIsLocal bool
	var receiverLocalOffset int
	if call.Receiver != nil {
		id, ok := call.Receiver.(*ast.Ident)
		if !ok {
			return 0, diag.TypeError(dpos(call.Position()), "method receiver must be a plain variable")
		}
		receiverName = id.Name
		if off, _, ok := c.resolveLocal(receiverName); ok {
			receiverIsLocal = true
			receiverLocalOffset = off
		} else {
			seen[receiverName] = true
			order = append(order, receiverName)
		}
	}
	for _, a := range call.Args {
		c.collectGlobals(a, seen, &order)
	}

	k := len(order)
	if k > 0 {
		c.emit(call.Pos_, bytecode.GlobalReads{Names: order})
	}
	globalOffset := map[string]int{}
	for i, name := range order {
		globalOffset[name] = k - 1 - i
	}

	var variableIdx *int
	if call.Receiver != nil {
		var off int
		if receiverIsLocal {
			off = receiverLocalOffset + k
		} else {
			off = globalOffset[receiverName]
		}
		variableIdx = &off
	}

	args := make([]bytecode.Expr, len(call.Args))
	for i, a := range call.Args {
		tree, err := c.buildPureTree(a, k, globalOffset)
		if err != nil {
			return 0, err
		}
		args[i] = tree
	}

	c.emit(call.Pos_, bytecode.FnCall{
		Name:        call.Callee,
		UnstackLen:  k,
		VariableIdx: variableIdx,
		Arguments:   bytecode.TupleExpr{Elems: args},
	})
	return 1, nil
}

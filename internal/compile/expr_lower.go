package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// collectGlobals walks a call-free expression and returns, in first-seen
// order, the names of every shared (global) variable it references.
// Locals are left alone; unresolved bare identifiers are assumed global.
// Callers that check them against globalTable (compileCondition) reject
// an undefined name at compile time; elsewhere it surfaces only at run
// time, as GlobalReads' "undefined shared variable" error.
func (c *Compiler) collectGlobals(e ast.Expr, seen map[string]bool, order *[]string) {
	switch n := e.(type) {
	case *ast.Ident:
		if _, _, ok := c.resolveLocal(n.Name); !ok {
			if !seen[n.Name] {
				seen[n.Name] = true
				*order = append(*order, n.Name)
			}
		}
	case *ast.BinaryExpr:
		c.collectGlobals(n.X, seen, order)
		c.collectGlobals(n.Y, seen, order)
	case *ast.UnaryExpr:
		c.collectGlobals(n.X, seen, order)
	case *ast.TupleExpr:
		for _, el := range n.Elems {
			c.collectGlobals(el, seen, order)
		}
	case *ast.ListExpr:
		for _, el := range n.Elems {
			c.collectGlobals(el, seen, order)
		}
	}
}

// containsCall reports whether e (recursively) contains a function or
// method call. Calls cannot be embedded inside a pure Expression tree —
// see emitExpr's doc comment on nested calls — so any such expression must be
// lowered as its own sequence of FnCall/Expression instructions rather
// than a single Expression tree.
func containsCall(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.CallExpr:
		return true
	case *ast.BinaryExpr:
		return containsCall(n.X) || containsCall(n.Y)
	case *ast.UnaryExpr:
		return containsCall(n.X)
	case *ast.TupleExpr:
		for _, el := range n.Elems {
			if containsCall(el) {
				return true
			}
		}
		return false
	case *ast.ListExpr:
		for _, el := range n.Elems {
			if containsCall(el) {
				return true
			}
		}
		return false
	case *ast.Index:
		return true // desugars to a .at()/.set() call
	default:
		return false
	}
}

// buildPureTree lowers a call-free expression into a bytecode.Expr. shift
// is added to every local's resolved offset (it accounts for the k values
// a preceding GlobalReads has pushed on top of the stack); globalOffset
// maps a global name to its StackRef offset among those k pushed values.
func (c *Compiler) buildPureTree(e ast.Expr, shift int, globalOffset map[string]int) (bytecode.Expr, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return bytecode.Lit{Value: n.Value}, nil
	case *ast.Ident:
		if off, _, ok := c.resolveLocal(n.Name); ok {
			return bytecode.StackRef{Offset: off + shift}, nil
		}
		if off, ok := globalOffset[n.Name]; ok {
			return bytecode.StackRef{Offset: off}, nil
		}
		return nil, diag.VariableError(dpos(n.Pos_), "undefined variable %q", n.Name)
	case *ast.BinaryExpr:
		x, err := c.buildPureTree(n.X, shift, globalOffset)
		if err != nil {
			return nil, err
		}
		y, err := c.buildPureTree(n.Y, shift, globalOffset)
		if err != nil {
			return nil, err
		}
		op, ok := binOpOf(n.Op)
		if !ok {
			return nil, diag.TypeError(dpos(n.Pos_), "unknown operator %q", n.Op)
		}
		return bytecode.Bin{Op: op, X: x, Y: y}, nil
	case *ast.UnaryExpr:
		x, err := c.buildPureTree(n.X, shift, globalOffset)
		if err != nil {
			return nil, err
		}
		return bytecode.Un{Negate: n.Op == "-", X: x}, nil
	case *ast.TupleExpr:
		elems := make([]bytecode.Expr, len(n.Elems))
		for i, el := range n.Elems {
			sub, err := c.buildPureTree(el, shift, globalOffset)
			if err != nil {
				return nil, err
			}
			elems[i] = sub
		}
		return bytecode.TupleExpr{Elems: elems}, nil
	case *ast.ListExpr:
		elems := make([]bytecode.Expr, len(n.Elems))
		for i, el := range n.Elems {
			sub, err := c.buildPureTree(el, shift, globalOffset)
			if err != nil {
				return nil, err
			}
			elems[i] = sub
		}
		return bytecode.ListExpr{Elem: n.Elem.Resolve(), Elems: elems}, nil
	default:
		return nil, diag.TypeError(dpos(e.Position()), "expression form not supported here")
	}
}

func binOpOf(op string) (value.BinaryOp, bool) {
	switch op {
	case "+":
		return value.Add, true
	case "-":
		return value.Sub, true
	case "*":
		return value.Mul, true
	case "/":
		return value.Div, true
	case "%":
		return value.Mod, true
	case "==":
		return value.Eq, true
	case "!=":
		return value.Neq, true
	case "<":
		return value.Lt, true
	case "<=":
		return value.Lte, true
	case ">":
		return value.Gt, true
	case ">=":
		return value.Gte, true
	case "&&":
		return value.And, true
	case "||":
		return value.Or, true
	default:
		return 0, false
	}
}

// emitPureExpr emits `[GlobalReads(names)?, Expression(tree)]` for a
// call-free expression, leaving exactly one value — the result — plus the
// len(names) global-read copies beneath it, on top of the stack. It
// returns the total number of values pushed (1 + len(names)), the
// unstack_len a subsequent Declaration/Assignment/Unstack must use to
// discard the temporaries.
func (c *Compiler) emitPureExpr(pos ast.Pos, e ast.Expr) (pushed int, err error) {
	seen := map[string]bool{}
	var order []string
	c.collectGlobals(e, seen, &order)
	if len(order) > 0 {
		c.emit(pos, bytecode.GlobalReads{Names: order})
	}
	globalOffset := map[string]int{}
	k := len(order)
	for i, name := range order {
		globalOffset[name] = k - 1 - i
	}
	tree, err := c.buildPureTree(e, k, globalOffset)
	if err != nil {
		return 0, err
	}
	c.emit(pos, bytecode.Expression{Tree: tree})
	return k + 1, nil
}

// emitExpr emits whatever instructions are needed to leave exactly one
// meaningful value on top of the stack, plus any temporaries beneath it,
// returning how many stack slots were pushed in total (the unstack_len the
// caller must later discard, keeping just the final value if it chooses to
// retain it, or everything if it doesn't).
//
// A bare call (`f(x)`, `recv.m(x)`) is emitted directly as a single
// FnCall, which pushes exactly its result. Any expression that is not
// itself a bare call, but contains one nested inside a larger expression,
// is rejected at compile time: Althread's bytecode has no stack-reordering
// instruction (no EXCH/ROT), so a nested call's result cannot be woven
// back into a sibling Expression tree. That form isn't supported, so
// `let r = a.len() + 1;` must be written as two statements.
func (c *Compiler) emitExpr(e ast.Expr) (pushed int, err error) {
	if call, ok := e.(*ast.CallExpr); ok {
		return c.emitCall(call)
	}
	if idx, ok := e.(*ast.Index); ok {
		return c.emitCall(&ast.CallExpr{Pos_: idx.Pos_, Receiver: idx.X, Callee: "at", Args: []ast.Expr{idx.I}})
	}
	if containsCall(e) {
		return 0, diag.TypeError(dpos(e.Position()), "calls cannot be nested inside a larger expression")
	}
	return c.emitPureExpr(e.Position(), e)
}

// inferType best-effort infers e's static datatype for the channel-typing
// checks in compileSend/compileConnect. It only resolves the shapes that
// are knowable without a full type-checker — literals, locals/globals,
// tuples and lists of known elements, the built-in operators, and calls to
// user-defined functions — and reports ok=false for anything else (stdlib
// method calls, process member access) so the caller skips the check
// rather than risk flagging code that's actually fine.
func (c *Compiler) inferType(e ast.Expr) (value.Datatype, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value.Type(), true
	case *ast.Ident:
		if _, v, ok := c.resolveLocal(n.Name); ok {
			return v.Type, true
		}
		if v, ok := c.globalTable[n.Name]; ok {
			return v.Type, true
		}
		return value.Datatype{}, false
	case *ast.TupleExpr:
		elems := make([]value.Datatype, len(n.Elems))
		for i, el := range n.Elems {
			t, ok := c.inferType(el)
			if !ok {
				return value.Datatype{}, false
			}
			elems[i] = t
		}
		return value.TupleT(elems...), true
	case *ast.ListExpr:
		return value.ListT(n.Elem.Resolve()), true
	case *ast.UnaryExpr:
		return c.inferType(n.X)
	case *ast.BinaryExpr:
		switch n.Op {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			return value.BoolT(), true
		default:
			return c.inferType(n.X)
		}
	case *ast.CallExpr:
		if n.Receiver == nil {
			if fn, ok := c.userFunctions[n.Callee]; ok {
				return fn.ReturnType, true
			}
		}
		return value.Datatype{}, false
	default:
		return value.Datatype{}, false
	}
}

package bytecode

import "github.com/althread/althread/internal/value"

// Expr is a compiled expression tree. Unlike the source AST, every
// identifier has already been resolved to a stack offset: the compiler
// emits a GlobalReads immediately before the Expression instruction to
// push copies of any referenced shared variables onto the stack, so by
// the time the tree evaluates, both locals and (now-local-on-stack)
// globals are reached the same way, through StackRef — the tree
// references stack offsets, not names.
type Expr interface {
	isExpr()
}

// Lit is a constant folded directly into the bytecode.
type Lit struct{ Value value.Value }

// StackRef reads the value `Offset` slots below the top of the evaluating
// program's memory stack (0 = the current top).
type StackRef struct{ Offset int }

// Bin is a binary operator application.
type Bin struct {
	Op   value.BinaryOp
	X, Y Expr
}

// Un is a unary operator application. Negate selects numeric negation;
// otherwise it is logical not.
type Un struct {
	Negate bool
	X      Expr
}

// TupleExpr builds a Tuple value from its component expressions.
type TupleExpr struct{ Elems []Expr }

// ListExpr builds a fresh *value.List of element type Elem from its
// component expressions.
type ListExpr struct {
	Elem  value.Datatype
	Elems []Expr
}

func (Lit) isExpr()       {}
func (StackRef) isExpr()  {}
func (Bin) isExpr()       {}
func (Un) isExpr()        {}
func (TupleExpr) isExpr() {}
func (ListExpr) isExpr()  {}

// EvalContext supplies the data an Expr needs to evaluate: the evaluating
// program's memory stack, indexed from the top.
type EvalContext struct {
	Stack []value.Value
}

// Eval evaluates e against ctx.
func Eval(e Expr, ctx EvalContext) (value.Value, error) {
	switch n := e.(type) {
	case Lit:
		return n.Value, nil
	case StackRef:
		return ctx.Stack[len(ctx.Stack)-1-n.Offset], nil
	case Bin:
		x, err := Eval(n.X, ctx)
		if err != nil {
			return nil, err
		}
		y, err := Eval(n.Y, ctx)
		if err != nil {
			return nil, err
		}
		return value.Binary(n.Op, x, y)
	case Un:
		x, err := Eval(n.X, ctx)
		if err != nil {
			return nil, err
		}
		return value.Unary(n.Negate, x)
	case TupleExpr:
		elems := make([]value.Value, len(n.Elems))
		for i, sub := range n.Elems {
			v, err := Eval(sub, ctx)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.Tuple(elems), nil
	case ListExpr:
		items := make([]value.Value, len(n.Elems))
		for i, sub := range n.Elems {
			v, err := Eval(sub, ctx)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &value.List{ElemType: n.Elem, Items: items}, nil
	default:
		return nil, errUnknownExpr()
	}
}

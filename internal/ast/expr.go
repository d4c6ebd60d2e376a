package ast

import "github.com/althread/althread/internal/value"

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

type Literal struct {
	Pos_  Pos
	Value value.Value
}

func (l *Literal) Position() Pos { return l.Pos_ }
func (*Literal) exprNode()       {}

// Ident is a bare identifier: a local variable, a global, or (inside an
// expression that will be rewritten by the compiler) a program-variable
// used as a channel-endpoint receiver, e.g. `a` in `a.out`.
type Ident struct {
	Pos_ Pos
	Name string
}

func (i *Ident) Position() Pos { return i.Pos_ }
func (*Ident) exprNode()       {}

// Member is `x.field`, used for channel endpoints (`a.out`) and for
// resolving which program a process-handle variable refers to.
type Member struct {
	Pos_ Pos
	X    Expr
	Name string
}

func (m *Member) Position() Pos { return m.Pos_ }
func (*Member) exprNode()       {}

// Index is `x[i]`, rewritten by the compiler into a call to `x.at(i)` when
// read and `x.set(i, v)` when assigned.
type Index struct {
	Pos_ Pos
	X    Expr
	I    Expr
}

func (ix *Index) Position() Pos { return ix.Pos_ }
func (*Index) exprNode()        {}

type BinaryExpr struct {
	Pos_  Pos
	Op    string
	X, Y  Expr
}

func (b *BinaryExpr) Position() Pos { return b.Pos_ }
func (*BinaryExpr) exprNode()       {}

type UnaryExpr struct {
	Pos_ Pos
	Op   string
	X    Expr
}

func (u *UnaryExpr) Position() Pos { return u.Pos_ }
func (*UnaryExpr) exprNode()       {}

type TupleExpr struct {
	Pos_  Pos
	Elems []Expr
}

func (t *TupleExpr) Position() Pos { return t.Pos_ }
func (*TupleExpr) exprNode()       {}

type ListExpr struct {
	Pos_  Pos
	Elem  TypeExpr
	Elems []Expr
}

func (l *ListExpr) Position() Pos { return l.Pos_ }
func (*ListExpr) exprNode()       {}

// CallExpr is `callee(args)` or, when Receiver != nil, `receiver.callee(args)`.
type CallExpr struct {
	Pos_     Pos
	Receiver Expr // nil for a user-defined function call
	Callee   string
	Args     []Expr
}

func (c *CallExpr) Position() Pos { return c.Pos_ }
func (*CallExpr) exprNode()       {}

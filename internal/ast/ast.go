// Package ast defines Althread's abstract syntax tree. Full parser-grammar
// coverage is out of scope; this package and its sibling lexer/parser
// exist only far enough to hand internal/compile real programs to lower.
package ast

import "github.com/althread/althread/internal/value"

// Pos locates a node in the original source.
type Pos struct {
	Line   int
	Column int
	Offset int
}

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
}

// File is the root of a parsed .alt source file.
type File struct {
	Shared    []*Declaration   // `shared { ... }` block contents
	Always    []*ConditionExpr // `always { ... }` block contents
	Eventually []*ConditionExpr
	Programs  []*ProgramDecl
	Functions []*FunctionDecl
	Imports   []*Import
}

type Import struct {
	Pos_   Pos
	Path   []string // dotted module path
	Prefix string   // local alias, defaults to last path component
}

func (i *Import) Position() Pos { return i.Pos_ }

// ConditionExpr is one expression inside an always/eventually block.
type ConditionExpr struct {
	Pos_ Pos
	Expr Expr
}

func (c *ConditionExpr) Position() Pos { return c.Pos_ }

// ProgramDecl is a top-level `name(params) { body }` program definition.
type ProgramDecl struct {
	Pos_   Pos
	Name   string
	Params []Param
	Body   []Stmt
}

func (p *ProgramDecl) Position() Pos { return p.Pos_ }

type Param struct {
	Name string
	Type TypeExpr
}

// FunctionDecl is a top-level `fn name(params): type { body }` definition.
type FunctionDecl struct {
	Pos_       Pos
	Name       string
	Params     []Param
	ReturnType TypeExpr // nil means void
	Body       []Stmt
}

func (f *FunctionDecl) Position() Pos { return f.Pos_ }

// TypeExpr is a parsed type annotation, later resolved to a value.Datatype.
type TypeExpr struct {
	Pos_    Pos
	Name    string     // "void","bool","int","float","string", or a process name
	IsProc  bool
	Elems   []TypeExpr // tuple component types
	IsTuple bool
	Elem    *TypeExpr // list element type
	IsList  bool
}

func (t TypeExpr) Position() Pos { return t.Pos_ }

// Resolve converts a parsed TypeExpr into a value.Datatype.
func (t TypeExpr) Resolve() value.Datatype {
	switch {
	case t.IsProc:
		return value.ProcessT(t.Name)
	case t.IsTuple:
		elems := make([]value.Datatype, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = e.Resolve()
		}
		return value.TupleT(elems...)
	case t.IsList:
		return value.ListT(t.Elem.Resolve())
	default:
		switch t.Name {
		case "bool":
			return value.BoolT()
		case "int":
			return value.IntT()
		case "float":
			return value.FloatT()
		case "string":
			return value.StringT()
		default:
			return value.Void()
		}
	}
}

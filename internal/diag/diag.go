// Package diag implements Althread's error taxonomy: a Kind hierarchy,
// each carrying a source position so the CLI can print a one-line summary
// with an optional source excerpt. The wrapping style is small structs
// around fmt.Errorf-produced messages.
package diag

import "fmt"

// Kind classifies a diagnostic.
type Kind int

const (
	Syntax Kind = iota
	Type
	Variable
	Channel
	Function
	InstructionNotAllowed
	Import
	Expression
	Runtime
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "SyntaxError"
	case Type:
		return "TypeError"
	case Variable:
		return "VariableError"
	case Channel:
		return "ChannelError"
	case Function:
		return "FunctionError"
	case InstructionNotAllowed:
		return "InstructionNotAllowed"
	case Import:
		return "ImportError"
	case Expression:
		return "ExpressionError"
	case Runtime:
		return "RuntimeError"
	case InvariantViolation:
		return "InvariantViolation"
	default:
		return "Error"
	}
}

// Position locates a diagnostic in source.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is an Althread diagnostic: a Kind, a Position, and a message.
type Error struct {
	K   Kind
	Pos Position
	Msg string
	// Excerpt is the offending source line, filled in by the CLI when it
	// has the original source text available.
	Excerpt string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.K, e.Pos, e.Msg)
}

// New builds an Error. Helper constructors below name the common kinds so
// call sites read as `diag.TypeError(pos, "...")`.
func New(k Kind, pos Position, format string, args ...any) *Error {
	return &Error{K: k, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func TypeError(pos Position, format string, args ...any) *Error {
	return New(Type, pos, format, args...)
}

func VariableError(pos Position, format string, args ...any) *Error {
	return New(Variable, pos, format, args...)
}

func ChannelError(pos Position, format string, args ...any) *Error {
	return New(Channel, pos, format, args...)
}

func FunctionError(pos Position, format string, args ...any) *Error {
	return New(Function, pos, format, args...)
}

func NotAllowed(pos Position, format string, args ...any) *Error {
	return New(InstructionNotAllowed, pos, format, args...)
}

func ImportError(pos Position, format string, args ...any) *Error {
	return New(Import, pos, format, args...)
}

func SyntaxError(pos Position, format string, args ...any) *Error {
	return New(Syntax, pos, format, args...)
}

func ExpressionError(pos Position, format string, args ...any) *Error {
	return New(Expression, pos, format, args...)
}

func RuntimeError(pos Position, format string, args ...any) *Error {
	return New(Runtime, pos, format, args...)
}

func Violation(pos Position, format string, args ...any) *Error {
	return New(InvariantViolation, pos, format, args...)
}

// Bag accumulates compile-time errors so the compiler can report more than
// the first failure it hits.
type Bag struct {
	Errors []*Error
}

func (b *Bag) Add(e *Error) { b.Errors = append(b.Errors, e) }

func (b *Bag) HasErrors() bool { return len(b.Errors) > 0 }

func (b *Bag) Error() string {
	if len(b.Errors) == 0 {
		return ""
	}
	s := b.Errors[0].Error()
	if len(b.Errors) > 1 {
		s += fmt.Sprintf(" (and %d more error(s))", len(b.Errors)-1)
	}
	return s
}

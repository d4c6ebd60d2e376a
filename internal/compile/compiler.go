// Package compile lowers Althread's AST into the flat bytecode ISA defined
// by internal/bytecode (C4). It tracks, at compile time, exactly what the
// real VM stack will look like at every point — the simulated stack of
// Variable descriptors below — so that every identifier resolves to a
// stack offset or a global name before a single instruction is emitted.
package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/stdlib"
	"github.com/althread/althread/internal/value"
)

// Variable is the compiler's lexical descriptor for one stack slot: a
// declared variable, a channel-table entry, or a function parameter. The
// VM itself never sees names — only the stack indices resolved here.
type Variable struct {
	Name       string
	Type       value.Datatype
	Mutable    bool
	Depth      int
	DeclarePos ast.Pos
}

// ChannelKey identifies a declared channel by the program that owns it and
// the channel's local name.
type ChannelKey struct {
	Program string
	Name    string
}

type ChannelInfo struct {
	Elems []value.Datatype
	Pos   ast.Pos
}

type FunctionDef struct {
	Name       string
	ParamNames []string
	ParamTypes []value.Datatype
	ReturnType value.Datatype
	IsVoid     bool
	Code       *bytecode.ProgramCode
}

type ConditionCode struct {
	DependencySet []string // set form, for wake-up matching
	ReadOrder     []string // ordered form, matches the GlobalReads instruction
	Expr          bytecode.Expr
	Pos           ast.Pos
}

// CompiledProject is the compiler's complete output: one ProgramCode per
// declared program, the shared-memory tables, the user function registry,
// and the always/eventually condition set.
type CompiledProject struct {
	Programs         map[string]*bytecode.ProgramCode
	GlobalMemory     map[string]value.Value
	GlobalTable      map[string]Variable
	ProgramArguments map[string][]value.Datatype
	UserFunctions    map[string]*FunctionDef
	Always           []ConditionCode
	Eventually       []ConditionCode
	Channels         map[ChannelKey]ChannelInfo
	Stdlib           *stdlib.Stdlib
}

// Compiler holds all compile-time state for one compilation unit (a file
// plus its resolved imports). A single Compiler instance lowers every
// program and every global declaration in the unit, function signatures
// and prescan first, then bodies.
type Compiler struct {
	stack              []Variable
	code               []bytecode.Instruction
	currentStackDepth  int
	globalTable        map[string]Variable
	globalMemory       map[string]value.Value
	channels           map[ChannelKey]ChannelInfo
	undefinedChannels  map[ChannelKey]ast.Pos
	userFunctions      map[string]*FunctionDef
	programArguments   map[string][]value.Datatype
	always             []ConditionCode
	eventually         []ConditionCode
	isAtomic           bool
	inFunction         bool
	currentProgramName string
	modulePrefix       string
	stdlib             *stdlib.Stdlib
	bag                *diag.Bag
	loops              []loopFrame
	tmpCounter         int
	// imported holds the renamed ProgramCode of every program merged in
	// from an import, folded into the final CompiledProject.Programs map
	// alongside this file's own.
	imported map[string]*bytecode.ProgramCode
}

// loopFrame tracks the bookkeeping a break/continue inside a while/for/loop
// needs: where continuing jumps back to, the stack depth at loop entry (so
// break/continue know how many values to unstack on their way out), and the
// list of break-instruction indices still waiting for their Jump target to
// be patched once the loop's end address is known.
type loopFrame struct {
	continueTarget int
	baseStackLen   int
	breakPatches   []int
}

func New() *Compiler {
	return &Compiler{
		globalTable:       make(map[string]Variable),
		globalMemory:      make(map[string]value.Value),
		channels:          make(map[ChannelKey]ChannelInfo),
		undefinedChannels: make(map[ChannelKey]ast.Pos),
		userFunctions:     make(map[string]*FunctionDef),
		programArguments:  make(map[string][]value.Datatype),
		stdlib:            stdlib.New(),
		bag:               &diag.Bag{},
	}
}

// Compile lowers a parsed file into a CompiledProject. Errors are
// accumulated in the returned Bag; Compile returns (project, nil) only
// when the Bag is empty.
func Compile(file *ast.File) (*CompiledProject, *diag.Bag) {
	c := New()
	return c.compileFile(file)
}

func pos(p ast.Pos) bytecode.SourcePosition {
	return bytecode.SourcePosition{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

func dpos(p ast.Pos) diag.Position {
	return diag.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

func (c *Compiler) compileFile(file *ast.File) (*CompiledProject, *diag.Bag) {
	// Register function signatures first (two-pass) so forward/recursive
	// calls resolve during body lowering.
	for _, fn := range file.Functions {
		c.registerFunctionSignature(fn)
	}

	// Register program argument types so `run` call sites can type-check
	// before the callee's body has necessarily been compiled.
	for _, p := range file.Programs {
		types := make([]value.Datatype, len(p.Params))
		for i, prm := range p.Params {
			types[i] = prm.Type.Resolve()
		}
		c.programArguments[p.Name] = types
	}

	// Pre-scan every program and function body for channel declarations
	// and run-spawned process variables.
	c.prescan(file)

	// Shared (global) declarations are evaluated at compile time.
	for _, d := range file.Shared {
		c.compileGlobalDeclaration(d)
	}

	// Always/eventually condition blocks.
	for _, ce := range file.Always {
		if cc, ok := c.compileCondition(ce); ok {
			c.always = append(c.always, cc)
		}
	}
	for _, ce := range file.Eventually {
		if cc, ok := c.compileCondition(ce); ok {
			c.eventually = append(c.eventually, cc)
		}
	}

	// Function bodies (second pass).
	for _, fn := range file.Functions {
		c.compileFunctionBody(fn)
	}

	programs := make(map[string]*bytecode.ProgramCode)
	for name, code := range c.imported {
		programs[name] = code
	}
	for _, p := range file.Programs {
		code := c.compileProgram(p)
		programs[p.Name] = code
	}

	for key, upos := range c.undefinedChannels {
		c.bag.Add(diag.ChannelError(dpos(upos), "channel %s.%s is used but never declared", key.Program, key.Name))
	}

	if c.bag.HasErrors() {
		return nil, c.bag
	}

	return &CompiledProject{
		Programs:         programs,
		GlobalMemory:     c.globalMemory,
		GlobalTable:      c.globalTable,
		ProgramArguments: c.programArguments,
		UserFunctions:    c.userFunctions,
		Always:           c.always,
		Eventually:       c.eventually,
		Channels:         c.channels,
		Stdlib:           c.stdlib,
	}, nil
}

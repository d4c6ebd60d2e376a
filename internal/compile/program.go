package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// constEval evaluates a shared-memory initializer at compile time. Shared
// declarations run before the VM exists, so their initializers may only
// reference literals and previously-declared shared variables — no calls,
// no local variables, no reference to a program's own state.
func (c *Compiler) constEval(e ast.Expr) (value.Value, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Ident:
		if v, ok := c.globalMemory[n.Name]; ok {
			return v, nil
		}
		return nil, diag.VariableError(dpos(n.Pos_), "undefined shared variable %q", n.Name)
	case *ast.BinaryExpr:
		x, err := c.constEval(n.X)
		if err != nil {
			return nil, err
		}
		y, err := c.constEval(n.Y)
		if err != nil {
			return nil, err
		}
		op, ok := binOpOf(n.Op)
		if !ok {
			return nil, diag.TypeError(dpos(n.Pos_), "unknown operator %q", n.Op)
		}
		return value.Binary(op, x, y)
	case *ast.UnaryExpr:
		x, err := c.constEval(n.X)
		if err != nil {
			return nil, err
		}
		return value.Unary(n.Op == "-", x)
	case *ast.TupleExpr:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := c.constEval(el)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.Tuple(elems), nil
	case *ast.ListExpr:
		items := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := c.constEval(el)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &value.List{ElemType: n.Elem.Resolve(), Items: items}, nil
	default:
		return nil, diag.TypeError(dpos(e.Position()), "shared initializer must be a constant expression")
	}
}

func (c *Compiler) compileGlobalDeclaration(d *ast.Declaration) {
	if d.IsChannel {
		c.bag.Add(diag.NotAllowed(dpos(d.Pos_), "shared channels are not supported; declare the channel inside a program"))
		return
	}
	v, err := c.constEval(d.Init)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(d.Pos_), "%s", err))
		return
	}
	typ := v.Type()
	if d.Type != nil {
		typ = d.Type.Resolve()
	}
	c.globalMemory[d.Name] = v
	c.globalTable[d.Name] = Variable{Name: d.Name, Type: typ, Mutable: d.Mutable, DeclarePos: d.Pos_}
}

// compileCondition lowers an always/eventually block into the fixed
// `[GlobalReads, Expression]` shape the checker evaluates against every
// reachable state: the condition may reference shared variables only.
func (c *Compiler) compileCondition(ce *ast.ConditionExpr) (ConditionCode, bool) {
	seen := map[string]bool{}
	var order []string
	c.collectGlobals(ce.Expr, seen, &order)
	for _, name := range order {
		if _, ok := c.globalTable[name]; !ok {
			c.bag.Add(diag.VariableError(dpos(ce.Pos_), "undefined shared variable %q", name))
			return ConditionCode{}, false
		}
	}
	globalOffset := map[string]int{}
	k := len(order)
	for i, name := range order {
		globalOffset[name] = k - 1 - i
	}
	tree, err := c.buildPureTree(ce.Expr, k, globalOffset)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(ce.Pos_), "%s", err))
		return ConditionCode{}, false
	}
	return ConditionCode{DependencySet: append([]string(nil), order...), ReadOrder: order, Expr: tree, Pos: ce.Pos_}, true
}

// compileProgram lowers one program declaration's body, parameters first
// (bound exactly like function parameters), terminated by a synthetic
// EndProgram.
func (c *Compiler) compileProgram(p *ast.ProgramDecl) *bytecode.ProgramCode {
	savedStack, savedCode, savedDepth := c.stack, c.code, c.currentStackDepth
	c.stack, c.code, c.currentStackDepth = nil, nil, 0
	c.currentProgramName = p.Name
	c.isAtomic = false

	c.pushDepth()
	types := c.programArguments[p.Name]
	for i, prm := range p.Params {
		typ := prm.Type.Resolve()
		if i < len(types) {
			typ = types[i]
		}
		c.declareLocal(Variable{Name: prm.Name, Type: typ, Mutable: true, DeclarePos: p.Pos_})
	}

	for _, s := range p.Body {
		c.compileStmt(s)
	}
	c.emitSynthetic(bytecode.EndProgram{})

	code := &bytecode.ProgramCode{Name: p.Name, Instructions: c.code}
	c.stack, c.code, c.currentStackDepth = savedStack, savedCode, savedDepth
	c.currentProgramName = ""
	return code
}

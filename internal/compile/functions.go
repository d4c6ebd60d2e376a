package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// registerFunctionSignature records a user function's name/parameter/
// return types before any body is compiled, so a function may call itself
// or a function declared later in the file.
func (c *Compiler) registerFunctionSignature(fn *ast.FunctionDecl) {
	if _, dup := c.userFunctions[fn.Name]; dup {
		c.bag.Add(diag.FunctionError(dpos(fn.Pos_), "function %q declared more than once", fn.Name))
		return
	}
	paramNames := make([]string, len(fn.Params))
	paramTypes := make([]value.Datatype, len(fn.Params))
	for i, p := range fn.Params {
		paramNames[i] = p.Name
		paramTypes[i] = p.Type.Resolve()
	}
	isVoid := fn.ReturnType.Name == "" && !fn.ReturnType.IsTuple && !fn.ReturnType.IsList && !fn.ReturnType.IsProc
	ret := value.Void()
	if !isVoid {
		ret = fn.ReturnType.Resolve()
	}
	c.userFunctions[fn.Name] = &FunctionDef{
		Name:       fn.Name,
		ParamNames: paramNames,
		ParamTypes: paramTypes,
		ReturnType: ret,
		IsVoid:     isVoid,
	}
}

// compileFunctionBody lowers a function's body. Parameters are pre-declared
// as locals in the body's outermost scope (mirroring how FnCall's Arguments
// tuple will be unpacked by the runtime into the callee's fresh frame), and
// a missing-return check (allPathsReturn) requires every path out of a
// non-void function to end in a Return with a value.
func (c *Compiler) compileFunctionBody(fn *ast.FunctionDecl) {
	def := c.userFunctions[fn.Name]
	if def == nil {
		return
	}

	savedStack, savedCode, savedDepth := c.stack, c.code, c.currentStackDepth
	savedInFunction := c.inFunction
	c.stack, c.code, c.currentStackDepth = nil, nil, 0
	c.inFunction = true

	c.pushDepth()
	for i, name := range def.ParamNames {
		c.declareLocal(Variable{Name: name, Type: def.ParamTypes[i], Mutable: true, DeclarePos: fn.Pos_})
	}
	for _, s := range fn.Body {
		c.compileStmt(s)
	}
	if !def.IsVoid && !allPathsReturn(fn.Body) {
		c.bag.Add(diag.FunctionError(dpos(fn.Pos_), "function %q does not return a value on every path", fn.Name))
	}
	if def.IsVoid {
		c.emitSynthetic(bytecode.Return{HasValue: false})
	}

	def.Code = &bytecode.ProgramCode{Name: fn.Name, Instructions: c.code}

	c.stack, c.code, c.currentStackDepth = savedStack, savedCode, savedDepth
	c.inFunction = savedInFunction
}

// allPathsReturn is the missing-return check, a structural walk of the
// statement tree: a block guarantees return only if its last statement
// does, where an if/else guarantees it only when *both* branches do, loops
// never do (a break could skip them), and a `return` without a value does
// not count.
func allPathsReturn(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	return stmtReturns(body[len(body)-1])
}

func stmtReturns(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.Return:
		return n.Value != nil
	case *ast.Block:
		return allPathsReturn(n.Stmts)
	case *ast.If:
		return n.Else != nil && allPathsReturn(n.Then) && allPathsReturn(n.Else)
	case *ast.Atomic:
		return allPathsReturn(n.Body)
	default:
		return false
	}
}

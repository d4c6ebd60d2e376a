package compile

import (
	"fmt"

	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/value"
)

// compileBlock lowers a nested list of statements inside their own lexical
// scope, emitting the closing Unstack that keeps the simulated stack's
// depth symmetric around the block.
func (c *Compiler) compileBlock(pos ast.Pos, stmts []ast.Stmt) {
	c.pushDepth()
	for _, s := range stmts {
		c.compileStmt(s)
	}
	if n := c.unstackCurrentDepth(); n > 0 {
		c.emit(pos, bytecode.Unstack{N: n})
	}
}

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Declaration:
		c.compileDeclaration(n)
	case *ast.ExprStmt:
		pushed, err := c.emitExpr(n.X)
		if err != nil {
			c.bag.Add(diag.ExpressionError(dpos(n.Pos_), "%s", err))
			return
		}
		if pushed > 0 {
			c.emit(n.Pos_, bytecode.Unstack{N: pushed})
		}
	case *ast.Assignment:
		c.compileAssignment(n)
	case *ast.Block:
		c.compileBlock(n.Pos_, n.Stmts)
	case *ast.If:
		c.compileIf(n)
	case *ast.While:
		c.compileWhile(n)
	case *ast.For:
		c.compileFor(n)
	case *ast.Loop:
		c.compileLoop(n)
	case *ast.Break:
		c.compileBreak(n)
	case *ast.Continue:
		c.compileContinue(n)
	case *ast.Atomic:
		c.compileAtomic(n)
	case *ast.Run:
		c.compileRun(n)
	case *ast.Wait:
		c.compileWait(n)
	case *ast.Send:
		c.compileSend(n)
	case *ast.Connect:
		c.compileConnect(n)
	case *ast.Return:
		c.compileReturn(n)
	default:
		c.bag.Add(diag.TypeError(dpos(s.Position()), "unsupported statement"))
	}
}

func (c *Compiler) compileDeclaration(d *ast.Declaration) {
	if d.IsChannel {
		elems := make([]value.Datatype, len(d.ChanElems))
		for i, t := range d.ChanElems {
			elems[i] = t.Resolve()
		}
		key := ChannelKey{Program: c.currentProgramName, Name: d.Name}
		c.channels[key] = ChannelInfo{Elems: elems, Pos: d.Pos_}
		return
	}

	if call, ok := d.Init.(*ast.CallExpr); ok && call.Receiver == nil {
		if _, isProgram := c.programArguments[call.Callee]; isProgram {
			pushed := c.emitRunCall(call, true)
			c.emit(d.Pos_, bytecode.Declaration{UnstackLen: pushed - 1})
			c.declareLocal(Variable{Name: d.Name, Type: value.ProcessT(call.Callee), Mutable: d.Mutable, DeclarePos: d.Pos_})
			return
		}
	}

	pushed, err := c.emitExpr(d.Init)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(d.Pos_), "%s", err))
		return
	}
	c.emit(d.Pos_, bytecode.Declaration{UnstackLen: pushed - 1})

	typ := value.Void()
	if d.Type != nil {
		typ = d.Type.Resolve()
	}
	c.declareLocal(Variable{Name: d.Name, Type: typ, Mutable: d.Mutable, DeclarePos: d.Pos_})
}

func assignOpOf(op string) (bytecode.AssignOp, error) {
	switch op {
	case "=":
		return bytecode.SetOp(), nil
	case "+=":
		return bytecode.CompoundOp(value.Add), nil
	case "-=":
		return bytecode.CompoundOp(value.Sub), nil
	case "*=":
		return bytecode.CompoundOp(value.Mul), nil
	case "/=":
		return bytecode.CompoundOp(value.Div), nil
	case "%=":
		return bytecode.CompoundOp(value.Mod), nil
	default:
		return bytecode.AssignOp{}, fmt.Errorf("unknown assignment operator %q", op)
	}
}

func (c *Compiler) compileAssignment(a *ast.Assignment) {
	if idx, ok := a.Target.(*ast.Index); ok {
		c.compileIndexAssignment(a, idx)
		return
	}
	id, ok := a.Target.(*ast.Ident)
	if !ok {
		c.bag.Add(diag.TypeError(dpos(a.Pos_), "assignment target must be a variable or index expression"))
		return
	}

	op, err := assignOpOf(a.Op)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(a.Pos_), "%s", err))
		return
	}

	pushed, err := c.emitExpr(a.Value)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(a.Pos_), "%s", err))
		return
	}

	if off, v, ok := c.resolveLocal(id.Name); ok {
		if !v.Mutable {
			c.bag.Add(diag.TypeError(dpos(a.Pos_), "%q is not declared mut", id.Name))
		}
		c.emit(a.Pos_, bytecode.LocalAssignment{Index: off + pushed, Op: op, UnstackLen: pushed - 1})
		return
	}
	if _, ok := c.globalTable[id.Name]; ok {
		c.emit(a.Pos_, bytecode.GlobalAssignment{Name: id.Name, Op: op, UnstackLen: pushed - 1})
		return
	}
	c.bag.Add(diag.VariableError(dpos(a.Pos_), "undefined variable %q", id.Name))
}

// compileIndexAssignment desugars `target[i] = v;` into `target.set(i, v);`.
func (c *Compiler) compileIndexAssignment(a *ast.Assignment, idx *ast.Index) {
	if a.Op != "=" {
		c.bag.Add(diag.TypeError(dpos(a.Pos_), "compound assignment to an index expression is not supported"))
		return
	}
	call := &ast.CallExpr{Pos_: a.Pos_, Receiver: idx.X, Callee: "set", Args: []ast.Expr{idx.I, a.Value}}
	pushed, err := c.emitCall(call)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(a.Pos_), "%s", err))
		return
	}
	c.emit(a.Pos_, bytecode.Unstack{N: pushed})
}

func (c *Compiler) patchJump(idx int, target int) {
	switch ctrl := c.code[idx].Control.(type) {
	case bytecode.JumpIf:
		ctrl.JumpFalse = target
		c.code[idx].Control = ctrl
	case bytecode.Jump:
		ctrl.N = target
		c.code[idx].Control = ctrl
	case bytecode.Break:
		ctrl.Jump = target
		c.code[idx].Control = ctrl
	case bytecode.Wait:
		ctrl.Jump = target
		c.code[idx].Control = ctrl
	default:
		panic("compile: patchJump on non-jump instruction")
	}
}

func (c *Compiler) compileIf(n *ast.If) {
	pushed, err := c.emitExpr(n.Cond)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
		return
	}
	jumpIfIdx := c.here()
	c.emit(n.Pos_, bytecode.JumpIf{UnstackLen: pushed - 1})

	c.compileBlock(n.Pos_, n.Then)

	if n.Else != nil {
		jumpEndIdx := c.here()
		c.emit(n.Pos_, bytecode.Jump{})
		c.patchJump(jumpIfIdx, c.here())
		c.compileBlock(n.Pos_, n.Else)
		c.patchJump(jumpEndIdx, c.here())
	} else {
		c.patchJump(jumpIfIdx, c.here())
	}
}

func (c *Compiler) compileWhile(n *ast.While) {
	loopStart := c.here()
	pushed, err := c.emitExpr(n.Cond)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
		return
	}
	jumpIfIdx := c.here()
	c.emit(n.Pos_, bytecode.JumpIf{UnstackLen: pushed - 1})

	c.loops = append(c.loops, loopFrame{continueTarget: loopStart, baseStackLen: len(c.stack)})
	c.compileBlock(n.Pos_, n.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(n.Pos_, bytecode.Jump{N: loopStart})
	end := c.here()
	c.patchJump(jumpIfIdx, end)
	for _, idx := range frame.breakPatches {
		c.patchJump(idx, end)
	}
}

func (c *Compiler) compileLoop(n *ast.Loop) {
	loopStart := c.here()
	c.loops = append(c.loops, loopFrame{continueTarget: loopStart, baseStackLen: len(c.stack)})
	c.compileBlock(n.Pos_, n.Body)
	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(n.Pos_, bytecode.Jump{N: loopStart})
	end := c.here()
	for _, idx := range frame.breakPatches {
		c.patchJump(idx, end)
	}
}

// compileFor desugars `for x in iter { body }` over a List value into an
// index-counted While, since the ISA has no dedicated iterator opcode:
//
//	let $iterN = iter;
//	let $lenN = $iterN.len();
//	let mut $idxN = 0;
//	while $idxN < $lenN {
//	    let x = $iterN.at($idxN);
//	    body
//	    $idxN += 1;
//	}
func (c *Compiler) compileFor(n *ast.For) {
	id := c.tmpCounter
	c.tmpCounter++
	iterName := fmt.Sprintf("$iter%d", id)
	lenName := fmt.Sprintf("$len%d", id)
	idxName := fmt.Sprintf("$idx%d", id)

	c.pushDepth()

	c.compileDeclaration(&ast.Declaration{Pos_: n.Pos_, Name: iterName, Init: n.Iter})

	lenCall := &ast.CallExpr{Pos_: n.Pos_, Receiver: &ast.Ident{Pos_: n.Pos_, Name: iterName}, Callee: "len"}
	c.compileDeclaration(&ast.Declaration{Pos_: n.Pos_, Name: lenName, Init: lenCall})

	zero := &ast.Literal{Pos_: n.Pos_, Value: value.Int(0)}
	c.compileDeclaration(&ast.Declaration{Pos_: n.Pos_, Name: idxName, Mutable: true, Init: zero})

	cond := &ast.BinaryExpr{Pos_: n.Pos_, Op: "<", X: &ast.Ident{Pos_: n.Pos_, Name: idxName}, Y: &ast.Ident{Pos_: n.Pos_, Name: lenName}}

	loopStart := c.here()
	pushed, err := c.emitExpr(cond)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
		return
	}
	jumpIfIdx := c.here()
	c.emit(n.Pos_, bytecode.JumpIf{UnstackLen: pushed - 1})

	c.loops = append(c.loops, loopFrame{continueTarget: loopStart, baseStackLen: len(c.stack)})

	c.pushDepth()
	atCall := &ast.CallExpr{Pos_: n.Pos_, Receiver: &ast.Ident{Pos_: n.Pos_, Name: iterName}, Callee: "at", Args: []ast.Expr{&ast.Ident{Pos_: n.Pos_, Name: idxName}}}
	c.compileDeclaration(&ast.Declaration{Pos_: n.Pos_, Name: n.Var, Init: atCall})
	for _, s := range n.Body {
		c.compileStmt(s)
	}
	incr := &ast.Assignment{Pos_: n.Pos_, Target: &ast.Ident{Pos_: n.Pos_, Name: idxName}, Op: "+=", Value: &ast.Literal{Pos_: n.Pos_, Value: value.Int(1)}}
	c.compileAssignment(incr)
	if m := c.unstackCurrentDepth(); m > 0 {
		c.emit(n.Pos_, bytecode.Unstack{N: m})
	}

	frame := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emit(n.Pos_, bytecode.Jump{N: loopStart})
	end := c.here()
	c.patchJump(jumpIfIdx, end)
	for _, idx := range frame.breakPatches {
		c.patchJump(idx, end)
	}

	if m := c.unstackCurrentDepth(); m > 0 {
		c.emit(n.Pos_, bytecode.Unstack{N: m})
	}
}

func (c *Compiler) compileBreak(n *ast.Break) {
	if len(c.loops) == 0 {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "break outside a loop"))
		return
	}
	frame := &c.loops[len(c.loops)-1]
	idx := c.here()
	c.emit(n.Pos_, bytecode.Break{UnstackLen: len(c.stack) - frame.baseStackLen, StopAtomic: c.isAtomic})
	frame.breakPatches = append(frame.breakPatches, idx)
}

func (c *Compiler) compileContinue(n *ast.Continue) {
	if len(c.loops) == 0 {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "continue outside a loop"))
		return
	}
	frame := c.loops[len(c.loops)-1]
	c.emit(n.Pos_, bytecode.Jump{N: frame.continueTarget})
}

func (c *Compiler) compileAtomic(n *ast.Atomic) {
	if c.inFunction {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "atomic is not allowed inside a function body"))
		return
	}
	wasAtomic := c.isAtomic
	if wasAtomic {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "atomic blocks cannot be nested"))
		return
	}
	// A wait/send as the block's own first statement is its delegated
	// entry point rather than a statement running inside an already-open
	// atomic region, so isAtomic stays false while that first statement is
	// lowered, and its WaitStart is then marked StartAtomic. Every later
	// statement of the block is lowered with isAtomic set, so compileWait/
	// compileSend reject any other wait/send the normal way.
	delegated := delegatedAtomicEntry(n.Body)
	c.emit(n.Pos_, bytecode.AtomicStart{})
	entryIdx := c.here()
	c.pushDepth()
	for i, s := range n.Body {
		c.isAtomic = !delegated || i > 0
		c.compileStmt(s)
	}
	if m := c.unstackCurrentDepth(); m > 0 {
		c.emit(n.Pos_, bytecode.Unstack{N: m})
	}
	if delegated && entryIdx < len(c.code) {
		if ws, ok := c.code[entryIdx].Control.(bytecode.WaitStart); ok {
			ws.StartAtomic = true
			c.code[entryIdx].Control = ws
		}
	}
	c.emit(n.Pos_, bytecode.AtomicEnd{})
	c.isAtomic = wasAtomic
}

// delegatedAtomicEntry reports whether body's first reachable statement —
// descending into a nested block's own first statement — is a wait or
// send, the one case a wait/send is allowed directly inside an atomic
// block.
func delegatedAtomicEntry(body []ast.Stmt) bool {
	for len(body) > 0 {
		switch n := body[0].(type) {
		case *ast.Wait, *ast.Send:
			return true
		case *ast.Block:
			body = n.Stmts
		default:
			return false
		}
	}
	return false
}

func (c *Compiler) compileRun(n *ast.Run) {
	pushed := c.emitRunCall(&ast.CallExpr{Pos_: n.Pos_, Callee: n.Name, Args: n.Args}, false)
	if pushed > 0 {
		c.emit(n.Pos_, bytecode.Unstack{N: pushed})
	}
}

// emitRunCall spawns program call.Callee with call.Args, returning the
// number of values left on the stack: len(referenced globals) for a bare
// `run`, or 1 + len(referenced globals) when binds is set (the
// `let p = Foo();` form), matching the convention emitPureExpr uses so the caller can
// Declaration/Unstack it the same way.
func (c *Compiler) emitRunCall(call *ast.CallExpr, binds bool) int {
	for _, a := range call.Args {
		if containsCall(a) {
			c.bag.Add(diag.TypeError(dpos(call.Pos_), "calls cannot be nested inside a run argument"))
			return 0
		}
	}
	seen := map[string]bool{}
	var order []string
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
	args := make([]bytecode.Expr, len(call.Args))
	for i, a := range call.Args {
		tree, err := c.buildPureTree(a, k, globalOffset)
		if err != nil {
			c.bag.Add(diag.TypeError(dpos(call.Pos_), "%s", err))
			return 0
		}
		args[i] = tree
	}
	c.emit(call.Pos_, bytecode.RunCall{Name: call.Callee, UnstackLen: k, BindsResult: binds, Arguments: bytecode.TupleExpr{Elems: args}})
	if binds {
		return k + 1
	}
	return k
}

func (c *Compiler) compileSend(n *ast.Send) {
	if c.isAtomic {
		c.bag.Add(diag.NotAllowed(dpos(n.Pos_), "send is not allowed inside an atomic block unless it is the block's own entry statement"))
		return
	}
	if !c.checkSendType(n) {
		return
	}
	seen := map[string]bool{}
	var order []string
	for _, v := range n.Values {
		if containsCall(v) {
			c.bag.Add(diag.TypeError(dpos(n.Pos_), "calls cannot be nested inside a send expression"))
			return
		}
		c.collectGlobals(v, seen, &order)
	}
	k := len(order)
	if k > 0 {
		c.emit(n.Pos_, bytecode.GlobalReads{Names: order})
	}
	globalOffset := map[string]int{}
	for i, name := range order {
		globalOffset[name] = k - 1 - i
	}
	var payload bytecode.Expr
	if len(n.Values) == 1 {
		tree, err := c.buildPureTree(n.Values[0], k, globalOffset)
		if err != nil {
			c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
			return
		}
		payload = tree
	} else {
		elems := make([]bytecode.Expr, len(n.Values))
		for i, v := range n.Values {
			tree, err := c.buildPureTree(v, k, globalOffset)
			if err != nil {
				c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
				return
			}
			elems[i] = tree
		}
		payload = bytecode.TupleExpr{Elems: elems}
	}
	c.emit(n.Pos_, bytecode.Expression{Tree: payload})
	c.emit(n.Pos_, bytecode.Send{ChannelName: n.Channel, UnstackLen: k})
}

// checkSendType verifies a send's payload against the channel's declared
// element tuple. A channel that failed to resolve here is skipped — it is
// already reported through undefinedChannels — and a value whose static
// type can't be determined (a stdlib method call, say) is left unchecked
// rather than risk flagging code that is actually fine.
func (c *Compiler) checkSendType(n *ast.Send) bool {
	key := ChannelKey{Program: c.currentProgramName, Name: n.Channel}
	info, ok := c.channels[key]
	if !ok {
		return true
	}
	if len(n.Values) != len(info.Elems) {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "channel %q expects %d value(s), got %d", n.Channel, len(info.Elems), len(n.Values)))
		return false
	}
	for i, v := range n.Values {
		want := info.Elems[i]
		got, ok := c.inferType(v)
		if !ok || got.Equal(want) {
			continue
		}
		c.bag.Add(diag.TypeError(dpos(v.Position()), "channel %q expects %s, got %s", n.Channel, want, got))
		return false
	}
	return true
}

// connectEndpoint resolves the process-variable half of a connect
// endpoint: nil means "this program", otherwise the variable must name a
// local process handle bound by a prior run.
func (c *Compiler) connectEndpoint(e ast.Expr) (*int, error) {
	if e == nil {
		return nil, nil
	}
	id, ok := e.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("connect endpoint must be a plain variable")
	}
	off, _, ok := c.resolveLocal(id.Name)
	if !ok {
		return nil, fmt.Errorf("undefined process variable %q", id.Name)
	}
	return &off, nil
}

func (c *Compiler) compileConnect(n *ast.Connect) {
	sender, err := c.connectEndpoint(n.Sender)
	if err != nil {
		c.bag.Add(diag.ChannelError(dpos(n.Pos_), "%s", err))
		return
	}
	receiver, err := c.connectEndpoint(n.Receiver)
	if err != nil {
		c.bag.Add(diag.ChannelError(dpos(n.Pos_), "%s", err))
		return
	}
	if !c.checkConnectTypes(n) {
		return
	}
	c.emit(n.Pos_, bytecode.Connect{
		SenderPID:    sender,
		SenderChan:   n.SenderChan,
		ReceiverPID:  receiver,
		ReceiverChan: n.ReceiverChan,
	})
}

// connectProgramName resolves which program owns a connect endpoint: nil
// means the current program, otherwise the bound local process variable
// names it. An endpoint whose program can't be resolved here returns
// ok=false and checkConnectTypes leaves the connect unchecked.
func (c *Compiler) connectProgramName(e ast.Expr) (string, bool) {
	if e == nil {
		return c.currentProgramName, true
	}
	id, ok := e.(*ast.Ident)
	if !ok {
		return "", false
	}
	_, v, ok := c.resolveLocal(id.Name)
	if !ok || v.Type.Kind != value.KindProcess {
		return "", false
	}
	return v.Type.Program, true
}

// checkConnectTypes verifies both ends of a connect share the same
// ordered channel datatype tuple.
func (c *Compiler) checkConnectTypes(n *ast.Connect) bool {
	senderProg, ok := c.connectProgramName(n.Sender)
	if !ok {
		return true
	}
	receiverProg, ok := c.connectProgramName(n.Receiver)
	if !ok {
		return true
	}
	senderInfo, ok := c.channels[ChannelKey{Program: senderProg, Name: n.SenderChan}]
	if !ok {
		return true
	}
	receiverInfo, ok := c.channels[ChannelKey{Program: receiverProg, Name: n.ReceiverChan}]
	if !ok {
		return true
	}
	if len(senderInfo.Elems) != len(receiverInfo.Elems) {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "connect %s.%s -> %s.%s: channel element counts differ (%d vs %d)",
			senderProg, n.SenderChan, receiverProg, n.ReceiverChan, len(senderInfo.Elems), len(receiverInfo.Elems)))
		return false
	}
	for i := range senderInfo.Elems {
		if !senderInfo.Elems[i].Equal(receiverInfo.Elems[i]) {
			c.bag.Add(diag.TypeError(dpos(n.Pos_), "connect %s.%s -> %s.%s: element %d type mismatch (%s vs %s)",
				senderProg, n.SenderChan, receiverProg, n.ReceiverChan, i, senderInfo.Elems[i], receiverInfo.Elems[i]))
			return false
		}
	}
	return true
}

func (c *Compiler) compileReturn(n *ast.Return) {
	if n.Value == nil {
		c.emit(n.Pos_, bytecode.Return{HasValue: false})
		return
	}
	pushed, err := c.emitExpr(n.Value)
	if err != nil {
		c.bag.Add(diag.TypeError(dpos(n.Pos_), "%s", err))
		return
	}
	if pushed > 1 {
		c.emit(n.Pos_, bytecode.Unstack{N: pushed - 1})
	}
	c.emit(n.Pos_, bytecode.Return{HasValue: true})
}

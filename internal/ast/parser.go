package ast

import (
	"fmt"

	"github.com/althread/althread/internal/value"
)

// Parser is a small recursive-descent parser over the Lexer token stream.
// As with the lexer, full grammar coverage is out of scope; this covers
// the constructs Althread's core needs, using a Pratt-precedence style
// for expressions.
type Parser struct {
	lex  *Lexer
	tok  Token
	peeked *Token
	file string
	err  error
}

func NewParser(file, src string) *Parser {
	p := &Parser{lex: NewLexer(src), file: file}
	p.next()
	return p
}

func (p *Parser) next() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	tok, err := p.lex.Next()
	if err != nil && p.err == nil {
		p.err = err
	}
	p.tok = tok
}

func (p *Parser) peek() Token {
	if p.peeked == nil {
		save := p.tok
		tok, err := p.lex.Next()
		if err != nil && p.err == nil {
			p.err = err
		}
		p.peeked = &tok
		p.tok = save
	}
	return *p.peeked
}

func (p *Parser) posOf(t Token) Pos { return t.Pos }

func (p *Parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %s", p.tok.Pos, fmt.Sprintf(format, args...))
	}
}

func (p *Parser) is(kind TokenKind, text string) bool {
	return p.tok.Kind == kind && p.tok.Text == text
}

func (p *Parser) isKeyword(kw string) bool { return p.is(TokKeyword, kw) }
func (p *Parser) isPunct(s string) bool    { return p.is(TokPunct, s) }

func (p *Parser) expectPunct(s string) {
	if !p.isPunct(s) {
		p.fail("expected %q, got %q", s, p.tok.Text)
		return
	}
	p.next()
}

func (p *Parser) expectKeyword(s string) {
	if !p.isKeyword(s) {
		p.fail("expected keyword %q, got %q", s, p.tok.Text)
		return
	}
	p.next()
}

func (p *Parser) expectIdent() string {
	if p.tok.Kind != TokIdent {
		p.fail("expected identifier, got %q", p.tok.Text)
		return ""
	}
	name := p.tok.Text
	p.next()
	return name
}

// ParseFile parses a full .alt source file.
func ParseFile(file, src string) (*File, error) {
	p := NewParser(file, src)
	f := p.parseFile()
	if p.err != nil {
		return nil, p.err
	}
	return f, nil
}

func (p *Parser) parseFile() *File {
	f := &File{}
	for p.err == nil && p.tok.Kind != TokEOF {
		switch {
		case p.isKeyword("import"):
			f.Imports = append(f.Imports, p.parseImport())
		case p.isKeyword("shared"):
			p.next()
			p.expectPunct("{")
			for !p.isPunct("}") && p.err == nil {
				f.Shared = append(f.Shared, p.parseDeclaration())
			}
			p.expectPunct("}")
		case p.isKeyword("always"):
			p.next()
			p.expectPunct("{")
			for !p.isPunct("}") && p.err == nil {
				pos := p.tok.Pos
				e := p.parseExpr()
				p.expectPunct(";")
				f.Always = append(f.Always, &ConditionExpr{Pos_: pos, Expr: e})
			}
			p.expectPunct("}")
		case p.isKeyword("eventually"):
			p.next()
			p.expectPunct("{")
			for !p.isPunct("}") && p.err == nil {
				pos := p.tok.Pos
				e := p.parseExpr()
				p.expectPunct(";")
				f.Eventually = append(f.Eventually, &ConditionExpr{Pos_: pos, Expr: e})
			}
			p.expectPunct("}")
		case p.isKeyword("fn"):
			f.Functions = append(f.Functions, p.parseFunction())
		case p.isKeyword("main"):
			f.Programs = append(f.Programs, p.parseProgram("main"))
		case p.tok.Kind == TokIdent:
			name := p.tok.Text
			p.next()
			f.Programs = append(f.Programs, p.parseProgram(name))
		default:
			p.fail("unexpected top-level token %q", p.tok.Text)
			return f
		}
	}
	return f
}

func (p *Parser) parseImport() *Import {
	pos := p.tok.Pos
	p.expectKeyword("import")
	var path []string
	path = append(path, p.expectIdent())
	for p.isPunct(".") {
		p.next()
		path = append(path, p.expectIdent())
	}
	prefix := path[len(path)-1]
	if p.isKeyword("as") {
		p.next()
		prefix = p.expectIdent()
	}
	p.expectPunct(";")
	return &Import{Pos_: pos, Path: path, Prefix: prefix}
}

func (p *Parser) parseProgram(name string) *ProgramDecl {
	pos := p.tok.Pos
	decl := &ProgramDecl{Pos_: pos, Name: name}
	if p.isPunct("(") {
		decl.Params = p.parseParams()
	}
	p.expectPunct("{")
	for !p.isPunct("}") && p.err == nil {
		decl.Body = append(decl.Body, p.parseStmt())
	}
	p.expectPunct("}")
	return decl
}

func (p *Parser) parseFunction() *FunctionDecl {
	pos := p.tok.Pos
	p.expectKeyword("fn")
	name := p.expectIdent()
	decl := &FunctionDecl{Pos_: pos, Name: name}
	decl.Params = p.parseParams()
	if p.isPunct(":") {
		p.next()
		t := p.parseType()
		decl.ReturnType = t
	}
	p.expectPunct("{")
	for !p.isPunct("}") && p.err == nil {
		decl.Body = append(decl.Body, p.parseStmt())
	}
	p.expectPunct("}")
	return decl
}

func (p *Parser) parseParams() []Param {
	p.expectPunct("(")
	var params []Param
	for !p.isPunct(")") && p.err == nil {
		name := p.expectIdent()
		var t TypeExpr
		if p.isPunct(":") {
			p.next()
			t = p.parseType()
		}
		params = append(params, Param{Name: name, Type: t})
		if p.isPunct(",") {
			p.next()
		}
	}
	p.expectPunct(")")
	return params
}

func (p *Parser) parseType() TypeExpr {
	pos := p.tok.Pos
	if p.isPunct("(") {
		p.next()
		var elems []TypeExpr
		for !p.isPunct(")") && p.err == nil {
			elems = append(elems, p.parseType())
			if p.isPunct(",") {
				p.next()
			}
		}
		p.expectPunct(")")
		return TypeExpr{Pos_: pos, IsTuple: true, Elems: elems}
	}
	if p.isKeyword("list") || (p.tok.Kind == TokIdent && p.tok.Text == "list") {
		p.next()
		p.expectPunct("<")
		elem := p.parseType()
		p.expectPunct(">")
		return TypeExpr{Pos_: pos, IsList: true, Elem: &elem}
	}
	name := p.tok.Text
	isProc := p.tok.Kind == TokIdent
	p.next()
	return TypeExpr{Pos_: pos, Name: name, IsProc: isProc}
}

func (p *Parser) parseBlock() []Stmt {
	p.expectPunct("{")
	var stmts []Stmt
	for !p.isPunct("}") && p.err == nil {
		stmts = append(stmts, p.parseStmt())
	}
	p.expectPunct("}")
	return stmts
}

func (p *Parser) parseStmt() Stmt {
	pos := p.tok.Pos
	switch {
	case p.isKeyword("let"):
		return p.parseDeclaration()
	case p.isKeyword("channel"):
		return p.parseChannelDecl()
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("loop"):
		p.next()
		body := p.parseBlock()
		return &Loop{Pos_: pos, Body: body}
	case p.isKeyword("break"):
		p.next()
		p.expectPunct(";")
		return &Break{Pos_: pos}
	case p.isKeyword("continue"):
		p.next()
		p.expectPunct(";")
		return &Continue{Pos_: pos}
	case p.isKeyword("atomic"):
		p.next()
		body := p.parseBlock()
		return &Atomic{Pos_: pos, Body: body}
	case p.isKeyword("run"):
		return p.parseRun()
	case p.isKeyword("wait"):
		return p.parseWait()
	case p.isKeyword("connect"):
		return p.parseConnect()
	case p.isKeyword("return"):
		p.next()
		if p.isPunct(";") {
			p.next()
			return &Return{Pos_: pos}
		}
		v := p.parseExpr()
		p.expectPunct(";")
		return &Return{Pos_: pos, Value: v}
	case p.isPunct("{"):
		return &Block{Pos_: pos, Stmts: p.parseBlock()}
	default:
		return p.parseExprOrAssignOrSend(pos)
	}
}

func (p *Parser) parseDeclaration() *Declaration {
	pos := p.tok.Pos
	p.expectKeyword("let")
	mut := false
	if p.isKeyword("mut") {
		mut = true
		p.next()
	}
	name := p.expectIdent()
	var t *TypeExpr
	if p.isPunct(":") {
		p.next()
		tv := p.parseType()
		t = &tv
	}
	p.expectPunct("=")
	init := p.parseExpr()
	p.expectPunct(";")
	return &Declaration{Pos_: pos, Name: name, Type: t, Mutable: mut, Init: init}
}

func (p *Parser) parseChannelDecl() *Declaration {
	pos := p.tok.Pos
	p.expectKeyword("channel")
	name := p.expectIdent()
	p.expectPunct("(")
	var elems []TypeExpr
	for !p.isPunct(")") && p.err == nil {
		elems = append(elems, p.parseType())
		if p.isPunct(",") {
			p.next()
		}
	}
	p.expectPunct(")")
	p.expectPunct(";")
	return &Declaration{Pos_: pos, Name: name, IsChannel: true, ChanElems: elems}
}

func (p *Parser) parseIf() *If {
	pos := p.tok.Pos
	p.expectKeyword("if")
	cond := p.parseExpr()
	then := p.parseBlock()
	node := &If{Pos_: pos, Cond: cond, Then: then}
	if p.isKeyword("else") {
		p.next()
		if p.isKeyword("if") {
			node.Else = []Stmt{p.parseIf()}
		} else {
			node.Else = p.parseBlock()
		}
	}
	return node
}

func (p *Parser) parseWhile() *While {
	pos := p.tok.Pos
	p.expectKeyword("while")
	cond := p.parseExpr()
	body := p.parseBlock()
	return &While{Pos_: pos, Cond: cond, Body: body}
}

func (p *Parser) parseFor() *For {
	pos := p.tok.Pos
	p.expectKeyword("for")
	name := p.expectIdent()
	// `in` is not reserved, so a channel may be named `in`.
	if p.tok.Kind == TokIdent && p.tok.Text == "in" {
		p.next()
	} else {
		p.fail("expected %q, got %q", "in", p.tok.Text)
	}
	iter := p.parseExpr()
	body := p.parseBlock()
	return &For{Pos_: pos, Var: name, Iter: iter, Body: body}
}

func (p *Parser) parseRun() Stmt {
	pos := p.tok.Pos
	p.expectKeyword("run")
	name := p.expectIdent()
	p.expectPunct("(")
	var args []Expr
	for !p.isPunct(")") && p.err == nil {
		args = append(args, p.parseExpr())
		if p.isPunct(",") {
			p.next()
		}
	}
	p.expectPunct(")")
	p.expectPunct(";")
	return &Run{Pos_: pos, Name: name, Args: args}
}

func (p *Parser) parseConnect() *Connect {
	pos := p.tok.Pos
	p.expectKeyword("connect")
	sender, senderChan := p.parseChannelEndpoint()
	p.expectPunct("->")
	receiver, receiverChan := p.parseChannelEndpoint()
	p.expectPunct(";")
	return &Connect{Pos_: pos, Sender: sender, SenderChan: senderChan, Receiver: receiver, ReceiverChan: receiverChan}
}

// parseChannelEndpoint parses `name` (own channel) or `expr.name`
// (another program's channel reached through a process-handle expression).
func (p *Parser) parseChannelEndpoint() (Expr, string) {
	first := p.expectIdent()
	if p.isPunct(".") {
		p.next()
		chanName := p.expectIdent()
		return &Ident{Name: first}, chanName
	}
	return nil, first
}

func (p *Parser) parseWait() *Wait {
	pos := p.tok.Pos
	p.expectKeyword("wait")
	mode := WaitFirst
	if p.isKeyword("seq") {
		mode = WaitSeq
		p.next()
	} else if p.isKeyword("first") {
		p.next()
	}
	p.expectPunct("{")
	var cases []WaitCase
	for !p.isPunct("}") && p.err == nil {
		cases = append(cases, p.parseWaitCase())
	}
	p.expectPunct("}")
	return &Wait{Pos_: pos, Mode: mode, Cases: cases}
}

func (p *Parser) parseWaitCase() WaitCase {
	pos := p.tok.Pos
	wc := WaitCase{Pos_: pos}
	if p.tok.Kind == TokIdent && p.peek().Kind == TokPunct && p.peek().Text == "?" {
		chanName := p.expectIdent()
		p.expectPunct("?")
		rc := &ReceiveCase{Channel: chanName}
		if p.isPunct("(") {
			p.next()
			for !p.isPunct(")") && p.err == nil {
				rc.Pattern = append(rc.Pattern, p.expectIdent())
				if p.isPunct(",") {
					p.next()
				}
			}
			p.expectPunct(")")
		} else {
			rc.Pattern = append(rc.Pattern, p.expectIdent())
		}
		if p.isKeyword("if") {
			p.next()
			rc.Guard = p.parseExpr()
		}
		wc.Receive = rc
	} else {
		wc.Cond = p.parseExpr()
	}
	p.expectPunct("=>")
	wc.Body = p.parseBlock()
	if p.isPunct(";") {
		p.next()
	}
	return wc
}

func (p *Parser) parseExprOrAssignOrSend(pos Pos) Stmt {
	if p.isKeyword("send") {
		p.next()
		chanName := p.expectIdent()
		p.expectPunct("<-")
		var vals []Expr
		vals = append(vals, p.parseExpr())
		for p.isPunct(",") {
			p.next()
			vals = append(vals, p.parseExpr())
		}
		p.expectPunct(";")
		return &Send{Pos_: pos, Channel: chanName, Values: vals}
	}

	e := p.parseExpr()
	if isAssignOp(p.tok) {
		op := p.tok.Text
		p.next()
		val := p.parseExpr()
		p.expectPunct(";")
		return &Assignment{Pos_: pos, Target: e, Op: op, Value: val}
	}
	p.expectPunct(";")
	return &ExprStmt{Pos_: pos, X: e}
}

func isAssignOp(t Token) bool {
	if t.Kind != TokPunct {
		return false
	}
	switch t.Text {
	case "=", "+=", "-=", "*=", "/=", "%=":
		return true
	}
	return false
}

// --- expressions: Pratt precedence climbing ---

var binPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

func (p *Parser) parseExpr() Expr { return p.parseBinary(0) }

func (p *Parser) parseBinary(minPrec int) Expr {
	lhs := p.parseUnary()
	for {
		if p.tok.Kind != TokPunct {
			break
		}
		prec, ok := binPrec[p.tok.Text]
		if !ok || prec < minPrec {
			break
		}
		op := p.tok.Text
		pos := p.tok.Pos
		p.next()
		rhs := p.parseBinary(prec + 1)
		lhs = &BinaryExpr{Pos_: pos, Op: op, X: lhs, Y: rhs}
	}
	return lhs
}

func (p *Parser) parseUnary() Expr {
	if p.isPunct("-") || p.isPunct("!") {
		pos := p.tok.Pos
		op := p.tok.Text
		p.next()
		x := p.parseUnary()
		return &UnaryExpr{Pos_: pos, Op: op, X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		switch {
		case p.isPunct("."):
			p.next()
			name := p.expectIdent()
			if p.isPunct("(") {
				args := p.parseArgs()
				x = &CallExpr{Pos_: x.Position(), Receiver: x, Callee: name, Args: args}
			} else {
				x = &Member{Pos_: x.Position(), X: x, Name: name}
			}
		case p.isPunct("["):
			p.next()
			i := p.parseExpr()
			p.expectPunct("]")
			x = &Index{Pos_: x.Position(), X: x, I: i}
		case p.isPunct("(") :
			if id, ok := x.(*Ident); ok {
				args := p.parseArgs()
				x = &CallExpr{Pos_: id.Pos_, Callee: id.Name, Args: args}
			} else {
				return x
			}
		default:
			return x
		}
	}
}

func (p *Parser) parseArgs() []Expr {
	p.expectPunct("(")
	var args []Expr
	for !p.isPunct(")") && p.err == nil {
		args = append(args, p.parseExpr())
		if p.isPunct(",") {
			p.next()
		}
	}
	p.expectPunct(")")
	return args
}

func (p *Parser) parsePrimary() Expr {
	pos := p.tok.Pos
	switch {
	case p.tok.Kind == TokInt:
		n := parseIntLiteral(p.tok.Text)
		p.next()
		return &Literal{Pos_: pos, Value: value.Int(n)}
	case p.tok.Kind == TokFloat:
		f := parseFloatLiteral(p.tok.Text)
		p.next()
		return &Literal{Pos_: pos, Value: value.Float(f)}
	case p.tok.Kind == TokString:
		s := p.tok.Text
		p.next()
		return &Literal{Pos_: pos, Value: value.String(s)}
	case p.isKeyword("true"):
		p.next()
		return &Literal{Pos_: pos, Value: value.Bool(true)}
	case p.isKeyword("false"):
		p.next()
		return &Literal{Pos_: pos, Value: value.Bool(false)}
	case p.isKeyword("null"):
		p.next()
		return &Literal{Pos_: pos, Value: value.Null{}}
	case p.isPunct("("):
		p.next()
		first := p.parseExpr()
		if p.isPunct(",") {
			elems := []Expr{first}
			for p.isPunct(",") {
				p.next()
				if p.isPunct(")") {
					break
				}
				elems = append(elems, p.parseExpr())
			}
			p.expectPunct(")")
			return &TupleExpr{Pos_: pos, Elems: elems}
		}
		p.expectPunct(")")
		return first
	case p.isPunct("["):
		p.next()
		var elems []Expr
		for !p.isPunct("]") && p.err == nil {
			elems = append(elems, p.parseExpr())
			if p.isPunct(",") {
				p.next()
			}
		}
		p.expectPunct("]")
		return &ListExpr{Pos_: pos, Elems: elems}
	case p.tok.Kind == TokIdent:
		name := p.expectIdent()
		return &Ident{Pos_: pos, Name: name}
	default:
		p.fail("unexpected token %q in expression", p.tok.Text)
		p.next()
		return &Literal{Pos_: pos, Value: value.Null{}}
	}
}

func parseIntLiteral(s string) int64 {
	var n int64
	for i := 0; i < len(s); i++ {
		n = n*10 + int64(s[i]-'0')
	}
	return n
}

func parseFloatLiteral(s string) float64 {
	var intPart, fracPart int64
	var fracDiv float64 = 1
	i := 0
	for ; i < len(s) && s[i] != '.'; i++ {
		intPart = intPart*10 + int64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s); i++ {
			fracPart = fracPart*10 + int64(s[i]-'0')
			fracDiv *= 10
		}
	}
	return float64(intPart) + float64(fracPart)/fracDiv
}

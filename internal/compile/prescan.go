package compile

import (
	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/value"
)

// prescan walks every program's body before any of them are lowered,
// registering channel declarations under their owning program so that a
// Send/receive-wait appearing anywhere in a program's body — including
// before the channel's own declaration, inside a nested
// atomic/if/while/for/loop — can be checked
// against the full set of that program's channels, not just the ones
// declared lexically earlier. Undeclared channel references are recorded
// in undefinedChannels and reported once the whole file has been scanned.
func (c *Compiler) prescan(file *ast.File) {
	for _, p := range file.Programs {
		c.currentProgramName = p.Name
		walkStmts(p.Body, func(s ast.Stmt) {
			d, ok := s.(*ast.Declaration)
			if !ok || !d.IsChannel {
				return
			}
			elems := make([]value.Datatype, len(d.ChanElems))
			for i, t := range d.ChanElems {
				elems[i] = t.Resolve()
			}
			c.channels[ChannelKey{Program: p.Name, Name: d.Name}] = ChannelInfo{Elems: elems, Pos: d.Pos_}
		})
	}
	c.currentProgramName = ""

	for _, p := range file.Programs {
		c.currentProgramName = p.Name
		walkStmts(p.Body, func(s ast.Stmt) {
			switch n := s.(type) {
			case *ast.Send:
				c.checkChannelRef(n.Channel, n.Pos_)
			case *ast.Wait:
				for _, wc := range n.Cases {
					if wc.Receive != nil {
						c.checkChannelRef(wc.Receive.Channel, wc.Pos_)
					}
				}
			}
		})
	}
	c.currentProgramName = ""
}

func (c *Compiler) checkChannelRef(name string, pos ast.Pos) {
	key := ChannelKey{Program: c.currentProgramName, Name: name}
	if _, ok := c.channels[key]; !ok {
		if _, already := c.undefinedChannels[key]; !already {
			c.undefinedChannels[key] = pos
		}
	}
}

// walkStmts visits every statement in body, recursing into every nested
// block-bearing construct, and calls visit on each one (including the
// containers themselves).
func walkStmts(body []ast.Stmt, visit func(ast.Stmt)) {
	for _, s := range body {
		visit(s)
		switch n := s.(type) {
		case *ast.Block:
			walkStmts(n.Stmts, visit)
		case *ast.If:
			walkStmts(n.Then, visit)
			walkStmts(n.Else, visit)
		case *ast.While:
			walkStmts(n.Body, visit)
		case *ast.For:
			walkStmts(n.Body, visit)
		case *ast.Loop:
			walkStmts(n.Body, visit)
		case *ast.Atomic:
			walkStmts(n.Body, visit)
		case *ast.Wait:
			for _, wc := range n.Cases {
				walkStmts(wc.Body, visit)
			}
		}
	}
}

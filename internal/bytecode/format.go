package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a ProgramCode as a human-readable instruction
// listing, one line per instruction, prefixed with its index. This exists
// purely as a diagnostic/testing aid — a textual form kept around mostly
// to support testing the VM without going through the parsing phases —
// and is what `althread compile` prints.
func Disassemble(p *ProgramCode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program: %s\n", p.Name)
	for i, insn := range p.Instructions {
		fmt.Fprintf(&b, "%4d  %s\n", i, describe(insn.Control))
	}
	return b.String()
}

func describe(c Control) string {
	switch n := c.(type) {
	case Push:
		return fmt.Sprintf("%s %s", c.Mnemonic(), n.Value.String())
	case GlobalReads:
		return fmt.Sprintf("%s %s", c.Mnemonic(), strings.Join(n.Names, ","))
	case GlobalAssignment:
		return fmt.Sprintf("%s %s unstack=%d", c.Mnemonic(), n.Name, n.UnstackLen)
	case LocalAssignment:
		return fmt.Sprintf("%s #%d unstack=%d", c.Mnemonic(), n.Index, n.UnstackLen)
	case Unstack:
		return fmt.Sprintf("%s %d", c.Mnemonic(), n.N)
	case Declaration:
		return fmt.Sprintf("%s unstack=%d", c.Mnemonic(), n.UnstackLen)
	case Destruct:
		return fmt.Sprintf("%s %d", c.Mnemonic(), n.N)
	case JumpIf:
		return fmt.Sprintf("%s false=+%d unstack=%d", c.Mnemonic(), n.JumpFalse, n.UnstackLen)
	case Jump:
		return fmt.Sprintf("%s %+d", c.Mnemonic(), n.N)
	case Break:
		return fmt.Sprintf("%s %+d unstack=%d", c.Mnemonic(), n.Jump, n.UnstackLen)
	case FnCall:
		recv := "none"
		if n.VariableIdx != nil {
			recv = fmt.Sprintf("#%d", *n.VariableIdx)
		}
		return fmt.Sprintf("%s %s recv=%s unstack=%d", c.Mnemonic(), n.Name, recv, n.UnstackLen)
	case RunCall:
		return fmt.Sprintf("%s %s unstack=%d", c.Mnemonic(), n.Name, n.UnstackLen)
	case WaitStart:
		return fmt.Sprintf("%s vars=%v", c.Mnemonic(), n.Dependencies.Variables)
	case Wait:
		return fmt.Sprintf("%s %+d unstack=%d", c.Mnemonic(), n.Jump, n.UnstackLen)
	case Send:
		return fmt.Sprintf("%s %s unstack=%d", c.Mnemonic(), n.ChannelName, n.UnstackLen)
	case ChannelPeek:
		return fmt.Sprintf("%s %s", c.Mnemonic(), n.Name)
	case ChannelPop:
		return fmt.Sprintf("%s %s", c.Mnemonic(), n.Name)
	case Connect:
		return fmt.Sprintf("%s %s -> %s", c.Mnemonic(), n.SenderChan, n.ReceiverChan)
	case Return:
		return fmt.Sprintf("%s has_value=%v", c.Mnemonic(), n.HasValue)
	default:
		return c.Mnemonic()
	}
}

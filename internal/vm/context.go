package vm

import (
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/channel"
	"github.com/althread/althread/internal/value"
)

// machineCtx adapts one Machine, bound to one pid, to the
// runtime.GlobalContext seam a Program dispatches global instructions
// through — the thing that lets internal/runtime know nothing about
// internal/vm (which imports internal/runtime, not the other way around).
type machineCtx struct {
	m   *Machine
	pid int
}

func (c machineCtx) ReadGlobal(name string) (value.Value, bool) {
	v, ok := c.m.globals[name]
	return v, ok
}

func (c machineCtx) WriteGlobal(name string, v value.Value) {
	c.m.globals[name] = v
}

func (c machineCtx) FunctionDef(name string) (*bytecode.ProgramCode, bool) {
	fd, ok := c.m.project.UserFunctions[name]
	if !ok || fd.Code == nil {
		return nil, false
	}
	return fd.Code, true
}

func (c machineCtx) Method(k value.Kind, name string) (func(*value.Value, []value.Value) (value.Value, error), bool) {
	return c.m.project.Stdlib.Lookup(k, name)
}

func (c machineCtx) Spawn(name string, args []value.Value) (int, error) {
	return c.m.spawn(name, args)
}

func (c machineCtx) ChannelPeek(name string) (value.Value, bool) {
	return c.m.transport.Peek(channel.Endpoint{PID: c.pid, Name: name})
}

func (c machineCtx) ChannelPop(name string) {
	c.m.transport.Pop(channel.Endpoint{PID: c.pid, Name: name})
}

func (c machineCtx) Send(name string, v value.Value) {
	c.m.transport.Send(channel.Endpoint{PID: c.pid, Name: name}, v)
}

func (c machineCtx) Connect(senderPID int, senderChan string, receiverPID int, receiverChan string) error {
	return c.m.transport.Connect(
		channel.Endpoint{PID: senderPID, Name: senderChan},
		channel.Endpoint{PID: receiverPID, Name: receiverChan},
	)
}

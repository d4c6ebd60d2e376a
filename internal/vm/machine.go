// Package vm implements Althread's scheduler (C7): the single VM instance
// that owns shared memory, the channel transport, and every running
// program, and decides — or, for the model checker, merely enumerates —
// which program gets to take its next global action.
package vm

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/channel"
	"github.com/althread/althread/internal/compile"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/runtime"
	"github.com/althread/althread/internal/value"
)

// Machine is one VM instance: shared memory, the channel transport, and
// every program instance ever spawned (terminated ones are kept, marked
// Done, so a state's hash still reflects that they ran and ended).
type Machine struct {
	project  *compile.CompiledProject
	globals  map[string]value.Value
	transport *channel.Transport
	programs map[int]*runtime.Program
	order    []int // pid spawn order, for deterministic iteration
	nextPID  int
	waiting  map[int]bytecode.WaitDependency
	rng      *rand.Rand
}

// New starts a fresh machine for project, spawning its "main" program with
// no arguments — Althread's only implicit entry point; every program
// declares a bare `main { ... }` block. seed drives every random choice
// RandomStep makes, so a run is exactly reproducible given the same
// project and seed.
func New(project *compile.CompiledProject, seed int64) (*Machine, error) {
	globals := make(map[string]value.Value, len(project.GlobalMemory))
	for k, v := range project.GlobalMemory {
		globals[k] = runtime.CloneValue(v)
	}
	m := &Machine{
		project:   project,
		globals:   globals,
		transport: channel.New(),
		programs:  make(map[int]*runtime.Program),
		waiting:   make(map[int]bytecode.WaitDependency),
		rng:       rand.New(rand.NewSource(seed)),
	}
	if _, ok := project.Programs["main"]; !ok {
		return nil, fmt.Errorf("vm: project declares no \"main\" program")
	}
	if _, err := m.spawn("main", nil); err != nil {
		return nil, err
	}
	if v := m.CheckAlways(); v != nil {
		return nil, v
	}
	return m, nil
}

func (m *Machine) spawn(name string, args []value.Value) (int, error) {
	code, ok := m.project.Programs[name]
	if !ok {
		return 0, fmt.Errorf("vm: undefined program %q", name)
	}
	pid := m.nextPID
	m.nextPID++
	m.programs[pid] = runtime.New(pid, name, code, args)
	m.order = append(m.order, pid)
	return pid, nil
}

// ExecutablePIDs lists every pid that has not yet ended and is not parked
// on a wait block, in spawn order — the scheduler's (or the checker's)
// candidate set for "run one more program step".
func (m *Machine) ExecutablePIDs() []int {
	var out []int
	for _, pid := range m.order {
		if _, blocked := m.waiting[pid]; blocked {
			continue
		}
		if p, ok := m.programs[pid]; ok && !p.Done() {
			out = append(out, pid)
		}
	}
	return out
}

// PendingLinks lists every channel link with a message queued for
// delivery — the scheduler's other candidate set, alongside
// ExecutablePIDs, for "what could happen next".
func (m *Machine) PendingLinks() []channel.Link { return m.transport.PendingLinks() }

// Reaction reports the effect of one StepProgram/DeliverLink call: what the
// program did, and whether it tripped an always-condition.
type Reaction struct {
	PID        int
	Result     runtime.StepResult
	Violation  *diag.Error
}

// StepProgram advances pid through exactly one global action (or until it
// blocks or ends) and applies the resulting reaction: waking any program
// parked on a variable this step wrote, and re-checking every always
// condition immediately.
func (m *Machine) StepProgram(pid int) (Reaction, error) {
	p, ok := m.programs[pid]
	if !ok {
		return Reaction{}, fmt.Errorf("vm: unknown pid %d", pid)
	}
	res := p.Advance(machineCtx{m, pid})
	switch res.Kind {
	case runtime.ActionError:
		return Reaction{PID: pid, Result: res}, res.Err
	case runtime.ActionBlocked:
		m.waiting[pid] = res.Dependencies
		return Reaction{PID: pid, Result: res}, nil
	case runtime.ActionEnded:
		m.transport.RemoveProgram(pid)
		delete(m.waiting, pid)
		return Reaction{PID: pid, Result: res}, nil
	}

	var violation *diag.Error
	if n, ok := res.Instruction.(bytecode.GlobalAssignment); ok {
		m.wakeOnVariable(n.Name)
		violation = m.CheckAlways()
	}
	return Reaction{PID: pid, Result: res, Violation: violation}, nil
}

// DeliverLink moves the head message of link into its destination mailbox
// and wakes any program waiting to receive on that mailbox.
func (m *Machine) DeliverLink(link channel.Link) error {
	if _, err := m.transport.DeliverOne(link); err != nil {
		return err
	}
	m.wakeOnChannel(link.To.PID, link.To.Name)
	return nil
}

func (m *Machine) wakeOnVariable(name string) {
	for pid, dep := range m.waiting {
		for _, v := range dep.Variables {
			if v == name {
				delete(m.waiting, pid)
				break
			}
		}
	}
}

func (m *Machine) wakeOnChannel(pid int, name string) {
	for wpid, dep := range m.waiting {
		for _, ck := range dep.Channels {
			if ck.PID == pid && ck.Name == name {
				delete(m.waiting, wpid)
				break
			}
		}
	}
}

// Deadlocked reports whether the machine has no executable program and no
// pending delivery left — nothing can ever happen again.
func (m *Machine) Deadlocked() bool {
	return len(m.ExecutablePIDs()) == 0 && len(m.PendingLinks()) == 0
}

// CheckAlways evaluates every always-condition against current shared
// memory, returning the first violation found (nil if all hold).
func (m *Machine) CheckAlways() *diag.Error {
	for _, cc := range m.project.Always {
		ok, err := m.evalCondition(cc)
		if err != nil {
			return diag.RuntimeError(toPos(cc.Pos), "%s", err)
		}
		if !ok {
			return diag.Violation(toPos(cc.Pos), "always condition violated")
		}
	}
	return nil
}

// CheckEventually returns every eventually-condition not currently holding
// — called once, at a terminal (deadlocked) state, since "eventually"
// conditions are only judged once no further progress is possible.
func (m *Machine) CheckEventually() []compile.ConditionCode {
	var failing []compile.ConditionCode
	for _, cc := range m.project.Eventually {
		ok, err := m.evalCondition(cc)
		if err != nil || !ok {
			failing = append(failing, cc)
		}
	}
	return failing
}

func (m *Machine) evalCondition(cc compile.ConditionCode) (bool, error) {
	stack := make([]value.Value, 0, len(cc.ReadOrder))
	for _, name := range cc.ReadOrder {
		v, ok := m.globals[name]
		if !ok {
			return false, fmt.Errorf("undefined shared variable %q", name)
		}
		stack = append(stack, v)
	}
	res, err := bytecode.Eval(cc.Expr, bytecode.EvalContext{Stack: stack})
	if err != nil {
		return false, err
	}
	b, ok := res.(value.Bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a bool")
	}
	return bool(b), nil
}

func toPos(p ast.Pos) diag.Position {
	return diag.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}

// RandomStep performs one uniformly-chosen action — a program step or a
// link delivery — among every currently possible one, using a seeded
// `math/rand` source so the choice is reproducible. ok is false only when
// the machine is deadlocked.
func (m *Machine) RandomStep() (Reaction, bool, error) {
	pids := m.ExecutablePIDs()
	links := m.PendingLinks()
	total := len(pids) + len(links)
	if total == 0 {
		return Reaction{}, false, nil
	}
	i := m.rng.Intn(total)
	if i < len(pids) {
		r, err := m.StepProgram(pids[i])
		return r, true, err
	}
	link := links[i-len(pids)]
	if err := m.DeliverLink(link); err != nil {
		return Reaction{}, true, err
	}
	return Reaction{PID: link.To.PID}, true, nil
}

// Clone returns a deep, independent copy of the machine, used by
// internal/checker to branch a state without disturbing the original.
func (m *Machine) Clone() *Machine {
	programs := make(map[int]*runtime.Program, len(m.programs))
	for pid, p := range m.programs {
		programs[pid] = p.Clone()
	}
	globals := make(map[string]value.Value, len(m.globals))
	for k, v := range m.globals {
		globals[k] = runtime.CloneValue(v)
	}
	waiting := make(map[int]bytecode.WaitDependency, len(m.waiting))
	for k, v := range m.waiting {
		waiting[k] = v
	}
	return &Machine{
		project:   m.project,
		globals:   globals,
		transport: m.transport.Clone(),
		programs:  programs,
		order:     append([]int(nil), m.order...),
		nextPID:   m.nextPID,
		waiting:   waiting,
		rng:       m.rng,
	}
}

// Key returns a deterministic encoding of every part of the machine's
// state that can affect its future behavior, used as the model checker's
// visited-state dedup key.
func (m *Machine) Key() string {
	var buf []byte
	names := make([]string, 0, len(m.globals))
	for k := range m.globals {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		buf = append(buf, []byte(name)...)
		buf = append(buf, 0)
		buf = append(buf, value.Hash(m.globals[name])...)
	}
	buf = append(buf, 0xFD)
	buf = m.transport.Hash(buf)
	buf = append(buf, 0xFD)
	pids := append([]int(nil), m.order...)
	sort.Ints(pids)
	for _, pid := range pids {
		buf = m.programs[pid].Hash(buf)
	}
	return string(buf)
}

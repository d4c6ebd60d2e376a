// Package checker implements Althread's state-graph model checker (C8): a
// single-pass worklist BFS over every reachable vm.Machine state, looking
// for an always-condition violation or a terminal state where an
// eventually-condition never held.
package checker

import (
	"fmt"

	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/channel"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/runtime"
	"github.com/althread/althread/internal/vm"
	"gopkg.in/yaml.v3"
)

// Status classifies an Explorer run's outcome.
type Status int

const (
	StatusOK Status = iota
	StatusViolation
	StatusInconclusive
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusViolation:
		return "violation"
	case StatusInconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Node is one explored VM state: the machine itself, the edge that led to
// it (PID/label), and a back-pointer to the first predecessor discovered —
// BFS order guarantees that pointer traces the shortest path from the
// initial state.
type Node struct {
	Key         string
	State       *vm.Machine
	PID         int
	Label       string
	Predecessor *Node
}

// Result is one Explore run's outcome.
type Result struct {
	Status         Status
	Violation      *diag.Error
	CounterExample []*Node // from the initial state to the violating/terminal one
	StatesExplored int
}

// Explorer runs the worklist search. MaxStates bounds how many states it
// will dequeue before giving up with StatusInconclusive; zero means
// unbounded.
type Explorer struct {
	MaxStates int
}

// Explore runs the BFS from initial to completion, a violation, or the
// MaxStates budget.
func (e *Explorer) Explore(initial *vm.Machine) Result {
	start := &Node{Key: initial.Key(), State: initial, PID: -1, Label: "initial"}
	visited := map[string]*Node{start.Key: start}
	queue := []*Node{start}
	explored := 0

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		explored++
		if e.MaxStates > 0 && explored > e.MaxStates {
			return Result{Status: StatusInconclusive, StatesExplored: explored - 1}
		}

		if v := n.State.CheckAlways(); v != nil {
			return Result{Status: StatusViolation, Violation: v, CounterExample: reconstruct(n), StatesExplored: explored}
		}

		successors := e.successors(n)
		if len(successors) == 0 {
			if failing := n.State.CheckEventually(); len(failing) > 0 {
				v := diag.Violation(diag.Position{}, "eventually condition never satisfied in terminal state (%d unmet)", len(failing))
				return Result{Status: StatusViolation, Violation: v, CounterExample: reconstruct(n), StatesExplored: explored}
			}
			continue
		}

		for _, succ := range successors {
			if _, seen := visited[succ.Key]; seen {
				continue
			}
			succ.Predecessor = n
			visited[succ.Key] = succ
			queue = append(queue, succ)
		}
	}

	return Result{Status: StatusOK, StatesExplored: explored}
}

// successors enumerates every state reachable from n in one scheduler
// step: one per executable pid (via Machine.StepProgram) and one per
// pending link (via Machine.DeliverLink). A branch whose action errors is
// dropped — a failed path is a rejected branch, not a process abort.
func (e *Explorer) successors(n *Node) []*Node {
	var out []*Node
	for _, pid := range n.State.ExecutablePIDs() {
		branch := n.State.Clone()
		reaction, err := branch.StepProgram(pid)
		if err != nil {
			continue
		}
		out = append(out, &Node{
			Key:   branch.Key(),
			State: branch,
			PID:   pid,
			Label: label(pid, reaction.Result),
		})
	}
	for _, link := range n.State.PendingLinks() {
		branch := n.State.Clone()
		if err := branch.DeliverLink(link); err != nil {
			continue
		}
		out = append(out, &Node{
			Key:   branch.Key(),
			State: branch,
			PID:   link.To.PID,
			Label: fmt.Sprintf("deliver %s.%s -> %s.%s", endpointName(link.From), link.From.Name, endpointName(link.To), link.To.Name),
		})
	}
	return out
}

func endpointName(e channel.Endpoint) string { return fmt.Sprintf("pid%d", e.PID) }

func label(pid int, res runtime.StepResult) string {
	if res.Instruction == nil {
		switch res.Kind {
		case runtime.ActionEnded:
			return fmt.Sprintf("pid%d: end", pid)
		case runtime.ActionBlocked:
			return fmt.Sprintf("pid%d: block", pid)
		default:
			return fmt.Sprintf("pid%d: step", pid)
		}
	}
	return fmt.Sprintf("pid%d: %s", pid, res.Instruction.Mnemonic())
}

// reconstruct walks n's predecessor chain back to the initial state and
// returns the path in forward order.
func reconstruct(n *Node) []*Node {
	var path []*Node
	for cur := n; cur != nil; cur = cur.Predecessor {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// dumpNode is the YAML-serializable projection of one explored Node —
// Machine itself is not marshaled (it holds unexported fields and program
// closures); only the graph shape and edge labels are, enough to replay a
// run's branching structure for diagnostics.
type dumpNode struct {
	Key   string `yaml:"key"`
	PID   int    `yaml:"pid"`
	Label string `yaml:"label"`
}

// DumpYAML serializes a path (typically a counter-example) as a
// human-readable YAML document, in the order reconstruct produced it; an
// empty path yields a document with an empty `path` list.
func DumpYAML(path []*Node) ([]byte, error) {
	nodes := make([]dumpNode, len(path))
	for i, n := range path {
		nodes[i] = dumpNode{Key: fmt.Sprintf("%x", []byte(n.Key)[:min(8, len(n.Key))]), PID: n.PID, Label: n.Label}
	}
	return yaml.Marshal(struct {
		Path []dumpNode `yaml:"path"`
	}{Path: nodes})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/althread/althread/internal/checker"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/vm"
)

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	maxStates := fs.Int("max-states", 0, "give up with \"inconclusive\" after exploring this many states (0 = unbounded)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: althread check <input.alt|-> [--max-states n]")
	}

	project, err := compileInput(fs.Arg(0))
	if err != nil {
		return err
	}
	m, err := vm.New(project, 0)
	if err != nil {
		return err
	}

	explorer := &checker.Explorer{MaxStates: *maxStates}
	result := explorer.Explore(m)
	fmt.Printf("%s (%d state(s) explored)\n", result.Status, result.StatesExplored)
	switch result.Status {
	case checker.StatusViolation:
		diag.Render(os.Stderr, result.Violation)
		fmt.Println("counter-example:")
		for _, n := range result.CounterExample {
			fmt.Printf("  %s\n", n.Label)
		}
		return fmt.Errorf("invariant violation found")
	case checker.StatusInconclusive:
		return fmt.Errorf("inconclusive: max-states budget exceeded")
	}
	return nil
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/vm"
)

// runRandomSearch simulates many independently-seeded runs of the same
// project, stopping at the first seed that trips an always-condition
// violation — a "try many seeds" sweep that's cheaper than a full
// checker.Explore when a bug is shallow.
func runRandomSearch(args []string) error {
	fs := flag.NewFlagSet("randomsearch", flag.ExitOnError)
	maxSteps := fs.Int("max-steps", 10000, "stop each run after this many steps")
	maxSeeds := fs.Int("max-seeds", 1000, "try at most this many seeds before giving up")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: althread randomsearch <input.alt|-> [--max-steps n] [--max-seeds n]")
	}

	project, err := compileInput(fs.Arg(0))
	if err != nil {
		return err
	}

	for seed := int64(0); seed < int64(*maxSeeds); seed++ {
		m, err := vm.New(project, seed)
		if err != nil {
			return err
		}
		if v, ok := runOneSeed(m, *maxSteps); !ok {
			fmt.Printf("violation found at seed %d\n", seed)
			diag.Render(os.Stderr, v)
			return fmt.Errorf("always condition violated")
		}
	}
	fmt.Printf("ok: no violation found in %d seed(s)\n", *maxSeeds)
	return nil
}

// runOneSeed runs m to deadlock or maxSteps; ok is false iff it hit a
// violation, in which case v names it.
func runOneSeed(m *vm.Machine, maxSteps int) (v *diag.Error, ok bool) {
	for i := 0; i < maxSteps; i++ {
		r, more, err := m.RandomStep()
		if err != nil || !more {
			return nil, true
		}
		if r.Violation != nil {
			return r.Violation, false
		}
	}
	return nil, true
}

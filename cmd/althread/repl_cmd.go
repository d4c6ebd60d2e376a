package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/chzyer/readline"

	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/vm"
)

// stepREPL is `althread run --interactive`'s step-by-step driver: a
// readline prompt, Control-C cancelling a per-step context instead of
// killing the process, and a one-line report per action taken.
func stepREPL(m *vm.Machine) error {
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New("(althread) ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("interactive step mode: [enter]/step, r=random, q=quit")
	for {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-interrupted:
				cancel()
			case <-ctx.Done():
			}
		}()

		line, err := rl.Readline()
		cancel()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}

		switch line {
		case "q", "quit", "exit":
			return nil
		default:
			if err := stepOnce(m); err != nil {
				return err
			}
		}
	}
}

func stepOnce(m *vm.Machine) error {
	pids := m.ExecutablePIDs()
	links := m.PendingLinks()
	if len(pids) == 0 && len(links) == 0 {
		fmt.Println("deadlocked: no executable program and no pending delivery")
		if failing := m.CheckEventually(); len(failing) > 0 {
			fmt.Printf("inconclusive: %d eventually-condition(s) never held\n", len(failing))
		}
		return nil
	}
	r, _, err := m.RandomStep()
	if err != nil {
		return err
	}
	if r.Violation != nil {
		diag.Render(os.Stderr, r.Violation)
		return fmt.Errorf("always condition violated")
	}
	fmt.Printf("pid %d: %s\n", r.PID, r.Result.Kind)
	return nil
}

// Command althread is Althread's CLI surface: a thin shell around the core
// compiler/VM/checker that parses, compiles, simulates or model-checks a
// single .alt source file. Flag parsing uses the standard library's flag
// package rather than a subcommand framework — see DESIGN.md.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "compile":
		err = runCompile(args)
	case "run":
		err = runSimulate(args)
	case "randomsearch":
		err = runRandomSearch(args)
	case "check":
		err = runCheck(args)
	case "init", "add", "remove", "update", "install":
		fmt.Fprintf(os.Stderr, "%s: not implemented in this build (package-manager command, external collaborator)\n", cmd)
		os.Exit(1)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "althread: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: althread <command> [arguments]

commands:
  compile <input.alt|->                         parse and compile, print the bytecode listing
  run <input.alt|-> [--seed n] [--max-steps n] [--interactive] [--verbose] [--debug]
                                                 simulate one execution
  randomsearch <input> [--max-steps n] [--max-seeds n]
                                                 try many seeds, stop at the first violation
  check <input> [--max-states n]                run the state-graph model checker
  init, add, remove, update, install            package-manager commands (external collaborator)`)
}

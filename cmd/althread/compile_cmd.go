package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/althread/althread/internal/bytecode"
)

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: althread compile <input.alt|->")
	}

	project, err := compileInput(fs.Arg(0))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(project.Programs))
	for name := range project.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprint(os.Stdout, bytecode.Disassemble(project.Programs[name]))
	}
	return nil
}

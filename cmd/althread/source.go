package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/althread/althread/internal/compile"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/loader"
)

// readSource loads an .alt file's text from a path, or from stdin when
// path is "-", exactly as every subcommand's usage string promises.
func readSource(path string) (text string, resolvedPath string, err error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), "<stdin>", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), path, nil
}

// compileInput reads and compiles path, rendering any compile error to
// stderr with a source excerpt (diag.Render) before returning it.
func compileInput(path string) (*compile.CompiledProject, error) {
	text, resolved, err := readSource(path)
	if err != nil {
		return nil, err
	}
	ld := loader.FileLoader{Root: filepath.Dir(resolved)}
	project, bag := compile.CompileProject(ld, resolved, text)
	if bag != nil && bag.HasErrors() {
		lines := splitLines(text)
		for _, e := range bag.Errors {
			attachExcerpt(e, lines)
			diag.Render(os.Stderr, e)
		}
		return nil, fmt.Errorf("compilation failed with %d error(s)", len(bag.Errors))
	}
	return project, nil
}

func attachExcerpt(e *diag.Error, lines []string) {
	if e.Pos.Line >= 1 && e.Pos.Line <= len(lines) {
		e.Excerpt = lines[e.Pos.Line-1]
	}
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	lines = append(lines, text[start:])
	return lines
}

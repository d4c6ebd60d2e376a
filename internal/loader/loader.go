// Package loader implements Althread's module loader interface: given a
// base file path and a dotted import path, resolve it to a single source
// file's contents. File discovery (walking a real filesystem, package
// manager-fetched dependency trees) is out of scope beyond the basics —
// this package exists only so internal/compile's module composition has a
// real collaborator to call during tests and the CLI.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is one resolved module: its canonical path (used for cycle
// detection and diagnostics) and its file contents.
type Source struct {
	Path string
	Text string
}

// Loader resolves a dotted import path relative to the file that imports
// it.
type Loader interface {
	// Resolve returns the source a dotted module path refers to, relative
	// to base (the importing file's own resolved path).
	Resolve(base string, path []string) (Source, error)
}

// FileLoader resolves imports against the real OS filesystem, in the
// directory of the importing file (or in Root when base is empty), trying
// "<path>.alt" and "<path>/mod.alt" in that order.
type FileLoader struct {
	Root string
}

func (l FileLoader) Resolve(base string, path []string) (Source, error) {
	dir := l.Root
	if base != "" {
		dir = filepath.Dir(base)
	}
	rel := filepath.Join(path...)
	candidates := []string{
		filepath.Join(dir, rel+".alt"),
		filepath.Join(dir, rel, "mod.alt"),
	}
	for _, c := range candidates {
		b, err := os.ReadFile(c)
		if err == nil {
			return Source{Path: c, Text: string(b)}, nil
		}
	}
	return Source{}, fmt.Errorf("loader: module %q not found (tried %s)", strings.Join(path, "."), strings.Join(candidates, ", "))
}

// MapLoader resolves imports against an in-memory virtual filesystem,
// keyed by dotted module path — used by tests and by any host embedding
// Althread without real files on disk.
type MapLoader map[string]string

func (l MapLoader) Resolve(base string, path []string) (Source, error) {
	key := strings.Join(path, ".")
	text, ok := l[key]
	if !ok {
		return Source{}, fmt.Errorf("loader: module %q not found", key)
	}
	return Source{Path: key, Text: text}, nil
}

// CycleError reports a circular import chain as a human-readable stack,
// e.g. "a -> b -> a".
type CycleError struct {
	Stack []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular import: %s", strings.Join(e.Stack, " -> "))
}

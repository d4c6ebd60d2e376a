package compile

import (
	"fmt"

	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/diag"
	"github.com/althread/althread/internal/loader"
)

// CompileProject lowers entryPath (and, transitively, every module it
// imports via ld) into one CompiledProject. Each import is compiled as its
// own unit, then every global variable, function, program and channel it
// declares is renamed by prepending "prefix." and merged into the
// importing unit's registries before the importing file's own body is
// compiled — a dot-joined renaming scheme. Same-level sibling imports
// sharing a prefix are merged without double-qualification since each
// import's symbols are renamed exactly once, at the point they are first
// merged.
//
// Cross-module *call sites* are not resolved to the renamed symbols: parseRun
// only takes a bare program name, and the parser reads a dotted call such
// as `p.someProgram(...)` or `p.someFn()` as a method call on a variable
// named p, which the compiler lowers as a stdlib method call, not as a
// spawn or a call of the renamed `p.someProgram`/`p.someFn`.
// CompileProject still performs the full resolve/compile/rename/merge
// pipeline, so the renamed, merged registries are present in the returned
// project; see DESIGN.md for this scoping decision.
func CompileProject(ld loader.Loader, entryPath, entrySrc string) (*CompiledProject, *diag.Bag) {
	bag := &diag.Bag{}
	file, err := ast.ParseFile(entryPath, entrySrc)
	if err != nil {
		bag.Add(diag.SyntaxError(diag.Position{File: entryPath}, "%s", err))
		return nil, bag
	}

	c := New()
	if err := c.loadImports(ld, entryPath, file.Imports, []string{entryPath}); err != nil {
		bag.Add(toImportErr(entryPath, err))
		return nil, bag
	}

	project, fileBag := c.compileFile(file)
	if project == nil {
		return nil, fileBag
	}
	return project, nil
}

func toImportErr(entryPath string, err error) *diag.Error {
	if ce, ok := err.(*loader.CycleError); ok {
		return diag.ImportError(diag.Position{File: entryPath}, "%s", ce.Error())
	}
	return diag.ImportError(diag.Position{File: entryPath}, "%s", err)
}

// loadImports resolves and compiles every import of a file directly into
// c's own registries, under each import's dot-prefix, before the caller
// compiles the importing file's own declarations.
func (c *Compiler) loadImports(ld loader.Loader, base string, imports []*ast.Import, stack []string) error {
	for _, imp := range imports {
		src, err := ld.Resolve(base, imp.Path)
		if err != nil {
			return err
		}
		for _, seen := range stack {
			if seen == src.Path {
				return &loader.CycleError{Stack: append(append([]string(nil), stack...), src.Path)}
			}
		}

		subFile, err := ast.ParseFile(src.Path, src.Text)
		if err != nil {
			return fmt.Errorf("%s: %w", src.Path, err)
		}
		if err := rejectMainProgram(subFile); err != nil {
			return err
		}

		sub := New()
		if err := sub.loadImports(ld, src.Path, subFile.Imports, append(stack, src.Path)); err != nil {
			return err
		}
		subProject, subBag := sub.compileFile(subFile)
		if subProject == nil {
			return fmt.Errorf("%s: %s", src.Path, subBag.Error())
		}

		mergeRenamed(c, subProject, imp.Prefix)
	}
	return nil
}

func rejectMainProgram(f *ast.File) error {
	for _, p := range f.Programs {
		if p.Name == "main" {
			return fmt.Errorf("imported module may not define a \"main\" program")
		}
	}
	return nil
}

// mergeRenamed copies every symbol sub declares into dst's registries,
// each renamed to "prefix.<original-name>". Instruction operands that
// reference a renamed global, function or program by name are rewritten
// in place so the merged bytecode keeps working unmodified.
func mergeRenamed(dst *Compiler, sub *CompiledProject, prefix string) {
	rename := func(name string) string { return prefix + "." + name }

	renamedGlobals := make(map[string]bool, len(sub.GlobalTable))
	for name, v := range sub.GlobalTable {
		nn := rename(name)
		v.Name = nn
		dst.globalTable[nn] = v
		dst.globalMemory[nn] = sub.GlobalMemory[name]
		renamedGlobals[name] = true
	}

	renamedFuncs := make(map[string]bool, len(sub.UserFunctions))
	for name := range sub.UserFunctions {
		renamedFuncs[name] = true
	}
	mergedFuncs := make([]*FunctionDef, 0, len(sub.UserFunctions))
	for name, fn := range sub.UserFunctions {
		cp := *fn
		cp.Name = rename(name)
		dst.userFunctions[cp.Name] = &cp
		mergedFuncs = append(mergedFuncs, &cp)
	}
	// Rename FnCall/GlobalReads/GlobalAssignment sites once the full
	// renamed-symbol sets are known (a function may call a sibling declared
	// later in the file, or read a global declared later).
	for _, fn := range mergedFuncs {
		renameCode(fn.Code, renamedGlobals, renamedFuncs, prefix)
	}

	for name, code := range sub.Programs {
		nn := rename(name)
		renameCode(code, renamedGlobals, renamedFuncs, prefix)
		dst.programArguments[nn] = sub.ProgramArguments[name]
		// Programs are merged as additional compiled programs the host
		// project spawns; CompileProject's caller finds them in the
		// returned CompiledProject.Programs map under the renamed key.
		dst.mergedPrograms()[nn] = code
	}

	for key, info := range sub.Channels {
		nk := ChannelKey{Program: rename(key.Program), Name: key.Name}
		dst.channels[nk] = info
	}
}

// mergedPrograms lazily allocates the compiler's side-table of imported
// programs, which compileFile folds into its own Programs map once the
// host file's own programs are compiled.
func (c *Compiler) mergedPrograms() map[string]*bytecode.ProgramCode {
	if c.imported == nil {
		c.imported = make(map[string]*bytecode.ProgramCode)
	}
	return c.imported
}

// renameCode rewrites every instruction in code that names a global,
// user function or spawned program which moved under prefix during this
// merge, in place.
func renameCode(code *bytecode.ProgramCode, globals, funcs map[string]bool, prefix string) {
	if code == nil {
		return
	}
	for i, insn := range code.Instructions {
		code.Instructions[i].Control = renameControl(insn.Control, globals, funcs, prefix)
	}
}

func renameControl(ctl bytecode.Control, globals, funcs map[string]bool, prefix string) bytecode.Control {
	pfx := func(n string) string { return prefix + "." + n }
	switch n := ctl.(type) {
	case bytecode.GlobalReads:
		names := make([]string, len(n.Names))
		for i, nm := range n.Names {
			if globals[nm] {
				names[i] = pfx(nm)
			} else {
				names[i] = nm
			}
		}
		return bytecode.GlobalReads{Names: names}
	case bytecode.GlobalAssignment:
		if globals[n.Name] {
			n.Name = pfx(n.Name)
		}
		return n
	case bytecode.FnCall:
		if n.VariableIdx == nil && funcs[n.Name] {
			n.Name = pfx(n.Name)
		}
		return n
	case bytecode.RunCall:
		n.Name = pfx(n.Name)
		return n
	default:
		return ctl
	}
}

package compile

import (
	"testing"

	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/bytecode"
	"github.com/althread/althread/internal/value"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := ast.ParseFile("test.alt", src)
	require.NoError(t, err)
	return f
}

func TestCompileSimpleAssignmentProgram(t *testing.T) {
	f := mustParse(t, `
shared {
	let mut counter = 0;
}

main {
	counter = counter + 1;
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	require.Equal(t, value.Int(0), project.GlobalMemory["counter"])

	prog, ok := project.Programs["main"]
	require.True(t, ok)

	var kinds []string
	for _, insn := range prog.Instructions {
		kinds = append(kinds, insn.Control.Mnemonic())
	}
	require.Contains(t, kinds, "GLOBAL_READS")
	require.Contains(t, kinds, "GLOBAL_ASSIGN")
	require.Equal(t, "END_PROGRAM", kinds[len(kinds)-1])
}

func TestCompileRejectsAssignmentToImmutableLocal(t *testing.T) {
	f := mustParse(t, `
main {
	let x = 1;
	x = 2;
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.True(t, bag.HasErrors())
	require.Contains(t, bag.Error(), "not declared mut")
}

func TestCompileReportsUndefinedChannel(t *testing.T) {
	f := mustParse(t, `
main {
	send out <- 1;
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.True(t, bag.HasErrors())
	require.Contains(t, bag.Error(), "never declared")
}

func TestCompileAlwaysEventuallyConditions(t *testing.T) {
	f := mustParse(t, `
shared {
	let mut counter = 0;
}

always {
	counter >= 0;
}

eventually {
	counter == 10;
}

main {
	counter = counter + 1;
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.Len(t, project.Always, 1)
	require.Len(t, project.Eventually, 1)
	require.Equal(t, []string{"counter"}, project.Always[0].ReadOrder)
	require.Equal(t, []string{"counter"}, project.Eventually[0].ReadOrder)
}

func TestCompileConditionRejectsUndefinedGlobal(t *testing.T) {
	f := mustParse(t, `
always {
	missing == 0;
}

main { }
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.True(t, bag.HasErrors())
	require.Contains(t, bag.Error(), "undefined shared variable")
}

func TestCompileChannelDeclarationAndPrescanAllowsForwardReference(t *testing.T) {
	f := mustParse(t, `
main {
	send out <- 1;
	channel out(int);
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	key := ChannelKey{Program: "main", Name: "out"}
	info, ok := project.Channels[key]
	require.True(t, ok)
	require.Len(t, info.Elems, 1)
}

func TestCompileRunBindsProcessHandle(t *testing.T) {
	f := mustParse(t, `
worker(n: int) {
}

main {
	let p = worker(1);
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	_, ok := project.Programs["worker"]
	require.True(t, ok)

	prog := project.Programs["main"]
	var sawRunCall bool
	for _, insn := range prog.Instructions {
		if rc, ok := insn.Control.(bytecode.RunCall); ok {
			sawRunCall = true
			require.Equal(t, "worker", rc.Name)
			require.True(t, rc.BindsResult)
		}
	}
	require.True(t, sawRunCall)
}

func TestCompileBlockKeepsStackDepthSymmetric(t *testing.T) {
	f := mustParse(t, `
main {
	let a = 1;
	{
		let b = 2;
		let c = 3;
	}
	let d = 4;
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	prog := project.Programs["main"]

	depth := 0
	minDepth := 0
	for _, insn := range prog.Instructions {
		switch c := insn.Control.(type) {
		case bytecode.Declaration:
			depth++
		case bytecode.Unstack:
			depth -= c.N
		}
		if depth < minDepth {
			minDepth = depth
		}
	}
	require.GreaterOrEqual(t, depth, 0)
	require.Equal(t, 0, minDepth)
}

// TestCompileIsDeterministic guards the model checker's determinism
// requirement one level down: compiling the same source twice, from
// scratch, must produce byte-for-byte identical bytecode, or two
// otherwise-identical projects could hash to different vm.Machine.Key
// values for no observable reason.
func TestCompileIsDeterministic(t *testing.T) {
	src := `
shared {
	let mut counter = 0;
}

worker(n: int) {
	channel out(int);
	send out <- n;
}

main {
	let mut i = 0;
	while i < 3 {
		let w = worker(i);
		counter = counter + 1;
		i = i + 1;
	}
}
`
	f1 := mustParse(t, src)
	p1, bag1 := Compile(f1)
	require.Nil(t, bag1)

	f2 := mustParse(t, src)
	p2, bag2 := Compile(f2)
	require.Nil(t, bag2)

	if diff := cmp.Diff(p1.Programs["main"], p2.Programs["main"]); diff != "" {
		t.Fatalf("recompiling identical source produced different bytecode for \"main\" (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p1.Programs["worker"], p2.Programs["worker"]); diff != "" {
		t.Fatalf("recompiling identical source produced different bytecode for \"worker\" (-first +second):\n%s", diff)
	}
}

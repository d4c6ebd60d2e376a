package compile

import (
	"testing"

	"github.com/althread/althread/internal/loader"
	"github.com/althread/althread/internal/value"
	"github.com/stretchr/testify/require"
)

func TestCompileProjectMergesImportedSymbolsUnderPrefix(t *testing.T) {
	ld := loader.MapLoader{
		"collections.queue": `
shared {
	let mut size = 0;
}

fn bump(): int {
	return 1;
}

worker(n: int) {
}
`,
	}

	entry := `
import collections.queue as q;

main {
	let p = q.worker(1);
}
`
	project, bag := CompileProject(ld, "main.alt", entry)
	require.Nil(t, bag)
	require.NotNil(t, project)

	_, ok := project.GlobalTable["q.size"]
	require.True(t, ok)
	require.Equal(t, value.Int(0), project.GlobalMemory["q.size"])

	_, ok = project.UserFunctions["q.bump"]
	require.True(t, ok)

	_, ok = project.Programs["q.worker"]
	require.True(t, ok)
	_, ok = project.Programs["main"]
	require.True(t, ok)
}

func TestCompileProjectRejectsImportedMainProgram(t *testing.T) {
	ld := loader.MapLoader{
		"bad": `
main {
}
`,
	}
	entry := `
import bad;

main {
}
`
	project, bag := CompileProject(ld, "main.alt", entry)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.True(t, bag.HasErrors())
}

func TestCompileProjectReportsCycleError(t *testing.T) {
	ld := loader.MapLoader{
		"a": "import b;\nshared { }\n",
		"b": "import a;\nshared { }\n",
	}
	entry := "import a;\nmain { }\n"
	project, bag := CompileProject(ld, "main.alt", entry)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.Contains(t, bag.Error(), "circular import")
}

func TestCompileProjectMissingModule(t *testing.T) {
	ld := loader.MapLoader{}
	entry := "import nope;\nmain { }\n"
	project, bag := CompileProject(ld, "main.alt", entry)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.True(t, bag.HasErrors())
}

package compile

import (
	"testing"

	"github.com/althread/althread/internal/bytecode"
	"github.com/stretchr/testify/require"
)

// TestCompileAtomicEmitsStartAndEndAroundBody confirms the ordinary,
// non-nested case still lowers to AtomicStart/.../AtomicEnd.
func TestCompileAtomicEmitsStartAndEndAroundBody(t *testing.T) {
	f := mustParse(t, `
main {
	atomic {
		let x = 1;
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	prog := project.Programs["main"]

	var kinds []string
	for _, insn := range prog.Instructions {
		kinds = append(kinds, insn.Control.Mnemonic())
	}
	require.Contains(t, kinds, "ATOMIC_START")
	require.Contains(t, kinds, "ATOMIC_END")
}

// TestCompileNestedAtomicIsRejected guards the compile-time check that an
// atomic block cannot itself open another atomic block.
func TestCompileNestedAtomicIsRejected(t *testing.T) {
	f := mustParse(t, `
main {
	atomic {
		atomic {
			let x = 1;
		}
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.Contains(t, bag.Error(), "cannot be nested")
}

// TestCompileWaitInsideAtomicIsRejected: a wait appearing after some other
// statement inside an atomic block is not the block's entry point, so it
// must be rejected rather than silently compiled.
func TestCompileWaitInsideAtomicIsRejected(t *testing.T) {
	f := mustParse(t, `
shared {
	let mut x = 0;
}

main {
	channel in(int);
	atomic {
		let y = 1;
		wait {
			x == 1 => {}
		}
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.Contains(t, bag.Error(), "not allowed inside an atomic block")
}

// TestCompileSendInsideAtomicIsRejected mirrors the wait case for send.
func TestCompileSendInsideAtomicIsRejected(t *testing.T) {
	f := mustParse(t, `
main {
	channel out(int);
	atomic {
		let y = 1;
		send out <- 1;
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, project)
	require.NotNil(t, bag)
	require.Contains(t, bag.Error(), "not allowed inside an atomic block")
}

// TestCompileWaitAsAtomicEntryIsDelegatedAndAccepted: a wait that is the
// very first statement of an atomic block is its delegated entry and
// compiles cleanly, still wrapped in AtomicStart/AtomicEnd.
func TestCompileWaitAsAtomicEntryIsDelegatedAndAccepted(t *testing.T) {
	f := mustParse(t, `
shared {
	let mut x = 0;
}

main {
	atomic {
		wait {
			x == 1 => {
				x = 2;
			}
		}
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	prog := project.Programs["main"]

	var kinds []string
	for _, insn := range prog.Instructions {
		kinds = append(kinds, insn.Control.Mnemonic())
	}
	require.Contains(t, kinds, "ATOMIC_START")
	require.Contains(t, kinds, "ATOMIC_END")

	for _, insn := range prog.Instructions {
		if ws, ok := insn.Control.(bytecode.WaitStart); ok {
			require.True(t, ws.StartAtomic, "the delegated wait must still propagate start_atomic")
		}
	}
}

// TestCompileSendAsAtomicEntryIsDelegatedAndAccepted mirrors the wait case
// for send as the atomic block's first statement.
func TestCompileSendAsAtomicEntryIsDelegatedAndAccepted(t *testing.T) {
	f := mustParse(t, `
main {
	channel out(int);
	atomic {
		send out <- 1;
	}
}
`)
	project, bag := Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
}

package vm

import (
	"testing"

	"github.com/althread/althread/internal/ast"
	"github.com/althread/althread/internal/compile"
	"github.com/althread/althread/internal/value"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, src string) *compile.CompiledProject {
	t.Helper()
	f, err := ast.ParseFile("test.alt", src)
	require.NoError(t, err)
	project, bag := compile.Compile(f)
	require.Nil(t, bag)
	require.NotNil(t, project)
	return project
}

func TestMachineRunsCounterToDeadlockAndSatisfiesEventually(t *testing.T) {
	project := mustCompile(t, `
shared {
	let mut counter = 0;
}

always {
	counter >= 0;
}

eventually {
	counter == 3;
}

main {
	let mut i = 0;
	while i < 3 {
		counter = counter + 1;
		i = i + 1;
	}
}
`)
	m, err := New(project, 1)
	require.NoError(t, err)

	steps := 0
	for !m.Deadlocked() {
		steps++
		require.Less(t, steps, 10000, "machine did not reach deadlock")
		reaction, ok, err := m.RandomStep()
		require.NoError(t, err)
		require.True(t, ok)
		require.Nil(t, reaction.Violation)
	}

	require.Nil(t, m.CheckAlways())
	require.Empty(t, m.CheckEventually())
	require.Equal(t, value.Int(3), m.globals["counter"])
}

func TestMachineDetectsAlwaysViolation(t *testing.T) {
	project := mustCompile(t, `
shared {
	let mut counter = 0;
}

always {
	counter >= 0;
}

main {
	counter = counter - 1;
}
`)
	m, err := New(project, 1)
	require.NoError(t, err)

	var violation bool
	for i := 0; i < 10 && !violation; i++ {
		reaction, ok, err := m.RandomStep()
		require.NoError(t, err)
		if !ok {
			break
		}
		if reaction.Violation != nil {
			violation = true
		}
	}
	require.True(t, violation, "expected an always-condition violation to surface")
}

func TestMachineChannelCommunicationBetweenTwoPrograms(t *testing.T) {
	project := mustCompile(t, `
shared {
	let mut received = 0;
}

producer() {
	channel out(int);
	send out <- 42;
}

consumer() {
	channel in(int);
	wait {
		in?(x) => {
			received = x;
		}
	}
}

main {
	let p = producer();
	let c = consumer();
	connect p.out -> c.in;
}
`)
	m, err := New(project, 7)
	require.NoError(t, err)

	steps := 0
	for !m.Deadlocked() {
		steps++
		require.Less(t, steps, 10000, "machine did not reach deadlock")
		_, ok, err := m.RandomStep()
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.Nil(t, m.CheckAlways())
	require.Equal(t, value.Int(42), m.globals["received"])
	for _, pid := range m.order {
		require.True(t, m.programs[pid].Done(), "program %d did not run to completion", pid)
	}
}

func TestMachineRejectsProjectWithoutMain(t *testing.T) {
	project := mustCompile(t, `
worker() {
}
`)
	_, err := New(project, 1)
	require.Error(t, err)
}

func TestMachineCloneIsIndependent(t *testing.T) {
	project := mustCompile(t, `
shared {
	let mut counter = 0;
}

main {
	counter = counter + 1;
}
`)
	m, err := New(project, 1)
	require.NoError(t, err)

	clone := m.Clone()
	_, _, err = clone.RandomStep()
	require.NoError(t, err)
	_, _, err = clone.RandomStep()
	require.NoError(t, err)

	require.Equal(t, value.Int(0), m.globals["counter"])
}

func TestMachineKeyIsDeterministicForEquivalentStates(t *testing.T) {
	project := mustCompile(t, `
shared {
	let mut counter = 0;
}

main {
	counter = counter + 1;
}
`)
	a, err := New(project, 1)
	require.NoError(t, err)
	b, err := New(project, 2)
	require.NoError(t, err)

	require.Equal(t, a.Key(), b.Key())

	for !a.Deadlocked() {
		_, _, err := a.RandomStep()
		require.NoError(t, err)
	}
	for !b.Deadlocked() {
		_, _, err := b.RandomStep()
		require.NoError(t, err)
	}
	require.Equal(t, a.Key(), b.Key())
}

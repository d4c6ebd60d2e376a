package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionString(t *testing.T) {
	require.Equal(t, "3:7", Position{Line: 3, Column: 7}.String())
	require.Equal(t, "foo.alt:3:7", Position{File: "foo.alt", Line: 3, Column: 7}.String())
}

func TestErrorMessage(t *testing.T) {
	e := TypeError(Position{Line: 1, Column: 2}, "want %s, got %s", "int", "string")
	require.Equal(t, "TypeError at 1:2: want int, got string", e.Error())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "SyntaxError", Syntax.String())
	require.Equal(t, "InvariantViolation", InvariantViolation.String())
	require.Equal(t, "Error", Kind(999).String())
}

func TestBagAccumulatesAndReportsCount(t *testing.T) {
	var b Bag
	require.False(t, b.HasErrors())
	require.Equal(t, "", b.Error())

	b.Add(VariableError(Position{}, "undefined variable %q", "x"))
	require.True(t, b.HasErrors())
	require.Equal(t, `VariableError at 0:0: undefined variable "x"`, b.Error())

	b.Add(TypeError(Position{}, "oops"))
	require.Contains(t, b.Error(), "and 1 more error(s)")
}

package ast

import (
	"testing"

	"github.com/althread/althread/internal/value"
	"github.com/stretchr/testify/require"
)

func TestParseFileSharedAndMain(t *testing.T) {
	src := `
shared {
	let mut counter = 0;
}

main {
	counter = counter + 1;
}
`
	f, err := ParseFile("test.alt", src)
	require.NoError(t, err)
	require.Len(t, f.Shared, 1)
	require.Equal(t, "counter", f.Shared[0].Name)
	require.True(t, f.Shared[0].Mutable)

	require.Len(t, f.Programs, 1)
	require.Equal(t, "main", f.Programs[0].Name)
	require.Len(t, f.Programs[0].Body, 1)

	assign, ok := f.Programs[0].Body[0].(*Assignment)
	require.True(t, ok)
	require.Equal(t, "=", assign.Op)
}

func TestParseImport(t *testing.T) {
	f, err := ParseFile("test.alt", "import collections.queue as q;\nmain { }\n")
	require.NoError(t, err)
	require.Len(t, f.Imports, 1)
	require.Equal(t, []string{"collections", "queue"}, f.Imports[0].Path)
	require.Equal(t, "q", f.Imports[0].Prefix)
}

func TestParseImportDefaultsPrefixToLastSegment(t *testing.T) {
	f, err := ParseFile("test.alt", "import collections.queue;\nmain { }\n")
	require.NoError(t, err)
	require.Equal(t, "queue", f.Imports[0].Prefix)
}

func TestParseIfWhileLoopBreakContinue(t *testing.T) {
	src := `
main {
	let mut i = 0;
	while i < 10 {
		if i == 5 {
			break;
		} else {
			i = i + 1;
		}
	}
	loop {
		continue;
	}
}
`
	f, err := ParseFile("test.alt", src)
	require.NoError(t, err)
	body := f.Programs[0].Body
	require.Len(t, body, 3)
	_, ok := body[1].(*While)
	require.True(t, ok)
	_, ok = body[2].(*Loop)
	require.True(t, ok)
}

func TestParseRunWaitConnectSend(t *testing.T) {
	src := `
worker(n: int) {
	channel in(int);
}

main {
	run worker(1);
	connect self.out -> other.in;
	send out <- 1, 2;
	wait first {
		in?(x) => {
			x = x + 1;
		}
		true => {
		}
	}
}
`
	f, err := ParseFile("test.alt", src)
	require.NoError(t, err)
	require.Len(t, f.Programs, 2)

	body := f.Programs[1].Body
	run, ok := body[0].(*Run)
	require.True(t, ok)
	require.Equal(t, "worker", run.Name)
	require.Len(t, run.Args, 1)

	conn, ok := body[1].(*Connect)
	require.True(t, ok)
	require.Equal(t, "out", conn.SenderChan)
	require.Equal(t, "in", conn.ReceiverChan)

	send, ok := body[2].(*Send)
	require.True(t, ok)
	require.Equal(t, "out", send.Channel)
	require.Len(t, send.Values, 2)

	wait, ok := body[3].(*Wait)
	require.True(t, ok)
	require.Equal(t, WaitFirst, wait.Mode)
	require.Len(t, wait.Cases, 2)
	require.NotNil(t, wait.Cases[0].Receive)
	require.Equal(t, "in", wait.Cases[0].Receive.Channel)
	require.Equal(t, []string{"x"}, wait.Cases[0].Receive.Pattern)
	require.Nil(t, wait.Cases[1].Receive)
}

func TestParseExpressionPrecedence(t *testing.T) {
	f, err := ParseFile("test.alt", "shared {\nlet x = 1 + 2 * 3;\n}\nmain { }\n")
	require.NoError(t, err)
	bin, ok := f.Shared[0].Init.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	rhs, ok := bin.Y.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "*", rhs.Op)
}

func TestParseFunctionDecl(t *testing.T) {
	src := `
fn add(a: int, b: int): int {
	return a + b;
}
main { }
`
	f, err := ParseFile("test.alt", src)
	require.NoError(t, err)
	require.Len(t, f.Functions, 1)
	fn := f.Functions[0]
	require.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	require.Equal(t, "int", fn.ReturnType.Name)
	ret, ok := fn.Body[0].(*Return)
	require.True(t, ok)
	require.NotNil(t, ret.Value)
}

func TestParseTupleAndListLiterals(t *testing.T) {
	f, err := ParseFile("test.alt", "shared {\nlet pair = (1, 2);\nlet items = [1, 2, 3];\n}\nmain { }\n")
	require.NoError(t, err)
	_, ok := f.Shared[0].Init.(*TupleExpr)
	require.True(t, ok)
	_, ok = f.Shared[1].Init.(*ListExpr)
	require.True(t, ok)
}

func TestParseErrorOnUnexpectedToken(t *testing.T) {
	_, err := ParseFile("test.alt", "shared { let = 1; }")
	require.Error(t, err)
}

func TestParseLiteralsCarryValues(t *testing.T) {
	f, err := ParseFile("test.alt", `shared {
let a = true;
let b = false;
let c = null;
let d = "hi";
}
main { }
`)
	require.NoError(t, err)
	require.Equal(t, value.Bool(true), f.Shared[0].Init.(*Literal).Value)
	require.Equal(t, value.Bool(false), f.Shared[1].Init.(*Literal).Value)
	require.Equal(t, value.Null{}, f.Shared[2].Init.(*Literal).Value)
	require.Equal(t, value.String("hi"), f.Shared[3].Init.(*Literal).Value)
}

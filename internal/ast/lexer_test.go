package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks
		}
	}
}

func TestLexerRecognizesKeywordsVsIdents(t *testing.T) {
	toks := lexAll(t, "let mut counter")
	require.Equal(t, TokKeyword, toks[0].Kind)
	require.Equal(t, TokKeyword, toks[1].Kind)
	require.Equal(t, TokIdent, toks[2].Kind)
	require.Equal(t, "counter", toks[2].Text)
}

func TestLexerNumbers(t *testing.T) {
	toks := lexAll(t, "42 3.14")
	require.Equal(t, TokInt, toks[0].Kind)
	require.Equal(t, "42", toks[0].Text)
	require.Equal(t, TokFloat, toks[1].Kind)
	require.Equal(t, "3.14", toks[1].Text)
}

func TestLexerString(t *testing.T) {
	toks := lexAll(t, `"hello\nworld"`)
	require.Equal(t, TokString, toks[0].Kind)
	require.Equal(t, "hello\nworld", toks[0].Text)
}

func TestLexerTwoCharPunctsIncludingArrows(t *testing.T) {
	toks := lexAll(t, "-> => == != <= >= && || <-")
	want := []string{"->", "=>", "==", "!=", "<=", ">=", "&&", "||", "<-"}
	for i, w := range want {
		require.Equal(t, TokPunct, toks[i].Kind, "token %d", i)
		require.Equal(t, w, toks[i].Text, "token %d", i)
	}
}

func TestLexerSkipsLineComments(t *testing.T) {
	toks := lexAll(t, "let x = 1; // trailing comment\nlet y = 2;")
	var texts []string
	for _, tok := range toks {
		if tok.Kind != TokEOF {
			texts = append(texts, tok.Text)
		}
	}
	require.NotContains(t, texts, "trailing")
	require.Contains(t, texts, "y")
}

func TestLexerPositionTracksLineAndColumn(t *testing.T) {
	toks := lexAll(t, "let\nx")
	require.Equal(t, 1, toks[0].Pos.Line)
	require.Equal(t, 2, toks[1].Pos.Line)
}

package syntax

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lexed struct {
	Kind TokenKind
	Text string
}

func lexAll(t *testing.T, src string) []lexed {
	t.Helper()
	l := NewLexer(strings.NewReader(src))
	var out []lexed
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		out = append(out, lexed{Kind: tok.Kind, Text: tok.Text})
		if tok.Kind == EOF {
			return out
		}
	}
}

func TestLexer_Tokens(t *testing.T) {
	cases := map[string]struct {
		src  string
		want []lexed
	}{
		"operators": {
			src: `echo "a b" 2>&1 | cat && x=1`,
			want: []lexed{
				{WORD, "echo"},
				{WORD, `"a b"`},
				{IO_NUMBER, "2"},
				{OPERATOR, ">&"},
				{WORD, "1"},
				{OPERATOR, "|"},
				{WORD, "cat"},
				{OPERATOR, "&&"},
				{WORD, "x=1"},
				{EOF, ""},
			},
		},
		"reserved words only in command position": {
			src: "if true; then echo if; fi",
			want: []lexed{
				{RESERVED, "if"},
				{WORD, "true"},
				{OPERATOR, ";"},
				{RESERVED, "then"},
				{WORD, "echo"},
				{WORD, "if"},
				{OPERATOR, ";"},
				{RESERVED, "fi"},
				{EOF, ""},
			},
		},
		"maximal munch": {
			src: "a;;b<<-c>|d",
			want: []lexed{
				{WORD, "a"},
				{OPERATOR, ";;"},
				{WORD, "b"},
				{OPERATOR, "<<-"},
				{HEREDOC_DELIM, "c"},
				{OPERATOR, ">|"},
				{WORD, "d"},
				{EOF, ""},
			},
		},
		"comments and continuations": {
			src: "echo a \\\nb # comment\n",
			want: []lexed{
				{WORD, "echo"},
				{WORD, "a"},
				{WORD, "b"},
				{NEWLINE, "\n"},
				{EOF, ""},
			},
		},
		"metacharacters inside quotes": {
			src: `echo 'a;b' "c|d" e\&f`,
			want: []lexed{
				{WORD, "echo"},
				{WORD, `'a;b'`},
				{WORD, `"c|d"`},
				{WORD, `e\&f`},
				{EOF, ""},
			},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got := lexAll(t, tc.src)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexer_QuotingMetadata(t *testing.T) {
	l := NewLexer(strings.NewReader(`'a b'"$x"\c plain`))
	tok, err := l.Next()
	require.NoError(t, err)
	require.Len(t, tok.Word.Parts, 3)

	single, ok := tok.Word.Parts[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "a b", single.Value)
	assert.True(t, single.Quoted)
	assert.True(t, single.Single)

	param, ok := tok.Word.Parts[1].(*ParamExp)
	require.True(t, ok)
	assert.Equal(t, "x", param.Name)
	assert.True(t, param.Quoted)

	escaped, ok := tok.Word.Parts[2].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "c", escaped.Value)
	assert.True(t, escaped.Quoted)

	tok, err = l.Next()
	require.NoError(t, err)
	lit, ok := tok.Word.Lit()
	assert.True(t, ok)
	assert.Equal(t, "plain", lit)
}

func TestLexer_Expansions(t *testing.T) {
	word := func(t *testing.T, src string) *Word {
		t.Helper()
		tok, err := NewLexer(strings.NewReader(src)).Next()
		require.NoError(t, err)
		return tok.Word
	}

	t.Run("braced parameter", func(t *testing.T) {
		w := word(t, `${name:-"default value"}`)
		require.Len(t, w.Parts, 1)
		pe := w.Parts[0].(*ParamExp)
		assert.Equal(t, "name", pe.Name)
		assert.Equal(t, "-", pe.Op)
		assert.True(t, pe.Colon)
		assert.Equal(t, `"default value"`, pe.Arg.Raw)
	})

	t.Run("length", func(t *testing.T) {
		pe := word(t, `${#name}`).Parts[0].(*ParamExp)
		assert.True(t, pe.Length)
		assert.Equal(t, "name", pe.Name)
	})

	t.Run("count", func(t *testing.T) {
		pe := word(t, `${#}`).Parts[0].(*ParamExp)
		assert.False(t, pe.Length)
		assert.Equal(t, "#", pe.Name)
	})

	t.Run("suffix removal", func(t *testing.T) {
		pe := word(t, `${file%%.*}`).Parts[0].(*ParamExp)
		assert.Equal(t, "%%", pe.Op)
		assert.Equal(t, ".*", pe.Arg.Raw)
	})

	t.Run("command substitution", func(t *testing.T) {
		cs := word(t, `$(echo "a)b" | tr a b)`).Parts[0].(*CmdSubst)
		assert.Equal(t, `echo "a)b" | tr a b`, cs.Text)
		require.NotNil(t, cs.Prog)
		assert.Len(t, cs.Prog.Body.Items[0].AndOr.Pipelines[0].Commands, 2)
	})

	t.Run("backquote", func(t *testing.T) {
		cs := word(t, "`echo \\`date\\``").Parts[0].(*CmdSubst)
		assert.True(t, cs.Backquote)
		assert.Equal(t, "echo `date`", cs.Text)
	})

	t.Run("arithmetic", func(t *testing.T) {
		ae := word(t, `$(( (1 + $x) * 2 ))`).Parts[0].(*ArithExp)
		assert.Equal(t, ` (1 + $x) * 2 `, ae.Expr.Raw)
	})

	t.Run("tilde", func(t *testing.T) {
		w := word(t, `~root/bin`)
		require.Len(t, w.Parts, 2)
		assert.Equal(t, "root", w.Parts[0].(*TildePrefix).User)
		assert.Equal(t, "/bin", w.Parts[1].(*Literal).Value)
	})

	t.Run("quoted tilde", func(t *testing.T) {
		w := word(t, `"~"/bin`)
		_, isTilde := w.Parts[0].(*TildePrefix)
		assert.False(t, isTilde)
	})

	t.Run("literal dollar", func(t *testing.T) {
		lit, ok := word(t, `a$`).Lit()
		assert.True(t, ok)
		assert.Equal(t, "a$", lit)
	})
}

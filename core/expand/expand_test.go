package expand

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vars"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words parses src as the arguments of a simple command.
func words(t *testing.T, src string) []*syntax.Word {
	t.Helper()
	prog, err := syntax.Parse(": " + src)
	require.NoError(t, err)
	cmd := prog.Body.Items[0].AndOr.Pipelines[0].Commands[0].(*syntax.SimpleCommand)
	return cmd.Args[1:]
}

func word(t *testing.T, src string) *syntax.Word {
	t.Helper()
	ws := words(t, src)
	require.Len(t, ws, 1)
	return ws[0]
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	store := vars.NewStore()
	for k, v := range map[string]string{
		"x":     "a  b",
		"empty": "",
		"file":  "archive.tar.gz",
		"HOME":  "/home/u",
		"n":     "4",
	} {
		require.NoError(t, store.Set(k, v, 0))
	}

	return &Config{
		Env: store,
		Special: func(name string) (string, bool) {
			switch name {
			case "?":
				return "3", true
			case "0":
				return "psh", true
			}
			return "", false
		},
		Params: func() []string { return []string{"p 1", "p2"} },
		CmdSubst: func(cs *syntax.CmdSubst) (string, error) {
			return "out put\n\n", nil
		},
		HomeDir: func(user string) (string, bool) {
			if user == "root" {
				return "/root", true
			}
			return "", false
		},
	}
}

func TestFields(t *testing.T) {
	cases := map[string]struct {
		src  string
		want []string
	}{
		"unquoted splits":           {`$x`, []string{"a", "b"}},
		"quoted keeps blanks":       {`"$x"`, []string{"a  b"}},
		"unquoted empty vanishes":   {`$empty`, nil},
		"quoted empty stays":        {`"$empty"`, []string{""}},
		"empty quotes":              {`''`, []string{""}},
		"adjacent text":             {`pre$x"post"`, []string{"prea", "bpost"}},
		"quoted at":                 {`"$@"`, []string{"p 1", "p2"}},
		"unquoted at":               {`$@`, []string{"p", "1", "p2"}},
		"quoted star":               {`"$*"`, []string{"p 1 p2"}},
		"at with affixes":           {`"x$@y"`, []string{"xp 1", "p2y"}},
		"count":                     {`$#`, []string{"2"}},
		"positional":                {`$1`, []string{"p", "1"}},
		"missing positional":        {`"$3"`, []string{""}},
		"special":                   {`$? $0`, []string{"3", "psh"}},
		"default unquoted":          {`${unset:-default value}`, []string{"default", "value"}},
		"default quoted":            {`"${unset:-default value}"`, []string{"default value"}},
		"default quoted inner":      {`${unset:-"default value"}`, []string{"default value"}},
		"default not used":          {`${file-other}`, []string{"archive.tar.gz"}},
		"colon treats null unset":   {`${empty:-d}`, []string{"d"}},
		"no colon keeps null":       {`"${empty-d}"`, []string{""}},
		"alternate":                 {`${file:+set}`, []string{"set"}},
		"alternate unset":           {`${unset:+set}`, nil},
		"length":                    {`${#file}`, []string{"14"}},
		"length of params":          {`${#@}`, []string{"2"}},
		"shortest suffix":           {`${file%.*}`, []string{"archive.tar"}},
		"longest suffix":            {`${file%%.*}`, []string{"archive"}},
		"shortest prefix":           {`${file#*.}`, []string{"tar.gz"}},
		"longest prefix":            {`${file##*.}`, []string{"gz"}},
		"quoted pattern is literal": {`${file%"*"}`, []string{"archive.tar.gz"}},
		"arithmetic":                {`$((1 + 2 * n))`, []string{"9"}},
		"tilde":                     {`~/bin`, []string{"/home/u/bin"}},
		"tilde user":                {`~root`, []string{"/root"}},
		"tilde unknown user":        {`~nobody/x`, []string{"~nobody/x"}},
		"single quotes":             {`'$x'`, []string{"$x"}},
		"escaped blank":             {`a\ b`, []string{"a b"}},
		"command substitution":      {`$(cmd)`, []string{"out", "put"}},
		"quoted substitution":       {`"$(cmd)"`, []string{"out put"}},
		"backquotes":                {"`cmd`", []string{"out", "put"}},
		"several words":             {`a "b c" $x`, []string{"a", "b c", "a", "b"}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got, err := Fields(testConfig(t), words(t, tc.src)...)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Fields(%s) mismatch (-want +got):\n%s", tc.src, diff)
			}
		})
	}
}

func TestFields_IFS(t *testing.T) {
	cases := map[string]struct {
		ifs   string
		value string
		want  []string
	}{
		"colons":                  {":", ":a::b:", []string{"", "a", "", "b"}},
		"whitespace around delim": {" :", "a : b", []string{"a", "b"}},
		"two delimiters":          {" :", "a : : b", []string{"a", "", "b"}},
		"leading whitespace":      {" :", "  a", []string{"a"}},
		"empty ifs":               {"", "a b", []string{"a b"}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := testConfig(t)
			require.NoError(t, cfg.Env.Set("IFS", tc.ifs, 0))
			require.NoError(t, cfg.Env.Set("v", tc.value, 0))

			got, err := Fields(cfg, word(t, "$v"))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("star joins with first IFS char", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, cfg.Env.Set("IFS", "-:", 0))
		got, err := Literal(cfg, word(t, `"$*"`))
		require.NoError(t, err)
		assert.Equal(t, "p 1-p2", got)
	})
}

func TestFields_NoParams(t *testing.T) {
	cfg := testConfig(t)
	cfg.Params = func() []string { return nil }

	got, err := Fields(cfg, word(t, `"$@"`))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Fields(cfg, word(t, `"$*"`))
	require.NoError(t, err)
	assert.Equal(t, []string{""}, got)
}

func TestFields_AssignDefault(t *testing.T) {
	cfg := testConfig(t)

	got, err := Fields(cfg, word(t, `${newvar:=assigned}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"assigned"}, got)

	v, ok := cfg.Env.Get("newvar")
	assert.True(t, ok)
	assert.Equal(t, "assigned", v.Value)

	cfg.Params = func() []string { return nil }
	_, err = Fields(cfg, word(t, `${1:=x}`))
	assert.Error(t, err, "positional parameters can't be assigned")
}

func TestFields_Errors(t *testing.T) {
	t.Run("unset with message", func(t *testing.T) {
		_, err := Fields(testConfig(t), word(t, `${nope?custom message}`))
		var unset *UnsetError
		require.True(t, errors.As(err, &unset))
		assert.Equal(t, "nope: custom message", err.Error())
	})

	t.Run("unset default message", func(t *testing.T) {
		_, err := Fields(testConfig(t), word(t, `${empty:?}`))
		assert.EqualError(t, err, "empty: parameter null or not set")
	})

	t.Run("nounset", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.NoUnset = true

		_, err := Fields(cfg, word(t, `$nope`))
		assert.EqualError(t, err, "nope: parameter not set")

		_, err = Fields(cfg, word(t, `${nope:-fine}`))
		assert.NoError(t, err)

		cfg.Params = func() []string { return nil }
		_, err = Fields(cfg, word(t, `"$@"`))
		assert.NoError(t, err)
	})

	t.Run("arithmetic", func(t *testing.T) {
		_, err := Fields(testConfig(t), word(t, `$((1/0))`))
		var arith *ArithError
		assert.True(t, errors.As(err, &arith))
	})

	t.Run("command substitution", func(t *testing.T) {
		cfg := testConfig(t)
		boom := errors.New("boom")
		cfg.CmdSubst = func(*syntax.CmdSubst) (string, error) { return "", boom }
		_, err := Fields(cfg, word(t, `$(x)`))
		assert.ErrorIs(t, err, boom)
	})
}

func TestLiteral(t *testing.T) {
	cfg := testConfig(t)

	got, err := Literal(cfg, word(t, `$x*"$empty"$@`))
	require.NoError(t, err)
	assert.Equal(t, "a  b*p 1 p2", got)

	got, err = Literal(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestPattern(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Env.Set("star", "*", 0))

	cases := map[string]string{
		`a*`:       `a*`,
		`"a*"`:     `a\*`,
		`'[x]'?`:   `\[x]?`,
		`$star`:    `*`,
		`"$star"x`: `\*x`,
		`\*.go`:    `\*.go`,
	}
	for src, want := range cases {
		t.Run(src, func(t *testing.T) {
			got, err := Pattern(cfg, word(t, src))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pat  string
		s    string
		want bool
	}{
		{"a*", "abc", true},
		{"a*", "bac", false},
		{"*", "", true},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"[!a]bc", "xbc", true},
		{"[!a]bc", "abc", false},
		{"[a-c]", "b", true},
		{"[[:digit:]]*", "1x", true},
		{`\*`, "*", true},
		{`\*`, "x", false},
		{"[", "[", true},
		{"*/*", "a/b", true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.pat, tc.s), "Match(%q, %q)", tc.pat, tc.s)
	}
}

func TestGlob(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/d/sub", 0755))
	for _, name := range []string{"/d/a.go", "/d/b.go", "/d/.hidden.go", "/d/sub/c.go", "/d/readme"} {
		require.NoError(t, afero.WriteFile(fs, name, nil, 0644))
	}

	cases := map[string]struct {
		src  string
		want []string
	}{
		"star":           {`*.go`, []string{"a.go", "b.go"}},
		"hidden":         {`.*.go`, []string{".hidden.go"}},
		"nested":         {`*/*.go`, []string{"sub/c.go"}},
		"quoted":         {`"*".go`, []string{"*.go"}},
		"no match":       {`nomatch*`, []string{"nomatch*"}},
		"absolute":       {`/d/*.go`, []string{"/d/a.go", "/d/b.go"}},
		"bracket":        {`[ab].go`, []string{"a.go", "b.go"}},
		"directories":    {`*/`, []string{"sub/"}},
		"literal prefix": {`sub/*`, []string{"sub/c.go"}},
		"from variable":  {`$pat`, []string{"readme"}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.FS = fs
			cfg.Dir = "/d"
			require.NoError(t, cfg.Env.Set("pat", "r*", 0))

			got, err := Fields(cfg, word(t, tc.src))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("noglob", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.FS = fs
		cfg.Dir = "/d"
		cfg.NoGlob = true

		got, err := Fields(cfg, word(t, `*.go`))
		require.NoError(t, err)
		assert.Equal(t, []string{"*.go"}, got)
	})
}

func TestTrim(t *testing.T) {
	assert.Equal(t, "héllo", Trim("héllo.txt", ".*", "%"))
	assert.Equal(t, "llo", Trim("héllo", "h?", "#"))
	assert.Equal(t, "abc", Trim("abc", "x*", "##"))
	assert.Equal(t, "", Trim("abc", "*", "%%"))
}

func TestArith(t *testing.T) {
	cases := map[string]struct {
		expr string
		want int64
	}{
		"empty":              {"  ", 0},
		"precedence":         {"2 + 3 * 4", 14},
		"parentheses":        {"(2 + 3) * 4", 20},
		"octal and hex":      {"010 + 0x10", 24},
		"variables":          {"n * 2", 8},
		"octal variable":     {"oct + 1", 9},
		"unset is zero":      {"nope + 1", 1},
		"comparison":         {"n >= 4 && n < 5", 1},
		"unary":              {"!n + ~0 + -n", -5},
		"ternary non-zero":   {"n ? 10 : 20", 10},
		"ternary zero":       {"nope ? 10 : 20", 20},
		"shift":              {"1 << 4 >> 2", 4},
		"overflow wraps":     {"(-9223372036854775807 - 1) / -1", -9223372036854775808},
		"modulo of negative": {"-7 % 3", -1},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := testConfig(t)
			require.NoError(t, cfg.Env.Set("oct", "010", 0))

			got, err := Arith(cfg, tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestArith_assignment(t *testing.T) {
	cfg := testConfig(t)

	got, err := Arith(cfg, "y = n + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
	v, ok := cfg.Env.Get("y")
	require.True(t, ok)
	assert.Equal(t, "5", v.Value)

	got, err = Arith(cfg, "y *= 3")
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	t.Run("readonly", func(t *testing.T) {
		require.NoError(t, cfg.Env.Set("r", "1", vars.AttrReadOnly))
		_, err := Arith(cfg, "r = 2")
		assert.ErrorIs(t, err, vars.ErrReadOnly)
		v, _ := cfg.Env.Get("r")
		assert.Equal(t, "1", v.Value)
	})

	t.Run("nounset", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.NoUnset = true

		_, err := Arith(cfg, "missing + 1")
		var unset *UnsetError
		assert.True(t, errors.As(err, &unset))

		got, err := Arith(cfg, "fresh = 7")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
	})
}

func TestArith_errors(t *testing.T) {
	cases := map[string]struct {
		expr    string
		wantMsg string
	}{
		"division by zero": {"1 / 0", "1 / 0: division by zero"},
		"modulo by zero":   {"1 % 0", "1 % 0: division by zero"},
		"bad octal":        {"08 + 1", `08 + 1: invalid number "08"`},
		"bad variable":     {"junk + 1", `junk + 1: junk: invalid number "1x"`},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := testConfig(t)
			require.NoError(t, cfg.Env.Set("junk", "1x", 0))

			_, err := Arith(cfg, tc.expr)
			var arith *ArithError
			require.True(t, errors.As(err, &arith), "got %v", err)
			assert.EqualError(t, err, tc.wantMsg)
		})
	}

	t.Run("syntax", func(t *testing.T) {
		_, err := Arith(testConfig(t), "1 +")
		var arith *ArithError
		assert.True(t, errors.As(err, &arith))
	})
}

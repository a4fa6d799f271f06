package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vos"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testShell is a shell over an in-memory filesystem with its output
// captured.
type testShell struct {
	*core.Shell
	FS  vos.VFS
	Out *bytes.Buffer
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	fs := vos.NewMemFs()
	require.NoError(t, fs.MkdirAll("/home/user", 0755))
	require.NoError(t, fs.MkdirAll("/tmp", 0755))

	out := &bytes.Buffer{}
	s := core.NewShell(
		core.WithStdio(strings.NewReader(""), out, out),
		core.WithFS(fs),
		core.WithDir("/home/user"),
		core.WithArgs("psh"),
		core.WithEnviron([]string{"HOME=/home/user", "PATH=/bin", "PWD=/home/user"}),
	)
	return &testShell{Shell: s, FS: fs, Out: out}
}

// WriteFile adds a file to the shell's filesystem.
func (ts *testShell) WriteFile(t *testing.T, name, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(ts.FS, name, []byte(contents), 0644))
}

// Run runs a script and returns its combined output and exit status.
func (ts *testShell) Run(script string) (string, int) {
	ts.Out.Reset()
	status := ts.RunString(context.Background(), script, "psh")
	return ts.Out.String(), status
}

func runScript(t *testing.T, script string) (string, int) {
	t.Helper()
	return newTestShell(t).Run(script)
}

func TestAllBuiltins(t *testing.T) {
	for _, info := range ListBuiltins() {
		t.Run(info.Name, func(t *testing.T) {
			assert.NotNil(t, core.AllBuiltins[info.Name], "nil builtin")
			assert.NotEmpty(t, info.Use)
			assert.NotEmpty(t, info.Short)
		})
	}
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Script string
	Status int
}

func (gts goldenTestSuite) Run(t *testing.T) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			out, status := runScript(t, tc.Script)
			assert.Equal(t, tc.Status, status, "exit status")
			g.Assert(t, tn, []byte(out))
		})
	}
}

type scriptTest struct {
	script string
	out    string
	status int
}

func runScriptTests(t *testing.T, cases map[string]scriptTest) {
	t.Helper()
	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			out, status := runScript(t, tc.script)
			assert.Equal(t, tc.out, out)
			assert.Equal(t, tc.status, status, "exit status")
		})
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]struct {
		n  int
		ok bool
	}{
		"0":   {0, true},
		"255": {255, true},
		"256": {0, false},
		"-1":  {0, false},
		"x":   {0, false},
	}
	for arg, tc := range cases {
		n, ok := parseStatus(arg)
		assert.Equal(t, tc.n, n, arg)
		assert.Equal(t, tc.ok, ok, arg)
	}
}

func TestColorPrinter(t *testing.T) {
	mode := colorNever
	cp := &ColorPrinter{value: &mode, w: &bytes.Buffer{}}
	assert.Equal(t, "plain 1", cp.Sprintf(ColorBoldRed, "plain %d", 1))

	mode = colorAlways
	assert.Equal(t, "\x1b[31;1mred\x1b[0m", cp.Sprintf(ColorBoldRed, "red"))

	mode = colorAuto
	assert.False(t, cp.ShouldColor(), "buffers aren't terminals")
}

func TestSimpleCommand_usageError(t *testing.T) {
	out, status := runScript(t, "export -z")
	assert.Equal(t, 2, status)
	assert.Contains(t, out, "usage: export [-p] [NAME[=VALUE] ...]")
}

func TestSimpleCommand_help(t *testing.T) {
	out, status := runScript(t, "pwd --help")
	assert.Equal(t, 0, status)
	assert.True(t, strings.HasPrefix(out, "usage: pwd [-L|-P]\nPrint the name of the current working directory.\n"))
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/psh/core/config"
	"github.com/josephlewis42/psh/core/logger"
	"github.com/josephlewis42/psh/core/ttylog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useConfig points the commands at a fresh config directory with the given
// config.yaml contents, empty for the defaults.
func useConfig(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	if contents != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigurationName), []byte(contents), 0600))
	}

	oldPath, oldEnviron := cfgPath, environ
	cfgPath = dir
	environ = func() []string {
		return []string{"HOME=" + dir, "PATH=/usr/bin:/bin", "LANG=C"}
	}
	t.Cleanup(func() {
		cfgPath, environ = oldPath, oldEnviron
	})
	return dir
}

type pshResult struct {
	status int
	stdout string
	stderr string
	err    error
}

func runPsh(t *testing.T, inv invocation, stdin string, args ...string) pshResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	status, err := runShell(cmd, inv, args)
	return pshResult{status: status, stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestInvocation_input(t *testing.T) {
	cases := map[string]struct {
		inv        invocation
		args       []string
		wantMode   inputMode
		wantSrc    string
		wantArg0   string
		wantParams []string
	}{
		"stdin": {
			wantMode: inputStdin,
			wantArg0: "psh",
		},
		"stdin with params": {
			inv:        invocation{stdin: true},
			args:       []string{"a", "b"},
			wantMode:   inputStdin,
			wantArg0:   "psh",
			wantParams: []string{"a", "b"},
		},
		"script": {
			args:       []string{"run.sh", "x"},
			wantMode:   inputScript,
			wantSrc:    "run.sh",
			wantArg0:   "run.sh",
			wantParams: []string{"x"},
		},
		"command": {
			inv:      invocation{command: true},
			args:     []string{"echo hi"},
			wantMode: inputCommand,
			wantSrc:  "echo hi",
			wantArg0: "psh",
		},
		"command with name": {
			inv:        invocation{command: true},
			args:       []string{"echo hi", "name", "p1"},
			wantMode:   inputCommand,
			wantSrc:    "echo hi",
			wantArg0:   "name",
			wantParams: []string{"p1"},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			mode, src, arg0, params, err := tc.inv.input(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.wantMode, mode)
			assert.Equal(t, tc.wantSrc, src)
			assert.Equal(t, tc.wantArg0, arg0)
			assert.Equal(t, len(tc.wantParams), len(params))
			if len(tc.wantParams) > 0 {
				assert.Equal(t, tc.wantParams, params)
			}
		})
	}

	t.Run("command without operand", func(t *testing.T) {
		_, _, _, _, err := invocation{command: true}.input(nil)
		assert.EqualError(t, err, "-c: option requires an argument")
	})
}

func TestRunShell_command(t *testing.T) {
	useConfig(t, "")

	res := runPsh(t, invocation{command: true}, "", "echo $0 $1 $#; exit 3", "name", "a")
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.status)
	assert.Equal(t, "name a 1\n", res.stdout)
}

func TestRunShell_stdin(t *testing.T) {
	useConfig(t, "")

	res := runPsh(t, invocation{}, "x=hello\necho $x\nfalse\n")
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.status)
	assert.Equal(t, "hello\n", res.stdout)
}

func TestRunShell_syntaxError(t *testing.T) {
	useConfig(t, "")

	res := runPsh(t, invocation{}, "echo before\n)\necho after\n")
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.status)
	assert.Equal(t, "before\n", res.stdout)
	assert.Contains(t, res.stderr, "syntax error")
}

func TestRunShell_script(t *testing.T) {
	dir := useConfig(t, "")

	script := filepath.Join(dir, "greet.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo \"hello $1 from $0\"\n"), 0644))

	res := runPsh(t, invocation{}, "", script, "world")
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.status)
	assert.Equal(t, "hello world from "+script+"\n", res.stdout)

	t.Run("missing", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.sh")
		res := runPsh(t, invocation{}, "", missing)
		assert.Equal(t, 127, res.status)
		assert.Equal(t, "psh: "+missing+": no such file or directory\n", res.stderr)
	})
}

func TestRunShell_noexec(t *testing.T) {
	useConfig(t, "")

	res := runPsh(t, invocation{noExec: true}, "if true; then echo ran; fi\n")
	require.NoError(t, res.err)
	assert.Equal(t, "if true; then\n\techo ran\nfi\n", res.stdout)
}

func TestRunShell_options(t *testing.T) {
	useConfig(t, "options:\n  noglob: true\n")

	res := runPsh(t, invocation{command: true, errExit: true, options: []string{"pipefail"}}, "", "set +o")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "set -o errexit\n")
	assert.Contains(t, res.stdout, "set -o noglob\n")
	assert.Contains(t, res.stdout, "set -o pipefail\n")
	assert.Contains(t, res.stdout, "set +o monitor\n")

	t.Run("unknown option", func(t *testing.T) {
		res := runPsh(t, invocation{command: true, options: []string{"bogus"}}, "", "true")
		assert.EqualError(t, res.err, "-o: bogus: invalid option name")
		assert.Equal(t, 2, res.status)
	})
}

func TestRunShell_configEnvAndAliases(t *testing.T) {
	useConfig(t, "aliases:\n  greet: echo hello\nenv:\n  GREETING: hi there\n")

	res := runPsh(t, invocation{command: true}, "", "greet; echo \"$GREETING\"")
	require.NoError(t, res.err)
	assert.Equal(t, "hello\nhi there\n", res.stdout)
}

func TestRunShell_initialVariables(t *testing.T) {
	useConfig(t, "")

	res := runPsh(t, invocation{command: true}, "", `echo "[$IFS]" "$OPTIND" "$PS2"; case $PPID in ''|*[!0-9]*) echo bad;; *) echo ppid;; esac`)
	require.NoError(t, res.err)
	assert.Equal(t, "[ \t\n] 1 > \nppid\n", res.stdout)
}

func TestRunShell_auditLog(t *testing.T) {
	dir := useConfig(t, "audit_log: audit.log\n")

	res := runPsh(t, invocation{command: true}, "", "true; nonexistent-command-xyz")
	require.NoError(t, res.err)
	assert.Equal(t, 127, res.status)

	fd, err := os.Open(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	defer fd.Close()

	report := logger.NewReport()
	require.NoError(t, logger.ReadJSONLinesLog(fd, report.Update))
	assert.Equal(t, 1, report.RunCommand.CommandNames.Get("true"))
	assert.Equal(t, 1, report.UnknownCommand.CommandNames.Get("nonexistent-command-xyz"))
	assert.Equal(t, 1, report.Sessions.Count)
}

func TestRunShell_record(t *testing.T) {
	dir := useConfig(t, "")
	recording := filepath.Join(dir, "session.cast")

	res := runPsh(t, invocation{command: true, record: recording}, "", "echo recorded")
	require.NoError(t, res.err)
	assert.Equal(t, "recorded\n", res.stdout)

	fd, err := os.Open(recording)
	require.NoError(t, err)
	defer fd.Close()

	var out bytes.Buffer
	require.NoError(t, ttylog.Replay(ttylog.NewAsciicastLogSource(fd), ttylog.NewClientOutput(&out)))
	assert.Equal(t, "recorded\n", out.String())
}

func TestWantJobControl(t *testing.T) {
	on, off := true, false
	cases := map[string]struct {
		inv         invocation
		cfgMonitor  *bool
		interactive bool
		want        bool
	}{
		"interactive default":     {interactive: true, want: true},
		"script default":          {want: false},
		"config off":              {cfgMonitor: &off, interactive: true, want: false},
		"config on":               {cfgMonitor: &on, want: true},
		"flag wins over config":   {inv: invocation{monitorSet: true, monitor: false}, cfgMonitor: &on, want: false},
		"flag on non-interactive": {inv: invocation{monitorSet: true, monitor: true}, want: true},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := config.Default(t.TempDir())
			cfg.Options.Monitor = tc.cfgMonitor
			assert.Equal(t, tc.want, wantJobControl(tc.inv, cfg, tc.interactive))
		})
	}
}

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/psh/core/logger"
	"github.com/josephlewis42/psh/core/ttylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintScript(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printScript(&out, strings.NewReader("a|b&&c\nfor x in 1 2; do echo $x; done"), "-"))
	assert.Equal(t, "a | b && c\nfor x in 1 2; do\n\techo $x\ndone\n", out.String())

	err := printScript(&out, strings.NewReader("echo )"), "bad.sh")
	assert.ErrorContains(t, err, "bad.sh:1:")
	assert.ErrorContains(t, err, "syntax error")
}

func TestBuiltinsCmd(t *testing.T) {
	var out bytes.Buffer
	builtinsCmd.SetOut(&out)
	defer builtinsCmd.SetOut(nil)

	require.NoError(t, builtinsCmd.RunE(builtinsCmd, nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var exitLine, cdLine string
	for _, line := range lines {
		switch strings.Fields(line)[0] {
		case "exit":
			exitLine = line
		case "cd":
			cdLine = line
		}
	}
	assert.Contains(t, exitLine, "special")
	assert.Contains(t, cdLine, "regular")
}

func TestCatCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.cast")

	var recording bytes.Buffer
	sink := ttylog.NewAsciicastLogSink(&recording, ttylog.AsciicastHeader{})
	require.NoError(t, sink(&ttylog.Event{TimestampMicros: 1000, Fd: ttylog.FDStdin, Data: []byte("ls\r")}))
	require.NoError(t, sink(&ttylog.Event{TimestampMicros: 2000, Fd: ttylog.FDStdout, Data: []byte("file.txt\r\n")}))
	require.NoError(t, os.WriteFile(path, recording.Bytes(), 0600))

	var out bytes.Buffer
	catCommand.SetOut(&out)
	defer catCommand.SetOut(nil)

	require.NoError(t, catCommand.RunE(catCommand, []string{path}))
	assert.Equal(t, "file.txt\r\n", out.String())
}

func TestEventsCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	fd, err := os.Create(path)
	require.NoError(t, err)
	session := logger.NewJsonLinesLogRecorder(fd).NewSession()
	session.RunCommand([]string{"echo", "hi"}, "builtin", "echo", 0)
	session.UnknownCommand([]string{"nope"}, 127, os.ErrNotExist)
	session.ShellExit(127)
	require.NoError(t, fd.Close())

	oldPath := auditLogPath
	auditLogPath = path
	defer func() { auditLogPath = oldPath }()

	t.Run("commands", func(t *testing.T) {
		var out bytes.Buffer
		commandsCommand.SetOut(&out)
		defer commandsCommand.SetOut(nil)

		require.NoError(t, commandsCommand.RunE(commandsCommand, nil))
		assert.Equal(t, "session "+session.SessionID()+":\n  echo hi\n  nope\n", out.String())
	})

	t.Run("report", func(t *testing.T) {
		var out bytes.Buffer
		reportCommand.SetOut(&out)
		defer reportCommand.SetOut(nil)

		require.NoError(t, reportCommand.RunE(reportCommand, nil))
		assert.Contains(t, out.String(), "log_entries: 3")
	})
}

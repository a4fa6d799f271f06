package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLinesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	session := NewJsonLinesLogRecorder(&buf).NewSession()

	require.NoError(t, session.RunCommand([]string{"echo", "hi"}, "builtin", "echo", 0))
	require.NoError(t, session.UnknownCommand([]string{"nope"}, 127, errors.New("command not found")))
	require.NoError(t, session.SyntaxError("if", errors.New("1:3: syntax error: unexpected EOF")))
	require.NoError(t, session.JobState(1, "sleep 10", "Stopped"))
	require.NoError(t, session.ShellExit(3))

	assert.Equal(t, 5, strings.Count(buf.String(), "\n"), "one entry per line")

	var entries []*LogEntry
	require.NoError(t, ReadJSONLinesLog(&buf, func(le *LogEntry) {
		entries = append(entries, le)
	}))
	require.Len(t, entries, 5)

	run := entries[0]
	assert.Equal(t, EventRunCommand, run.Type)
	assert.Equal(t, session.SessionID(), run.SessionID)
	assert.Equal(t, []string{"echo", "hi"}, run.GetStrings("command"))
	assert.Equal(t, "builtin", run.GetString("kind"))
	assert.Equal(t, 0, run.GetInt("status"))
	assert.False(t, run.Timestamp.AsTime().IsZero())

	assert.Equal(t, 127, entries[1].GetInt("status"))
	assert.Equal(t, "if", entries[2].GetString("source"))
	assert.Equal(t, 1, entries[3].GetInt("job"))
	assert.Equal(t, 3, entries[4].GetInt("status"))
}

func TestNilSessionLogger(t *testing.T) {
	var session *SessionLogger
	assert.NoError(t, session.RunCommand([]string{"true"}, "builtin", "true", 0))
	assert.Equal(t, "", session.SessionID())

	assert.NoError(t, NewNopLogger().Sessionless().ShellExit(0))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	log := NewJsonLinesLogRecorder(&buf)
	a := log.NewSession()
	b := log.Sessionless()

	require.NoError(t, a.RunCommand([]string{"ls", "-l"}, "file", "/bin/ls", 0))
	require.NoError(t, a.RunCommand([]string{"ls"}, "file", "/bin/ls", 2))
	require.NoError(t, b.RunCommand([]string{"cd", "/"}, "builtin", "cd", 0))
	require.NoError(t, b.UnknownCommand([]string{"sl"}, 127, errors.New("command not found")))
	require.NoError(t, a.SyntaxError("fi", errors.New("bad")))
	require.NoError(t, a.SyntaxError("done", errors.New("bad")))
	require.NoError(t, a.ShellExit(0))

	report := NewReport()
	require.NoError(t, ReadJSONLinesLog(bytes.NewReader(buf.Bytes()), report.Update))

	assert.Equal(t, 7, report.LogEntries)
	assert.Equal(t, 2, report.RunCommand.CommandNames.Get("ls"))
	assert.Equal(t, 1, report.RunCommand.Failures.Get("ls"))
	assert.Equal(t, 1, report.RunCommand.Kinds.Get("builtin"))
	assert.Equal(t, 1, report.UnknownCommand.CommandNames.Get("sl"))
	assert.Equal(t, 2, report.SyntaxErrors.Get("bad"))
	assert.Equal(t, 1, report.Sessions.ExitStatuses.Get("0"))

	_, err := json.Marshal(report)
	assert.NoError(t, err)

	commands, err := Commands(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"ls -l", "ls"}, commands[a.SessionID()])
	assert.Equal(t, []string{"cd /", "sl"}, commands[""])
}

func TestReadJSONLinesLog_Invalid(t *testing.T) {
	err := ReadJSONLinesLog(strings.NewReader(`{"timestamp": "yesterday"}`), func(*LogEntry) {})
	assert.Error(t, err)
}

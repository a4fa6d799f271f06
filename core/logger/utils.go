package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures the events of shell sessions.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := json.Marshal(le)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogger creates a Logger that drops every event.
func NewNopLogger() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) record(sessionID string, event EventType, fields map[string]interface{}) error {
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}

	return l.Record(&LogEntry{
		Timestamp: timestamppb.New(time.Now()),
		SessionID: sessionID,
		Type:      event,
		Fields:    payload,
	})
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// Sessionless creates a logger without a session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID. A nil SessionLogger
// discards everything.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every entry.
func (l *SessionLogger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

func (l *SessionLogger) log(event EventType, fields map[string]interface{}) error {
	if l == nil || l.Logger == nil {
		return nil
	}
	return l.record(l.sessionID, event, fields)
}

// RunCommand records a command that was found and run. Child processes are
// recorded as they start, with a status of -1.
func (l *SessionLogger) RunCommand(argv []string, kind, resolved string, status int) error {
	return l.log(EventRunCommand, map[string]interface{}{
		"command":  stringList(argv),
		"kind":     kind,
		"resolved": resolved,
		"status":   status,
	})
}

// UnknownCommand records a command that couldn't be run.
func (l *SessionLogger) UnknownCommand(argv []string, status int, err error) error {
	return l.log(EventUnknownCommand, map[string]interface{}{
		"command": stringList(argv),
		"status":  status,
		"error":   err.Error(),
	})
}

// SyntaxError records input that failed to parse.
func (l *SessionLogger) SyntaxError(source string, err error) error {
	return l.log(EventSyntaxError, map[string]interface{}{
		"source": source,
		"error":  err.Error(),
	})
}

// JobState records a job changing state.
func (l *SessionLogger) JobState(id int, command, state string) error {
	return l.log(EventJobState, map[string]interface{}{
		"job":     id,
		"command": command,
		"state":   state,
	})
}

// ShellExit records the shell finishing.
func (l *SessionLogger) ShellExit(status int) error {
	return l.log(EventShellExit, map[string]interface{}{
		"status": status,
	})
}

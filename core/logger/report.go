package logger

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand     RunCommandReport     `json:"run_command_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	SyntaxErrors   *PathCounter         `json:"syntax_errors"`
	Jobs           StrCounter           `json:"job_states"`
	Sessions       SessionReport        `json:"session_report"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		SyntaxErrors: NewPathCounter("error"),
	}
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Type {
	case EventRunCommand:
		r.RunCommand.update(le)
	case EventUnknownCommand:
		r.UnknownCommand.update(le)
	case EventSyntaxError:
		r.SyntaxErrors.Increment(le.GetString("error"))
	case EventJobState:
		r.Jobs.Increment(le.GetString("state"))
	case EventShellExit:
		r.Sessions.update(le)
	default:
		r.InvalidEntries.Increment(string(le.Type))
	}
}

type RunCommandReport struct {
	// CommandNames counts argv[0] of each command.
	CommandNames StrCounter `json:"command_names"`
	// Kinds counts how commands were resolved: builtin, function or file.
	Kinds StrCounter `json:"kinds"`
	// Failures counts commands exiting with a non-zero status. Child
	// processes are logged when they start, with status -1.
	Failures StrCounter `json:"failures"`
}

func (r *RunCommandReport) update(le *LogEntry) {
	argv := le.GetStrings("command")
	if len(argv) == 0 {
		return
	}
	r.CommandNames.Increment(argv[0])
	r.Kinds.Increment(le.GetString("kind"))
	if le.GetInt("status") > 0 {
		r.Failures.Increment(argv[0])
	}
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
	Errors       StrCounter `json:"errors"`
}

func (r *UnknownCommandReport) update(le *LogEntry) {
	if argv := le.GetStrings("command"); len(argv) > 0 {
		r.CommandNames.Increment(argv[0])
	}
	r.Errors.Increment(le.GetString("error"))
}

type SessionReport struct {
	Count        int        `json:"count"`
	ExitStatuses StrCounter `json:"exit_statuses"`
}

func (r *SessionReport) update(le *LogEntry) {
	r.Count++
	r.ExitStatuses.Increment(strconv.Itoa(le.GetInt("status")))
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for a key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for a tuple.
func (ctr *PathCounter) Get(key ...string) int {
	return ctr.internal[toKey(key...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}

// Commands lists the commands of every session in the order they ran,
// keyed by session ID.
func Commands(r io.Reader) (map[string][]string, error) {
	out := make(map[string][]string)
	err := ReadJSONLinesLog(r, func(le *LogEntry) {
		switch le.Type {
		case EventRunCommand, EventUnknownCommand:
			out[le.SessionID] = append(out[le.SessionID], strings.Join(le.GetStrings("command"), " "))
		}
	})
	return out, err
}

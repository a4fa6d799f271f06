package logger

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// EventType identifies the kind of a log entry.
type EventType string

const (
	EventRunCommand     EventType = "run_command"
	EventUnknownCommand EventType = "unknown_command"
	EventSyntaxError    EventType = "syntax_error"
	EventJobState       EventType = "job_state"
	EventShellExit      EventType = "shell_exit"
)

// LogEntry is a single recorded event.
type LogEntry struct {
	Timestamp *timestamppb.Timestamp
	SessionID string
	Type      EventType
	Fields    *structpb.Struct
}

// GetString returns a string field or the empty string.
func (le *LogEntry) GetString(name string) string {
	if v, ok := le.Fields.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

// GetInt returns a numeric field or zero.
func (le *LogEntry) GetInt(name string) int {
	if v, ok := le.Fields.GetFields()[name]; ok {
		return int(v.GetNumberValue())
	}
	return 0
}

// GetStrings returns a list field of strings.
func (le *LogEntry) GetStrings(name string) []string {
	v, ok := le.Fields.GetFields()[name]
	if !ok {
		return nil
	}
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}

func (le *LogEntry) toStruct() *structpb.Struct {
	fields := le.Fields
	if fields == nil {
		fields = &structpb.Struct{}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"timestamp":  structpb.NewStringValue(le.Timestamp.AsTime().Format(time.RFC3339Nano)),
		"session_id": structpb.NewStringValue(le.SessionID),
		"type":       structpb.NewStringValue(string(le.Type)),
		"fields":     structpb.NewStructValue(fields),
	}}
}

// MarshalJSON implements json.Marshaler with the protobuf JSON mapping.
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	return protojson.Marshal(le.toStruct())
}

// UnmarshalJSON implements json.Unmarshaler.
func (le *LogEntry) UnmarshalJSON(data []byte) error {
	var raw structpb.Struct
	if err := protojson.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := raw.GetFields()
	ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	le.Timestamp = timestamppb.New(ts)
	le.SessionID = fields["session_id"].GetStringValue()
	le.Type = EventType(fields["type"].GetStringValue())
	le.Fields = fields["fields"].GetStructValue()
	return nil
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

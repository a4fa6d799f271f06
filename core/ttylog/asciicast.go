package ttylog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	asciicastVersion = 2
	defaultWidth     = 80
	defaultHeight    = 24
)

// AsciicastHeader is the first line of an asciicast v2 recording.
//
// See: https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
type AsciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// NewAsciicastLogSink writes events to w as an asciicast v2 recording. The
// header is written with the first event, which also starts the clock.
// Standard error is folded into the output stream. Calls must not overlap.
func NewAsciicastLogSink(w io.Writer, header AsciicastHeader) LogSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var start int64
	started := false
	return func(e *Event) error {
		if !started {
			started = true
			start = e.TimestampMicros
			header.Version = asciicastVersion
			if header.Width <= 0 {
				header.Width = defaultWidth
			}
			if header.Height <= 0 {
				header.Height = defaultHeight
			}
			if header.Timestamp == 0 {
				header.Timestamp = time.UnixMicro(start).Unix()
			}
			if err := enc.Encode(header); err != nil {
				return err
			}
		}

		kind := "o"
		if e.Fd == FDStdin {
			kind = "i"
		}
		at := microsecondsToSeconds(e.TimestampMicros - start)
		return enc.Encode([]interface{}{at, kind, string(e.Data)})
	}
}

// AsciicastLogSource reads the events of an asciicast v2 recording.
type AsciicastLogSource struct {
	dec    *json.Decoder
	header *AsciicastHeader
}

var _ LogSource = (*AsciicastLogSource)(nil)

func NewAsciicastLogSource(r io.Reader) *AsciicastLogSource {
	return &AsciicastLogSource{dec: json.NewDecoder(r)}
}

// Header returns the recording's header, reading it if needed.
func (src *AsciicastLogSource) Header() (*AsciicastHeader, error) {
	if src.header != nil {
		return src.header, nil
	}

	var h AsciicastHeader
	if err := src.dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("asciicast header: %w", err)
	}
	if h.Version != asciicastVersion {
		return nil, fmt.Errorf("asciicast header: unsupported version %d", h.Version)
	}
	src.header = &h
	return src.header, nil
}

// Next returns the next input or output event and io.EOF at the end of the
// recording. Other event kinds are skipped.
func (src *AsciicastLogSource) Next() (*Event, error) {
	if _, err := src.Header(); err != nil {
		return nil, err
	}

	for {
		var fields []json.RawMessage
		if err := src.dec.Decode(&fields); err != nil {
			return nil, err
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("asciicast event: expected 3 fields, got %d", len(fields))
		}

		var (
			at         float64
			kind, data string
		)
		for i, dst := range []interface{}{&at, &kind, &data} {
			if err := json.Unmarshal(fields[i], dst); err != nil {
				return nil, fmt.Errorf("asciicast event: field %d: %w", i, err)
			}
		}

		var fd FD
		switch kind {
		case "o":
			fd = FDStdout
		case "i":
			fd = FDStdin
		default:
			continue
		}
		return &Event{
			TimestampMicros: secondsToMicroseconds(at),
			Fd:              fd,
			Data:            []byte(data),
		}, nil
	}
}

func microsecondsToSeconds(us int64) float64 {
	return (time.Duration(us) * time.Microsecond).Seconds()
}

func secondsToMicroseconds(s float64) int64 {
	return time.Duration(s * float64(time.Second)).Microseconds()
}

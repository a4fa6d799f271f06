// Package ttylog records the terminal traffic of interactive sessions and
// plays it back.
package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/psh/core/vos"
)

// FD identifies the stream an event was seen on.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

// Event is a chunk of data read from or written to the terminal.
type Event struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Event) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available event. It returns io.EOF if the source
	// has no more events.
	Next() (*Event, error)
}

// NewRealTimePlayback plays back events with the pauses they were recorded
// with. If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(e *Event) error {
		once.Do(func() {
			prevTimeMicros = e.TimestampMicros
		})

		delta := e.TimestampMicros - prevTimeMicros
		prevTimeMicros = e.TimestampMicros

		sleepDuration := time.Duration(delta) * time.Microsecond
		if maxSleep > 0 && sleepDuration > maxSleep {
			sleepDuration = maxSleep
		}
		if sleepDuration > 0 {
			time.Sleep(sleepDuration)
		}

		return next(e)
	}
}

// NewClientOutput writes stdout and stderr events to w.
func NewClientOutput(w io.Writer) LogSink {
	return func(e *Event) error {
		if e.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) error {
	for {
		e, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(e); err != nil {
			return err
		}
	}
}

// Recorder is a vos.VIO that copies the traffic of another VIO to a sink.
type Recorder struct {
	*vos.VIOAdapter
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

var _ vos.VIO = (*Recorder)(nil)

func (r *Recorder) recordIO(fd FD, data []byte, dest func([]byte) (int, error)) (int, error) {
	eventTime := r.now()
	amount, err := dest(data)
	if amount > 0 {
		chunk := append([]byte(nil), data[:amount]...)
		r.mutex.Lock()
		e2 := r.output(&Event{
			TimestampMicros: eventTime.UnixMicro(),
			Fd:              fd,
			Data:            chunk,
		})
		r.mutex.Unlock()
		if e2 != nil {
			log.Print(e2)
		}
	}
	return amount, err
}

type recorderReadCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.ReadCloser
}

func (rc *recorderReadCloser) Read(p []byte) (int, error) {
	return rc.r.recordIO(rc.fd, p, rc.wrapped.Read)
}

func (rc *recorderReadCloser) Close() error {
	return rc.wrapped.Close()
}

type recorderWriteCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.WriteCloser
}

func (rc *recorderWriteCloser) Write(p []byte) (int, error) {
	return rc.r.recordIO(rc.fd, p, rc.wrapped.Write)
}

func (rc *recorderWriteCloser) Close() error {
	return rc.wrapped.Close()
}

// NewRecorder creates a VIO that forwards all traffic of toWrap to output.
func NewRecorder(toWrap vos.VIO, output LogSink) *Recorder {
	recorder := &Recorder{
		output: output,
		now:    time.Now,
	}

	recorder.VIOAdapter = vos.NewVIOAdapter(
		&recorderReadCloser{fd: FDStdin, r: recorder, wrapped: toWrap.Stdin()},
		&recorderWriteCloser{fd: FDStdout, r: recorder, wrapped: toWrap.Stdout()},
		&recorderWriteCloser{fd: FDStderr, r: recorder, wrapped: toWrap.Stderr()},
	)

	return recorder
}

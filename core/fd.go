package core

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/josephlewis42/psh/core/vos"
)

// fdEntry is an open descriptor of the shell. Files opened for reading and
// writing set both ends.
type fdEntry struct {
	r io.Reader
	w io.Writer
}

// osFile returns the descriptor's OS file if it has one.
func (e *fdEntry) osFile() (*os.File, bool) {
	if f, ok := vos.OSFile(e.w); ok {
		return f, true
	}
	return vos.OSFile(e.r)
}

// fdTable maps descriptor numbers to open streams. Entries are shared
// between copies; the redirection that opened a file closes it.
type fdTable map[int]*fdEntry

func (t fdTable) clone() fdTable {
	out := make(fdTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func (t fdTable) sorted() []int {
	var fds []int
	for fd := range t {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}

// Stdin returns the reader for descriptor 0.
func (s *Shell) Stdin() io.Reader {
	if e := s.fds[0]; e != nil && e.r != nil {
		return e.r
	}
	return strings.NewReader("")
}

// Stdout returns the writer for descriptor 1.
func (s *Shell) Stdout() io.Writer {
	return s.writer(1)
}

// Stderr returns the writer for descriptor 2.
func (s *Shell) Stderr() io.Writer {
	return s.writer(2)
}

func (s *Shell) writer(fd int) io.Writer {
	if e := s.fds[fd]; e != nil && e.w != nil {
		return e.w
	}
	return badFd{}
}

// badFd is the writer of a closed descriptor.
type badFd struct{}

func (badFd) Write([]byte) (int, error) {
	return 0, syscall.EBADF
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

func syncWriter(w io.Writer) io.Writer {
	switch w.(type) {
	case nil:
		return io.Discard
	case *os.File, *lockedWriter:
		return w
	}
	return &lockedWriter{w: w}
}

// pipeWriter is the write end of a pipe between two in-shell members of a
// pipeline. Once the reader has gone, the writing member stops as if it was
// killed by SIGPIPE.
type pipeWriter struct {
	f      *os.File
	stop   context.CancelFunc
	broken atomic.Bool
}

func (p *pipeWriter) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	if errors.Is(err, syscall.EPIPE) && p.broken.CompareAndSwap(false, true) {
		p.stop()
	}
	return n, err
}

// OSFile hands the pipe to child processes, which get SIGPIPE themselves.
func (p *pipeWriter) OSFile() *os.File { return p.f }

// silenced discards everything written once its pipe broke, so a member
// killed by SIGPIPE does not report the failed write.
type silenced struct {
	w    io.Writer
	pipe *pipeWriter
}

func (s *silenced) Write(b []byte) (int, error) {
	if s.pipe.broken.Load() {
		return len(b), nil
	}
	return s.w.Write(b)
}

func (s *silenced) OSFile() *os.File {
	f, _ := vos.OSFile(s.w)
	return f
}

// pipeOutput connects descriptor 1 of a pipeline member to w.
func (s *Shell) pipeOutput(ctx context.Context, w *os.File) (*pipeWriter, context.Context) {
	memberCtx, stop := context.WithCancel(ctx)
	pipe := &pipeWriter{f: w, stop: stop}
	s.fds[1] = &fdEntry{w: pipe}
	if e := s.fds[2]; e != nil && e.w != nil {
		s.fds[2] = &fdEntry{r: e.r, w: &silenced{w: e.w, pipe: pipe}}
	}
	return pipe, memberCtx
}

// childFiles builds the descriptor list of a child process. Streams that
// aren't OS files are bridged through pipes.
func (s *Shell) childFiles() ([]*os.File, []*vos.Bridge, error) {
	fds := s.fds.sorted()
	if len(fds) == 0 {
		return nil, nil, nil
	}

	files := make([]*os.File, fds[len(fds)-1]+1)
	var bridges []*vos.Bridge
	for _, fd := range fds {
		e := s.fds[fd]
		if f, ok := e.osFile(); ok {
			files[fd] = f
			continue
		}

		var b *vos.Bridge
		var err error
		switch {
		case e.w != nil:
			b, err = vos.WriterFile(e.w)
		case e.r != nil:
			b, err = vos.ReaderFile(e.r)
		default:
			continue
		}
		if err != nil {
			for _, b := range bridges {
				b.Started()
			}
			return nil, nil, err
		}
		files[fd] = b.File
		bridges = append(bridges, b)
	}
	return files, bridges, nil
}

package vos

import (
	"io"
	"os"
)

// VIO holds the three standard streams of a shell.
type VIO interface {
	Stdin() io.ReadCloser
	Stdout() io.WriteCloser
	Stderr() io.WriteCloser
}

type VIOAdapter struct {
	IStdin  io.ReadCloser
	IStdout io.WriteCloser
	IStderr io.WriteCloser
}

func NewVIOAdapter(stdin io.Reader, stdout, stderr io.Writer) *VIOAdapter {
	return &VIOAdapter{
		IStdin:  toReadCloserOrDiscard(stdin),
		IStdout: toWriteCloserOrDiscard(stdout),
		IStderr: toWriteCloserOrDiscard(stderr),
	}
}

// NewOSIO uses the process's standard streams.
func NewOSIO() VIO {
	return NewVIOAdapter(os.Stdin, os.Stdout, os.Stderr)
}

// NewNullIO creates a valid /dev/null style I/O, reads won't work and
// writes will be discarded.
func NewNullIO() VIO {
	return NewVIOAdapter(nil, nil, nil)
}

var _ VIO = (*VIOAdapter)(nil)

func (pr *VIOAdapter) Stdin() io.ReadCloser {
	return pr.IStdin
}

func (pr *VIOAdapter) Stdout() io.WriteCloser {
	return pr.IStdout
}

func (pr *VIOAdapter) Stderr() io.WriteCloser {
	return pr.IStderr
}

func toWriteCloserOrDiscard(w io.Writer) io.WriteCloser {
	if w == nil {
		return &devNull{}
	}
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}

	return nopWriteCloser{w}
}

func toReadCloserOrDiscard(r io.Reader) io.ReadCloser {
	if r == nil {
		return &devNull{}
	}
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}

	return io.NopCloser(r)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// devNull always reports closed for reads and discards writes.
type devNull struct{}

var _ io.ReadCloser = (*devNull)(nil)
var _ io.WriteCloser = (*devNull)(nil)

func (*devNull) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (*devNull) Close() error {
	return nil
}

func (*devNull) Write(b []byte) (int, error) {
	return len(b), nil
}

// Bridge exposes a Go stream as an *os.File that can be handed to a child
// process. Streams that are already OS files are passed through untouched.
type Bridge struct {
	// File is the end given to the child.
	File *os.File

	parent *os.File
	done   chan error
	wait   bool
}

// ReaderFile makes r readable by a child process.
func ReaderFile(r io.Reader) (*Bridge, error) {
	if f, ok := r.(*os.File); ok {
		return &Bridge{File: f}, nil
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	b := &Bridge{File: pr, parent: pr, done: make(chan error, 1)}
	go func() {
		_, err := io.Copy(pw, r)
		pw.Close()
		b.done <- err
	}()
	return b, nil
}

// WriterFile makes w writable by a child process.
func WriterFile(w io.Writer) (*Bridge, error) {
	if f, ok := w.(*os.File); ok {
		return &Bridge{File: f}, nil
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	b := &Bridge{File: pw, parent: pw, done: make(chan error, 1), wait: true}
	go func() {
		_, err := io.Copy(w, pr)
		pr.Close()
		b.done <- err
	}()
	return b, nil
}

// Started releases the parent's copy of the child's end. It must be called
// once the child has been started or failed to start.
func (b *Bridge) Started() {
	if b.parent != nil {
		b.parent.Close()
		b.parent = nil
	}
}

// Wait blocks until everything the child wrote has been copied. Input
// bridges never block because the source may never reach EOF.
func (b *Bridge) Wait() error {
	if b.done == nil || !b.wait {
		return nil
	}
	return <-b.done
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/josephlewis42/psh/core/jobs"
	"github.com/josephlewis42/psh/core/syntax"
)

const (
	// StatusSyntaxError is the exit status after input that doesn't parse.
	StatusSyntaxError = 2
	// StatusInterrupted is the exit status of an interrupted command.
	StatusInterrupted = 128 + int(syscall.SIGINT)
	// StatusBrokenPipe is the status of a pipeline member whose reader
	// exited first.
	StatusBrokenPipe = 128 + int(syscall.SIGPIPE)
)

// RunReader parses and runs r one command line at a time, so aliases
// defined on one line apply to the next. name is used in diagnostics.
func (s *Shell) RunReader(ctx context.Context, r io.Reader, name string) int {
	p := syntax.NewParser(r, s.parserOptions()...)
	for {
		prog, err := p.ParseLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.syntaxError(name, err)
			return StatusSyntaxError
		}
		if s.Opts.NoExec {
			// noexec echoes the commands it reads in canonical form.
			_ = syntax.Fprint(s.Stdout(), prog)
			continue
		}

		if code, exited := s.RunLine(ctx, prog); exited {
			return code
		}
		if ctx.Err() != nil {
			break
		}
	}
	return s.LastStatus
}

// RunLine runs one command line read from the user or a script. It returns
// the exit status and true once the shell exits.
func (s *Shell) RunLine(ctx context.Context, prog *syntax.Program) (int, bool) {
	status := s.Run(ctx, prog)
	if code, ok := s.Exiting(); ok {
		return code, true
	}
	// break, continue and return outside of their context end here.
	s.ctrl, s.ctrlN = ctrlNone, 0
	return status, false
}

// RunString runs src as a script.
func (s *Shell) RunString(ctx context.Context, src, name string) int {
	return s.RunReader(ctx, strings.NewReader(src), name)
}

func (s *Shell) syntaxError(name string, err error) {
	fmt.Fprintf(s.Stderr(), "%s:%v\n", name, err)
	s.Events.SyntaxError(name, err)
	s.LastStatus = StatusSyntaxError
}

// Parse parses src with the shell's aliases applied.
func (s *Shell) Parse(src string) (*syntax.Program, error) {
	return syntax.Parse(src, s.parserOptions()...)
}

// Eval runs src in the current shell environment. Control transfers such
// as break and return propagate to the caller.
func (s *Shell) Eval(ctx context.Context, src string) int {
	prog, err := s.Parse(src)
	if err != nil {
		s.syntaxError(s.Arg0, err)
		return StatusSyntaxError
	}
	if len(prog.Body.Items) == 0 {
		s.LastStatus = 0
		return 0
	}
	return s.runList(ctx, prog.Body)
}

// Source runs the commands read from r in the current environment, as the
// dot builtin does. A return in r ends it early.
func (s *Shell) Source(ctx context.Context, name string, r io.Reader) int {
	s.dotDepth++
	defer func() { s.dotDepth-- }()

	p := syntax.NewParser(r, s.parserOptions()...)
	status := 0
	for !s.stopped() && ctx.Err() == nil {
		prog, err := p.ParseLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.syntaxError(name, err)
			if !s.Interactive {
				s.Exit(StatusSyntaxError)
			}
			return StatusSyntaxError
		}
		status = s.runList(ctx, prog.Body)
	}

	if s.ctrl == ctrlReturn {
		status = s.ctrlN
		s.ctrl, s.ctrlN = ctrlNone, 0
	}
	return status
}

// Exec replaces the shell with the program argv[0]. The program runs to
// completion and the shell then exits with its status. With no arguments
// the redirections of the exec command stay in effect.
func (s *Shell) Exec(argv []string) int {
	if len(argv) == 0 {
		s.keepRedirs = true
		return 0
	}

	pc := &prepared{Command: s.lookupFile(argv[0]), argv: argv, text: strings.Join(argv, " ")}
	var status int
	if pc.Kind == KindFile {
		status = s.runExternal(s.Context(), pc)
	} else {
		status = s.runPrepared(s.Context(), pc)
		if s.Interactive {
			return status
		}
	}
	s.Exit(status)
	return status
}

// RunUtility runs argv without looking up functions, as the command builtin
// does.
func (s *Shell) RunUtility(argv []string) int {
	pc := &prepared{Command: s.lookupCommand(argv[0], true), argv: argv, text: strings.Join(argv, " ")}
	return s.runPrepared(s.Context(), pc)
}

// Foreground resumes job in the foreground and waits for it.
func (s *Shell) Foreground(job *jobs.Job) int {
	var term *jobs.Terminal
	if s.JobControl() {
		term = s.Term
	}
	fmt.Fprintln(s.Stdout(), job.Cmd)
	if err := s.Jobs.Continue(s.Context(), job, true, term); err != nil {
		if s.Context().Err() != nil {
			job.Foreground = false
			return StatusInterrupted
		}
		s.Errorf("fg: %v", err)
		return 1
	}
	return s.settleForeground(job)
}

// Background resumes a stopped job in the background.
func (s *Shell) Background(job *jobs.Job) error {
	if err := s.Jobs.Continue(s.Context(), job, false, nil); err != nil {
		return err
	}
	fmt.Fprintf(s.Stdout(), "[%d] %s &\n", job.ID, job.Cmd)
	return nil
}

// WaitJob waits for a job to finish and forgets it.
func (s *Shell) WaitJob(job *jobs.Job) (int, error) {
	if err := s.Jobs.Wait(s.Context(), job); err != nil {
		return StatusInterrupted, err
	}
	status := job.Status(s.Opts.PipeFail)
	if job.State().Done() {
		s.Jobs.Remove(job)
	}
	return status, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/josephlewis42/psh/core/expand"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vars"
	"github.com/josephlewis42/psh/core/vos"
	mvsyntax "mvdan.cc/sh/v3/syntax"
)

// ExecError is returned when a command can't be found or run.
type ExecError struct {
	Name   string
	Status int
	Err    error
}

func (e *ExecError) Error() string {
	switch {
	case errors.Is(e.Err, vos.ErrNotFound) && !strings.Contains(e.Name, "/"):
		return fmt.Sprintf("%s: command not found", e.Name)
	case errors.Is(e.Err, vos.ErrNotFound):
		return fmt.Sprintf("%s: no such file or directory", e.Name)
	case errors.Is(e.Err, fs.ErrPermission):
		return fmt.Sprintf("%s: permission denied", e.Name)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Kind is how a command name was resolved.
type Kind int

const (
	KindNotFound Kind = iota
	KindSpecial
	KindFunction
	KindBuiltin
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindSpecial:
		return "special builtin"
	case KindFunction:
		return "function"
	case KindBuiltin:
		return "builtin"
	case KindFile:
		return "file"
	default:
		return "not found"
	}
}

// Command is a resolved command name.
type Command struct {
	Name    string
	Kind    Kind
	Builtin Builtin
	Func    *syntax.FuncDef
	// Path is the absolute path of a KindFile command.
	Path string
	Err  error
}

// LookupCommand resolves name the way command search does: special
// builtins, functions, builtins and finally PATH.
func (s *Shell) LookupCommand(name string) Command {
	return s.lookupCommand(name, false)
}

func (s *Shell) lookupCommand(name string, skipFuncs bool) Command {
	cmd := Command{Name: name}
	if !strings.Contains(name, "/") {
		if b, ok := s.Builtins[name]; ok && SpecialBuiltins[name] {
			cmd.Kind, cmd.Builtin = KindSpecial, b
			return cmd
		}
		if fn, ok := s.Funcs[name]; ok && !skipFuncs {
			cmd.Kind, cmd.Func = KindFunction, fn
			return cmd
		}
		if b, ok := s.Builtins[name]; ok {
			cmd.Kind, cmd.Builtin = KindBuiltin, b
			return cmd
		}
	}

	return s.lookupFile(name)
}

// lookupFile resolves name through PATH only.
func (s *Shell) lookupFile(name string) Command {
	cmd := Command{Name: name}
	path, err := vos.LookPath(s.FS, s.Dir, s.Path(), name)
	if err != nil {
		status := 127
		if errors.Is(err, fs.ErrPermission) {
			status = 126
		}
		cmd.Err = &ExecError{Name: name, Status: status, Err: err}
		return cmd
	}
	cmd.Kind, cmd.Path = KindFile, vos.Abs(s.Dir, path)
	return cmd
}

type assignment struct {
	name  string
	value string
}

// prepared is a simple command after expansion and redirection.
type prepared struct {
	Command
	argv    []string
	assigns []assignment
	text    string
}

// prepare expands a simple command and applies its redirections. The
// returned restore function must always be called. A nil command means
// there is nothing left to run and status is the result.
func (s *Shell) prepare(ctx context.Context, sc *syntax.SimpleCommand) (pc *prepared, status int, restore func()) {
	restore = func() {}
	s.hadSubst = false
	cfg := s.expandConfig(ctx)

	argv, err := expand.Fields(cfg, sc.Args...)
	if err != nil {
		return nil, s.expansionFailed(err), restore
	}

	restore, err = s.redirect(ctx, sc.Redirs)
	if err != nil {
		s.Errorf("%v", err)
		return nil, 1, restore
	}

	var assigns []assignment
	for _, a := range sc.Assigns {
		value, err := expand.Literal(cfg, a.Value)
		if err != nil {
			return nil, s.expansionFailed(err), restore
		}
		assigns = append(assigns, assignment{name: a.Name, value: value})
	}

	s.trace(assigns, argv)

	if len(argv) == 0 {
		for _, a := range assigns {
			if err := s.SetVar(a.name, a.value); err != nil {
				s.Errorf("%v", err)
				return nil, 1, restore
			}
		}
		if s.hadSubst {
			return nil, s.substStatus, restore
		}
		return nil, 0, restore
	}

	return &prepared{
		Command: s.LookupCommand(argv[0]),
		argv:    argv,
		assigns: assigns,
		text:    jobText(sc),
	}, 0, restore
}

func (s *Shell) runSimple(ctx context.Context, sc *syntax.SimpleCommand) int {
	pc, status, restore := s.prepare(ctx, sc)
	defer func() {
		if s.keepRedirs {
			s.keepRedirs = false
			return
		}
		restore()
	}()
	if pc == nil {
		return status
	}
	if pc.Kind == KindFile {
		return s.runExternal(ctx, pc)
	}
	return s.runPrepared(ctx, pc)
}

// runPrepared runs a command implemented inside the shell.
func (s *Shell) runPrepared(ctx context.Context, pc *prepared) int {
	s.ctx = ctx

	switch pc.Kind {
	case KindNotFound:
		var execErr *ExecError
		status := 127
		if errors.As(pc.Err, &execErr) {
			status = execErr.Status
		}
		s.Errorf("%v", pc.Err)
		s.Events.UnknownCommand(pc.argv, status, pc.Err)
		return status

	case KindFile:
		return s.runExternal(ctx, pc)

	case KindSpecial:
		for _, a := range pc.assigns {
			if err := s.SetVar(a.name, a.value); err != nil {
				s.Errorf("%v", err)
				return 1
			}
		}
		status := pc.Builtin.Main(s, pc.argv)
		s.Events.RunCommand(pc.argv, pc.Kind.String(), pc.Name, status)
		return status
	}

	undo, err := s.assignTemporary(pc.assigns)
	defer undo()
	if err != nil {
		s.Errorf("%v", err)
		return 1
	}

	var status int
	if pc.Kind == KindFunction {
		status = s.CallFunction(ctx, pc.Func, pc.argv)
	} else {
		status = pc.Builtin.Main(s, pc.argv)
	}
	s.Events.RunCommand(pc.argv, pc.Kind.String(), pc.Name, status)
	return status
}

// assignTemporary exports assignments for the duration of a builtin or
// function call.
func (s *Shell) assignTemporary(assigns []assignment) (func(), error) {
	var saved []vars.Binding
	undo := func() {
		for i := len(saved) - 1; i >= 0; i-- {
			s.Vars.Restore(saved[i])
		}
	}
	for _, a := range assigns {
		b := s.Vars.Save(a.name)
		if err := s.Vars.Set(a.name, a.value, vars.AttrExport); err != nil {
			return undo, err
		}
		saved = append(saved, b)
	}
	return undo, nil
}

// childEnviron returns the environment of a child process.
func (s *Shell) childEnviron(assigns []assignment) []string {
	env := vos.NewMapEnvFromEnvList(s.Vars.Environ())
	for _, a := range assigns {
		env.Setenv(a.name, a.value)
	}
	return env.Environ()
}

// trace writes the expanded command to standard error when xtrace is on.
func (s *Shell) trace(assigns []assignment, argv []string) {
	if !s.Opts.XTrace || (len(assigns) == 0 && len(argv) == 0) {
		return
	}

	prefix := "+ "
	if v, ok := s.Vars.Get(EnvPS4); ok {
		prefix = v.Value
	}

	var fields []string
	for _, a := range assigns {
		fields = append(fields, a.name+"="+quote(a.value))
	}
	for _, arg := range argv {
		fields = append(fields, quote(arg))
	}
	fmt.Fprintf(s.Stderr(), "%s%s\n", prefix, strings.Join(fields, " "))
}

// quote returns s quoted for reuse as shell input.
func quote(s string) string {
	q, err := mvsyntax.Quote(s, mvsyntax.LangPOSIX)
	if err != nil {
		return s
	}
	return q
}

// Quote returns s quoted for reuse as shell input, as used by set, export
// and alias listings.
func Quote(s string) string {
	return quote(s)
}

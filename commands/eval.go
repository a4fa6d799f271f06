package commands

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vos"
)

// Eval concatenates its arguments and runs them as a command.
func Eval(s *core.Shell, args []string) int {
	return s.Eval(s.Context(), strings.Join(args[1:], " "))
}

// Dot runs the commands of a file in the current environment.
func Dot(s *core.Shell, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(s.Stderr(), "usage: . FILE [ARG ...]")
		return 2
	}

	name, err := findDotFile(s, args[1])
	if err != nil {
		fmt.Fprintf(s.Stderr(), ".: %v\n", err)
		// A failing special builtin ends a non-interactive shell.
		if !s.Interactive {
			s.Exit(1)
		}
		return 1
	}
	f, err := s.FS.Open(name)
	if err != nil {
		fmt.Fprintf(s.Stderr(), ".: %s: %v\n", args[1], pathErrText(err))
		return 1
	}
	defer f.Close()

	if len(args) > 2 {
		saved := s.Params
		s.Params = append([]string(nil), args[2:]...)
		defer func() { s.Params = saved }()
	}
	return s.Source(s.Context(), args[1], f)
}

// findDotFile looks for a readable file, searching PATH when name has no
// slash.
func findDotFile(s *core.Shell, name string) (string, error) {
	if strings.Contains(name, "/") {
		abs := vos.Abs(s.Dir, name)
		if _, err := s.FS.Stat(abs); err != nil {
			return "", fmt.Errorf("%s: not found", name)
		}
		return abs, nil
	}
	for _, dir := range filepath.SplitList(s.Path()) {
		if dir == "" {
			dir = "."
		}
		candidate := vos.Abs(s.Dir, path.Join(dir, name))
		if fi, err := s.FS.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: not found", name)
}

// Exec replaces the shell with a command, or makes its redirections
// permanent when no command is given.
func Exec(s *core.Shell, args []string) int {
	argv := args[1:]
	if len(argv) > 0 && argv[0] == "--" {
		argv = argv[1:]
	}
	return s.Exec(argv)
}

// Command runs a command bypassing functions, or describes it.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/command.html
func Command(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "command [-p] [-v|-V] COMMAND [ARG ...]",
		Short: "Run a simple command, suppressing function lookup.",
	}
	opts := cmd.Flags()
	defaultPath := opts.Bool('p', "search the default PATH")
	short := opts.Bool('v', "print the command that would be run")
	verbose := opts.Bool('V', "describe the command that would be run")

	return cmd.Run(s, args, func() int {
		operands := opts.Args()
		if len(operands) == 0 {
			return 0
		}

		if *defaultPath {
			saved := s.Vars.Save(core.EnvPath)
			if err := s.Vars.Set(core.EnvPath, core.DefaultPath, 0); err == nil {
				defer s.Vars.Restore(saved)
			}
		}

		if *short || *verbose {
			status := 0
			for _, name := range operands {
				desc, ok := describe(s, name, *verbose)
				if !ok {
					if *verbose {
						fmt.Fprintf(s.Stderr(), "command: %s: not found\n", name)
					}
					status = 1
					continue
				}
				fmt.Fprintln(s.Stdout(), desc)
			}
			return status
		}

		return s.RunUtility(operands)
	})
}

// Type describes how each name would be interpreted as a command.
func Type(s *core.Shell, args []string) int {
	status := 0
	for _, name := range args[1:] {
		desc, ok := describe(s, name, true)
		if !ok {
			fmt.Fprintf(s.Stderr(), "type: %s: not found\n", name)
			status = 1
			continue
		}
		fmt.Fprintln(s.Stdout(), desc)
	}
	return status
}

// describe explains what name resolves to, in the short form of command -v
// or the long form of type.
func describe(s *core.Shell, name string, verbose bool) (string, bool) {
	if syntax.IsReserved(name) {
		if verbose {
			return name + " is a shell keyword", true
		}
		return name, true
	}
	if value, ok := s.Aliases[name]; ok {
		if verbose {
			return fmt.Sprintf("%s is an alias for %s", name, value), true
		}
		return fmt.Sprintf("alias %s=%s", name, core.Quote(value)), true
	}

	c := s.LookupCommand(name)
	if !verbose {
		switch c.Kind {
		case core.KindNotFound:
			return "", false
		case core.KindFile:
			return c.Path, true
		default:
			return name, true
		}
	}

	switch c.Kind {
	case core.KindSpecial:
		return name + " is a special shell builtin", true
	case core.KindFunction:
		return name + " is a function", true
	case core.KindBuiltin:
		return name + " is a shell builtin", true
	case core.KindFile:
		return fmt.Sprintf("%s is %s", name, c.Path), true
	}
	return "", false
}

// Which prints the path of the executables that would be run for each
// name.
func Which(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "which [COMMAND ...]",
		Short: "Locate a command.",
	}

	return cmd.RunEachArg(s, args, func(arg string) error {
		res, err := vos.LookPath(s.FS, s.Dir, s.Path(), arg)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.Stdout(), res)
		return nil
	})
}

func init() {
	addBuiltin("eval", "eval [ARG ...]", "Execute arguments as a shell command.", Eval)
	addBuiltin(".", ". FILE [ARG ...]", "Execute commands from a file in the current shell.", Dot)
	addBuiltin("exec", "exec [COMMAND [ARG ...]]", "Replace the shell with the given command.", Exec)
	addBuiltin("command", "command [-p] [-v|-V] COMMAND [ARG ...]", "Run a simple command, suppressing function lookup.", Command)
	addBuiltin("type", "type NAME ...", "Display information about command type.", Type)
	addBuiltin("which", "which [COMMAND ...]", "Locate a command.", Which)
}

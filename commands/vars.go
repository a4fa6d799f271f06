package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vars"
)

// assignNames handles the NAME[=value] operands of export and readonly.
func assignNames(s *core.Shell, cmdName string, operands []string, attr vars.Attr) int {
	status := 0
	for _, arg := range operands {
		var err error
		if name, value, ok := strings.Cut(arg, "="); ok {
			err = s.Vars.Set(name, value, attr)
		} else {
			err = s.Vars.SetAttr(arg, attr)
		}
		if err != nil {
			fmt.Fprintf(s.Stderr(), "%s: %v\n", cmdName, err)
			status = 1
		}
	}
	return status
}

// listAttr prints the variables carrying attr in a form that can be read
// back by the shell.
func listAttr(s *core.Shell, w io.Writer, cmdName string, attr vars.Attr) {
	for _, name := range s.Vars.Names() {
		v, set := s.Vars.Get(name)
		if v.Attr&attr == 0 {
			continue
		}
		if set {
			fmt.Fprintf(w, "%s %s=%s\n", cmdName, name, core.Quote(v.Value))
		} else {
			fmt.Fprintf(w, "%s %s\n", cmdName, name)
		}
	}
}

// Export implements the POSIX export builtin.
func Export(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "export [-p] [NAME[=VALUE] ...]",
		Short: "Set the export attribute for shell variables.",
	}
	printVars := cmd.Flags().Bool('p', "print exported variables")

	return cmd.Run(s, args, func() int {
		operands := cmd.Flags().Args()
		if *printVars || len(operands) == 0 {
			listAttr(s, s.Stdout(), "export", vars.AttrExport)
			return 0
		}
		return assignNames(s, "export", operands, vars.AttrExport)
	})
}

// Readonly implements the POSIX readonly builtin.
func Readonly(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "readonly [-p] [NAME[=VALUE] ...]",
		Short: "Set the readonly attribute for shell variables.",
	}
	printVars := cmd.Flags().Bool('p', "print readonly variables")

	return cmd.Run(s, args, func() int {
		operands := cmd.Flags().Args()
		if *printVars || len(operands) == 0 {
			listAttr(s, s.Stdout(), "readonly", vars.AttrReadOnly)
			return 0
		}
		return assignNames(s, "readonly", operands, vars.AttrReadOnly)
	})
}

// Unset implements the POSIX unset builtin.
func Unset(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "unset [-fv] NAME ...",
		Short: "Unset values and attributes of variables and functions.",
	}
	opts := cmd.Flags()
	funcs := opts.Bool('f', "treat NAME as a function")
	opts.Bool('v', "treat NAME as a variable, the default")

	return cmd.RunEachArg(s, args, func(name string) error {
		if *funcs {
			delete(s.Funcs, name)
			return nil
		}
		return s.Vars.Unset(name)
	})
}

// Local declares variables local to the running function.
func Local(s *core.Shell, args []string) int {
	status := 0
	for _, arg := range args[1:] {
		name, value, hasValue := strings.Cut(arg, "=")
		err := s.Vars.DeclareLocal(name)
		if err == nil && hasValue {
			err = s.Vars.Set(name, value, 0)
		}
		if err != nil {
			fmt.Fprintf(s.Stderr(), "local: %v\n", err)
			status = 1
		}
	}
	return status
}

// Set implements the POSIX set builtin: it lists variables, changes options
// and replaces the positional parameters.
func Set(s *core.Shell, args []string) int {
	args = args[1:]
	if len(args) == 0 {
		for _, name := range s.Vars.Names() {
			if v, ok := s.Vars.Get(name); ok {
				fmt.Fprintf(s.Stdout(), "%s=%s\n", name, core.Quote(v.Value))
			}
		}
		return 0
	}

	setParams := false
	for len(args) > 0 {
		arg := args[0]
		if arg == "--" {
			args = args[1:]
			setParams = true
			break
		}
		if arg == "-" {
			s.Opts.XTrace = false
			args = args[1:]
			setParams = len(args) > 0
			break
		}
		if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
			setParams = true
			break
		}

		on := arg[0] == '-'
		args = args[1:]
		for i := 1; i < len(arg); i++ {
			if arg[i] != 'o' {
				if err := s.Opts.SetFlag(arg[i], on); err != nil {
					fmt.Fprintf(s.Stderr(), "set: %v\n", err)
					return 2
				}
				continue
			}

			if len(args) == 0 {
				printOptions(s, on)
				continue
			}
			if err := s.Opts.Set(args[0], on); err != nil {
				fmt.Fprintf(s.Stderr(), "set: %v\n", err)
				return 2
			}
			args = args[1:]
		}
	}

	if setParams {
		s.Params = append([]string(nil), args...)
	}
	return 0
}

// printOptions lists the options for set -o, or as commands for set +o.
func printOptions(s *core.Shell, human bool) {
	w := s.Stdout()
	for _, name := range core.OptionNames() {
		on, _ := s.Opts.Get(name)
		switch {
		case human && on:
			fmt.Fprintf(w, "%-16s on\n", name)
		case human:
			fmt.Fprintf(w, "%-16s off\n", name)
		case on:
			fmt.Fprintf(w, "set -o %s\n", name)
		default:
			fmt.Fprintf(w, "set +o %s\n", name)
		}
	}
}

// Shift moves the positional parameters n places to the left.
func Shift(s *core.Shell, args []string) int {
	n := 1
	switch len(args) {
	case 1:
	case 2:
		var err error
		if n, err = strconv.Atoi(args[1]); err != nil || n < 0 {
			fmt.Fprintf(s.Stderr(), "shift: %s: numeric argument required\n", args[1])
			return 1
		}
	default:
		fmt.Fprintln(s.Stderr(), "usage: shift [n]")
		return 1
	}

	if n > len(s.Params) {
		fmt.Fprintf(s.Stderr(), "shift: can't shift that many\n")
		return 1
	}
	s.Params = s.Params[n:]
	return 0
}

func init() {
	addBuiltin("export", "export [-p] [NAME[=VALUE] ...]", "Set the export attribute for shell variables.", Export)
	addBuiltin("readonly", "readonly [-p] [NAME[=VALUE] ...]", "Set the readonly attribute for shell variables.", Readonly)
	addBuiltin("unset", "unset [-fv] NAME ...", "Unset values and attributes of variables and functions.", Unset)
	addBuiltin("local", "local NAME[=VALUE] ...", "Declare variables local to a function.", Local)
	addBuiltin("set", "set [-aCefmnux] [-o OPTION] [--] [ARG ...]", "Set or unset shell options and positional parameters.", Set)
	addBuiltin("shift", "shift [n]", "Shift positional parameters.", Shift)
}

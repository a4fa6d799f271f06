package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vars"
)

// Env prints the exported environment, or runs a command with a modified
// environment.
//
// https://pubs.opengroup.org/onlinepubs/9699919799.2018edition/utilities/env.html
func Env(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "env [-i] [NAME=VALUE ...] [COMMAND [ARG ...]]",
		Short: "Set or print the environment for command invocation.",
	}
	opts := cmd.Flags()
	ignore := opts.Bool('i', "start with an empty environment")

	return cmd.Run(s, args, func() int {
		sub := s.Subshell()
		if *ignore {
			sub.Vars = vars.NewStore()
		}

		operands := opts.Args()
		for len(operands) > 0 {
			name, value, ok := strings.Cut(operands[0], "=")
			if !ok {
				break
			}
			if err := sub.Vars.Set(name, value, vars.AttrExport); err != nil {
				fmt.Fprintf(s.Stderr(), "env: %v\n", err)
				return 125
			}
			operands = operands[1:]
		}

		if len(operands) == 0 {
			env := sub.Vars.Environ()
			sort.Strings(env)
			for _, envDef := range env {
				fmt.Fprintln(s.Stdout(), envDef)
			}
			return 0
		}

		return sub.RunUtility(operands)
	})
}

func init() {
	addBuiltin("env", "env [-i] [NAME=VALUE ...] [COMMAND [ARG ...]]", "Set or print the environment for command invocation.", Env)
}

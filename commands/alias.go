package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josephlewis42/psh/core"
)

// Alias implements the POSIX alias builtin.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/alias.html
func Alias(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "alias [NAME[=VALUE] ...]",
		Short: "Define or display aliases.",
	}

	return cmd.Run(s, args, func() int {
		operands := cmd.Flags().Args()
		if len(operands) == 0 {
			var names []string
			for name := range s.Aliases {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				printAlias(s, name)
			}
			return 0
		}

		status := 0
		for _, arg := range operands {
			name, value, ok := strings.Cut(arg, "=")
			switch {
			case ok && !core.ValidAliasName(name):
				fmt.Fprintf(s.Stderr(), "alias: %s: invalid alias name\n", name)
				status = 1
			case ok:
				s.Aliases[name] = value
			default:
				if _, found := s.Aliases[name]; !found {
					fmt.Fprintf(s.Stderr(), "alias: %s: not found\n", name)
					status = 1
					continue
				}
				printAlias(s, name)
			}
		}
		return status
	})
}

func printAlias(s *core.Shell, name string) {
	fmt.Fprintf(s.Stdout(), "alias %s=%s\n", name, core.Quote(s.Aliases[name]))
}

// Unalias implements the POSIX unalias builtin.
func Unalias(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "unalias [-a] NAME ...",
		Short: "Remove alias definitions.",
	}
	all := cmd.Flags().Bool('a', "remove all alias definitions")

	return cmd.Run(s, args, func() int {
		if *all {
			for name := range s.Aliases {
				delete(s.Aliases, name)
			}
			return 0
		}

		operands := cmd.Flags().Args()
		if len(operands) == 0 {
			fmt.Fprintf(s.Stderr(), "usage: %s\n", cmd.Use)
			return 2
		}
		status := 0
		for _, name := range operands {
			if _, ok := s.Aliases[name]; !ok {
				fmt.Fprintf(s.Stderr(), "unalias: %s: not found\n", name)
				status = 1
				continue
			}
			delete(s.Aliases, name)
		}
		return status
	})
}

func init() {
	addBuiltin("alias", "alias [NAME[=VALUE] ...]", "Define or display aliases.", Alias)
	addBuiltin("unalias", "unalias [-a] NAME ...", "Remove alias definitions.", Unalias)
}

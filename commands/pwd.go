package commands

import (
	"fmt"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vos"
)

// Pwd implements the POSIX pwd builtin.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/pwd.html
func Pwd(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "pwd [-L|-P]",
		Short: "Print the name of the current working directory.",
	}
	opts := cmd.Flags()
	opts.Bool('L', "print the logical path, the default")
	physical := opts.Bool('P', "print the path with symbolic links resolved")

	return cmd.Run(s, args, func() int {
		pwd := s.Dir
		if *physical {
			resolved, err := vos.Realpath(s.FS, pwd)
			if err != nil {
				fmt.Fprintf(s.Stderr(), "pwd: %v\n", err)
				return 1
			}
			pwd = resolved
		}
		fmt.Fprintln(s.Stdout(), pwd)
		return 0
	})
}

func init() {
	addBuiltin("pwd", "pwd [-L|-P]", "Print the name of the current working directory.", Pwd)
}

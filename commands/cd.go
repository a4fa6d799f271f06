package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/vos"
)

// Cd implements the POSIX cd builtin.
//
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/cd.html
func Cd(s *core.Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "cd [-L|-P] [DIR|-]",
		Short: "Change the shell working directory.",
	}
	opts := cmd.Flags()
	opts.Bool('L', "follow symbolic links lexically, the default")
	physical := opts.Bool('P', "resolve symbolic links before processing ..")

	return cmd.Run(s, args, func() int {
		var dir string
		printDir := false

		switch operands := opts.Args(); len(operands) {
		case 0:
			if dir = s.Getenv(core.EnvHome); dir == "" {
				fmt.Fprintln(s.Stderr(), "cd: HOME not set")
				return 1
			}
		case 1:
			dir = operands[0]
			if dir == "-" {
				if dir = s.Getenv(core.EnvOldPWD); dir == "" {
					fmt.Fprintln(s.Stderr(), "cd: OLDPWD not set")
					return 1
				}
				printDir = true
			}
		default:
			fmt.Fprintln(s.Stderr(), "cd: too many arguments")
			return 1
		}

		target, found := searchCdpath(s, dir)
		if found {
			printDir = true
		}
		if *physical {
			resolved, err := vos.Realpath(s.FS, target)
			if err != nil {
				fmt.Fprintf(s.Stderr(), "cd: %s: %v\n", dir, pathErrText(err))
				return 1
			}
			target = resolved
		}

		old := s.Dir
		if err := s.Chdir(target); err != nil {
			fmt.Fprintf(s.Stderr(), "cd: %s: %v\n", dir, pathErrText(err))
			return 1
		}

		for name, value := range map[string]string{core.EnvOldPWD: old, core.EnvPWD: s.Dir} {
			if err := s.SetVar(name, value); err != nil {
				fmt.Fprintf(s.Stderr(), "cd: %v\n", err)
				return 1
			}
		}
		if printDir {
			fmt.Fprintln(s.Stdout(), s.Dir)
		}
		return 0
	})
}

// searchCdpath resolves a relative directory against CDPATH. It returns true
// if a non-empty CDPATH entry matched.
func searchCdpath(s *core.Shell, dir string) (string, bool) {
	cdpath := s.Getenv("CDPATH")
	if path.IsAbs(dir) || cdpath == "" || dir == "." || dir == ".." ||
		strings.HasPrefix(dir, "./") || strings.HasPrefix(dir, "../") {
		return vos.Abs(s.Dir, dir), false
	}

	for _, elem := range filepath.SplitList(cdpath) {
		candidate := vos.Abs(s.Dir, path.Join(elem, dir))
		if elem == "" {
			candidate = vos.Abs(s.Dir, dir)
		}
		if vos.IsDir(s.FS, candidate) {
			return candidate, elem != ""
		}
	}
	return vos.Abs(s.Dir, dir), false
}

// pathErrText strips the operation and path from filesystem errors.
func pathErrText(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

func init() {
	addBuiltin("cd", "cd [-L|-P] [DIR|-]", "Change the shell working directory.", Cd)
}

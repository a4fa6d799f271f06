package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/josephlewis42/psh/core"
)

// Help lists the builtins or describes the named ones.
func Help(s *core.Shell, args []string) int {
	if len(args) == 1 {
		w := tabwriter.NewWriter(s.Stdout(), 0, 4, 2, ' ', 0)
		for _, info := range ListBuiltins() {
			fmt.Fprintf(w, "%s\t%s\n", info.Use, info.Short)
		}
		w.Flush()
		return 0
	}

	status := 0
	for _, name := range args[1:] {
		info, ok := LookupBuiltin(name)
		if !ok {
			fmt.Fprintf(s.Stderr(), "help: no help topics match %q\n", name)
			status = 1
			continue
		}
		fmt.Fprintf(s.Stdout(), "%s: %s\n    %s\n", info.Name, info.Use, info.Short)
	}
	return status
}

func init() {
	addBuiltin("help", "help [BUILTIN ...]", "Display information about builtin commands.", Help)
}

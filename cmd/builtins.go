package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/josephlewis42/psh/commands"
	"github.com/josephlewis42/psh/core"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the builtin commands
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, info := range commands.ListBuiltins() {
			kind := "regular"
			if core.SpecialBuiltins[info.Name] {
				kind = "special"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, kind, info.Short)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/psh/core/syntax"
	"github.com/spf13/cobra"
)

// parseCmd prints scripts in canonical form
var parseCmd = &cobra.Command{
	Use:   "parse [FILE ...]",
	Short: "Check the syntax of scripts and print them in canonical form.",
	Long: `Parses each script, or standard input if none are given, and prints it
back the way the shell understands it. Aliases aren't expanded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if len(args) == 0 {
			return printScript(cmd.OutOrStdout(), cmd.InOrStdin(), "-")
		}
		for _, name := range args {
			fd, err := os.Open(name)
			if err != nil {
				return err
			}
			err = printScript(cmd.OutOrStdout(), fd, name)
			fd.Close()
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func printScript(w io.Writer, r io.Reader, name string) error {
	prog, err := syntax.NewParser(r).Parse()
	if err != nil {
		return fmt.Errorf("%s:%w", name, err)
	}
	return syntax.Fprint(w, prog)
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

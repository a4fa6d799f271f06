/*
Copyright © 2021 Joseph Lewis <joseph@josephlewis.net>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/josephlewis42/psh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	debug   bool

	invoked invocation

	// exitStatus is the status of the shell run by the root command.
	exitStatus int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrPermission) {
		log.Println("Couldn't load config: check the permissions of", cfgPath)
	}

	return configuration, err
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "psh [flags] [script [ARG ...]]",
	Short: "A POSIX shell",
	Long: `psh is a POSIX shell with job control.

With no script it reads commands from standard input, interactively when
standard input is a terminal. With -c the first operand is the command
string, the next one sets $0 and the rest are positional parameters.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		invoked.monitorSet = cmd.Flags().Changed("monitor")
		status, err := runShell(cmd, invoked, args)
		exitStatus = status
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It returns the exit status of the shell.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 2
	}
	return exitStatus
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultDir(), "config directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log internal diagnostics and file access to stderr")

	// Options after the script name belong to the script.
	rootCmd.Flags().SetInterspersed(false)

	flags := rootCmd.Flags()
	flags.BoolVarP(&invoked.command, "command", "c", false, "read commands from the first operand")
	flags.BoolVarP(&invoked.stdin, "stdin", "s", false, "read commands from standard input")
	flags.BoolVarP(&invoked.interactive, "interactive", "i", false, "force an interactive shell")
	flags.BoolVarP(&invoked.noExec, "noexec", "n", false, "print commands instead of running them")
	flags.BoolVarP(&invoked.errExit, "errexit", "e", false, "exit when a command fails")
	flags.BoolVarP(&invoked.noUnset, "nounset", "u", false, "fail when expanding unset variables")
	flags.BoolVarP(&invoked.xtrace, "xtrace", "x", false, "trace commands before running them")
	flags.BoolVarP(&invoked.allExport, "allexport", "a", false, "export every assigned variable")
	flags.BoolVarP(&invoked.noGlob, "noglob", "f", false, "disable pathname expansion")
	flags.BoolVarP(&invoked.noClobber, "noclobber", "C", false, "don't overwrite files with >")
	flags.BoolVarP(&invoked.monitor, "monitor", "m", false, "enable job control")
	flags.StringArrayVarP(&invoked.options, "option", "o", nil, "enable an option by name, as set -o does")
	flags.StringVar(&invoked.record, "record", "", "record the session to an asciicast file")
}

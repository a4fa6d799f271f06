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
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/psh/commands"
	"github.com/josephlewis42/psh/core"
	"github.com/josephlewis42/psh/core/config"
	"github.com/josephlewis42/psh/core/logger"
	"github.com/josephlewis42/psh/core/vos"
	"github.com/spf13/cobra"
)

// playgroundCmd runs a throwaway shell with everything logged
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Run an interactive shell in a scratch directory with tracing and audit logging.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir, err := os.MkdirTemp("", "playground")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		playgroundLogger := log.New(cmd.ErrOrStderr(), "[playground] ", 0)
		cfg, err := config.Initialize(dir, playgroundLogger)
		if err != nil {
			return err
		}
		cfg.AuditLog = "audit.log"

		logFd, err := cfg.OpenAuditLog()
		if err != nil {
			return err
		}
		defer logFd.Close()
		logRecorder := logger.NewJsonLinesLogRecorder(logFd)

		playgroundLogger.Printf("Working in: file://%s\n", dir)
		playgroundLogger.Printf("See logs with: tail -f %s\n", filepath.Join(dir, cfg.AuditLog))
		playgroundLogger.Println(strings.Repeat("=", 80))

		fs := vos.NewTracingFs(vos.NewOsFs(), func(op vos.Op, name string) {
			playgroundLogger.Printf("fs: %s %s", op, name)
		})

		s := core.NewShell(
			core.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
			core.WithFS(fs),
			core.WithDir(dir),
			core.WithEnviron(environ()),
			core.WithLogger(playgroundLogger),
			core.WithEvents(logRecorder.NewSession()),
			core.Interactive(true),
		)
		initVars(s, cfg)
		_ = s.Vars.Set(core.EnvPS1, "playground$ ", 0)

		exitCode := commands.RunInteractive(context.Background(), s, commands.InteractiveConfig{})
		s.Events.ShellExit(exitCode)
		fmt.Fprintf(cmd.OutOrStdout(), "Exit code: %d\n", exitCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)
}

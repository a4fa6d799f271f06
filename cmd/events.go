package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/josephlewis42/psh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var auditLogPath string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the audit log of executed commands.",
}

// openAuditLog opens the log named by --file, or the one in the
// configuration.
func openAuditLog() (io.ReadCloser, error) {
	if auditLogPath != "" {
		return os.Open(auditLogPath)
	}

	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if config.AuditLog == "" {
		return nil, fmt.Errorf("no audit_log set in %s", config.Dir())
	}
	return config.ReadAuditLog()
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Show a report of events.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		fd, err := openAuditLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		report := logger.NewReport()
		if err := logger.ReadJSONLinesLog(fd, report.Update); err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

var commandsCommand = &cobra.Command{
	Use:   "commands",
	Short: "List the commands each session ran.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		fd, err := openAuditLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		sessions, err := logger.Commands(fd)
		if err != nil {
			return err
		}

		var ids []string
		for id := range sessions {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		w := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintf(w, "session %s:\n", id)
			for _, line := range sessions[id] {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	eventsCmd.AddCommand(commandsCommand)
	eventsCmd.PersistentFlags().StringVar(&auditLogPath, "file", "", "audit log to read instead of the configured one")
}

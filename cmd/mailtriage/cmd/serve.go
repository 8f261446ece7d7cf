package cmd

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll every active account on schedule",
	Long: `Run in the foreground, polling inboxes and sent folders of every active
account on the schedules from the config file:

  poll:
    inbox_schedule: "@every 60s"
    sent_schedule: "@every 5m"
    max_concurrency: 4

Schedules accept cron expressions ("*/5 * * * *") and descriptors
("@every 90s"). Use Ctrl+C to stop; running cycles are allowed to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.WithField("database", cfg.Database.Path).Info("mailtriage starting")
		return svc.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

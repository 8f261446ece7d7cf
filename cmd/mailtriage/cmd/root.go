// Package cmd implements the mailtriage command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/app"
	"github.com/nhle/mail-triage/internal/logging"
	"github.com/nhle/mail-triage/internal/model"
)

// annotationEnsureKey marks commands allowed to create the keyring master key.
const annotationEnsureKey = "ensure-key"

var (
	cfgFile string
	verbose bool

	cfg    *model.AppConfig
	logger *logrus.Logger
	svc    *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mailtriage",
	Short: "Triage incoming mail and approve drafted replies",
	Long: `mailtriage polls IMAP mailboxes, classifies and enriches every new
message with a language model, drafts replies, and holds them in an approval
queue until an operator sends, edits, or cancels them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		path := cfgFile
		if path == "" {
			path = model.DefaultConfigPath()
		}

		var err error
		cfg, err = model.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger = logging.New(cfg.Log)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		if cfg.Database.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}

		_, ensureKey := cmd.Annotations[annotationEnsureKey]
		svc, err = app.New(cfg, logger, app.Options{EnsureKey: ensureKey})
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if svc == nil {
			return nil
		}
		return svc.Close()
	},
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/mailtriage/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

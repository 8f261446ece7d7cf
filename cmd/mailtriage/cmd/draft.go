package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/approval"
)

var (
	draftAccount string
	draftInput   approval.Draft
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Compose, send and discard outgoing messages",
}

var draftSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a new draft",
	Long: `Save a new outgoing message as a draft. With --reply-to the draft is
threaded under that message and subject and recipient default from it.

Examples:
  mailtriage draft save --account me@corp.example --to ana@example.com --subject "Status" --body "All green."
  mailtriage draft save --account me@corp.example --reply-to q1@example.com --body-file reply.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := resolveAccount(cmd.Context(), draftAccount)
		if err != nil {
			return err
		}
		body, err := bodyFlag(true)
		if err != nil {
			return err
		}

		d := draftInput
		d.AccountID = acct.ID
		d.Body = body
		if d.To == "" && d.InReplyTo == "" {
			return fmt.Errorf("--to is required unless --reply-to is set")
		}

		m, err := svc.Workflow.SaveDraft(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Printf("Draft %s saved\n", m.MessageID)
		return nil
	},
}

var draftSendCmd = &cobra.Command{
	Use:   "send <message-id>",
	Short: "Send a saved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := svc.Workflow.SendDraft(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Draft %s sent to %s\n", m.MessageID, m.To)
		return nil
	},
}

var draftDeleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Discard a saved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(svc.Workflow.DeleteDraft(cmd.Context(), args[0]), "Draft deleted.")
	},
}

func init() {
	f := draftSaveCmd.Flags()
	f.StringVar(&draftAccount, "account", "", "sending account (email or id)")
	f.StringVar(&draftInput.To, "to", "", "recipient address")
	f.StringVar(&draftInput.Subject, "subject", "", "subject line")
	f.StringVar(&draftInput.InReplyTo, "reply-to", "", "message id to reply to")
	f.StringVar(&queueBody, "body", "", "message body")
	f.StringVar(&queueBodyFile, "body-file", "", "read the body from a file")
	_ = draftSaveCmd.MarkFlagRequired("account")

	draftCmd.AddCommand(draftSaveCmd, draftSendCmd, draftDeleteCmd)
	rootCmd.AddCommand(draftCmd)
}

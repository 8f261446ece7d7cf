package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/approval"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/ui/review"
)

var (
	queueAccount  string
	queueBody     string
	queueBodyFile string
	queueLimit    int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Work through messages waiting for reply approval",
}

var queueNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the oldest message waiting for approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFilter(cmd.Context())
		if err != nil {
			return err
		}
		m, err := svc.Workflow.NextPending(cmd.Context(), accountID)
		if approval.IsQueueEmpty(err) {
			fmt.Println("Queue is empty.")
			return nil
		}
		if err != nil {
			return err
		}
		printMessage(m)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages waiting for approval, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFilter(cmd.Context())
		if err != nil {
			return err
		}

		msgs, err := svc.Workflow.Pending(cmd.Context(), accountID, queueLimit)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MESSAGE ID\tFROM\tSUBJECT\tURGENCY\tRECEIVED")
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				m.MessageID, m.From, truncate(m.Subject, 50), m.Urgency, m.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve <message-id>",
	Short: "Send the drafted reply, optionally with an edited body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := bodyFlag(false)
		if err != nil {
			return err
		}
		reply, err := svc.Workflow.Approve(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		fmt.Printf("Reply %s sent to %s\n", reply.MessageID, reply.To)
		return nil
	},
}

var queueEditCmd = &cobra.Command{
	Use:   "edit <message-id>",
	Short: "Replace the drafted reply without sending it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := bodyFlag(true)
		if err != nil {
			return err
		}
		if err := svc.Workflow.UpdateDraft(cmd.Context(), args[0], body); err != nil {
			return err
		}
		fmt.Println("Draft updated.")
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <message-id>",
	Short: "Drop a message from the queue without replying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(svc.Workflow.Cancel(cmd.Context(), args[0]), "Cancelled.")
	},
}

var queueRejectCmd = &cobra.Command{
	Use:   "reject <message-id>",
	Short: "Cancel a message and reject any task proposed from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(svc.Workflow.Reject(cmd.Context(), args[0]), "Rejected.")
	},
}

var queueRestoreCmd = &cobra.Command{
	Use:   "restore <message-id>",
	Short: "Put a cancelled message back in the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return report(svc.Workflow.Restore(cmd.Context(), args[0]), "Restored.")
	},
}

var queueForceCmd = &cobra.Command{
	Use:   "force <message-id>",
	Short: "Draft a reply for a message the classifier skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := svc.Workflow.ForceReply(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printMessage(m)
		return nil
	},
}

var queueReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review the queue interactively",
	Long: `Open a full-screen list of messages waiting for approval. Enter opens a
message with its drafted reply; a approves and sends, e edits the draft,
c cancels, r rejects, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFilter(cmd.Context())
		if err != nil {
			return err
		}

		// Log lines would tear the full-screen view.
		out := logger.Out
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(out)

		return review.Run(cmd.Context(), svc.Workflow, accountID)
	},
}

func report(err error, ok string) error {
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

// accountFilter resolves --account to an account ID. Empty means all.
func accountFilter(ctx context.Context) (string, error) {
	if queueAccount == "" {
		return "", nil
	}
	acct, err := resolveAccount(ctx, queueAccount)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

// bodyFlag returns the body from --body or --body-file.
func bodyFlag(required bool) (string, error) {
	body := queueBody
	if queueBodyFile != "" {
		raw, err := os.ReadFile(queueBodyFile)
		if err != nil {
			return "", fmt.Errorf("read body file: %w", err)
		}
		body = string(raw)
	}
	if required && strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("--body or --body-file is required")
	}
	return body, nil
}

func printMessage(m *model.Message) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Message-ID:\t%s\n", m.MessageID)
	fmt.Fprintf(w, "From:\t%s\n", formatAddr(m.FromName, m.From))
	fmt.Fprintf(w, "To:\t%s\n", m.To)
	fmt.Fprintf(w, "Subject:\t%s\n", m.Subject)
	fmt.Fprintf(w, "Status:\t%s\n", m.Status)
	if m.Category != "" {
		fmt.Fprintf(w, "Category:\t%s (urgency %d)\n", m.Category, m.Urgency)
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(m.Tags, ", "))
	}
	if m.Classifier.Fallback {
		fmt.Fprintf(w, "Classifier:\t%s\n", "unavailable, reply assumed")
	}
	w.Flush()

	fmt.Printf("\n%s\n", strings.TrimSpace(m.Body))
	if m.ReplyDraft != "" {
		fmt.Printf("\n--- draft reply ---\n%s\n", strings.TrimSpace(m.ReplyDraft))
	}
	for _, a := range m.Attachments {
		fmt.Printf("[attachment] %s (%s, %d bytes) %s\n", a.Filename, a.ContentType, a.Size, a.URL)
	}
}

func formatAddr(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	for _, c := range []*cobra.Command{queueNextCmd, queueListCmd, queueReviewCmd} {
		c.Flags().StringVar(&queueAccount, "account", "", "only this account (email or id)")
	}
	queueListCmd.Flags().IntVar(&queueLimit, "limit", 50, "maximum messages to list")
	for _, c := range []*cobra.Command{queueApproveCmd, queueEditCmd} {
		c.Flags().StringVar(&queueBody, "body", "", "reply body")
		c.Flags().StringVar(&queueBodyFile, "body-file", "", "read the reply body from a file")
	}

	queueCmd.AddCommand(queueNextCmd, queueListCmd, queueApproveCmd, queueEditCmd,
		queueCancelCmd, queueRejectCmd, queueRestoreCmd, queueForceCmd, queueReviewCmd)
	rootCmd.AddCommand(queueCmd)
}

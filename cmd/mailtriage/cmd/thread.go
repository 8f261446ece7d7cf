package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/model"
)

var (
	threadAccount string
	threadLimit   int
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect conversations",
}

var threadShowCmd = &cobra.Command{
	Use:   "show <message-id>",
	Short: "Show the conversation containing a message, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := svc.Conversations.Thread(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for i, m := range msgs {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("[%d] %s %s %s\n", i+1, arrow(m.Direction), m.CreatedAt.Local().Format("2006-01-02 15:04"), m.MessageID)
			fmt.Printf("    %s -> %s: %s (%s)\n", m.From, m.To, m.Subject, m.Status)
		}
		return nil
	},
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID := ""
		if threadAccount != "" {
			acct, err := resolveAccount(cmd.Context(), threadAccount)
			if err != nil {
				return err
			}
			accountID = acct.ID
		}

		groups, err := svc.Conversations.Conversations(cmd.Context(), accountID, threadLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LAST MESSAGE\tMESSAGES\tSUBJECT\tLAST ACTIVITY")
		for _, g := range groups {
			last := g[len(g)-1]
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				last.MessageID, len(g), truncate(g[0].Subject, 50), last.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func arrow(d model.Direction) string {
	if d == model.DirectionOutbound {
		return ">>"
	}
	return "<<"
}

func init() {
	threadListCmd.Flags().StringVar(&threadAccount, "account", "", "only this account (email or id)")
	threadListCmd.Flags().IntVar(&threadLimit, "limit", 20, "maximum conversations")

	threadCmd.AddCommand(threadShowCmd, threadListCmd)
	rootCmd.AddCommand(threadCmd)
}

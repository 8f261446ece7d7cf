package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	contactAccount string
	contactLimit   int
)

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Inspect the contact ledger",
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts by relationship score",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID := ""
		if contactAccount != "" {
			acct, err := resolveAccount(cmd.Context(), contactAccount)
			if err != nil {
				return err
			}
			accountID = acct.ID
		}

		contacts, err := svc.Contacts.List(cmd.Context(), accountID, contactLimit)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			fmt.Println("No contacts yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tSCORE\tMAILS\tTONE\tLAST CONTACT")
		for _, c := range contacts {
			last := "-"
			if c.LastContactAt != nil {
				last = c.LastContactAt.Local().Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				c.Email, c.Name, c.RelationshipScore, c.MailCount, c.DefaultTone, last)
		}
		return w.Flush()
	},
}

func init() {
	contactListCmd.Flags().StringVar(&contactAccount, "account", "", "only contacts of this account (email or id)")
	contactListCmd.Flags().IntVar(&contactLimit, "limit", 50, "maximum contacts")

	contactCmd.AddCommand(contactListCmd)
	rootCmd.AddCommand(contactCmd)
}

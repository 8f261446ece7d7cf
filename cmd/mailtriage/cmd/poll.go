package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	appsync "github.com/nhle/mail-triage/internal/sync"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one inbox and one sent-folder cycle, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		inbox, sent, err := svc.PollOnce(cmd.Context())
		if err != nil {
			return err
		}
		printCycle("inbox", inbox)
		printCycle("sent", sent)
		return nil
	},
}

func printCycle(name string, r appsync.CycleResult) {
	fmt.Printf("%s: %d stored from %d account(s)\n", name, r.Stored, r.Accounts)

	failed := make([]string, 0, len(r.Failed))
	for addr := range r.Failed {
		failed = append(failed, addr)
	}
	sort.Strings(failed)
	for _, addr := range failed {
		fmt.Printf("  %s: %v\n", addr, r.Failed[addr])
	}
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

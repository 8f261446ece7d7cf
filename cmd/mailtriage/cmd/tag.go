package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	tagDescription string
	tagColor       string
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage the tag catalog offered to the enrichment stage",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a tag",
	Long: `Add a tag to the catalog. The slug is derived from the name
("Legal & Compliance" becomes "legal-compliance"). The description is shown
to the model, so describe when the tag applies.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := svc.Tags.Add(cmd.Context(), args[0], tagDescription, tagColor)
		if err != nil {
			return err
		}
		fmt.Printf("Tag %s added\n", t.Slug)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := svc.Tags.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("No tags defined.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tNAME\tCOLOR\tDESCRIPTION")
		for _, t := range tags {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Slug, t.Name, dash(t.Color), dash(t.Description))
		}
		return w.Flush()
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Tags.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Tag %s deleted\n", args[0])
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	tagAddCmd.Flags().StringVar(&tagDescription, "description", "", "when the tag applies")
	tagAddCmd.Flags().StringVar(&tagColor, "color", "", "display color, e.g. #ff8800")

	tagCmd.AddCommand(tagAddCmd, tagListCmd, tagDeleteCmd)
	rootCmd.AddCommand(tagCmd)
}

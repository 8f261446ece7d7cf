package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/mail-triage/internal/app"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
)

var (
	accountInput    app.AccountInput
	accountNoVerify bool
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage polled mailboxes",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a mailbox or update an existing one",
	Long: `Add a mailbox. On a terminal an interactive form asks for the provider
(unless --provider is given), any missing custom hosts, and the password.
Otherwise the password is read from the first line of stdin. The password is
stored encrypted with the master key.

Examples:
  mailtriage account add me@gmail.com --provider gmail
  mailtriage account add ops@corp.example --imap-host mail.corp.example --smtp-host mail.corp.example --smtp-port 587`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationEnsureKey: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		in := accountInput
		in.Email = args[0]

		if term.IsTerminal(int(os.Stdin.Fd())) {
			form := accountForm(&in, !cmd.Flags().Changed("provider"))
			if err := form.RunWithContext(cmd.Context()); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return fmt.Errorf("account add aborted")
				}
				return fmt.Errorf("account form: %w", err)
			}
		} else {
			password, err := readPasswordLine(os.Stdin)
			if err != nil {
				return err
			}
			in.Password = password
		}

		acct, err := svc.AddAccount(cmd.Context(), in)
		if err != nil {
			return err
		}

		if !accountNoVerify {
			fmt.Printf("Testing connection to %s:%s...\n", acct.IMAPHost, acct.IMAPPort)
			if err := svc.VerifyAccount(cmd.Context(), acct); err != nil {
				return fmt.Errorf("account saved but connection test failed: %w", err)
			}
		}
		fmt.Printf("Account %s saved (%s)\n", acct.Email, acct.ID)
		return nil
	},
}

// accountForm asks for whatever the flags left open. The host group only
// shows for the custom provider.
func accountForm(in *app.AccountInput, askProvider bool) *huh.Form {
	var groups []*huh.Group
	if askProvider {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("Gmail and Outlook fill in their IMAP and SMTP hosts").
				Options(
					huh.NewOption("Gmail", string(model.ProviderGmail)),
					huh.NewOption("Outlook", string(model.ProviderOutlook)),
					huh.NewOption("Other (custom hosts)", string(model.ProviderCustom)),
				).
				Value(&in.Provider),
		))
	}

	groups = append(groups,
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&in.IMAPHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&in.IMAPPort).
				Validate(validateOptionalPort),
			huh.NewInput().
				Title("SMTP Host").
				Placeholder("smtp.example.com").
				Value(&in.SMTPHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("465").
				Value(&in.SMTPPort).
				Validate(validateOptionalPort),
		).WithHideFunc(func() bool {
			return model.Provider(strings.ToLower(in.Provider)) != model.ProviderCustom ||
				(in.IMAPHost != "" && in.SMTPHost != "")
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				Description("Password or app password for "+in.Email).
				EchoMode(huh.EchoModePassword).
				Value(&in.Password).
				Validate(validateRequired("Password")),
		),
	)
	return huh.NewForm(groups...)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// validateOptionalPort accepts an empty value, which selects the default.
func validateOptionalPort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// readPasswordLine reads the password from the first line of r.
func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mailboxes",
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := svc.Store.GetAccounts(cmd.Context(), false)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts found. Use 'mailtriage account add <email>' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tPROVIDER\tIMAP\tSMTP\tACTIVE")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s:%s\t%s:%s\t%t\n",
				a.ID, a.Email, a.Provider, a.IMAPHost, a.IMAPPort, a.SMTPHost, a.SMTPPort, a.Active)
		}
		w.Flush()
		fmt.Printf("\n%d account(s)\n", len(accounts))
		return nil
	},
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable <email|id>",
	Short: "Stop polling a mailbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(cmd.Context(), args[0], false)
	},
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable <email|id>",
	Short: "Resume polling a mailbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(cmd.Context(), args[0], true)
	},
}

func setAccountActive(ctx context.Context, ref string, active bool) error {
	acct, err := resolveAccount(ctx, ref)
	if err != nil {
		return err
	}
	if err := svc.Store.SetAccountActive(ctx, acct.ID, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Printf("Account %s %s\n", acct.Email, state)
	return nil
}

// resolveAccount looks ref up as an address first, then as an ID.
func resolveAccount(ctx context.Context, ref string) (*model.Account, error) {
	acct, err := svc.Store.GetAccountByEmail(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		acct, err = svc.Store.GetAccount(ctx, ref)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no account %q", ref)
	}
	return acct, err
}

func init() {
	f := accountAddCmd.Flags()
	f.StringVar(&accountInput.Provider, "provider", "custom", "gmail, outlook or custom")
	f.StringVar(&accountInput.IMAPHost, "imap-host", "", "IMAP host (custom provider)")
	f.StringVar(&accountInput.IMAPPort, "imap-port", "", "IMAP port (default 993)")
	f.StringVar(&accountInput.SMTPHost, "smtp-host", "", "SMTP host (custom provider)")
	f.StringVar(&accountInput.SMTPPort, "smtp-port", "", "SMTP port (default 465)")
	f.StringVar(&accountInput.Signature, "signature", "", "signature appended to every reply")
	f.BoolVar(&accountNoVerify, "no-verify", false, "skip the IMAP login test")

	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountDisableCmd, accountEnableCmd)
	rootCmd.AddCommand(accountCmd)
}

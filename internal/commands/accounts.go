package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/boddenberg/wise-recon-go/internal/domain"

	"github.com/spf13/cobra"
)

func newAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Discover and manage reconciled Wise balances",
	}

	cmd.AddCommand(
		newAccountsDiscoverCommand(),
		newAccountsListCommand(),
		newAccountsActivateCommand(),
	)
	return cmd
}

func newAccountsDiscoverCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the bank accounts of the Wise business profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{ledger: save, strictWise: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.discovery.DiscoverAccounts(cmd.Context(), save)
			if err != nil {
				return err
			}
			return printDiscovery(cmd.OutOrStdout(), result, save)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store new accounts (inactive) in the ledger")
	return cmd
}

func newAccountsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the bank accounts stored in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{ledger: true})
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.discovery.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}

func newAccountsActivateCommand() *cobra.Command {
	var deactivate bool

	cmd := &cobra.Command{
		Use:   "activate <account-id>",
		Short: "Enable reconciliation for a stored bank account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{ledger: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.discovery.SetAccountActive(cmd.Context(), args[0], !deactivate); err != nil {
				return err
			}

			state := "active"
			if deactivate {
				state = "inactive"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s is now %s\n", args[0], state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&deactivate, "deactivate", false, "disable reconciliation instead")
	return cmd
}

func printDiscovery(w io.Writer, result *domain.DiscoveryResult, saved bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Accounts); err != nil {
		return err
	}
	if saved {
		fmt.Fprintf(w, "profile %d: %d discovered, %d new\n", result.ProfileID, len(result.Accounts), result.Saved)
	} else {
		fmt.Fprintf(w, "profile %d: %d discovered (not saved, use --save)\n", result.ProfileID, len(result.Accounts))
	}
	return nil
}

func printAccounts(w io.Writer, accounts []domain.BankAccount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tCURRENCY\tACTIVE\tROUTING")
	for _, acct := range accounts {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%s\n",
			acct.ID, acct.BorderlessAccountID, acct.Currency, acct.Active, routing(acct))
	}
	return tw.Flush()
}

// routing summarizes how the account is paid into.
func routing(acct domain.BankAccount) string {
	switch {
	case acct.SortCode != nil && acct.AccountNumber != nil:
		return *acct.SortCode + " " + *acct.AccountNumber
	case acct.IBAN != nil:
		return *acct.IBAN
	default:
		return "-"
	}
}

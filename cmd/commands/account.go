package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/basic-kali-box/Blockchain-Project/pkg/account"
)

// AccountCmd returns the account command
func AccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage participant accounts",
		Long: `Manage the signing keys of participants. Keys are stored encrypted in the
keystore directory; set SUPPLYCHAIN_PASSWORD to choose the passphrase.`,
	}

	cmd.AddCommand(accountCreateCmd())
	cmd.AddCommand(accountListCmd())
	cmd.AddCommand(accountImportCmd())
	cmd.AddCommand(accountExportCmd())
	cmd.AddCommand(accountDefaultCmd())
	cmd.AddCommand(accountSignCmd())
	return cmd
}

func openWallet() (*account.Wallet, error) {
	wallet, err := account.NewWallet(walletPath(), walletPassword())
	if err != nil {
		return nil, fmt.Errorf("opening wallet: %w", err)
	}
	return wallet, nil
}

// accountCreateCmd builds the account create command
func accountCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet()
			if err != nil {
				return err
			}

			acc, err := wallet.CreateAccount(args[0])
			if err != nil {
				return fmt.Errorf("creating account: %w", err)
			}

			printAccount(cmd.OutOrStdout(), "Created new account", acc, wallet.DefaultAccount == acc.Name)
			return nil
		},
	}
}

// accountListCmd builds the account list command
func accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			wallet, err := openWallet()
			if err != nil {
				return err
			}

			names := wallet.ListAccounts()
			if len(names) == 0 {
				fmt.Fprintln(out, "No accounts found.")
				return nil
			}

			fmt.Fprintf(out, "Found %d account(s):\n", len(names))
			for i, name := range names {
				acc, err := wallet.GetAccount(name)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("%d. %s %s", i+1, bold(name), acc.Address)
				if name == wallet.DefaultAccount {
					line += success(" (default)")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

// accountImportCmd builds the account import command
func accountImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <private-key>",
		Short: "Import an account from a private key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet()
			if err != nil {
				return err
			}

			acc, err := wallet.ImportAccount(args[0], args[1])
			if err != nil {
				return fmt.Errorf("importing account: %w", err)
			}

			printAccount(cmd.OutOrStdout(), "Imported account", acc, wallet.DefaultAccount == acc.Name)
			return nil
		},
	}
}

// accountExportCmd builds the account export command
func accountExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name>",
		Short: "Export an account's private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet()
			if err != nil {
				return err
			}

			acc, err := wallet.GetAccount(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Private key: %s\n", acc.ExportPrivateKeyHex())
			fmt.Fprintln(cmd.OutOrStdout(), warning("WARNING: Never disclose your private key. Anyone holding it can sign as this participant."))
			return nil
		},
	}
}

// accountDefaultCmd builds the account default command
func accountDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := openWallet()
			if err != nil {
				return err
			}

			if err := wallet.SetDefaultAccount(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s as the default account.\n", bold(args[0]))
			return nil
		},
	}
}

// accountSignCmd builds the account sign command
func accountSignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign <name> [payload.json]",
		Short: "Sign a transaction payload",
		Long: `Sign the canonical encoding of a JSON transaction payload read from a file
or stdin. The printed signature goes in the "signature" field of
POST /transactions/new.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 2 {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("payload is not valid JSON")
			}

			wallet, err := openWallet()
			if err != nil {
				return err
			}

			signature, err := wallet.SignPayload(args[0], data)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), signature)
			return nil
		},
	}
}

func printAccount(out io.Writer, title string, acc *account.Account, isDefault bool) {
	fmt.Fprintf(out, "%s: %s\n", success(title), bold(acc.Name))
	fmt.Fprintf(out, "  Address:    %s\n", acc.Address)
	fmt.Fprintf(out, "  Public key: %s\n", acc.PublicKeyHex())
	if isDefault {
		fmt.Fprintln(out, "This account is set as the default account.")
	}
}

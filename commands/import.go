package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finlab/reconcile-engine/api"
	"github.com/finlab/reconcile-engine/banks"
	"github.com/finlab/reconcile-engine/config"
	"github.com/finlab/reconcile-engine/logger"
	"github.com/finlab/reconcile-engine/ofx"
	"github.com/finlab/reconcile-engine/recon"
)

func newImportCommand() *cobra.Command {
	var accountID string
	var dbPath string
	var userID string

	cmd := &cobra.Command{
		Use:   "import <statement.ofx>",
		Short: "Import an OFX statement into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			if userID == "" {
				userID = cfg.Auth.DefaultUser
			}
			return runImport(cfg, args[0], accountID, userID)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id to import into (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().StringVar(&userID, "user", "", "acting user id (defaults to the configured user)")

	return cmd
}

func runImport(cfg config.Config, path, accountID, userID string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading statement: %w", err)
	}

	statement := ofx.Parse(string(content))
	if len(statement.Entries) == 0 {
		return fmt.Errorf("%s: %w", path, ofx.ErrNoEntries)
	}

	st, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := recon.NewService(st, logger.New())

	ctx := context.Background()
	if account, err := st.GetAccount(ctx, accountID); err == nil {
		bankName := banks.NameFromCode(statement.BankID)
		if bankName != "" && account.Bank != "" && !banks.NamesMatch(bankName, account.Bank) {
			fmt.Fprintf(os.Stderr, "warning: statement is from %s but account %q is at %s\n",
				bankName, account.Name, account.Bank)
		}
	}

	result, err := svc.ImportStatement(ctx, accountID, userID, api.ToImportEntries(statement.Entries))
	if err != nil {
		return err
	}

	fmt.Printf("imported %d entries, skipped %d already stored\n", result.Inserted, result.Skipped)
	if result.DuplicateSuspects > 0 {
		fmt.Printf("note: %d pair(s) of near-identical entries were imported; review them\n", result.DuplicateSuspects)
	}
	return nil
}

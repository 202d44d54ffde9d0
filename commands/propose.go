package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finlab/reconcile-engine/config"
	"github.com/finlab/reconcile-engine/logger"
	"github.com/finlab/reconcile-engine/recon"
)

func newProposeCommand() *cobra.Command {
	var accountID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Print match proposals for an account's pending lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			return runPropose(cfg, accountID)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	return cmd
}

func runPropose(cfg config.Config, accountID string) error {
	st, err := openStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := recon.NewService(st, logger.Nop())
	ctx := context.Background()

	lines, err := st.ListStatementLines(ctx, recon.LineFilters{
		AccountID: accountID,
		Status:    recon.LinePending,
	})
	if err != nil {
		return err
	}
	proposals, err := svc.ProposeMatches(ctx, accountID)
	if err != nil {
		return err
	}

	if len(lines) == 0 {
		fmt.Println("no pending statement lines")
		return nil
	}

	// Walk the lines, not the map, to keep the listing in store order.
	for _, line := range lines {
		p := proposals[line.ID]
		label := fmt.Sprintf("%s  %s %s  %q",
			line.Date.Format("2006-01-02"), line.Direction, line.Amount.StringFixed(2), line.Description)
		if p.Action == recon.ActionLinked && p.TransactionID != nil {
			fmt.Printf("%s -> transaction %s (score %d)\n", label, *p.TransactionID, p.Score)
		} else {
			fmt.Printf("%s -> no match\n", label)
		}
	}
	return nil
}

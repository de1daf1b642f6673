package main

import (
	"context"
	"flag"
	"fmt"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	emailFlag := flag.String("email", "", "Account email (required)")
	historyFlag := flag.Int("history", 10, "Number of recent ledger entries to show")
	reconcileFlag := flag.Bool("reconcile", false, "Verify materialized balances against the ledger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *emailFlag == "" {
		zap.L().Fatal("Flag --email is required")
	}

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	account, err := dbService.GetAccountByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to find account", zap.String("email", *emailFlag), zap.Error(err))
	}

	balances, err := dbService.GetAllBalances(ctx, account.Id)
	if err != nil {
		zap.L().Fatal("Failed to get balances", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("Balances for %s (%s)", account.Email, account.Segment), common.DefaultWidth)
	if len(balances) == 0 {
		fmt.Println("  No balances yet")
	}
	for i, b := range balances {
		fmt.Printf("  %s%-6s %s\n", common.BoxPrefix(i == len(balances)-1), b.Kind, common.FormatBRL(b.Balance))
	}

	if *reconcileFlag {
		for _, b := range balances {
			if err := dbService.ReconcileBalance(ctx, account.Id, b.Kind); err != nil {
				zap.L().Error("Reconciliation mismatch",
					zap.String("kind", b.Kind),
					zap.Error(err))
			} else {
				fmt.Printf("  %s balance matches ledger replay\n", b.Kind)
			}
		}
	}

	if *historyFlag > 0 {
		entries, err := dbService.GetLedgerHistory(ctx, account.Id, *historyFlag, 0)
		if err != nil {
			zap.L().Fatal("Failed to get ledger history", zap.Error(err))
		}
		fmt.Printf("\n  Last %d ledger entries:\n", len(entries))
		for i, e := range entries {
			fmt.Printf("  %s%-12s %-6s %10s  -> %10s  %s\n",
				common.BoxPrefix(i == len(entries)-1),
				e.Kind, e.BalanceKind,
				e.Amount.StringFixed(2), e.BalanceAfter.StringFixed(2),
				e.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	common.PrintFooter("Done", common.DefaultWidth)
}

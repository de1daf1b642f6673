package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"
	"pix-case-ledger-go/internal/draw"
	"pix-case-ledger-go/internal/purchase"
	"pix-case-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	emailFlag := flag.String("email", "", "Account email (required)")
	caseFlag := flag.String("case", "", "Case id to open (required)")
	countFlag := flag.Int("count", 1, "Number of cases to open")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *emailFlag == "" || *caseFlag == "" {
		zap.L().Fatal("Flags --email and --case are required")
	}
	if *countFlag < 1 {
		zap.L().Fatal("Count must be at least 1", zap.Int("count", *countFlag))
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

	coordinator := purchase.NewCoordinator(dbService, draw.NewEngine(nil))

	common.PrintHeader(fmt.Sprintf("Opening %d x %s for %s", *countFlag, *caseFlag, account.Email), common.DefaultWidth)
	for i := 0; i < *countFlag; i++ {
		result, err := coordinator.Buy(ctx, account.Id, *caseFlag)
		if err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				fmt.Printf("  Stopped after %d openings: insufficient funds\n", i)
				break
			}
			zap.L().Fatal("Purchase failed", zap.Error(err))
		}
		fmt.Printf("  %s  won %-24s %s  (balance %s)\n",
			common.BoxPrefix(i == *countFlag-1),
			result.Prize.Name,
			common.FormatBRL(result.Prize.Value),
			common.FormatBRL(result.NewBalance))
	}
	common.PrintFooter("Done", common.DefaultWidth)
}

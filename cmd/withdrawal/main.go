package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"
	"pix-case-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	emailFlag := flag.String("email", "", "Account email (required)")
	amountFlag := flag.String("amount", "", "Withdrawal amount in BRL (required)")
	pixKeyFlag := flag.String("pixkey", "", "Destination PIX key (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *emailFlag == "" || *amountFlag == "" || *pixKeyFlag == "" {
		zap.L().Fatal("Flags --email, --amount and --pixkey are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		zap.L().Fatal("Invalid amount format", zap.String("amount", *amountFlag), zap.Error(err))
	}

	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	account, err := services.DbService.GetAccountByEmail(ctx, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to find account", zap.String("email", *emailFlag), zap.Error(err))
	}

	request, err := services.IntakeService.CreateWithdrawal(ctx, account.Id, amount, *pixKeyFlag)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			zap.L().Fatal("Insufficient funds for withdrawal",
				zap.String("amount", amount.String()))
		}
		zap.L().Fatal("Failed to create withdrawal", zap.Error(err))
	}

	common.PrintHeader("PIX withdrawal created", common.DefaultWidth)
	fmt.Printf("  Request:  %s\n", request.Id)
	fmt.Printf("  Amount:   %s\n", common.FormatBRL(request.Amount))
	fmt.Printf("  Status:   %s\n", request.Status)
	fmt.Printf("  PIX key:  %s\n", *pixKeyFlag)
	common.PrintFooter("Funds reserved; the transfer settles asynchronously", common.DefaultWidth)
}

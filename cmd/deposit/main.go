package main

import (
	"context"
	"flag"
	"fmt"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	emailFlag := flag.String("email", "", "Account email (required)")
	amountFlag := flag.String("amount", "", "Deposit amount in BRL (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *emailFlag == "" || *amountFlag == "" {
		zap.L().Fatal("Flags --email and --amount are required")
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

	intent, err := services.IntakeService.CreateDeposit(ctx, account.Id, amount)
	if err != nil {
		zap.L().Fatal("Failed to create deposit", zap.Error(err))
	}

	title := "PIX deposit created"
	if intent.Reused {
		title = "PIX deposit (existing open request)"
	}
	common.PrintHeader(title, common.DefaultWidth)
	fmt.Printf("  Request:   %s\n", intent.Request.Id)
	fmt.Printf("  Amount:    %s\n", common.FormatBRL(intent.Request.Amount))
	fmt.Printf("  Status:    %s\n", intent.Request.Status)
	fmt.Printf("  PIX code:  %s\n", intent.Request.PixCode)
	if intent.Request.PixQrImage != "" {
		fmt.Printf("  QR image:  %s\n", intent.Request.PixQrImage)
	}
	common.PrintFooter("Pay the PIX code to credit your balance", common.DefaultWidth)
}

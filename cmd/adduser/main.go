package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"
	"pix-case-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	nameFlag := flag.String("name", "", "Account holder name (required)")
	emailFlag := flag.String("email", "", "Account email (required)")
	segmentFlag := flag.String("segment", models.SegmentReal, "Account segment: real or bonus")
	referrerFlag := flag.String("referrer", "", "Optional email of the affiliate who referred this account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Flags --name and --email are required")
	}
	segment := strings.ToLower(*segmentFlag)
	if segment != models.SegmentReal && segment != models.SegmentBonus {
		zap.L().Fatal("Segment must be real or bonus", zap.String("segment", segment))
	}

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	account, err := dbService.CreateAccount(ctx, uuid.New().String(), *nameFlag, *emailFlag, segment)
	if err != nil {
		zap.L().Fatal("Failed to create account", zap.Error(err))
	}

	if *referrerFlag != "" {
		affiliate, err := dbService.GetAccountByEmail(ctx, *referrerFlag)
		if err != nil {
			zap.L().Fatal("Failed to find referrer account",
				zap.String("referrer", *referrerFlag),
				zap.Error(err))
		}
		if err := dbService.CreateReferralLink(ctx, account.Id, affiliate.Id); err != nil {
			zap.L().Fatal("Failed to create referral link", zap.Error(err))
		}
		zap.L().Info("Referral link created",
			zap.String("affiliate_account_id", affiliate.Id),
			zap.String("referred_account_id", account.Id))
	}

	common.PrintHeader("Account created", common.DefaultWidth)
	fmt.Printf("  Id:      %s\n", account.Id)
	fmt.Printf("  Name:    %s\n", account.Name)
	fmt.Printf("  Email:   %s\n", account.Email)
	fmt.Printf("  Segment: %s\n", account.Segment)
	common.PrintFooter("Done", common.DefaultWidth)
}

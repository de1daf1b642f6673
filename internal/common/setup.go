package common

import (
	"context"
	"log"
	"strings"

	"pix-case-ledger-go/internal/affiliate"
	"pix-case-ledger-go/internal/database"
	"pix-case-ledger-go/internal/draw"
	"pix-case-ledger-go/internal/intake"
	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/pix"
	"pix-case-ledger-go/internal/purchase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService       *database.Service
	PixService      *pix.Service
	IntakeService   *intake.Service
	AffiliateEngine *affiliate.Engine
	Coordinator     *purchase.Coordinator
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Connecting to PIX gateway", zap.String("base_url", cfg.Gateway.BaseURL))
	pixService, err := pix.NewService(cfg.Gateway)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	affiliateEngine := affiliate.NewEngine(dbService, cfg.Affiliate)
	intakeService := intake.NewService(dbService, pixService, affiliateEngine, cfg.Payments)
	coordinator := purchase.NewCoordinator(dbService, draw.NewEngine(nil))

	return &Services{
		DbService:       dbService,
		PixService:      pixService,
		IntakeService:   intakeService,
		AffiliateEngine: affiliateEngine,
		Coordinator:     coordinator,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without the
// PIX gateway. Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}

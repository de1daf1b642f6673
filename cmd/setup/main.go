package main

import (
	"context"
	"flag"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	catalogFlag := flag.String("catalog", "", "Path to cases.yaml (default: CATALOG_FILE from env)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	catalogFile := *catalogFlag
	if catalogFile == "" {
		catalogFile = cfg.Listener.CatalogFile
	}

	zap.L().Info("Syncing case catalog", zap.String("file", catalogFile))
	if err := common.SyncCatalog(ctx, dbService, catalogFile); err != nil {
		zap.L().Fatal("Failed to sync catalog", zap.Error(err))
	}

	zap.L().Info("Setup complete",
		zap.String("database", cfg.Database.Path),
		zap.String("catalog", catalogFile))
}

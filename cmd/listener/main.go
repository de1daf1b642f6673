package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pix-case-ledger-go/internal/common"
	"pix-case-ledger-go/internal/config"
	"pix-case-ledger-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting PIX payment listener")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	l := listener.NewPaymentListener(listener.PaymentListenerConfig{
		IntakeService:   services.IntakeService,
		DbService:       services.DbService,
		PendingGrace:    cfg.Listener.PendingGrace,
		PollingInterval: cfg.Listener.PollingInterval,
		CleanupInterval: cfg.Listener.CleanupInterval,
	})

	if err := l.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start payment listener", zap.Error(err))
	}

	zap.L().Info("Listener running. Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping listener...")
	cancel()
	l.Stop()
}

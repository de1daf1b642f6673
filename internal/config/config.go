package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pix-case-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := getEnvDuration("PIX_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	dedupeWindow, err := getEnvDuration("DEPOSIT_DEDUPE_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("LISTENER_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pendingGrace, err := getEnvDuration("LISTENER_PENDING_GRACE", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("LISTENER_CLEANUP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	minDeposit, err := getEnvDecimal("MIN_DEPOSIT", "5")
	if err != nil {
		return nil, err
	}

	maxDeposit, err := getEnvDecimal("MAX_DEPOSIT", "10000")
	if err != nil {
		return nil, err
	}

	minWithdrawal, err := getEnvDecimal("MIN_WITHDRAWAL", "20")
	if err != nil {
		return nil, err
	}

	commission, err := getEnvDecimal("AFFILIATE_COMMISSION", "10")
	if err != nil {
		return nil, err
	}

	minQualifying, err := getEnvDecimal("AFFILIATE_MIN_QUALIFYING_DEPOSIT", "20")
	if err != nil {
		return nil, err
	}

	if maxDeposit.LessThan(minDeposit) {
		return nil, fmt.Errorf("MAX_DEPOSIT (%s) is below MIN_DEPOSIT (%s)", maxDeposit, minDeposit)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "cases.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			SeedDemoData:    getEnvBool("SEED_DEMO_DATA", false),
		},
		Gateway: models.GatewayConfig{
			BaseURL:        getEnvString("PIX_BASE_URL", "https://api.pix-gateway.example"),
			APIKey:         os.Getenv("PIX_API_KEY"),
			WebhookSecret:  os.Getenv("PIX_WEBHOOK_SECRET"),
			RequestTimeout: gatewayTimeout,
		},
		Payments: models.PaymentsConfig{
			MinDeposit:    minDeposit,
			MaxDeposit:    maxDeposit,
			MinWithdrawal: minWithdrawal,
			DedupeWindow:  dedupeWindow,
		},
		Affiliate: models.AffiliateConfig{
			CommissionAmount:     commission,
			MinQualifyingDeposit: minQualifying,
		},
		Listener: models.ListenerConfig{
			PollingInterval: pollingInterval,
			PendingGrace:    pendingGrace,
			CleanupInterval: cleanupInterval,
			CatalogFile:     getEnvString("CATALOG_FILE", "cases.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
	}
	return amount, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

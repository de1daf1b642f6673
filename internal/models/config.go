package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Payments  PaymentsConfig
	Affiliate AffiliateConfig
	Listener  ListenerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedDemoData    bool
}

// GatewayConfig holds PIX gateway connection settings
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	WebhookSecret  string
	RequestTimeout time.Duration
}

// PaymentsConfig holds deposit/withdrawal policy settings
type PaymentsConfig struct {
	MinDeposit    decimal.Decimal
	MaxDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	DedupeWindow  time.Duration
}

// AffiliateConfig holds commission policy settings
type AffiliateConfig struct {
	CommissionAmount     decimal.Decimal
	MinQualifyingDeposit decimal.Decimal
}

// ListenerConfig holds payment reconciler settings
type ListenerConfig struct {
	PollingInterval time.Duration
	PendingGrace    time.Duration
	CleanupInterval time.Duration
	CatalogFile     string
}

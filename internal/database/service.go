package database

import (
	"context"
	"database/sql"
	"fmt"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate makes every write transaction take the write lock at
	// BEGIN, which is what serializes concurrent balance mutations; the
	// busy timeout makes contending writers wait instead of failing.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if cfg.SeedDemoData {
		if err := service.seedDemoData(ctx); err != nil {
			zap.L().Error("Failed to seed demo data", zap.Error(err))
		}
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Accounts
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		segment TEXT NOT NULL DEFAULT 'real' CHECK (segment IN ('real', 'bonus')),
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

	-- Account Balances (current state - hot data)
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		kind TEXT NOT NULL CHECK (kind IN ('real', 'bonus')),
		balance TEXT NOT NULL DEFAULT '0',
		last_entry_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, kind)
	);

	-- Ledger Entries (append-only audit trail - cold data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		balance_kind TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('stake', 'payout', 'deposit', 'withdrawal', 'commission')),
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id, balance_kind);
	CREATE INDEX IF NOT EXISTS idx_ledger_created_at ON ledger_entries(created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_reference ON ledger_entries(reference_id);

	-- Case catalog
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS prizes (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(id),
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		probability REAL NOT NULL,
		bonus_probability REAL,
		drawable BOOLEAN NOT NULL DEFAULT 1,
		active BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_prizes_case ON prizes(case_id, active);

	-- Purchases (one case opening, immutable)
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		case_id TEXT NOT NULL REFERENCES cases(id),
		prize_id TEXT NOT NULL REFERENCES prizes(id),
		stake_amount TEXT NOT NULL,
		payout_amount TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_account ON purchases(account_id, created_at);

	-- Payment requests (PIX deposits and withdrawals)
	CREATE TABLE IF NOT EXISTS payment_requests (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		direction TEXT NOT NULL CHECK (direction IN ('deposit', 'withdrawal')),
		amount TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'error')),
		provider_reference TEXT NOT NULL DEFAULT '',
		pix_code TEXT NOT NULL DEFAULT '',
		pix_qr_image TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_payment_requests_key ON payment_requests(idempotency_key, status);
	CREATE INDEX IF NOT EXISTS idx_payment_requests_provider ON payment_requests(provider_reference);
	CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests(status, created_at);

	-- Referral links (one per referred account)
	CREATE TABLE IF NOT EXISTS referral_links (
		referred_account_id TEXT PRIMARY KEY REFERENCES accounts(id),
		affiliate_account_id TEXT NOT NULL REFERENCES accounts(id),
		first_qualifying_deposit_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seedDemoData inserts a couple of accounts for local development.
func (s *Service) seedDemoData(ctx context.Context) error {
	accounts := []struct {
		name    string
		email   string
		segment string
	}{
		{"Alice Johnson", "alice.johnson@example.com", models.SegmentReal},
		{"Bob Smith", "bob.smith@example.com", models.SegmentReal},
		{"Carol Williams", "carol.williams@example.com", models.SegmentBonus},
	}

	for _, a := range accounts {
		if existing, err := s.GetAccountByEmail(ctx, a.email); err == nil && existing != nil {
			continue
		}
		created, err := s.CreateAccount(ctx, uuid.New().String(), a.name, a.email, a.segment)
		if err != nil {
			zap.L().Error("Failed to insert demo account", zap.String("name", a.name), zap.Error(err))
			continue
		}
		zap.L().Info("Demo account created", zap.String("id", created.Id), zap.String("name", created.Name))
	}
	return nil
}

// begin opens a write transaction. With _txlock=immediate this acquires the
// database write lock up front, so the balance reads below are stable until
// commit.
func (s *Service) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func scanDecimal(raw string, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", field, raw, err)
	}
	return value, nil
}

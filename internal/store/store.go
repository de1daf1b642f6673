package store

import (
	"context"
	"errors"
	"time"

	"pix-case-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrNoDrawablePrizes       = errors.New("case has no drawable prizes")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrAccountNotFound        = errors.New("account not found")
	ErrCaseNotFound           = errors.New("case not found")
	ErrRequestNotFound        = errors.New("payment request not found")
	ErrTerminalState          = errors.New("payment request already in terminal state")
	ErrAmountOutOfRange       = errors.New("amount out of allowed range")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
)

// ExecutePurchaseParams carries one atomic case opening. Draw is invoked
// inside the storage transaction, after the stake has been debited; any error
// it returns rolls the whole purchase back.
type ExecutePurchaseParams struct {
	AccountId   string
	CaseId      string
	Price       decimal.Decimal
	BalanceKind string
	Draw        func() (*models.Prize, error)
}

// CreatePaymentParams carries a new deposit or withdrawal request.
// For withdrawals the spendable balance is debited in the same transaction
// that creates the row, so funds are reserved before the gateway is called.
type CreatePaymentParams struct {
	AccountId      string
	Direction      string
	Amount         decimal.Decimal
	IdempotencyKey string
	DedupeWindow   time.Duration
}

// Store defines the contract the ledger backend must satisfy. Components take
// this interface, never a concrete backend, so tests can swap storage.
type Store interface {
	// --- Accounts ---
	CreateAccount(ctx context.Context, accountId, name, email, segment string) (*models.Account, error)
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// --- Balances & ledger ---
	GetBalance(ctx context.Context, accountId, kind string) (decimal.Decimal, error)
	GetAllBalances(ctx context.Context, accountId string) ([]models.AccountBalance, error)
	GetLedgerHistory(ctx context.Context, accountId string, limit, offset int) ([]models.LedgerEntry, error)
	ReconcileBalance(ctx context.Context, accountId, kind string) error

	// --- Catalog ---
	UpsertCase(ctx context.Context, c models.Case, prizes []models.Prize) error
	GetCase(ctx context.Context, caseId string) (*models.Case, error)
	GetCasePrizes(ctx context.Context, caseId string) ([]models.Prize, error)

	// --- Purchases ---
	ExecutePurchase(ctx context.Context, params ExecutePurchaseParams) (*models.Purchase, decimal.Decimal, error)
	GetPurchases(ctx context.Context, accountId string, limit, offset int) ([]models.Purchase, error)

	// --- Payment requests ---
	CreatePaymentRequest(ctx context.Context, params CreatePaymentParams) (*models.PaymentRequest, bool, error)
	AttachProviderReference(ctx context.Context, requestId, providerRef, pixCode, pixQrImage string) error
	MarkPaymentError(ctx context.Context, requestId string) error
	GetPaymentByProviderReference(ctx context.Context, providerRef string) (*models.PaymentRequest, error)
	SettlePayment(ctx context.Context, providerRef, status string) (*models.PaymentRequest, bool, error)
	ListPendingPayments(ctx context.Context, olderThan time.Duration) ([]models.PaymentRequest, error)

	// --- Referrals ---
	CreateReferralLink(ctx context.Context, referredAccountId, affiliateAccountId string) error
	GetReferralLink(ctx context.Context, referredAccountId string) (*models.ReferralLink, error)
	CreditCommission(ctx context.Context, referredAccountId string, commission decimal.Decimal) (bool, error)

	// --- Lifecycle ---
	Close()
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance kinds. Every account carries both: the real balance is funded by
// PIX deposits and is withdrawable; the bonus balance is promotional credit
// and never leaves the platform.
const (
	BalanceReal  = "real"
	BalanceBonus = "bonus"
)

// Account segments. A bonus-segment account stakes and wins on its bonus
// balance and may use a different prize probability table.
const (
	SegmentReal  = "real"
	SegmentBonus = "bonus"
)

// Ledger entry kinds.
const (
	EntryStake      = "stake"
	EntryPayout     = "payout"
	EntryDeposit    = "deposit"
	EntryWithdrawal = "withdrawal"
	EntryCommission = "commission"
)

// Payment request directions.
const (
	DirectionDeposit    = "deposit"
	DirectionWithdrawal = "withdrawal"
)

// Payment request statuses. Approved, rejected and error are terminal.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
	PaymentError    = "error"
)

// IsTerminalPaymentStatus reports whether a payment request status can no
// longer transition.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentApproved || status == PaymentRejected || status == PaymentError
}

// Account represents a platform user
type Account struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Segment   string    `db:"segment"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SpendableBalance returns the balance kind this account stakes from.
func (a *Account) SpendableBalance() string {
	if a.Segment == SegmentBonus {
		return BalanceBonus
	}
	return BalanceReal
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id          string          `db:"id"`
	AccountId   string          `db:"account_id"`
	Kind        string          `db:"kind"`
	Balance     decimal.Decimal `db:"balance"`
	LastEntryId string          `db:"last_entry_id"`
	Version     int64           `db:"version"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// LedgerEntry represents one immutable balance mutation (cold data).
// Entries are never updated or deleted; the account balance is a cache
// recomputable by replaying them in order.
type LedgerEntry struct {
	Id            string          `db:"id"`
	AccountId     string          `db:"account_id"`
	BalanceKind   string          `db:"balance_kind"`
	Kind          string          `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	ReferenceId   string          `db:"reference_id"`
	CreatedAt     time.Time       `db:"created_at"`
}

// Case is a purchasable prize bundle
type Case struct {
	Id        string          `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Active    bool            `db:"active"`
	CreatedAt time.Time       `db:"created_at"`
}

// Prize is one possible outcome of opening a case. Illustrative prizes
// (Drawable == false) are display-only and are never awarded. A nil
// BonusProbability means the bonus segment uses Probability unchanged.
type Prize struct {
	Id               string          `db:"id"`
	CaseId           string          `db:"case_id"`
	Name             string          `db:"name"`
	Value            decimal.Decimal `db:"value"`
	Probability      float64         `db:"probability"`
	BonusProbability *float64        `db:"bonus_probability"`
	Drawable         bool            `db:"drawable"`
	Active           bool            `db:"active"`
}

// Purchase is one case-opening event, created atomically with its stake and
// payout ledger entries.
type Purchase struct {
	Id           string          `db:"id"`
	AccountId    string          `db:"account_id"`
	CaseId       string          `db:"case_id"`
	PrizeId      string          `db:"prize_id"`
	StakeAmount  decimal.Decimal `db:"stake_amount"`
	PayoutAmount decimal.Decimal `db:"payout_amount"`
	CreatedAt    time.Time       `db:"created_at"`
}

// PaymentRequest tracks one PIX deposit or withdrawal through its state
// machine: pending -> approved | rejected | error.
type PaymentRequest struct {
	Id                string          `db:"id"`
	AccountId         string          `db:"account_id"`
	Direction         string          `db:"direction"`
	Amount            decimal.Decimal `db:"amount"`
	IdempotencyKey    string          `db:"idempotency_key"`
	Status            string          `db:"status"`
	ProviderReference string          `db:"provider_reference"`
	PixCode           string          `db:"pix_code"`
	PixQrImage        string          `db:"pix_qr_image"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// IsTerminal reports whether the request has reached a final status.
func (p *PaymentRequest) IsTerminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

// ReferralLink ties a referred account to the affiliate that recruited it.
// FirstQualifyingDepositAt is set exactly once, which is what makes the
// commission credit single-shot.
type ReferralLink struct {
	ReferredAccountId        string     `db:"referred_account_id"`
	AffiliateAccountId       string     `db:"affiliate_account_id"`
	FirstQualifyingDepositAt *time.Time `db:"first_qualifying_deposit_at"`
	CreatedAt                time.Time  `db:"created_at"`
}

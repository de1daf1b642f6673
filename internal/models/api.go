package models

import (
	"github.com/shopspring/decimal"
)

// PurchaseResult represents the outcome of opening a case
type PurchaseResult struct {
	Purchase   *Purchase       `json:"purchase"`
	Prize      *Prize          `json:"prize"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// DepositIntent represents the result of creating a deposit request. Reused
// is true when an open request within the dedupe window was returned instead
// of a new one.
type DepositIntent struct {
	Request *PaymentRequest `json:"request"`
	Reused  bool            `json:"reused"`
}

// WebhookResult represents the outcome of consuming one gateway webhook.
// Duplicate deliveries are acknowledged with Applied == false.
type WebhookResult struct {
	RequestId  string          `json:"request_id"`
	Status     string          `json:"status"`
	Applied    bool            `json:"applied"`
	Duplicate  bool            `json:"duplicate"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
}

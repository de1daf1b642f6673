package intake

import (
	"context"
	"fmt"
	"time"

	"pix-case-ledger-go/internal/affiliate"
	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway is the PIX provider surface the intake service needs. The pix
// package implements it against the real provider; tests substitute a fake.
type Gateway interface {
	CreateCharge(ctx context.Context, amount decimal.Decimal, referenceId string) (*models.PixCharge, error)
	CreatePayout(ctx context.Context, amount decimal.Decimal, pixKey, referenceId string) (*models.PixPayout, error)
	GetPaymentStatus(ctx context.Context, providerReference string) (*models.PixPaymentStatus, error)
	VerifySignature(providerReference, status, signature string) bool
}

// Service handles money moving in and out over PIX. Deposit creation is
// idempotent inside a dedupe window, webhook consumption is exactly-once, and
// withdrawals reserve funds up front so a gateway failure can always be
// compensated.
type Service struct {
	store     store.Store
	gateway   Gateway
	affiliate *affiliate.Engine
	cfg       models.PaymentsConfig
}

func NewService(st store.Store, gateway Gateway, affiliateEngine *affiliate.Engine, cfg models.PaymentsConfig) *Service {
	return &Service{
		store:     st,
		gateway:   gateway,
		affiliate: affiliateEngine,
		cfg:       cfg,
	}
}

// CreateDeposit creates a pending deposit request and a PIX charge for it.
// Requests for the same account and amount inside the dedupe window return
// the already-open request with its existing PIX code instead of creating a
// second charge.
func (s *Service) CreateDeposit(ctx context.Context, accountId string, amount decimal.Decimal) (*models.DepositIntent, error) {
	if amount.LessThan(s.cfg.MinDeposit) || amount.GreaterThan(s.cfg.MaxDeposit) {
		return nil, fmt.Errorf("%w: deposit %s outside [%s, %s]",
			store.ErrAmountOutOfRange, amount, s.cfg.MinDeposit, s.cfg.MaxDeposit)
	}
	if _, err := s.store.GetAccountById(ctx, accountId); err != nil {
		return nil, err
	}

	request, reused, err := s.store.CreatePaymentRequest(ctx, store.CreatePaymentParams{
		AccountId:      accountId,
		Direction:      models.DirectionDeposit,
		Amount:         amount,
		IdempotencyKey: depositKey(accountId, amount, s.cfg.DedupeWindow),
		DedupeWindow:   s.cfg.DedupeWindow,
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return &models.DepositIntent{Request: request, Reused: true}, nil
	}

	charge, err := s.gateway.CreateCharge(ctx, amount, request.Id)
	if err != nil {
		if markErr := s.store.MarkPaymentError(ctx, request.Id); markErr != nil {
			zap.L().Error("Failed to mark deposit as error after gateway failure",
				zap.String("request_id", request.Id),
				zap.Error(markErr))
		}
		return nil, fmt.Errorf("failed to create PIX charge: %w", err)
	}

	if err := s.store.AttachProviderReference(ctx, request.Id, charge.ProviderReference, charge.Code, charge.QrImage); err != nil {
		return nil, err
	}
	request.ProviderReference = charge.ProviderReference
	request.PixCode = charge.Code
	request.PixQrImage = charge.QrImage

	return &models.DepositIntent{Request: request, Reused: false}, nil
}

// CreateWithdrawal debits the account and creates a PIX payout for the
// amount. The debit happens when the request row is created, so an account
// cannot race two withdrawals past its balance. A failed payout call marks
// the request errored, which credits the funds back.
func (s *Service) CreateWithdrawal(ctx context.Context, accountId string, amount decimal.Decimal, pixKey string) (*models.PaymentRequest, error) {
	if amount.LessThan(s.cfg.MinWithdrawal) {
		return nil, fmt.Errorf("%w: withdrawal %s below minimum %s",
			store.ErrAmountOutOfRange, amount, s.cfg.MinWithdrawal)
	}
	if pixKey == "" {
		return nil, fmt.Errorf("pix key is required")
	}
	if _, err := s.store.GetAccountById(ctx, accountId); err != nil {
		return nil, err
	}

	request, reused, err := s.store.CreatePaymentRequest(ctx, store.CreatePaymentParams{
		AccountId:      accountId,
		Direction:      models.DirectionWithdrawal,
		Amount:         amount,
		IdempotencyKey: withdrawalKey(accountId, amount, s.cfg.DedupeWindow),
		DedupeWindow:   s.cfg.DedupeWindow,
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return request, nil
	}

	payout, err := s.gateway.CreatePayout(ctx, amount, pixKey, request.Id)
	if err != nil {
		// MarkPaymentError credits the reserved funds back.
		if markErr := s.store.MarkPaymentError(ctx, request.Id); markErr != nil {
			zap.L().Error("Failed to mark withdrawal as error after gateway failure",
				zap.String("request_id", request.Id),
				zap.Error(markErr))
		}
		return nil, fmt.Errorf("failed to create PIX payout: %w", err)
	}

	if err := s.store.AttachProviderReference(ctx, request.Id, payout.ProviderReference, "", ""); err != nil {
		return nil, err
	}
	request.ProviderReference = payout.ProviderReference

	return request, nil
}

// ConsumeWebhook applies one gateway delivery. The signature is checked
// first, non-terminal statuses are acknowledged without effect, and a
// delivery for an already-settled request reports Duplicate so redeliveries
// stay harmless. An approved deposit also triggers the affiliate commission
// check, whose failure is logged but never bounces the webhook.
func (s *Service) ConsumeWebhook(ctx context.Context, providerReference, gatewayStatus, signature string) (*models.WebhookResult, error) {
	if !s.gateway.VerifySignature(providerReference, gatewayStatus, signature) {
		return nil, fmt.Errorf("%w: provider reference %s", store.ErrInvalidSignature, providerReference)
	}

	status := mapGatewayStatus(gatewayStatus)
	if !models.IsTerminalPaymentStatus(status) {
		request, err := s.store.GetPaymentByProviderReference(ctx, providerReference)
		if err != nil {
			return nil, err
		}
		return &models.WebhookResult{RequestId: request.Id, Status: request.Status}, nil
	}

	request, applied, err := s.store.SettlePayment(ctx, providerReference, status)
	if err != nil {
		return nil, err
	}

	result := &models.WebhookResult{
		RequestId: request.Id,
		Status:    request.Status,
		Applied:   applied,
		Duplicate: !applied,
	}

	balance, err := s.store.GetBalance(ctx, request.AccountId, models.BalanceReal)
	if err != nil {
		zap.L().Warn("Failed to read balance after settlement",
			zap.String("request_id", request.Id),
			zap.Error(err))
	} else {
		result.NewBalance = balance
	}

	if applied && status == models.PaymentApproved && request.Direction == models.DirectionDeposit {
		if _, err := s.affiliate.MaybeCreditCommission(ctx, request.AccountId, request.Amount); err != nil {
			zap.L().Error("Affiliate commission check failed",
				zap.String("request_id", request.Id),
				zap.String("account_id", request.AccountId),
				zap.Error(err))
		}
	}

	return result, nil
}

// ReconcilePending resolves one pending request by asking the gateway for its
// current status. Used by the listener for requests whose webhook never
// arrived. Returns true when the request is now in a terminal state,
// false when it is still pending at the gateway.
func (s *Service) ReconcilePending(ctx context.Context, request models.PaymentRequest) (bool, error) {
	gatewayStatus, err := s.gateway.GetPaymentStatus(ctx, request.ProviderReference)
	if err != nil {
		return false, fmt.Errorf("failed to query gateway for %s: %w", request.ProviderReference, err)
	}

	status := mapGatewayStatus(gatewayStatus.Status)
	if !models.IsTerminalPaymentStatus(status) {
		return false, nil
	}

	settled, applied, err := s.store.SettlePayment(ctx, request.ProviderReference, status)
	if err != nil {
		return false, err
	}
	if !applied {
		return true, nil
	}

	zap.L().Info("Reconciled pending payment",
		zap.String("request_id", settled.Id),
		zap.String("direction", settled.Direction),
		zap.String("status", status))

	if status == models.PaymentApproved && settled.Direction == models.DirectionDeposit {
		if _, err := s.affiliate.MaybeCreditCommission(ctx, settled.AccountId, settled.Amount); err != nil {
			zap.L().Error("Affiliate commission check failed during reconciliation",
				zap.String("request_id", settled.Id),
				zap.Error(err))
		}
	}
	return true, nil
}

// mapGatewayStatus translates provider status strings into the request state
// machine. Unknown statuses stay pending rather than guessing a terminal
// outcome.
func mapGatewayStatus(gatewayStatus string) string {
	switch gatewayStatus {
	case models.GatewayStatusPaid, models.GatewayStatusCompleted:
		return models.PaymentApproved
	case models.GatewayStatusFailed, models.GatewayStatusRefused,
		models.GatewayStatusCancelled, models.GatewayStatusExpired:
		return models.PaymentRejected
	default:
		return models.PaymentPending
	}
}

// depositKey buckets requests by time window so a double-submitted deposit
// inside the window maps to the same key, while a genuine later deposit of
// the same amount gets a fresh one.
func depositKey(accountId string, amount decimal.Decimal, window time.Duration) string {
	return fmt.Sprintf("dep:%s:%s:%d", accountId, amount.String(), windowBucket(window))
}

func withdrawalKey(accountId string, amount decimal.Decimal, window time.Duration) string {
	return fmt.Sprintf("wd:%s:%s:%d", accountId, amount.String(), windowBucket(window))
}

func windowBucket(window time.Duration) int64 {
	if window <= 0 {
		window = time.Minute
	}
	return time.Now().UTC().UnixNano() / int64(window)
}

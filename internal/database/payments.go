package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreatePaymentRequest creates a pending deposit or withdrawal request. When
// an open request with the same idempotency key exists inside the dedupe
// window, that request is returned instead and the bool result is true.
// Withdrawals debit the real balance in the same transaction that creates the
// row, so the funds are reserved before any gateway call happens.
func (s *Service) CreatePaymentRequest(ctx context.Context, params store.CreatePaymentParams) (*models.PaymentRequest, bool, error) {
	if params.Direction != models.DirectionDeposit && params.Direction != models.DirectionWithdrawal {
		return nil, false, fmt.Errorf("invalid payment direction %q", params.Direction)
	}
	if params.Amount.Sign() <= 0 {
		return nil, false, fmt.Errorf("%w: amount must be positive, got %s", store.ErrAmountOutOfRange, params.Amount)
	}
	if params.IdempotencyKey == "" {
		return nil, false, fmt.Errorf("idempotency key is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	windowStart := time.Now().UTC().Add(-params.DedupeWindow)
	existing, err := scanPaymentRow(tx.QueryRowContext(ctx, queryFindOpenPaymentByKey, params.IdempotencyKey, windowStart))
	if err == nil {
		// Double-submission: hand back the open request unchanged.
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		zap.L().Info("Reusing open payment request",
			zap.String("request_id", existing.Id),
			zap.String("idempotency_key", params.IdempotencyKey))
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to check for open request: %w", err)
	}

	now := time.Now().UTC()
	request := &models.PaymentRequest{
		Id:             uuid.New().String(),
		AccountId:      params.AccountId,
		Direction:      params.Direction,
		Amount:         params.Amount,
		IdempotencyKey: params.IdempotencyKey,
		Status:         models.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = tx.ExecContext(ctx, queryInsertPaymentRequest,
		request.Id, request.AccountId, request.Direction, request.Amount.String(),
		request.IdempotencyKey, request.Status, "", "", "", request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert payment request: %w", err)
	}

	if params.Direction == models.DirectionWithdrawal {
		// Reserve the funds now; a rejected or errored payout credits them back.
		if _, err := s.appendEntry(ctx, tx, entryParams{
			AccountId:   params.AccountId,
			BalanceKind: models.BalanceReal,
			Kind:        models.EntryWithdrawal,
			Amount:      params.Amount.Neg(),
			ReferenceId: request.Id,
		}); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit payment request: %w", err)
	}

	zap.L().Info("Payment request created",
		zap.String("request_id", request.Id),
		zap.String("account_id", request.AccountId),
		zap.String("direction", request.Direction),
		zap.String("amount", request.Amount.String()))

	return request, false, nil
}

// AttachProviderReference records the gateway's identifiers on a still-pending
// request after the charge or payout has been created.
func (s *Service) AttachProviderReference(ctx context.Context, requestId, providerRef, pixCode, pixQrImage string) error {
	result, err := s.db.ExecContext(ctx, queryAttachProviderReference,
		providerRef, pixCode, pixQrImage, time.Now().UTC(), requestId)
	if err != nil {
		return fmt.Errorf("failed to attach provider reference: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrRequestNotFound, requestId)
	}
	return nil
}

// MarkPaymentError moves a pending request to the terminal error state. For
// withdrawals this also credits the reserved funds back, in the same
// transaction, so a failed gateway call never strands money.
func (s *Service) MarkPaymentError(ctx context.Context, requestId string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	request, err := scanPaymentRow(tx.QueryRowContext(ctx, queryGetPaymentById, requestId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrRequestNotFound, requestId)
		}
		return fmt.Errorf("failed to load payment request: %w", err)
	}
	if request.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", store.ErrTerminalState, requestId, request.Status)
	}

	if err := s.transitionLocked(ctx, tx, request, models.PaymentError); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transition: %w", err)
	}

	zap.L().Warn("Payment request marked as error",
		zap.String("request_id", request.Id),
		zap.String("direction", request.Direction),
		zap.String("amount", request.Amount.String()))
	return nil
}

func (s *Service) GetPaymentByProviderReference(ctx context.Context, providerRef string) (*models.PaymentRequest, error) {
	request, err := scanPaymentRow(s.db.QueryRowContext(ctx, queryGetPaymentByProviderRef, providerRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: provider reference %s", store.ErrRequestNotFound, providerRef)
		}
		return nil, fmt.Errorf("failed to load payment request: %w", err)
	}
	return request, nil
}

// SettlePayment applies a terminal gateway outcome to the request identified
// by providerRef. The state transition and its ledger effect commit as one
// transaction. A request already in a terminal state is left untouched and
// reported with applied == false, which is what makes redelivered webhooks
// harmless.
func (s *Service) SettlePayment(ctx context.Context, providerRef, status string) (*models.PaymentRequest, bool, error) {
	if !models.IsTerminalPaymentStatus(status) {
		return nil, false, fmt.Errorf("cannot settle to non-terminal status %q", status)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	request, err := scanPaymentRow(tx.QueryRowContext(ctx, queryGetPaymentByProviderRef, providerRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("%w: provider reference %s", store.ErrRequestNotFound, providerRef)
		}
		return nil, false, fmt.Errorf("failed to load payment request: %w", err)
	}

	if request.IsTerminal() {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return request, false, nil
	}

	if err := s.transitionLocked(ctx, tx, request, status); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit settlement: %w", err)
	}

	request.Status = status
	zap.L().Info("Payment request settled",
		zap.String("request_id", request.Id),
		zap.String("direction", request.Direction),
		zap.String("status", status),
		zap.String("amount", request.Amount.String()))
	return request, true, nil
}

// transitionLocked updates the status of a pending request held by tx and
// applies the ledger effect of the new status:
//   - approved deposit: credit the real balance
//   - rejected or errored withdrawal: credit the reserved funds back
//   - everything else: state change only (a withdrawal's debit already
//     happened at creation; a failed deposit never touched the ledger)
func (s *Service) transitionLocked(ctx context.Context, tx *sql.Tx, request *models.PaymentRequest, status string) error {
	result, err := tx.ExecContext(ctx, queryUpdatePaymentStatus, status, time.Now().UTC(), request.Id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment transition lost - %w", store.ErrConcurrentModification)
	}

	switch {
	case status == models.PaymentApproved && request.Direction == models.DirectionDeposit:
		if _, err := s.appendEntry(ctx, tx, entryParams{
			AccountId:   request.AccountId,
			BalanceKind: models.BalanceReal,
			Kind:        models.EntryDeposit,
			Amount:      request.Amount,
			ReferenceId: request.Id,
		}); err != nil {
			return err
		}
	case status != models.PaymentApproved && request.Direction == models.DirectionWithdrawal:
		// Compensating credit, recorded the way a reversal deposit is.
		if _, err := s.appendEntry(ctx, tx, entryParams{
			AccountId:   request.AccountId,
			BalanceKind: models.BalanceReal,
			Kind:        models.EntryDeposit,
			Amount:      request.Amount,
			ReferenceId: request.Id + "-reversal",
		}); err != nil {
			return err
		}
	}
	return nil
}

// ListPendingPayments returns pending requests that already have a provider
// reference and are older than the grace period. The reconciler polls these.
func (s *Service) ListPendingPayments(ctx context.Context, olderThan time.Duration) ([]models.PaymentRequest, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.QueryContext(ctx, queryListPendingPayments, cutoff)
	if err != nil {
		return nil, fmt.Errorf("unable to query pending payments: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var requests []models.PaymentRequest
	for rows.Next() {
		request, err := scanPaymentRows(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRow(row rowScanner) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	var amountStr string
	err := row.Scan(&request.Id, &request.AccountId, &request.Direction, &amountStr,
		&request.IdempotencyKey, &request.Status, &request.ProviderReference,
		&request.PixCode, &request.PixQrImage, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, err
	}
	request.Amount, err = scanDecimal(amountStr, "payment amount")
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func scanPaymentRows(rows *sql.Rows) (*models.PaymentRequest, error) {
	request, err := scanPaymentRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment request: %w", err)
	}
	return request, nil
}

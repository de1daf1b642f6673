package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExecutePurchase runs one case opening as a single transaction: stake debit,
// prize draw, payout credit and the purchase row all commit together or not
// at all. The draw callback runs between the two ledger entries; any error it
// returns aborts the purchase with no observable effect.
func (s *Service) ExecutePurchase(ctx context.Context, params store.ExecutePurchaseParams) (*models.Purchase, decimal.Decimal, error) {
	if params.Price.Sign() <= 0 {
		return nil, decimal.Zero, fmt.Errorf("purchase price must be positive, got %s", params.Price)
	}
	if params.Draw == nil {
		return nil, decimal.Zero, fmt.Errorf("purchase draw callback is required")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	purchaseId := uuid.New().String()

	// Stake debit. appendEntry re-reads the balance under the write lock, so
	// the funds check cannot race a concurrent purchase by the same account.
	if _, err := s.appendEntry(ctx, tx, entryParams{
		AccountId:   params.AccountId,
		BalanceKind: params.BalanceKind,
		Kind:        models.EntryStake,
		Amount:      params.Price.Neg(),
		ReferenceId: purchaseId,
	}); err != nil {
		return nil, decimal.Zero, err
	}

	prize, err := params.Draw()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("prize draw failed: %w", err)
	}

	payout, err := s.appendEntry(ctx, tx, entryParams{
		AccountId:   params.AccountId,
		BalanceKind: params.BalanceKind,
		Kind:        models.EntryPayout,
		Amount:      prize.Value,
		ReferenceId: purchaseId,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	purchase := &models.Purchase{
		Id:           purchaseId,
		AccountId:    params.AccountId,
		CaseId:       params.CaseId,
		PrizeId:      prize.Id,
		StakeAmount:  params.Price,
		PayoutAmount: prize.Value,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, queryInsertPurchase,
		purchase.Id, purchase.AccountId, purchase.CaseId, purchase.PrizeId,
		purchase.StakeAmount.String(), purchase.PayoutAmount.String(), purchase.CreatedAt)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to insert purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to commit purchase: %w", err)
	}

	zap.L().Info("Purchase committed",
		zap.String("purchase_id", purchase.Id),
		zap.String("account_id", purchase.AccountId),
		zap.String("case_id", purchase.CaseId),
		zap.String("prize_id", purchase.PrizeId),
		zap.String("stake", purchase.StakeAmount.String()),
		zap.String("payout", purchase.PayoutAmount.String()),
		zap.String("new_balance", payout.BalanceAfter.String()))

	return purchase, payout.BalanceAfter, nil
}

// GetPurchases returns an account's case openings, newest first.
func (s *Service) GetPurchases(ctx context.Context, accountId string, limit, offset int) ([]models.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, queryGetPurchases, accountId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query purchases: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		var stakeStr, payoutStr string
		err := rows.Scan(&p.Id, &p.AccountId, &p.CaseId, &p.PrizeId, &stakeStr, &payoutStr, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.StakeAmount, err = scanDecimal(stakeStr, "stake_amount"); err != nil {
			return nil, err
		}
		if p.PayoutAmount, err = scanDecimal(payoutStr, "payout_amount"); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase rows: %w", err)
	}
	return purchases, nil
}

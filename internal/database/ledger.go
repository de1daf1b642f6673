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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// entryParams describes one balance mutation to append inside a transaction.
type entryParams struct {
	AccountId   string
	BalanceKind string
	Kind        string
	Amount      decimal.Decimal
	ReferenceId string
}

// appendEntry applies one signed mutation to the materialized balance and
// records the matching ledger entry, all through the caller's transaction.
// The balance is never allowed to go negative: a debit that would overdraw
// fails with store.ErrInsufficientFunds and the caller is expected to roll
// the whole transaction back.
func (s *Service) appendEntry(ctx context.Context, tx *sql.Tx, p entryParams) (*models.LedgerEntry, error) {
	var balanceId, balanceStr string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetBalanceForUpdate, p.AccountId, p.BalanceKind).
		Scan(&balanceId, &balanceStr, &version)

	var before decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		balanceId = uuid.New().String()
		before = decimal.Zero
		version = 1
		if _, err := tx.ExecContext(ctx, queryInsertAccountBalance, balanceId, p.AccountId, p.BalanceKind, "0", 1); err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	} else {
		before, err = scanDecimal(balanceStr, "balance")
		if err != nil {
			return nil, err
		}
	}

	after := before.Add(p.Amount)
	if after.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s, requested %s", store.ErrInsufficientFunds, before, p.Amount.Neg())
	}

	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountId:     p.AccountId,
		BalanceKind:   p.BalanceKind,
		Kind:          p.Kind,
		Amount:        p.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceId:   p.ReferenceId,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, queryInsertLedgerEntry,
		entry.Id, entry.AccountId, entry.BalanceKind, entry.Kind,
		entry.Amount.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.ReferenceId, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance,
		after.String(), entry.Id, p.AccountId, p.BalanceKind, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	return entry, nil
}

// GetBalance returns the materialized balance of one kind (O(1) lookup).
func (s *Service) GetBalance(ctx context.Context, accountId, kind string) (decimal.Decimal, error) {
	var balanceStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, accountId, kind).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return scanDecimal(balanceStr, "balance")
}

// GetAllBalances returns both balance rows of an account.
func (s *Service) GetAllBalances(ctx context.Context, accountId string) ([]models.AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances, accountId)
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var b models.AccountBalance
		var balanceStr string
		var lastEntryId sql.NullString
		if err := rows.Scan(&b.Id, &b.AccountId, &b.Kind, &balanceStr, &lastEntryId, &b.Version, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Balance, err = scanDecimal(balanceStr, "balance")
		if err != nil {
			return nil, err
		}
		b.LastEntryId = lastEntryId.String
		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

// GetLedgerHistory returns ledger entries in reverse-chronological order.
func (s *Service) GetLedgerHistory(ctx context.Context, accountId string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLedgerHistory, accountId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var amountStr, beforeStr, afterStr string
		var referenceId sql.NullString
		err := rows.Scan(&e.Id, &e.AccountId, &e.BalanceKind, &e.Kind,
			&amountStr, &beforeStr, &afterStr, &referenceId, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if e.Amount, err = scanDecimal(amountStr, "amount"); err != nil {
			return nil, err
		}
		if e.BalanceBefore, err = scanDecimal(beforeStr, "balance_before"); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = scanDecimal(afterStr, "balance_after"); err != nil {
			return nil, err
		}
		e.ReferenceId = referenceId.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}

// ReconcileBalance verifies that the materialized balance matches the sum of
// all ledger entries for the account and kind.
func (s *Service) ReconcileBalance(ctx context.Context, accountId, kind string) error {
	current, err := s.GetBalance(ctx, accountId, kind)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	// Sum in Go: SQLite would coerce the TEXT amounts to float and lose
	// decimal exactness.
	rows, err := s.db.QueryContext(ctx, queryReplayBalance, accountId, kind)
	if err != nil {
		return fmt.Errorf("failed to replay ledger entries: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	replayed := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		amount, err := scanDecimal(amountStr, "amount")
		if err != nil {
			return err
		}
		replayed = replayed.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating ledger amounts: %w", err)
	}

	if !current.Equal(replayed) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("account_id", accountId),
			zap.String("kind", kind),
			zap.String("materialized", current.String()),
			zap.String("replayed", replayed.String()),
			zap.String("difference", current.Sub(replayed).String()))
		return fmt.Errorf("balance mismatch: materialized=%s, replayed=%s", current, replayed)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("account_id", accountId),
		zap.String("kind", kind),
		zap.String("balance", current.String()))
	return nil
}

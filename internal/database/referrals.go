package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pix-case-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateReferralLink binds a referred account to an affiliate. An account can
// only ever be referred once, so a second insert for the same referred
// account is silently ignored.
func (s *Service) CreateReferralLink(ctx context.Context, referredAccountId, affiliateAccountId string) error {
	if referredAccountId == affiliateAccountId {
		return fmt.Errorf("account %s cannot refer itself", referredAccountId)
	}
	_, err := s.db.ExecContext(ctx, queryInsertReferralLink, referredAccountId, affiliateAccountId)
	if err != nil {
		return fmt.Errorf("failed to create referral link: %w", err)
	}
	return nil
}

// GetReferralLink returns the referral link for a referred account, or nil
// when the account was not referred by anyone.
func (s *Service) GetReferralLink(ctx context.Context, referredAccountId string) (*models.ReferralLink, error) {
	link, err := scanReferralRow(s.db.QueryRowContext(ctx, queryGetReferralLink, referredAccountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load referral link: %w", err)
	}
	return link, nil
}

// CreditCommission pays the affiliate behind referredAccountId exactly once.
// The claim is a conditional update on first_qualifying_deposit_at, so two
// racing callers cannot both credit: whichever update reports zero affected
// rows simply returns false. The claim and the ledger credit commit together.
func (s *Service) CreditCommission(ctx context.Context, referredAccountId string, commission decimal.Decimal) (bool, error) {
	if commission.Sign() <= 0 {
		return false, fmt.Errorf("commission must be positive, got %s", commission)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	link, err := scanReferralRow(tx.QueryRowContext(ctx, queryGetReferralLink, referredAccountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load referral link: %w", err)
	}

	result, err := tx.ExecContext(ctx, queryClaimFirstQualifyingDeposit, time.Now().UTC(), referredAccountId)
	if err != nil {
		return false, fmt.Errorf("failed to claim commission: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already credited for this referred account.
		return false, nil
	}

	if _, err := s.appendEntry(ctx, tx, entryParams{
		AccountId:   link.AffiliateAccountId,
		BalanceKind: models.BalanceReal,
		Kind:        models.EntryCommission,
		Amount:      commission,
		ReferenceId: "referral:" + referredAccountId,
	}); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit commission: %w", err)
	}

	zap.L().Info("Affiliate commission credited",
		zap.String("affiliate_account_id", link.AffiliateAccountId),
		zap.String("referred_account_id", referredAccountId),
		zap.String("commission", commission.String()))
	return true, nil
}

func scanReferralRow(row rowScanner) (*models.ReferralLink, error) {
	var link models.ReferralLink
	var firstDeposit sql.NullTime
	err := row.Scan(&link.ReferredAccountId, &link.AffiliateAccountId, &firstDeposit, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	if firstDeposit.Valid {
		link.FirstQualifyingDepositAt = &firstDeposit.Time
	}
	return &link, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"go.uber.org/zap"
)

// UpsertCase writes a case and its prize set in one transaction. Prizes not
// present in the new set are deactivated rather than deleted, so existing
// purchases keep a valid prize reference.
func (s *Service) UpsertCase(ctx context.Context, c models.Case, prizes []models.Prize) error {
	if c.Price.Sign() <= 0 {
		return fmt.Errorf("case %s price must be positive, got %s", c.Id, c.Price)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, queryUpsertCase, c.Id, c.Name, c.Price.String(), c.Active); err != nil {
		return fmt.Errorf("failed to upsert case %s: %w", c.Id, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE prizes SET active = 0 WHERE case_id = ?`, c.Id); err != nil {
		return fmt.Errorf("failed to deactivate prizes for case %s: %w", c.Id, err)
	}

	for _, p := range prizes {
		if p.Value.Sign() < 0 {
			return fmt.Errorf("prize %s value cannot be negative, got %s", p.Id, p.Value)
		}
		if p.Probability < 0 {
			return fmt.Errorf("prize %s probability cannot be negative, got %f", p.Id, p.Probability)
		}
		var bonusProb interface{}
		if p.BonusProbability != nil {
			bonusProb = *p.BonusProbability
		}
		_, err := tx.ExecContext(ctx, queryUpsertPrize,
			p.Id, c.Id, p.Name, p.Value.String(), p.Probability, bonusProb, p.Drawable, p.Active)
		if err != nil {
			return fmt.Errorf("failed to upsert prize %s: %w", p.Id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog update: %w", err)
	}

	zap.L().Info("Case catalog updated",
		zap.String("case_id", c.Id),
		zap.String("price", c.Price.String()),
		zap.Int("prizes", len(prizes)))
	return nil
}

func (s *Service) GetCase(ctx context.Context, caseId string) (*models.Case, error) {
	var c models.Case
	var priceStr string
	err := s.db.QueryRowContext(ctx, queryGetCase, caseId).Scan(
		&c.Id, &c.Name, &priceStr, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrCaseNotFound, caseId)
		}
		return nil, fmt.Errorf("unable to query case: %w", err)
	}
	if c.Price, err = scanDecimal(priceStr, "price"); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCasePrizes returns the active prizes of a case, drawable and
// illustrative alike. Draw-eligibility filtering is the draw engine's job.
func (s *Service) GetCasePrizes(ctx context.Context, caseId string) ([]models.Prize, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCasePrizes, caseId)
	if err != nil {
		return nil, fmt.Errorf("unable to query prizes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var prizes []models.Prize
	for rows.Next() {
		var p models.Prize
		var valueStr string
		var bonusProb sql.NullFloat64
		err := rows.Scan(&p.Id, &p.CaseId, &p.Name, &valueStr, &p.Probability,
			&bonusProb, &p.Drawable, &p.Active)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		if p.Value, err = scanDecimal(valueStr, "prize value"); err != nil {
			return nil, err
		}
		if bonusProb.Valid {
			v := bonusProb.Float64
			p.BonusProbability = &v
		}
		prizes = append(prizes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prize rows: %w", err)
	}
	return prizes, nil
}

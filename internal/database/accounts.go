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

func (s *Service) CreateAccount(ctx context.Context, accountId, name, email, segment string) (*models.Account, error) {
	if segment != models.SegmentReal && segment != models.SegmentBonus {
		return nil, fmt.Errorf("invalid segment %q", segment)
	}

	zap.L().Info("Creating account",
		zap.String("id", accountId),
		zap.String("name", name),
		zap.String("email", email),
		zap.String("segment", segment))

	_, err := s.db.ExecContext(ctx, queryInsertAccount, accountId, name, email, segment)
	if err != nil {
		zap.L().Error("Failed to insert account", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert account: %w", err)
	}

	return s.GetAccountByEmail(ctx, email)
}

func (s *Service) GetAccountById(ctx context.Context, accountId string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, queryGetAccountById, accountId).Scan(
		&account.Id, &account.Name, &account.Email, &account.Segment,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, accountId)
		}
		return nil, fmt.Errorf("unable to query account by id: %w", err)
	}
	return &account, nil
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, queryGetAccountByEmail, email).Scan(
		&account.Id, &account.Name, &account.Email, &account.Segment,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, email)
		}
		return nil, fmt.Errorf("unable to query account by email: %w", err)
	}
	return &account, nil
}

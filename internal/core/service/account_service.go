package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

// AccountService handles user deposits and lookups. Accounts are created
// lazily on first deposit.
type AccountService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewAccountService(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger) *AccountService {
	return &AccountService{db: db, cache: cache, logger: logger}
}

func (s *AccountService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, currency string) (*domain.UserAccount, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}

	acct, err := s.db.GetUserAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user account: %w", err)
	}
	if acct == nil {
		s.logger.Info("user account not seen before, creating", zap.Int64("user_id", userID))
		acct = domain.NewUserAccount(userID, currency)
		if err := s.db.InsertUserAccount(ctx, acct); err != nil {
			return nil, err
		}
	}

	acct.Deposit(amount)
	if err := s.db.UpdateUserAccount(ctx, *acct); err != nil {
		return nil, err
	}
	acct.Version++

	// Cache is overwritten from the new durable truth, same as warm-up.
	if err := s.cache.SetUserBalance(ctx, userID, acct.Balance); err != nil {
		return nil, fmt.Errorf("seed user balance: %w", err)
	}

	s.logger.Info("deposit applied",
		zap.Int64("user_id", userID),
		zap.String("balance", acct.Balance.String()))
	return acct, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	acct, err := s.db.GetUserAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

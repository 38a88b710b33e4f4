package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

// SettlementService audits the durable ledger: per merchant per day, the sum
// of paid order amounts is compared against the merchant's durable balance.
// It reads only the durable store.
type SettlementService struct {
	db     port.DatabaseRepository
	logger *zap.Logger
}

func NewSettlementService(db port.DatabaseRepository, logger *zap.Logger) *SettlementService {
	return &SettlementService{db: db, logger: logger}
}

func (s *SettlementService) SettleMerchant(ctx context.Context, merchantID int64, date time.Time) (*domain.SettlementResult, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	to := from.Add(24*time.Hour - time.Millisecond)

	totalOrderAmount, err := s.db.SumPaidOrderAmount(ctx, merchantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum paid orders: %w", err)
	}

	acct, err := s.db.GetMerchantAccount(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrMerchantNotFound
	}

	difference := acct.Balance.Sub(totalOrderAmount)
	result := &domain.SettlementResult{
		MerchantID:       merchantID,
		SettlementDate:   from,
		TotalOrderAmount: totalOrderAmount,
		AccountBalance:   acct.Balance,
		Difference:       difference,
		Matched:          difference.Abs().LessThan(domain.SettlementTolerance),
	}

	s.logger.Info("merchant settled",
		zap.Int64("merchant_id", merchantID),
		zap.String("total_order_amount", totalOrderAmount.String()),
		zap.String("account_balance", acct.Balance.String()),
		zap.String("difference", difference.String()),
		zap.Bool("matched", result.Matched))
	return result, nil
}

// SettleAllMerchants enumerates every merchant with inventory and settles each
// in isolation; one bad merchant does not abort the batch.
func (s *SettlementService) SettleAllMerchants(ctx context.Context, date time.Time) {
	merchantIDs, err := s.db.DistinctMerchantIDs(ctx)
	if err != nil {
		s.logger.Error("settlement batch could not enumerate merchants", zap.Error(err))
		return
	}

	for _, merchantID := range merchantIDs {
		if _, err := s.SettleMerchant(ctx, merchantID, date); err != nil {
			s.logger.Error("merchant settlement failed",
				zap.Int64("merchant_id", merchantID), zap.Error(err))
		}
	}
	s.logger.Info("settlement batch done",
		zap.Time("date", date), zap.Int("merchants", len(merchantIDs)))
}

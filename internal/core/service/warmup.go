package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/port"
)

// WarmUpLoader copies every durable inventory and account record into the
// cache before the process accepts traffic. Re-running overwrites cache state
// from durable truth, so it is safe after a crash, but it must not overlap
// live traffic; that ordering is an operational contract, not a lock.
type WarmUpLoader struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewWarmUpLoader(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger) *WarmUpLoader {
	return &WarmUpLoader{db: db, cache: cache, logger: logger}
}

// Run loads all three record sets. Per-record failures are logged and
// skipped; only a failed listing aborts.
func (w *WarmUpLoader) Run(ctx context.Context) error {
	if err := w.warmUpInventories(ctx); err != nil {
		return err
	}
	if err := w.warmUpUserAccounts(ctx); err != nil {
		return err
	}
	return w.warmUpMerchantAccounts(ctx)
}

func (w *WarmUpLoader) warmUpInventories(ctx context.Context) error {
	inventories, err := w.db.ListInventories(ctx)
	if err != nil {
		return fmt.Errorf("list inventories: %w", err)
	}

	loaded := 0
	for _, inv := range inventories {
		if err := w.cache.SetInventory(ctx, inv.MerchantID, inv.SKU, inv.Quantity); err != nil {
			w.logger.Error("warm-up of inventory record failed",
				zap.Int64("merchant_id", inv.MerchantID), zap.String("sku", inv.SKU), zap.Error(err))
			continue
		}
		loaded++
	}
	w.logger.Info("inventory warm-up done", zap.Int("loaded", loaded), zap.Int("total", len(inventories)))
	return nil
}

func (w *WarmUpLoader) warmUpUserAccounts(ctx context.Context) error {
	accounts, err := w.db.ListUserAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list user accounts: %w", err)
	}

	loaded := 0
	for _, acct := range accounts {
		if err := w.cache.SetUserBalance(ctx, acct.UserID, acct.Balance); err != nil {
			w.logger.Error("warm-up of user account failed",
				zap.Int64("user_id", acct.UserID), zap.Error(err))
			continue
		}
		loaded++
	}
	w.logger.Info("user account warm-up done", zap.Int("loaded", loaded), zap.Int("total", len(accounts)))
	return nil
}

func (w *WarmUpLoader) warmUpMerchantAccounts(ctx context.Context) error {
	accounts, err := w.db.ListMerchantAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list merchant accounts: %w", err)
	}

	loaded := 0
	for _, acct := range accounts {
		if err := w.cache.SetMerchantBalance(ctx, acct.MerchantID, acct.Balance); err != nil {
			w.logger.Error("warm-up of merchant account failed",
				zap.Int64("merchant_id", acct.MerchantID), zap.Error(err))
			continue
		}
		loaded++
	}
	w.logger.Info("merchant account warm-up done", zap.Int("loaded", loaded), zap.Int("total", len(accounts)))
	return nil
}

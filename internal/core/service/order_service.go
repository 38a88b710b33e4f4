package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

// OrderService runs the purchase path: cache-side stock decrement, cache-side
// balance transfer, synchronous order insert, then an asynchronous durable
// write-back. Any failure after a cache mutation compensates whatever already
// succeeded before the original error is returned.
type OrderService struct {
	db         port.DatabaseRepository
	cache      port.CacheRepository
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, reconciler *Reconciler, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:         db,
		cache:      cache,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, userID, merchantID int64, sku string, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	// Read-only price lookup, no durable lock on the hot path.
	inv, err := s.db.GetInventory(ctx, merchantID, sku)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrProductNotFound
	}

	if err := s.decrementCachedInventory(ctx, inv, quantity); err != nil {
		return nil, err
	}

	// From here on the cache decrement must be undone on any failure.
	order, err := s.payAndPersist(ctx, inv, userID, quantity)
	if err != nil {
		if cerr := s.cache.IncrementInventory(ctx, merchantID, sku, quantity); cerr != nil {
			s.logger.Error("inventory compensation failed",
				zap.Int64("merchant_id", merchantID),
				zap.String("sku", sku),
				zap.Int("quantity", quantity),
				zap.Error(cerr))
		}
		return nil, err
	}

	s.reconciler.EnqueueStockDecrease(merchantID, sku, quantity)
	s.reconciler.EnqueueBalanceSync(userID, merchantID, order.TotalAmount)

	s.logger.Info("order created",
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", userID),
		zap.Int64("merchant_id", merchantID),
		zap.String("total_amount", order.TotalAmount.String()))
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	order, err := s.db.GetOrderByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// decrementCachedInventory applies the atomic stock decrement, self-healing a
// cold cache key from the durable row and retrying exactly once.
func (s *OrderService) decrementCachedInventory(ctx context.Context, inv *domain.ProductInventory, quantity int) error {
	_, err := s.cache.DecrementInventory(ctx, inv.MerchantID, inv.SKU, quantity)
	if errors.Is(err, port.ErrCacheMiss) {
		s.logger.Warn("inventory key not warmed, healing from durable store",
			zap.Int64("merchant_id", inv.MerchantID), zap.String("sku", inv.SKU))
		if serr := s.cache.SetInventory(ctx, inv.MerchantID, inv.SKU, inv.Quantity); serr != nil {
			return fmt.Errorf("heal inventory cache: %w", serr)
		}
		_, err = s.cache.DecrementInventory(ctx, inv.MerchantID, inv.SKU, quantity)
	}
	if errors.Is(err, domain.ErrInsufficientInventory) {
		return domain.ErrInsufficientInventory
	}
	if err != nil {
		return fmt.Errorf("decrement cached inventory: %w", err)
	}
	return nil
}

// payAndPersist covers steps after the stock decrement: account presence,
// atomic transfer, synchronous order insert. It reverses the transfer itself
// when the insert fails; the caller reverses the stock decrement.
func (s *OrderService) payAndPersist(ctx context.Context, inv *domain.ProductInventory, userID int64, quantity int) (*domain.Order, error) {
	total := inv.TotalPrice(quantity)

	if err := s.ensureAccountsCached(ctx, userID, inv.MerchantID); err != nil {
		return nil, err
	}

	if err := s.transferWithHeal(ctx, userID, inv.MerchantID, total); err != nil {
		return nil, err
	}

	// Transfer success is the payment event; there is no pending window.
	order := domain.NewOrder(userID, inv.MerchantID, inv.SKU, inv.ProductName, inv.Price, quantity, inv.Currency)
	if err := order.MarkAsPaid(); err != nil {
		s.reverseTransfer(ctx, userID, inv.MerchantID, total)
		return nil, err
	}

	if err := s.db.InsertOrder(ctx, order); err != nil {
		s.reverseTransfer(ctx, userID, inv.MerchantID, total)
		return nil, fmt.Errorf("persist order: %w", err)
	}
	return order, nil
}

// transferWithHeal retries a missing-account transfer once after re-seeding
// the account keys from the durable store.
func (s *OrderService) transferWithHeal(ctx context.Context, userID, merchantID int64, amount decimal.Decimal) error {
	err := s.cache.Transfer(ctx, userID, merchantID, amount)
	if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrMerchantNotFound) {
		s.logger.Warn("transfer hit cold account key, healing and retrying",
			zap.Int64("user_id", userID), zap.Int64("merchant_id", merchantID), zap.Error(err))
		if herr := s.ensureAccountsCached(ctx, userID, merchantID); herr != nil {
			return herr
		}
		err = s.cache.Transfer(ctx, userID, merchantID, amount)
	}
	return err
}

// ensureAccountsCached seeds missing cache keys from the durable rows. A user
// with no durable account cannot pay; a merchant with no durable account gets
// a zero-balance row created first.
func (s *OrderService) ensureAccountsCached(ctx context.Context, userID, merchantID int64) error {
	_, ok, err := s.cache.GetUserBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("read cached user balance: %w", err)
	}
	if !ok {
		acct, err := s.db.GetUserAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user account: %w", err)
		}
		if acct == nil {
			return domain.ErrAccountNotFound
		}
		if err := s.cache.SetUserBalance(ctx, userID, acct.Balance); err != nil {
			return fmt.Errorf("seed user balance: %w", err)
		}
	}

	_, ok, err = s.cache.GetMerchantBalance(ctx, merchantID)
	if err != nil {
		return fmt.Errorf("read cached merchant balance: %w", err)
	}
	if !ok {
		acct, err := s.db.GetMerchantAccount(ctx, merchantID)
		if err != nil {
			return fmt.Errorf("load merchant account: %w", err)
		}
		if acct == nil {
			s.logger.Info("merchant account not seen before, creating", zap.Int64("merchant_id", merchantID))
			acct = domain.NewMerchantAccount(merchantID, "")
			if err := s.db.InsertMerchantAccount(ctx, acct); err != nil {
				return fmt.Errorf("create merchant account: %w", err)
			}
		}
		if err := s.cache.SetMerchantBalance(ctx, merchantID, acct.Balance); err != nil {
			return fmt.Errorf("seed merchant balance: %w", err)
		}
	}
	return nil
}

// reverseTransfer credits the user back and debits the merchant with plain
// increments. Failures are logged, never returned; the triggering error is
// what the caller sees.
func (s *OrderService) reverseTransfer(ctx context.Context, userID, merchantID int64, amount decimal.Decimal) {
	if err := s.cache.IncrementUserBalance(ctx, userID, amount); err != nil {
		s.logger.Error("transfer compensation failed on user side",
			zap.Int64("user_id", userID), zap.String("amount", amount.String()), zap.Error(err))
	}
	if err := s.cache.IncrementMerchantBalance(ctx, merchantID, amount.Neg()); err != nil {
		s.logger.Error("transfer compensation failed on merchant side",
			zap.Int64("merchant_id", merchantID), zap.String("amount", amount.String()), zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

// MerchantService manages product registration and stock adjustments, keeping
// the cache copy in step with every durable write.
type MerchantService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewMerchantService(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger) *MerchantService {
	return &MerchantService{db: db, cache: cache, logger: logger}
}

func (s *MerchantService) CreateProduct(ctx context.Context, merchantID int64, sku, productName string, price decimal.Decimal, quantity int, currency string) (*domain.ProductInventory, error) {
	existing, err := s.db.GetInventory(ctx, merchantID, sku)
	if err != nil {
		return nil, fmt.Errorf("check existing product: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrProductAlreadyExists
	}

	inv := domain.NewProductInventory(merchantID, sku, productName, price, quantity, currency)
	if err := s.db.InsertInventory(ctx, inv); err != nil {
		return nil, err
	}

	if err := s.cache.SetInventory(ctx, merchantID, sku, inv.Quantity); err != nil {
		return nil, fmt.Errorf("seed inventory cache: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("merchant_id", merchantID),
		zap.String("sku", sku),
		zap.Int("quantity", inv.Quantity))
	return inv, nil
}

func (s *MerchantService) AddInventory(ctx context.Context, merchantID int64, sku string, quantity int) (*domain.ProductInventory, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	inv, err := s.db.GetInventory(ctx, merchantID, sku)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrInventoryNotFound
	}

	inv.IncreaseQuantity(quantity)
	if err := s.db.UpdateInventory(ctx, *inv); err != nil {
		return nil, err
	}
	inv.Version++

	if err := s.cache.IncrementInventory(ctx, merchantID, sku, quantity); err != nil {
		return nil, fmt.Errorf("increment cached inventory: %w", err)
	}

	s.logger.Info("inventory added",
		zap.Int64("merchant_id", merchantID),
		zap.String("sku", sku),
		zap.Int("new_quantity", inv.Quantity))
	return inv, nil
}

func (s *MerchantService) GetInventory(ctx context.Context, merchantID int64, sku string) (*domain.ProductInventory, error) {
	inv, err := s.db.GetInventory(ctx, merchantID, sku)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrInventoryNotFound
	}
	return inv, nil
}

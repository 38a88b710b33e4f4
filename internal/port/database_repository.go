package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-ledger/internal/core/domain"
)

// DatabaseRepository is the durable system of record. Get methods return
// (nil, nil) when the row is absent. Update methods check the version column
// and return storage.ErrOptimisticLock on a lost race.
type DatabaseRepository interface {
	GetInventory(ctx context.Context, merchantID int64, sku string) (*domain.ProductInventory, error)
	ListInventories(ctx context.Context) ([]domain.ProductInventory, error)
	InsertInventory(ctx context.Context, inv *domain.ProductInventory) error
	UpdateInventory(ctx context.Context, inv domain.ProductInventory) error

	// DecreaseInventoryQuantity serializes against concurrent durable
	// mutation with a row lock, applies the decrease and writes it back in
	// one transaction. Returns (nil, nil) when the row is absent.
	DecreaseInventoryQuantity(ctx context.Context, merchantID int64, sku string, quantity int) (*domain.ProductInventory, error)

	GetUserAccount(ctx context.Context, userID int64) (*domain.UserAccount, error)
	ListUserAccounts(ctx context.Context) ([]domain.UserAccount, error)
	InsertUserAccount(ctx context.Context, acct *domain.UserAccount) error
	UpdateUserAccount(ctx context.Context, acct domain.UserAccount) error

	GetMerchantAccount(ctx context.Context, merchantID int64) (*domain.MerchantAccount, error)
	ListMerchantAccounts(ctx context.Context) ([]domain.MerchantAccount, error)
	InsertMerchantAccount(ctx context.Context, acct *domain.MerchantAccount) error
	UpdateMerchantAccount(ctx context.Context, acct domain.MerchantAccount) error

	InsertOrder(ctx context.Context, order *domain.Order) error
	GetOrderByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)

	// SumPaidOrderAmount totals PAID orders for the merchant created within
	// [from, to].
	SumPaidOrderAmount(ctx context.Context, merchantID int64, from, to time.Time) (decimal.Decimal, error)

	// DistinctMerchantIDs enumerates every merchant that has inventory.
	DistinctMerchantIDs(ctx context.Context) ([]int64, error)
}

package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrCacheMiss reports that a key the operation needed is absent from the
// cache, usually because warm-up has not covered it yet.
var ErrCacheMiss = errors.New("cache key missing")

// CacheRepository is the atomic hot-path state. The conditional operations run
// as single indivisible steps server-side; callers never read-modify-write a
// cached value outside them. Set/Get are plain primitives reserved for
// warm-up, self-heal and reconciliation.
type CacheRepository interface {
	// DecrementInventory atomically subtracts quantity and returns the
	// remaining stock. Returns ErrCacheMiss if the key is absent and
	// domain.ErrInsufficientInventory if stock would go negative.
	DecrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) (int64, error)

	// IncrementInventory unconditionally adds stock (normal increase and
	// compensation both go through here).
	IncrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) error

	SetInventory(ctx context.Context, merchantID int64, sku string, quantity int) error
	GetInventory(ctx context.Context, merchantID int64, sku string) (int, bool, error)

	// Transfer atomically debits the user and credits the merchant. A failed
	// transfer leaves both balances untouched. Returns
	// domain.ErrInsufficientBalance, domain.ErrAccountNotFound or
	// domain.ErrMerchantNotFound.
	Transfer(ctx context.Context, userID, merchantID int64, amount decimal.Decimal) error

	SetUserBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	GetUserBalance(ctx context.Context, userID int64) (decimal.Decimal, bool, error)
	IncrementUserBalance(ctx context.Context, userID int64, delta decimal.Decimal) error

	SetMerchantBalance(ctx context.Context, merchantID int64, balance decimal.Decimal) error
	GetMerchantBalance(ctx context.Context, merchantID int64) (decimal.Decimal, bool, error)
	IncrementMerchantBalance(ctx context.Context, merchantID int64, delta decimal.Decimal) error
}

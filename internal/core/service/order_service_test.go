package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/domain"
)

func newTestOrderService(t *testing.T, db *fakeDB, cache *fakeCache) (*OrderService, func()) {
	t.Helper()
	rec := NewReconciler(db, cache, zap.NewNop(), 2, 256)
	rec.Start()

	var once sync.Once
	drain := func() { once.Do(rec.Close) }
	t.Cleanup(drain)

	return NewOrderService(db, cache, rec, zap.NewNop()), drain
}

func seedProduct(db *fakeDB, cache *fakeCache, merchantID int64, sku string, price string, quantity int) {
	ctx := context.Background()
	inv := domain.NewProductInventory(merchantID, sku, "Test Product", decimal.RequireFromString(price), quantity, "CNY")
	db.InsertInventory(ctx, inv)
	cache.SetInventory(ctx, merchantID, sku, quantity)
}

func seedUser(db *fakeDB, cache *fakeCache, userID int64, balance string) {
	ctx := context.Background()
	acct := domain.NewUserAccount(userID, "CNY")
	acct.Deposit(decimal.RequireFromString(balance))
	db.InsertUserAccount(ctx, acct)
	cache.SetUserBalance(ctx, userID, acct.Balance)
}

func seedMerchant(db *fakeDB, cache *fakeCache, merchantID int64, balance string) {
	ctx := context.Background()
	acct := domain.NewMerchantAccount(merchantID, "CNY")
	acct.Balance = decimal.RequireFromString(balance)
	db.InsertMerchantAccount(ctx, acct)
	cache.SetMerchantBalance(ctx, merchantID, acct.Balance)
}

func TestCreateOrder_Success(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "1000.00")
	seedMerchant(db, cache, 2001, "0")

	svc, drain := newTestOrderService(t, db, cache)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("30.00")),
		"expected total 30.00, got %s", order.TotalAmount)

	// Conservation, measured in the cache immediately after return.
	userBalance, _, _ := cache.GetUserBalance(ctx, 1)
	merchantBalance, _, _ := cache.GetMerchantBalance(ctx, 2001)
	assert.True(t, userBalance.Equal(decimal.RequireFromString("970.00")), "user balance %s", userBalance)
	assert.True(t, merchantBalance.Equal(decimal.RequireFromString("30.00")), "merchant balance %s", merchantBalance)

	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 97, stock)

	stored, err := db.GetOrderByOrderNo(ctx, order.OrderNo)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)

	// After the reconciler drains, durable state converges to the cache.
	drain()
	inv, _ := db.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 97, inv.Quantity)
	userAcct, _ := db.GetUserAccount(ctx, 1)
	assert.True(t, userAcct.Balance.Equal(decimal.RequireFromString("970.00")), "durable user balance %s", userAcct.Balance)
	merchantAcct, _ := db.GetMerchantAccount(ctx, 2001)
	assert.True(t, merchantAcct.Balance.Equal(decimal.RequireFromString("30.00")), "durable merchant balance %s", merchantAcct.Balance)
}

func TestCreateOrder_InsufficientBalance(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "5.00")
	seedMerchant(db, cache, 2001, "0")

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Stock decrement was compensated.
	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 100, stock)

	userBalance, _, _ := cache.GetUserBalance(ctx, 1)
	assert.True(t, userBalance.Equal(decimal.RequireFromString("5.00")), "user balance %s", userBalance)
}

func TestCreateOrder_InsufficientInventory(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 2)
	seedUser(db, cache, 1, "1000.00")
	seedMerchant(db, cache, 2001, "0")

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 1, 2001, "P1", 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	// No balance mutation happened.
	userBalance, _, _ := cache.GetUserBalance(ctx, 1)
	assert.True(t, userBalance.Equal(decimal.RequireFromString("1000.00")))
	merchantBalance, _, _ := cache.GetMerchantBalance(ctx, 2001)
	assert.True(t, merchantBalance.IsZero())
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	svc, _ := newTestOrderService(t, db, cache)

	_, err := svc.CreateOrder(context.Background(), 1, 2001, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCreateOrder_SelfHealsColdInventoryKey(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "1000.00")
	seedMerchant(db, cache, 2001, "0")

	// Simulate a cold cache for this key only.
	ctx := context.Background()
	cache.mu.Lock()
	delete(cache.inventory, invKey(2001, "P1"))
	cache.mu.Unlock()

	svc, _ := newTestOrderService(t, db, cache)

	order, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)

	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 97, stock)
}

func TestCreateOrder_CreatesUnseenMerchantAccount(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "1000.00")
	// No merchant account anywhere.

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	require.NoError(t, err)

	acct, err := db.GetMerchantAccount(ctx, 2001)
	require.NoError(t, err)
	require.NotNil(t, acct, "durable merchant account should have been created")

	merchantBalance, _, _ := cache.GetMerchantBalance(ctx, 2001)
	assert.True(t, merchantBalance.Equal(decimal.RequireFromString("30.00")), "merchant balance %s", merchantBalance)
}

func TestCreateOrder_UserAccountMissing(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	// User 1 exists nowhere.

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	// Compensation closure: stock back to its pre-call value.
	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 100, stock)
}

func TestCreateOrder_CompensatesWhenPersistFails(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "1000.00")
	seedMerchant(db, cache, 2001, "0")
	db.failInsertOrder = true

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, 1, 2001, "P1", 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientBalance)

	// Both cache mutations were undone.
	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 100, stock)
	userBalance, _, _ := cache.GetUserBalance(ctx, 1)
	assert.True(t, userBalance.Equal(decimal.RequireFromString("1000.00")), "user balance %s", userBalance)
	merchantBalance, _, _ := cache.GetMerchantBalance(ctx, 2001)
	assert.True(t, merchantBalance.IsZero(), "merchant balance %s", merchantBalance)
}

func TestCreateOrder_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", initialStock)
	seedUser(db, cache, 1, "100000.00")
	seedMerchant(db, cache, 2001, "0")

	svc, drain := newTestOrderService(t, db, cache)
	ctx := context.Background()

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrder(ctx, 1, 2001, "P1", 1); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())

	stock, _, _ := cache.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 0, stock, "stock never goes negative and sells out exactly")

	// Conservation across all successful orders.
	sold := decimal.NewFromInt(int64(initialStock)).Mul(decimal.RequireFromString("10.00"))
	userBalance, _, _ := cache.GetUserBalance(ctx, 1)
	merchantBalance, _, _ := cache.GetMerchantBalance(ctx, 2001)
	assert.True(t, userBalance.Equal(decimal.RequireFromString("100000.00").Sub(sold)), "user balance %s", userBalance)
	assert.True(t, merchantBalance.Equal(sold), "merchant balance %s", merchantBalance)

	drain()
	inv, _ := db.GetInventory(ctx, 2001, "P1")
	assert.Equal(t, 0, inv.Quantity)
}

func TestGetOrder(t *testing.T) {
	db, cache := newFakeDB(), newFakeCache()
	seedProduct(db, cache, 2001, "P1", "10.00", 100)
	seedUser(db, cache, 1, "1000.00")
	seedMerchant(db, cache, 2001, "0")

	svc, _ := newTestOrderService(t, db, cache)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, 1, 2001, "P1", 1)
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, got.OrderNo)

	_, err = svc.GetOrder(ctx, "ORD-nope")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

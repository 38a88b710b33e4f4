package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

// In-memory stand-ins for the cache and durable store, guarded by one mutex
// each so concurrent service tests exercise real interleavings.

type fakeCache struct {
	mu               sync.Mutex
	inventory        map[string]int64
	userBalances     map[int64]decimal.Decimal
	merchantBalances map[int64]decimal.Decimal

	failSetInventoryFor string // merchant:sku key that refuses Set
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		inventory:        make(map[string]int64),
		userBalances:     make(map[int64]decimal.Decimal),
		merchantBalances: make(map[int64]decimal.Decimal),
	}
}

func invKey(merchantID int64, sku string) string {
	return fmt.Sprintf("%d:%s", merchantID, sku)
}

func (c *fakeCache) DecrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := invKey(merchantID, sku)
	current, ok := c.inventory[key]
	if !ok {
		return 0, port.ErrCacheMiss
	}
	if current < int64(quantity) {
		return 0, domain.ErrInsufficientInventory
	}
	c.inventory[key] = current - int64(quantity)
	return c.inventory[key], nil
}

func (c *fakeCache) IncrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inventory[invKey(merchantID, sku)] += int64(quantity)
	return nil
}

func (c *fakeCache) SetInventory(ctx context.Context, merchantID int64, sku string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := invKey(merchantID, sku)
	if c.failSetInventoryFor == key {
		return errors.New("injected set failure")
	}
	c.inventory[key] = int64(quantity)
	return nil
}

func (c *fakeCache) GetInventory(ctx context.Context, merchantID int64, sku string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.inventory[invKey(merchantID, sku)]
	return int(val), ok, nil
}

func (c *fakeCache) Transfer(ctx context.Context, userID, merchantID int64, amount decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	userBalance, ok := c.userBalances[userID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if userBalance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	merchantBalance, ok := c.merchantBalances[merchantID]
	if !ok {
		return domain.ErrMerchantNotFound
	}

	c.userBalances[userID] = userBalance.Sub(amount)
	c.merchantBalances[merchantID] = merchantBalance.Add(amount)
	return nil
}

func (c *fakeCache) SetUserBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userBalances[userID] = balance
	return nil
}

func (c *fakeCache) GetUserBalance(ctx context.Context, userID int64) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.userBalances[userID]
	return balance, ok, nil
}

func (c *fakeCache) IncrementUserBalance(ctx context.Context, userID int64, delta decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userBalances[userID] = c.userBalances[userID].Add(delta)
	return nil
}

func (c *fakeCache) SetMerchantBalance(ctx context.Context, merchantID int64, balance decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merchantBalances[merchantID] = balance
	return nil
}

func (c *fakeCache) GetMerchantBalance(ctx context.Context, merchantID int64) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	balance, ok := c.merchantBalances[merchantID]
	return balance, ok, nil
}

func (c *fakeCache) IncrementMerchantBalance(ctx context.Context, merchantID int64, delta decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merchantBalances[merchantID] = c.merchantBalances[merchantID].Add(delta)
	return nil
}

type fakeDB struct {
	mu               sync.Mutex
	inventories      map[string]*domain.ProductInventory
	userAccounts     map[int64]*domain.UserAccount
	merchantAccounts map[int64]*domain.MerchantAccount
	orders           map[string]*domain.Order
	nextID           int64

	failInsertOrder bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		inventories:      make(map[string]*domain.ProductInventory),
		userAccounts:     make(map[int64]*domain.UserAccount),
		merchantAccounts: make(map[int64]*domain.MerchantAccount),
		orders:           make(map[string]*domain.Order),
	}
}

func (d *fakeDB) GetInventory(ctx context.Context, merchantID int64, sku string) (*domain.ProductInventory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inv, ok := d.inventories[invKey(merchantID, sku)]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (d *fakeDB) ListInventories(ctx context.Context) ([]domain.ProductInventory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.ProductInventory
	for _, inv := range d.inventories {
		out = append(out, *inv)
	}
	return out, nil
}

func (d *fakeDB) InsertInventory(ctx context.Context, inv *domain.ProductInventory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	inv.ID = d.nextID
	cp := *inv
	d.inventories[invKey(inv.MerchantID, inv.SKU)] = &cp
	return nil
}

func (d *fakeDB) UpdateInventory(ctx context.Context, inv domain.ProductInventory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.inventories[invKey(inv.MerchantID, inv.SKU)]
	if !ok || stored.Version != inv.Version {
		return errors.New("optimistic lock conflict")
	}
	inv.Version++
	*stored = inv
	return nil
}

func (d *fakeDB) DecreaseInventoryQuantity(ctx context.Context, merchantID int64, sku string, quantity int) (*domain.ProductInventory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.inventories[invKey(merchantID, sku)]
	if !ok {
		return nil, nil
	}
	if err := stored.DecreaseQuantity(quantity); err != nil {
		return nil, err
	}
	stored.Version++
	cp := *stored
	return &cp, nil
}

func (d *fakeDB) GetUserAccount(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.userAccounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (d *fakeDB) ListUserAccounts(ctx context.Context) ([]domain.UserAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.UserAccount
	for _, acct := range d.userAccounts {
		out = append(out, *acct)
	}
	return out, nil
}

func (d *fakeDB) InsertUserAccount(ctx context.Context, acct *domain.UserAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	acct.ID = d.nextID
	cp := *acct
	d.userAccounts[acct.UserID] = &cp
	return nil
}

func (d *fakeDB) UpdateUserAccount(ctx context.Context, acct domain.UserAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.userAccounts[acct.UserID]
	if !ok || stored.Version != acct.Version {
		return errors.New("optimistic lock conflict")
	}
	acct.Version++
	*stored = acct
	return nil
}

func (d *fakeDB) GetMerchantAccount(ctx context.Context, merchantID int64) (*domain.MerchantAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.merchantAccounts[merchantID]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

func (d *fakeDB) ListMerchantAccounts(ctx context.Context) ([]domain.MerchantAccount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.MerchantAccount
	for _, acct := range d.merchantAccounts {
		out = append(out, *acct)
	}
	return out, nil
}

func (d *fakeDB) InsertMerchantAccount(ctx context.Context, acct *domain.MerchantAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	acct.ID = d.nextID
	cp := *acct
	d.merchantAccounts[acct.MerchantID] = &cp
	return nil
}

func (d *fakeDB) UpdateMerchantAccount(ctx context.Context, acct domain.MerchantAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.merchantAccounts[acct.MerchantID]
	if !ok || stored.Version != acct.Version {
		return errors.New("optimistic lock conflict")
	}
	acct.Version++
	*stored = acct
	return nil
}

func (d *fakeDB) InsertOrder(ctx context.Context, order *domain.Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failInsertOrder {
		return errors.New("injected insert failure")
	}
	d.nextID++
	order.ID = d.nextID
	cp := *order
	d.orders[order.OrderNo] = &cp
	return nil
}

func (d *fakeDB) GetOrderByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	order, ok := d.orders[orderNo]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (d *fakeDB) SumPaidOrderAmount(ctx context.Context, merchantID int64, from, to time.Time) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := decimal.Zero
	for _, order := range d.orders {
		if order.MerchantID != merchantID || order.Status != domain.OrderStatusPaid {
			continue
		}
		if order.CreatedAt.Before(from) || order.CreatedAt.After(to) {
			continue
		}
		total = total.Add(order.TotalAmount)
	}
	return total, nil
}

func (d *fakeDB) DistinctMerchantIDs(ctx context.Context) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, inv := range d.inventories {
		if !seen[inv.MerchantID] {
			seen[inv.MerchantID] = true
			ids = append(ids, inv.MerchantID)
		}
	}
	return ids, nil
}

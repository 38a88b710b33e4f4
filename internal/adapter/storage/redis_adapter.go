package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-ledger/internal/core/domain"
	"github.com/rl1809/mall-ledger/internal/port"
)

const (
	inventoryKeyPrefix       = "inventory:"
	userAccountKeyPrefix     = "account:user:"
	merchantAccountKeyPrefix = "account:merchant:"
)

// Script results: non-negative values carry the new stock; -1 means
// insufficient, -2 means the key is absent.
var decrementInventoryScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return -2
end

current = tonumber(current)
local quantity = tonumber(ARGV[1])
if current < quantity then
	return -1
end

return redis.call('DECRBY', KEYS[1], quantity)
`)

// Debit and credit happen inside one script run; a failed validation leaves
// both keys untouched. Results: 1 ok, -1 insufficient user balance, -2 user
// key absent, -3 merchant key absent.
var transferScript = redis.NewScript(`
local userBalance = redis.call('GET', KEYS[1])
if not userBalance then
	return -2
end

local amount = tonumber(ARGV[1])
if tonumber(userBalance) < amount then
	return -1
end

local merchantBalance = redis.call('GET', KEYS[2])
if not merchantBalance then
	return -3
end

redis.call('INCRBYFLOAT', KEYS[1], -amount)
redis.call('INCRBYFLOAT', KEYS[2], amount)
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) DecrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) (int64, error) {
	key := inventoryKey(merchantID, sku)

	result, err := decrementInventoryScript.Run(ctx, r.client, []string{key}, quantity).Int64()
	if err != nil {
		return 0, fmt.Errorf("decrement inventory %s: %w", key, err)
	}

	switch result {
	case -2:
		return 0, port.ErrCacheMiss
	case -1:
		return 0, domain.ErrInsufficientInventory
	default:
		return result, nil
	}
}

func (r *RedisAdapter) IncrementInventory(ctx context.Context, merchantID int64, sku string, quantity int) error {
	return r.client.IncrBy(ctx, inventoryKey(merchantID, sku), int64(quantity)).Err()
}

func (r *RedisAdapter) SetInventory(ctx context.Context, merchantID int64, sku string, quantity int) error {
	return r.client.Set(ctx, inventoryKey(merchantID, sku), quantity, 0).Err()
}

func (r *RedisAdapter) GetInventory(ctx context.Context, merchantID int64, sku string) (int, bool, error) {
	val, err := r.client.Get(ctx, inventoryKey(merchantID, sku)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func (r *RedisAdapter) Transfer(ctx context.Context, userID, merchantID int64, amount decimal.Decimal) error {
	userKey := userAccountKey(userID)
	merchantKey := merchantAccountKey(merchantID)

	result, err := transferScript.Run(ctx, r.client, []string{userKey, merchantKey}, amount.String()).Int64()
	if err != nil {
		return fmt.Errorf("transfer %s -> %s: %w", userKey, merchantKey, err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return domain.ErrInsufficientBalance
	case -2:
		return domain.ErrAccountNotFound
	case -3:
		return domain.ErrMerchantNotFound
	default:
		return fmt.Errorf("transfer %s -> %s: unexpected script result %d", userKey, merchantKey, result)
	}
}

func (r *RedisAdapter) SetUserBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	return r.client.Set(ctx, userAccountKey(userID), balance.String(), 0).Err()
}

func (r *RedisAdapter) GetUserBalance(ctx context.Context, userID int64) (decimal.Decimal, bool, error) {
	return r.getBalance(ctx, userAccountKey(userID))
}

func (r *RedisAdapter) IncrementUserBalance(ctx context.Context, userID int64, delta decimal.Decimal) error {
	return r.client.IncrByFloat(ctx, userAccountKey(userID), delta.InexactFloat64()).Err()
}

func (r *RedisAdapter) SetMerchantBalance(ctx context.Context, merchantID int64, balance decimal.Decimal) error {
	return r.client.Set(ctx, merchantAccountKey(merchantID), balance.String(), 0).Err()
}

func (r *RedisAdapter) GetMerchantBalance(ctx context.Context, merchantID int64) (decimal.Decimal, bool, error) {
	return r.getBalance(ctx, merchantAccountKey(merchantID))
}

func (r *RedisAdapter) IncrementMerchantBalance(ctx context.Context, merchantID int64, delta decimal.Decimal) error {
	return r.client.IncrByFloat(ctx, merchantAccountKey(merchantID), delta.InexactFloat64()).Err()
}

func (r *RedisAdapter) getBalance(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse balance %s=%q: %w", key, val, err)
	}
	return balance, true, nil
}

func inventoryKey(merchantID int64, sku string) string {
	return fmt.Sprintf("%s%d:%s", inventoryKeyPrefix, merchantID, sku)
}

func userAccountKey(userID int64) string {
	return fmt.Sprintf("%s%d", userAccountKeyPrefix, userID)
}

func merchantAccountKey(merchantID int64) string {
	return fmt.Sprintf("%s%d", merchantAccountKeyPrefix, merchantID)
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/port"
)

const reconcileTimeout = 5 * time.Second

type taskKind int

const (
	taskStockDecrease taskKind = iota
	taskBalanceSync
)

type reconcileTask struct {
	kind       taskKind
	merchantID int64
	sku        string
	quantity   int
	userID     int64
	amount     decimal.Decimal
}

// Reconciler propagates committed cache state into the durable store off the
// request path. Nothing waits on it; every failure is terminal-logged. The
// relative ordering of write-backs against later requests on the same keys is
// not guaranteed.
type Reconciler struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger *zap.Logger

	workers int
	tasks   chan reconcileTask
	wg      sync.WaitGroup
}

func NewReconciler(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger, workers, queueSize int) *Reconciler {
	return &Reconciler{
		db:      db,
		cache:   cache,
		logger:  logger,
		workers: workers,
		tasks:   make(chan reconcileTask, queueSize),
	}
}

func (r *Reconciler) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.workerLoop()
		}()
	}
}

// Close stops accepting tasks and drains the queue.
func (r *Reconciler) Close() {
	close(r.tasks)
	r.wg.Wait()
}

func (r *Reconciler) EnqueueStockDecrease(merchantID int64, sku string, quantity int) {
	r.tasks <- reconcileTask{kind: taskStockDecrease, merchantID: merchantID, sku: sku, quantity: quantity}
}

func (r *Reconciler) EnqueueBalanceSync(userID, merchantID int64, amount decimal.Decimal) {
	r.tasks <- reconcileTask{kind: taskBalanceSync, userID: userID, merchantID: merchantID, amount: amount}
}

func (r *Reconciler) workerLoop() {
	for task := range r.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)

		switch task.kind {
		case taskStockDecrease:
			r.applyStockDecrease(ctx, task)
		case taskBalanceSync:
			r.applyBalanceSync(ctx, task)
		}

		cancel()
	}
}

// applyStockDecrease mirrors a committed cache decrement onto the durable
// inventory row under a row lock. If the durable side can never catch up (row
// missing) or the write fails, the cache decrement is compensated so the two
// tiers do not drift apart silently.
func (r *Reconciler) applyStockDecrease(ctx context.Context, task reconcileTask) {
	inv, err := r.db.DecreaseInventoryQuantity(ctx, task.merchantID, task.sku, task.quantity)
	if err == nil && inv == nil {
		err = errors.New("durable inventory row missing")
	}
	if err != nil {
		r.logger.Error("durable stock write-back failed",
			zap.Int64("merchant_id", task.merchantID),
			zap.String("sku", task.sku),
			zap.Int("quantity", task.quantity),
			zap.Error(err))

		if cerr := r.cache.IncrementInventory(ctx, task.merchantID, task.sku, task.quantity); cerr != nil {
			r.logger.Error("stock write-back compensation failed",
				zap.Int64("merchant_id", task.merchantID),
				zap.String("sku", task.sku),
				zap.Error(cerr))
		}
		return
	}

	r.logger.Info("durable stock updated",
		zap.Int64("merchant_id", task.merchantID),
		zap.String("sku", task.sku),
		zap.Int("remaining", inv.Quantity))
}

// applyBalanceSync overwrites the durable account rows with the cache
// balances, which are ground truth once the transfer has committed. No cache
// compensation happens here; a durable gap is surfaced by settlement.
func (r *Reconciler) applyBalanceSync(ctx context.Context, task reconcileTask) {
	userBalance, ok, err := r.cache.GetUserBalance(ctx, task.userID)
	if err != nil || !ok {
		r.logger.Error("cached user balance unavailable, skipping write-back",
			zap.Int64("user_id", task.userID), zap.Bool("found", ok), zap.Error(err))
		return
	}

	merchantBalance, ok, err := r.cache.GetMerchantBalance(ctx, task.merchantID)
	if err != nil || !ok {
		r.logger.Error("cached merchant balance unavailable, skipping write-back",
			zap.Int64("merchant_id", task.merchantID), zap.Bool("found", ok), zap.Error(err))
		return
	}

	if acct, err := r.db.GetUserAccount(ctx, task.userID); err != nil || acct == nil {
		r.logger.Error("durable user account unavailable",
			zap.Int64("user_id", task.userID), zap.Error(err))
	} else {
		acct.Balance = userBalance
		if err := r.db.UpdateUserAccount(ctx, *acct); err != nil {
			r.logger.Error("durable user balance update failed",
				zap.Int64("user_id", task.userID), zap.Error(err))
		}
	}

	if acct, err := r.db.GetMerchantAccount(ctx, task.merchantID); err != nil || acct == nil {
		r.logger.Error("durable merchant account unavailable",
			zap.Int64("merchant_id", task.merchantID), zap.Error(err))
	} else {
		acct.Balance = merchantBalance
		if err := r.db.UpdateMerchantAccount(ctx, *acct); err != nil {
			r.logger.Error("durable merchant balance update failed",
				zap.Int64("merchant_id", task.merchantID), zap.Error(err))
		}
	}
}

package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/mall-ledger/internal/core/service"
)

// SettlementJob fires once a day at the configured hour and settles all
// merchants for the previous day. Batch failures never propagate; the
// settlement service logs them.
type SettlementJob struct {
	settlement *service.SettlementService
	logger     *zap.Logger
	hour       int
}

func NewSettlementJob(settlement *service.SettlementService, logger *zap.Logger, hour int) *SettlementJob {
	return &SettlementJob{settlement: settlement, logger: logger, hour: hour}
}

// Run blocks until ctx is cancelled.
func (j *SettlementJob) Run(ctx context.Context) {
	for {
		next := j.nextRun(time.Now())
		j.logger.Info("settlement job scheduled", zap.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			yesterday := time.Now().AddDate(0, 0, -1)
			j.settlement.SettleAllMerchants(ctx, yesterday)
		}
	}
}

func (j *SettlementJob) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), j.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

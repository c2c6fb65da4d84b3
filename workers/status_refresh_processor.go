package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/monitoring"
)

const (
	refreshBatchSize = 50
	refreshTimeout   = 60 * time.Second
)

type RefreshQueue interface {
	Due(limit int) ([]models.StatusRefresh, error)
	Claim(id int64) (bool, error)
	Finish(id int64, procErr error) error
}

type StatusRefresher interface {
	RefreshStatus(ctx context.Context, tenantID int64) (models.TenantAccount, error)
}

// StatusRefreshProcessor runs the status refreshes queued after links and webhooks
// once their scheduled time has passed.
type StatusRefreshProcessor struct {
	queue     RefreshQueue
	refresher StatusRefresher
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewStatusRefreshProcessor(queue RefreshQueue, refresher StatusRefresher, logger *zap.Logger) *StatusRefreshProcessor {
	return &StatusRefreshProcessor{
		queue:     queue,
		refresher: refresher,
		logger:    logger,
		interval:  time.Second,
		now:       time.Now,
	}
}

// Run polls the queue until ctx is cancelled, then waits for in-flight refreshes.
func (p *StatusRefreshProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return nil
		case <-ticker.C:
			p.processDue(ctx)
		}
	}
}

func (p *StatusRefreshProcessor) processDue(ctx context.Context) {
	rows, err := p.queue.Due(refreshBatchSize)
	if err != nil {
		p.logger.Error("refresh worker: query error", zap.Error(err))
		return
	}

	for _, row := range rows {
		// optimistic lock: only the worker that flips the status gets to run it
		ok, err := p.queue.Claim(row.ID)
		if err != nil || !ok {
			continue
		}

		p.wg.Add(1)
		go p.handle(ctx, row)
	}
}

func (p *StatusRefreshProcessor) handle(ctx context.Context, row models.StatusRefresh) {
	defer p.wg.Done()

	if row.ScheduledAt != nil {
		monitoring.RefreshLag.Observe(p.now().Sub(*row.ScheduledAt).Seconds())
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	_, err := p.refresher.RefreshStatus(ctx, row.TenantID)
	if err != nil {
		p.logger.Warn("refresh worker: status refresh failed",
			zap.Int64("refresh_id", row.ID),
			zap.Int64("tenant_id", row.TenantID),
			zap.String("reason", row.Reason),
			zap.Error(err),
		)
	}
	if err := p.queue.Finish(row.ID, err); err != nil {
		p.logger.Error("refresh worker: failed to finish refresh", zap.Int64("refresh_id", row.ID), zap.Error(err))
	}
}

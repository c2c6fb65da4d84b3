package db

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"

	"wabaconnect/models"
)

// DefaultRefreshLease is how long a claimed refresh may stay in processing before
// another worker takes it over. It must exceed the worker's per-refresh timeout.
const DefaultRefreshLease = 2 * time.Minute

// RefreshQueue persists delayed status refreshes so they survive restarts.
type RefreshQueue struct {
	db    *gorm.DB
	now   func() time.Time
	lease time.Duration
}

func NewRefreshQueue(db *gorm.DB) *RefreshQueue {
	return &RefreshQueue{db: db, now: time.Now, lease: DefaultRefreshLease}
}

// claimable matches pending rows and processing rows whose claim has expired.
func (q *RefreshQueue) claimable(scope *gorm.DB, now time.Time) *gorm.DB {
	return scope.Where("status = ? OR (status = ? AND (claimed_at IS NULL OR claimed_at < ?))",
		models.REFRESH_STATUS_PENDING, models.REFRESH_STATUS_PROCESSING, now.Add(-q.lease))
}

// Schedule inserts one pending refresh per delay (one immediate refresh when no delay
// is given).
func (q *RefreshQueue) Schedule(ctx context.Context, tenantID int64, reason string, delays ...time.Duration) error {
	if len(delays) == 0 {
		delays = []time.Duration{0}
	}
	now := q.now().UTC()
	return q.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range delays {
			at := now.Add(d)
			row := models.StatusRefresh{
				TenantID:    tenantID,
				Reason:      reason,
				Status:      models.REFRESH_STATUS_PENDING,
				ScheduledAt: &at,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Due lists refreshes whose scheduled time has passed, oldest first. Rows left in
// processing by a worker that died are included once their lease runs out.
func (q *RefreshQueue) Due(limit int) ([]models.StatusRefresh, error) {
	now := q.now().UTC()
	var rows []models.StatusRefresh
	err := q.claimable(q.db, now).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc, id asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Claim moves a refresh to processing and stamps the claim time. It returns false
// when another worker got there first.
func (q *RefreshQueue) Claim(id int64) (bool, error) {
	now := q.now().UTC()
	res := q.claimable(q.db.Model(&models.StatusRefresh{}).Where("id = ?", id), now).
		Updates(map[string]any{
			"status":     models.REFRESH_STATUS_PROCESSING,
			"claimed_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Finish marks a claimed refresh done, or failed with the error text.
func (q *RefreshQueue) Finish(id int64, procErr error) error {
	t := q.now().UTC()
	cols := map[string]any{
		"status":       models.REFRESH_STATUS_DONE,
		"processed_at": &t,
		"error":        "",
	}
	if procErr != nil {
		cols["status"] = models.REFRESH_STATUS_FAILED
		cols["error"] = procErr.Error()
	}
	return q.db.Model(&models.StatusRefresh{}).Where("id = ?", id).Updates(cols).Error
}

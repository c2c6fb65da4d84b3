package models

import "time"

/************************************************
/**** MARK: STATUS REFRESH STATUS ****/
/************************************************/
const REFRESH_STATUS_PENDING = "pending"
const REFRESH_STATUS_PROCESSING = "processing"
const REFRESH_STATUS_DONE = "done"
const REFRESH_STATUS_FAILED = "failed"

/************************************************
/**** MARK: STATUS REFRESH REASON ****/
/************************************************/
const REFRESH_REASON_LINKED = "linked"
const REFRESH_REASON_LINK_FAILED = "link-failed"
const REFRESH_REASON_WEBHOOK = "webhook"

// StatusRefresh is a delayed status poll for one tenant.
// It is created as "pending" and picked up by the refresh worker once ScheduledAt has passed.
// A "processing" row whose claim is older than the queue lease is picked up again.
type StatusRefresh struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID    int64      `gorm:"not null;default:0;index" json:"tenant_id"`
	Reason      string     `gorm:"not null;default:''" json:"reason"`
	Status      string     `gorm:"not null;default:'pending';index" json:"status"`
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at"`
	ClaimedAt   *time.Time `json:"claimed_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	Error       string     `gorm:"type:text" json:"error"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

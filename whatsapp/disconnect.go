package whatsapp

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/monitoring"
)

// Disconnect clears every WhatsApp field of the tenant in one write. No history is kept.
func (s *Service) Disconnect(ctx context.Context, tenantID int64) (models.TenantAccount, error) {
	before, err := s.deps.Store.Get(ctx, tenantID)
	if err != nil {
		return models.TenantAccount{}, err
	}

	tenant, err := s.deps.Store.UpdateWhatsApp(ctx, tenantID, models.DisconnectPatch())
	if err != nil {
		return models.TenantAccount{}, err
	}
	s.states.reset(tenantID)
	s.publish(ctx, models.WORKFLOW_EVENT_DISCONNECTED, tenantID, before.WhatsAppBusinessAccountID, nil)
	return tenant, nil
}

// RemoteUpdate is a change reported by the platform outside of any user action
// (account review decisions, phone number changes).
type RemoteUpdate struct {
	WabaID                string
	AccountReviewDecision string
	PhoneNumber           string
	PhoneEvent            string
}

func (u RemoteUpdate) patch() models.WhatsAppPatch {
	var patch models.WhatsAppPatch
	if review := normalizeReview(u.AccountReviewDecision); review != "" {
		patch.AccountReviewStatus = models.String(review)
	}
	if phone := strings.TrimSpace(u.PhoneNumber); phone != "" {
		patch.PhoneNumber = models.String(phone)
	}
	return patch
}

// ApplyRemoteUpdate applies a platform-originated change only if it was observed after
// the tenant's last write. It reports whether the update was applied. Every related
// update queues a status refresh, so a dropped one is still read back from the platform.
func (s *Service) ApplyRemoteUpdate(ctx context.Context, tenantID int64, update RemoteUpdate, observedAt time.Time) (bool, error) {
	tenant, err := s.deps.Store.Get(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if !tenant.IsLinked() || (update.WabaID != "" && update.WabaID != tenant.WhatsAppBusinessAccountID) {
		monitoring.RemoteUpdates.WithLabelValues("unrelated").Inc()
		return false, nil
	}

	patch := update.patch()
	applied := false
	if !patch.IsEmpty() {
		applied, err = s.deps.Store.ApplyRemoteWhatsApp(ctx, tenantID, patch, observedAt)
		if err != nil {
			return false, err
		}
		if !applied {
			monitoring.RemoteUpdates.WithLabelValues("stale").Inc()
			s.log.Info("dropped stale remote update",
				zap.Int64("tenant_id", tenantID),
				zap.Time("observed_at", observedAt),
			)
			s.schedule(ctx, tenantID, models.REFRESH_REASON_WEBHOOK, 0)
			return false, nil
		}
		monitoring.RemoteUpdates.WithLabelValues("applied").Inc()
	}

	s.schedule(ctx, tenantID, models.REFRESH_REASON_WEBHOOK, 0)
	s.publish(ctx, models.WORKFLOW_EVENT_REMOTE_UPDATE, tenantID, tenant.WhatsAppBusinessAccountID, map[string]any{
		"accountReviewDecision": update.AccountReviewDecision,
		"phoneEvent":            update.PhoneEvent,
		"applied":               applied,
	})
	return applied, nil
}

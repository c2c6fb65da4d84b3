package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/monitoring"
)

// RefreshStatus pulls the review and phone state from the platform and merges it into
// the tenant. Test-mode tenants get the fixed approved state without a remote call;
// tenants with no linked account are left alone.
//
// Procedure failures wrap ErrStatusUnavailable and leave the tenant untouched.
func (s *Service) RefreshStatus(ctx context.Context, tenantID int64) (models.TenantAccount, error) {
	tenant, err := s.deps.Store.Get(ctx, tenantID)
	if err != nil {
		return models.TenantAccount{}, err
	}

	now := s.now().UTC()

	if tenant.WhatsAppTestMode {
		updated, err := s.deps.Store.UpdateWhatsApp(ctx, tenantID, testModeStatusPatch(now))
		if err != nil {
			return tenant, err
		}
		monitoring.StatusRefreshes.WithLabelValues("test_mode").Inc()
		return updated, nil
	}

	if !tenant.IsLinked() {
		monitoring.StatusRefreshes.WithLabelValues("skipped").Inc()
		return tenant, nil
	}

	resp, err := s.deps.Status.Status(ctx, StatusRequest{
		TenantID:      tenantID,
		WabaID:        tenant.WhatsAppBusinessAccountID,
		PhoneNumberID: tenant.WhatsAppPhoneNumberID,
	})
	if err == nil && !resp.Success {
		err = fmt.Errorf("success=false")
	}
	if err != nil {
		monitoring.StatusRefreshes.WithLabelValues("failed").Inc()
		s.log.Warn("status procedure failed",
			zap.Int64("tenant_id", tenantID),
			zap.String("waba_id", tenant.WhatsAppBusinessAccountID),
			zap.Error(err),
		)
		return tenant, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}

	patch := mergeStatus(tenant, resp.Status, now)
	next := tenant
	patch.ApplyTo(&next)
	if violated := next.CheckInvariants(); violated != "" {
		return tenant, fmt.Errorf("refusing to write tenant %d: %s", tenantID, violated)
	}

	updated, err := s.deps.Store.UpdateWhatsApp(ctx, tenantID, patch)
	if err != nil {
		return tenant, err
	}
	monitoring.StatusRefreshes.WithLabelValues("updated").Inc()
	s.publish(ctx, models.WORKFLOW_EVENT_STATUS_REFRESHED, tenantID, updated.WhatsAppBusinessAccountID, map[string]any{
		"accountReviewStatus":     updated.WhatsAppAccountReviewStatus,
		"phoneVerificationStatus": updated.WhatsAppPhoneVerificationStatus,
		"ready":                   updated.WhatsAppReady,
	})
	return updated, nil
}

// mergeStatus builds a patch where only values the platform actually reported
// overwrite the tenant. Verified can never be true on an unregistered phone.
func mergeStatus(tenant models.TenantAccount, st PlatformStatus, now time.Time) models.WhatsAppPatch {
	patch := models.WhatsAppPatch{LastStatusCheckAt: models.Time(now)}

	if review := normalizeReview(st.AccountReview.Status); review != "" {
		patch.AccountReviewStatus = models.String(review)
	}
	if id := strings.TrimSpace(st.Phone.PhoneNumberID); id != "" {
		patch.PhoneNumberID = models.String(id)
	}
	if phone := strings.TrimSpace(st.Phone.PhoneNumber); phone != "" {
		patch.PhoneNumber = models.String(phone)
	}
	if status := normalizePhoneStatus(st.Phone.VerificationStatus); status != "" {
		patch.PhoneVerificationStatus = models.String(status)
	}

	registered := tenant.WhatsAppPhoneRegistered
	if st.Phone.Registered != nil {
		registered = *st.Phone.Registered
		patch.PhoneRegistered = models.Bool(registered)
	}
	switch {
	case st.Phone.Verified != nil:
		patch.Verified = models.Bool(*st.Phone.Verified && registered)
	case !registered && tenant.WhatsAppVerified:
		patch.Verified = models.Bool(false)
	}

	if st.Overall.Ready != nil {
		patch.Ready = models.Bool(*st.Overall.Ready)
	}
	if st.Overall.PendingActions != nil {
		patch.PendingActions = append([]string{}, st.Overall.PendingActions...)
	}
	return patch
}

func testModeStatusPatch(now time.Time) models.WhatsAppPatch {
	return models.WhatsAppPatch{
		PhoneRegistered:         models.Bool(true),
		Verified:                models.Bool(true),
		PhoneVerificationStatus: models.String(models.WHATSAPP_PHONE_CONNECTED),
		AccountReviewStatus:     models.String(models.WHATSAPP_REVIEW_APPROVED),
		Ready:                   models.Bool(true),
		PendingActions:          []string{},
		LastStatusCheckAt:       models.Time(now),
	}
}

func normalizeReview(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case models.WHATSAPP_REVIEW_PENDING:
		return models.WHATSAPP_REVIEW_PENDING
	case models.WHATSAPP_REVIEW_APPROVED:
		return models.WHATSAPP_REVIEW_APPROVED
	case models.WHATSAPP_REVIEW_REJECTED:
		return models.WHATSAPP_REVIEW_REJECTED
	default:
		return ""
	}
}

func normalizePhoneStatus(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case models.WHATSAPP_PHONE_NOT_REGISTERED, "not_registered":
		return models.WHATSAPP_PHONE_NOT_REGISTERED
	case models.WHATSAPP_PHONE_PENDING:
		return models.WHATSAPP_PHONE_PENDING
	case models.WHATSAPP_PHONE_VALID:
		return models.WHATSAPP_PHONE_VALID
	case models.WHATSAPP_PHONE_CONNECTED:
		return models.WHATSAPP_PHONE_CONNECTED
	default:
		return ""
	}
}

package whatsapp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wabaconnect/models"
)

const testModeNotice = "Test mode is for development only. The account uses a shared test number and a temporary access token."

// TestModeActivation is returned after the canned test account was written.
type TestModeActivation struct {
	Tenant         models.TenantAccount `json:"tenant"`
	Notice         string               `json:"notice"`
	TokenExpiresAt time.Time            `json:"tokenExpiresAt"`
}

// ActivateTestMode seeds the tenant with the configured test account in a fully
// approved state. An invalid test-mode block refuses the write.
func (s *Service) ActivateTestMode(ctx context.Context, tenantID int64) (TestModeActivation, error) {
	cfg := s.settings.TestMode
	if err := cfg.Validate(); err != nil {
		s.log.Warn("test mode activation refused", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return TestModeActivation{}, fmt.Errorf("%w: %v", ErrTestModeConfig, err)
	}

	now := s.now().UTC()
	patch := testModeStatusPatch(now)
	patch.BusinessAccountID = models.String(cfg.WabaID)
	patch.PhoneNumberID = models.String(cfg.PhoneNumberID)
	patch.PhoneNumber = models.String(cfg.PhoneNumber)
	patch.Enabled = models.Bool(true)
	patch.Provider = models.String(s.settings.Provider)
	patch.CreatedVia = models.String(models.WHATSAPP_CREATED_VIA_TEST_MODE)
	patch.TestMode = models.Bool(true)

	tenant, err := s.deps.Store.UpdateWhatsApp(ctx, tenantID, patch)
	if err != nil {
		return TestModeActivation{}, err
	}
	s.states.forceLinked(tenantID)
	s.publish(ctx, models.WORKFLOW_EVENT_TEST_MODE, tenantID, cfg.WabaID, nil)

	return TestModeActivation{
		Tenant:         tenant,
		Notice:         testModeNotice,
		TokenExpiresAt: now.Add(cfg.TokenLifetime()),
	}, nil
}

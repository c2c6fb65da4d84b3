package whatsapp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wabaconnect/config"
	"wabaconnect/models"
)

// Deps are the collaborators of the connection workflow. Sessions, Refreshes and
// Events are optional.
type Deps struct {
	Store     TenantStore
	Links     LinkProcedure
	Status    StatusProcedure
	Refreshes RefreshScheduler
	Sessions  SessionStore
	Events    Publisher
	Logger    *zap.Logger
}

type SignupSettings struct {
	BaseURL     string
	RedirectURI string
	AppID       string
	ConfigID    string
	PopupWidth  int
	PopupHeight int
}

type Settings struct {
	// Provider is written to whatsappProvider on every successful link.
	Provider string
	Signup   SignupSettings
	Origins  OriginPolicy
	TestMode config.TestModeConfig
}

// Service runs the WhatsApp Business Account connection workflow for all tenants.
type Service struct {
	deps     Deps
	settings Settings
	states   *StateHolder
	log      *zap.Logger
	now      func() time.Time
}

func NewService(deps Deps, settings Settings) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Provider == "" {
		settings.Provider = models.WHATSAPP_PROVIDER_TECH_PROVIDER
	}
	return &Service{
		deps:     deps,
		settings: settings,
		states:   NewStateHolder(),
		log:      logger,
		now:      time.Now,
	}
}

// State returns the current link state of a tenant.
func (s *Service) State(tenantID int64) LinkState {
	return s.states.Get(tenantID)
}

// Origins returns the message origin allow-list.
func (s *Service) Origins() OriginPolicy {
	return s.settings.Origins
}

func (s *Service) publish(ctx context.Context, eventType string, tenantID int64, wabaID string, detail map[string]any) {
	if s.deps.Events == nil {
		return
	}
	ev := models.WorkflowEvent{
		Type:     eventType,
		TenantID: tenantID,
		WabaID:   wabaID,
		Detail:   detail,
		At:       s.now().UTC(),
	}
	if err := s.deps.Events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish workflow event",
			zap.String("type", eventType),
			zap.Int64("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}

func (s *Service) schedule(ctx context.Context, tenantID int64, reason string, delays ...time.Duration) {
	if s.deps.Refreshes == nil {
		return
	}
	if err := s.deps.Refreshes.Schedule(ctx, tenantID, reason, delays...); err != nil {
		s.log.Warn("failed to schedule status refresh",
			zap.Int64("tenant_id", tenantID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

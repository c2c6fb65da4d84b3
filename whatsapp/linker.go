package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/monitoring"
)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Delays of the status polls queued after a successful link. The platform needs a few
// seconds before the review and phone state of a fresh link are readable.
var linkedRefreshDelays = []time.Duration{1 * time.Second, 6 * time.Second}

const linkWarning = "the account could not be linked right now; its status will be checked again shortly"

// LinkResult is what the client needs to render after a link or PIN step.
type LinkResult struct {
	Linked     bool                  `json:"linked"`
	RequirePin bool                  `json:"requirePin"`
	Warning    string                `json:"warning,omitempty"`
	Tenant     *models.TenantAccount `json:"tenant,omitempty"`
}

// ManualLink is the manual-entry fallback form.
type ManualLink struct {
	WabaID        string `json:"wabaId"`
	PhoneNumberID string `json:"phoneNumberId"`
	PhoneNumber   string `json:"phoneNumber"`
}

// HandleMessage processes one cross-window message forwarded by the dashboard.
// Ignored messages return an error wrapping ErrIgnoredMessage and change nothing.
func (s *Service) HandleMessage(ctx context.Context, tenantID int64, origin string, raw []byte) (LinkResult, error) {
	msg, err := ParseMessage(s.settings.Origins, origin, raw)
	if err != nil {
		var signupErr *SignupError
		if errors.As(err, &signupErr) {
			monitoring.SignupMessages.WithLabelValues(msg.Shape, "error").Inc()
			s.states.markDelivered(tenantID)
			s.publish(ctx, models.WORKFLOW_EVENT_LINK_FAILED, tenantID, "", map[string]any{"message": signupErr.Message})
			s.log.Info("embedded signup reported an error",
				zap.Int64("tenant_id", tenantID),
				zap.String("message", signupErr.Message),
			)
			return LinkResult{}, err
		}
		monitoring.SignupMessages.WithLabelValues(msg.Shape, "ignored").Inc()
		s.log.Debug("signup message ignored", zap.Int64("tenant_id", tenantID), zap.String("origin", origin), zap.Error(err))
		return LinkResult{}, err
	}

	if msg.OriginBypassed {
		s.log.Warn("accepted bridge message from an origin outside the allow-list",
			zap.Int64("tenant_id", tenantID),
			zap.String("origin", origin),
		)
	}
	monitoring.SignupMessages.WithLabelValues(msg.Shape, "accepted").Inc()
	s.states.markDelivered(tenantID)

	return s.Link(ctx, tenantID, msg.Candidate, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
}

// LinkManual links identifiers typed in by the user.
func (s *Service) LinkManual(ctx context.Context, tenantID int64, in ManualLink) (LinkResult, error) {
	return s.Link(ctx, tenantID, Candidate{
		WabaID:        in.WabaID,
		PhoneNumberID: in.PhoneNumberID,
		PhoneNumber:   in.PhoneNumber,
	}, models.WHATSAPP_CREATED_VIA_MANUAL_ENTRY)
}

// Link sends a candidate to the linking procedure and persists the outcome.
//
// Procedure failures are not errors: they come back as a Warning, the state returns to
// idle and a status refresh is queued. A requirePin answer holds the candidate without
// writing anything.
func (s *Service) Link(ctx context.Context, tenantID int64, c Candidate, via string) (LinkResult, error) {
	c.WabaID = strings.TrimSpace(c.WabaID)
	c.PhoneNumberID = strings.TrimSpace(c.PhoneNumberID)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	if c.WabaID == "" {
		monitoring.LinkAttempts.WithLabelValues(via, "invalid").Inc()
		return LinkResult{}, ErrMissingWabaID
	}

	gen := s.states.beginLink(tenantID, PendingLink{Candidate: c, Via: via})

	resp, err := s.deps.Links.Link(ctx, LinkRequest{
		TenantID:      tenantID,
		WabaID:        c.WabaID,
		PhoneNumberID: c.PhoneNumberID,
		PhoneNumber:   c.PhoneNumber,
		EmbeddedData:  c.RawPayload,
	})
	if err == nil && !resp.Success && !resp.RequirePin {
		err = errors.New("link procedure returned success=false")
	}
	if err != nil {
		s.states.resetIf(tenantID, gen)
		monitoring.LinkAttempts.WithLabelValues(via, "failed").Inc()
		s.log.Warn("link procedure failed",
			zap.Int64("tenant_id", tenantID),
			zap.String("waba_id", c.WabaID),
			zap.Error(err),
		)
		s.schedule(ctx, tenantID, models.REFRESH_REASON_LINK_FAILED, 0)
		s.publish(ctx, models.WORKFLOW_EVENT_LINK_FAILED, tenantID, c.WabaID, map[string]any{"error": err.Error(), "via": via})
		return LinkResult{Warning: linkWarning}, nil
	}

	if resp.RequirePin {
		s.states.awaitPin(tenantID, gen)
		monitoring.LinkAttempts.WithLabelValues(via, "require_pin").Inc()
		s.publish(ctx, models.WORKFLOW_EVENT_PIN_REQUIRED, tenantID, c.WabaID, map[string]any{"via": via})
		return LinkResult{RequirePin: true}, nil
	}

	tenant, err := s.persistLink(ctx, tenantID, c, resp, via, false)
	if err != nil {
		s.states.resetIf(tenantID, gen)
		return LinkResult{}, err
	}
	s.states.markLinked(tenantID, gen)
	monitoring.LinkAttempts.WithLabelValues(via, "linked").Inc()

	s.schedule(ctx, tenantID, models.REFRESH_REASON_LINKED, linkedRefreshDelays...)
	s.publish(ctx, models.WORKFLOW_EVENT_LINKED, tenantID, tenant.WhatsAppBusinessAccountID, map[string]any{"via": via})

	return LinkResult{Linked: true, Tenant: &tenant}, nil
}

// SubmitPIN retries the held candidate with the user's two-step verification PIN.
func (s *Service) SubmitPIN(ctx context.Context, tenantID int64, pin string) (LinkResult, error) {
	if !pinPattern.MatchString(pin) {
		monitoring.PinSubmissions.WithLabelValues("invalid").Inc()
		return LinkResult{RequirePin: true}, ErrInvalidPIN
	}

	pending, gen, ok := s.states.held(tenantID)
	if !ok {
		monitoring.PinSubmissions.WithLabelValues("no_pending").Inc()
		return LinkResult{}, ErrNoPendingLink
	}
	c := pending.Candidate

	resp, err := s.deps.Links.Link(ctx, LinkRequest{
		TenantID:      tenantID,
		WabaID:        c.WabaID,
		PhoneNumberID: c.PhoneNumberID,
		PhoneNumber:   c.PhoneNumber,
		PIN:           pin,
		EmbeddedData:  c.RawPayload,
	})
	if err == nil && !resp.Success && !resp.RequirePin {
		err = errors.New("link procedure returned success=false")
	}
	if err != nil {
		monitoring.PinSubmissions.WithLabelValues("failed").Inc()
		s.log.Warn("link procedure failed during pin submission",
			zap.Int64("tenant_id", tenantID),
			zap.String("waba_id", c.WabaID),
			zap.Error(err),
		)
		s.schedule(ctx, tenantID, models.REFRESH_REASON_LINK_FAILED, 0)
		return LinkResult{RequirePin: true, Warning: linkWarning}, nil
	}

	if resp.RequirePin {
		monitoring.PinSubmissions.WithLabelValues("incorrect").Inc()
		s.publish(ctx, models.WORKFLOW_EVENT_PIN_REJECTED, tenantID, c.WabaID, nil)
		return LinkResult{RequirePin: true}, ErrIncorrectPIN
	}

	tenant, err := s.persistLink(ctx, tenantID, c, resp, pending.Via, true)
	if err != nil {
		return LinkResult{RequirePin: true}, err
	}
	s.states.markLinked(tenantID, gen)
	monitoring.PinSubmissions.WithLabelValues("accepted").Inc()
	s.schedule(ctx, tenantID, models.REFRESH_REASON_LINKED, linkedRefreshDelays...)
	s.publish(ctx, models.WORKFLOW_EVENT_LINKED, tenantID, tenant.WhatsAppBusinessAccountID, map[string]any{"via": pending.Via, "pin": true})

	return LinkResult{Linked: true, Tenant: &tenant}, nil
}

// CancelPIN discards a candidate waiting on a PIN. It reports whether one was held.
func (s *Service) CancelPIN(tenantID int64) bool {
	if _, _, ok := s.states.held(tenantID); !ok {
		return false
	}
	s.states.reset(tenantID)
	return true
}

// persistLink writes the linked identifiers in one column-scoped update.
// Identifiers returned by the procedure win over the candidate's.
func (s *Service) persistLink(ctx context.Context, tenantID int64, c Candidate, resp LinkResponse, via string, pinAccepted bool) (models.TenantAccount, error) {
	current, err := s.deps.Store.Get(ctx, tenantID)
	if err != nil {
		return models.TenantAccount{}, err
	}

	wabaID := strings.TrimSpace(firstNonEmpty(resp.WabaID, c.WabaID))
	phoneID := strings.TrimSpace(firstNonEmpty(resp.PhoneNumberID, c.PhoneNumberID))
	phone := strings.TrimSpace(firstNonEmpty(resp.PhoneNumber, c.PhoneNumber))

	patch := models.WhatsAppPatch{
		BusinessAccountID: models.String(wabaID),
		PhoneNumberID:     models.String(phoneID),
		PhoneNumber:       models.String(phone),
		Enabled:           models.Bool(true),
		Provider:          models.String(s.settings.Provider),
		CreatedVia:        models.String(via),
		TestMode:          models.Bool(false),
	}

	// Relinking the same account keeps the review state the platform already reported.
	// Test-mode sentinels never survive a real link.
	sameWaba := current.WhatsAppBusinessAccountID == wabaID && !current.WhatsAppTestMode
	if !sameWaba || current.WhatsAppAccountReviewStatus == "" {
		patch.AccountReviewStatus = models.String(models.WHATSAPP_REVIEW_PENDING)
	}
	if !sameWaba {
		patch.Ready = models.Bool(false)
		patch.Verified = models.Bool(false)
		patch.ClearPendingActions = true
		patch.ClearLastStatusCheck = true
	}

	samePhone := sameWaba && current.WhatsAppPhoneNumberID == phoneID && current.WhatsAppPhoneVerificationStatus != ""
	switch {
	case pinAccepted:
		patch.PhoneRegistered = models.Bool(true)
		patch.PhoneVerificationStatus = models.String(models.WHATSAPP_PHONE_VALID)
		if !samePhone {
			// verification belongs to the number, only the platform can confirm the new one
			patch.Verified = models.Bool(false)
		}
	case samePhone:
		// nothing new to say about the phone
	default:
		status := models.WHATSAPP_PHONE_NOT_REGISTERED
		if phoneID != "" || phone != "" {
			status = models.WHATSAPP_PHONE_PENDING
		}
		patch.PhoneVerificationStatus = models.String(status)
		patch.PhoneRegistered = models.Bool(false)
		patch.Verified = models.Bool(false)
	}

	next := current
	patch.ApplyTo(&next)
	if violated := next.CheckInvariants(); violated != "" {
		return models.TenantAccount{}, fmt.Errorf("refusing to write tenant %d: %s", tenantID, violated)
	}

	return s.deps.Store.UpdateWhatsApp(ctx, tenantID, patch)
}

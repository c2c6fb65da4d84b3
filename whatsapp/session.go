package whatsapp

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/monitoring"
)

// How often the client checks whether the signup popup was closed.
const popupPollInterval = time.Second

type Popup struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SignupLaunch tells the client how to open the embedded signup.
type SignupLaunch struct {
	SessionID      string    `json:"sessionId"`
	URL            string    `json:"url"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Popup          Popup     `json:"popup"`
	PollIntervalMs int64     `json:"pollIntervalMs"`
	// FallbackToRedirect means the client should navigate to URL if the popup is blocked.
	FallbackToRedirect bool `json:"fallbackToRedirect"`
}

// StartSignup records a pending signup session and builds the signup URL.
// A failure to record the session is logged and does not stop the signup.
func (s *Service) StartSignup(ctx context.Context, tenantID int64) (SignupLaunch, error) {
	now := s.now().UTC()
	session := models.PendingSignupSession{
		SessionID: uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(models.SIGNUP_SESSION_TTL),
	}

	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Save(ctx, session); err != nil {
			s.log.Warn("failed to record signup session",
				zap.Int64("tenant_id", tenantID),
				zap.String("session_id", session.SessionID),
				zap.Error(err),
			)
		}
	}

	signupURL, err := s.signupURL(session.SessionID)
	if err != nil {
		return SignupLaunch{}, err
	}

	s.states.startSession(tenantID, session.SessionID)
	monitoring.SignupSessions.Inc()
	s.publish(ctx, models.WORKFLOW_EVENT_SIGNUP_STARTED, tenantID, "", map[string]any{"sessionId": session.SessionID})

	return SignupLaunch{
		SessionID:          session.SessionID,
		URL:                signupURL,
		ExpiresAt:          session.ExpiresAt,
		Popup:              Popup{Width: s.settings.Signup.PopupWidth, Height: s.settings.Signup.PopupHeight},
		PollIntervalMs:     popupPollInterval.Milliseconds(),
		FallbackToRedirect: true,
	}, nil
}

func (s *Service) signupURL(sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s.settings.Signup.BaseURL))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("state", sessionID)
	q.Set("redirect_uri", s.settings.Signup.RedirectURI)
	if s.settings.Signup.AppID != "" {
		q.Set("app_id", s.settings.Signup.AppID)
	}
	if s.settings.Signup.ConfigID != "" {
		q.Set("config_id", s.settings.Signup.ConfigID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

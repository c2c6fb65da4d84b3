package models

import "time"

// SIGNUP_SESSION_TTL is how long a pending embedded-signup session stays around.
const SIGNUP_SESSION_TTL = 10 * time.Minute

// PendingSignupSession marks an embedded-signup popup that was opened for a tenant.
// It is informational: nothing in the workflow fails because a session expired.
type PendingSignupSession struct {
	SessionID string    `json:"sessionId"`
	TenantID  int64     `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s PendingSignupSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

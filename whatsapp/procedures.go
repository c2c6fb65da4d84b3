package whatsapp

import (
	"context"
	"encoding/json"
	"time"

	"wabaconnect/models"
)

// LinkRequest is the input of the remote linking procedure.
type LinkRequest struct {
	TenantID      int64           `json:"-"`
	WabaID        string          `json:"wabaId"`
	PhoneNumberID string          `json:"phoneNumberId,omitempty"`
	PhoneNumber   string          `json:"phoneNumber,omitempty"`
	PIN           string          `json:"pin,omitempty"`
	EmbeddedData  json.RawMessage `json:"embeddedData,omitempty"`
}

// LinkResponse is the output of the remote linking procedure.
type LinkResponse struct {
	Success       bool   `json:"success"`
	WabaID        string `json:"wabaId,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	RequirePin    bool   `json:"requirePin,omitempty"`
}

// SharedAccount is a business account the platform reports as shared with the app.
type SharedAccount struct {
	WabaID        string `json:"wabaId"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

// LinkProcedure persists business-account identifiers on the platform side.
type LinkProcedure interface {
	Link(ctx context.Context, req LinkRequest) (LinkResponse, error)
	SharedAccounts(ctx context.Context) ([]SharedAccount, error)
}

// StatusRequest identifies the caller of the remote status procedure.
type StatusRequest struct {
	TenantID      int64
	WabaID        string
	PhoneNumberID string
}

// StatusResponse is the output of the remote status procedure.
type StatusResponse struct {
	Success bool           `json:"success"`
	Status  PlatformStatus `json:"status"`
}

type PlatformStatus struct {
	Waba          WabaStatus          `json:"waba"`
	AccountReview AccountReviewStatus `json:"accountReview"`
	Phone         PhoneStatus         `json:"phone"`
	Overall       OverallStatus       `json:"overall"`
}

type WabaStatus struct {
	ID                         string `json:"id,omitempty"`
	Name                       string `json:"name,omitempty"`
	BusinessVerificationStatus string `json:"businessVerificationStatus,omitempty"`
}

type AccountReviewStatus struct {
	Status     string `json:"status,omitempty"`
	IsApproved bool   `json:"isApproved"`
	IsPending  bool   `json:"isPending"`
}

// PhoneStatus uses pointers for the booleans: nil means the platform did not say.
type PhoneStatus struct {
	PhoneNumberID      string `json:"phoneNumberId,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	Verified           *bool  `json:"verified,omitempty"`
	Registered         *bool  `json:"registered,omitempty"`
	VerificationStatus string `json:"verificationStatus,omitempty"`
	NeedsVerification  bool   `json:"needsVerification"`
}

type OverallStatus struct {
	Ready          *bool    `json:"ready,omitempty"`
	NeedsAction    bool     `json:"needsAction"`
	PendingActions []string `json:"pendingActions"`
}

// StatusProcedure fetches the current verification/review state from the platform.
type StatusProcedure interface {
	Status(ctx context.Context, req StatusRequest) (StatusResponse, error)
}

// TenantStore is the tenant document store as seen by the workflow.
type TenantStore interface {
	Get(ctx context.Context, tenantID int64) (models.TenantAccount, error)
	// UpdateWhatsApp applies a local write and stamps the last-write marker.
	UpdateWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch) (models.TenantAccount, error)
	// ApplyRemoteWhatsApp applies a remote-origin write only if observedAt is newer than
	// the last write. It reports whether the write was applied.
	ApplyRemoteWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch, observedAt time.Time) (bool, error)
}

// RefreshScheduler queues delayed status refreshes.
type RefreshScheduler interface {
	Schedule(ctx context.Context, tenantID int64, reason string, delays ...time.Duration) error
}

// SessionStore records pending embedded-signup sessions.
type SessionStore interface {
	Save(ctx context.Context, session models.PendingSignupSession) error
}

// Publisher emits workflow audit events.
type Publisher interface {
	Publish(ctx context.Context, ev models.WorkflowEvent) error
}

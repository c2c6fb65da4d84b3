package models

import (
	"encoding/json"
	"time"
)

// WhatsAppPatch is a column-scoped partial update of the WhatsApp fields of a
// TenantAccount. Nil fields are left untouched.
type WhatsAppPatch struct {
	BusinessAccountID       *string
	PhoneNumberID           *string
	PhoneNumber             *string
	Enabled                 *bool
	Provider                *string
	CreatedVia              *string
	PhoneRegistered         *bool
	PhoneVerificationStatus *string
	Verified                *bool
	AccountReviewStatus     *string
	TestMode                *bool
	Ready                   *bool
	PendingActions          []string
	ClearPendingActions     bool
	LastStatusCheckAt       *time.Time
	ClearLastStatusCheck    bool
}

// String, Bool and Time are small helpers for building patches.
func String(v string) *string { return &v }

func Bool(v bool) *bool { return &v }

func Time(v time.Time) *time.Time { return &v }

// IsEmpty reports whether the patch would not change anything.
func (p WhatsAppPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Columns returns the patch as a column -> value map suitable for gorm Updates.
func (p WhatsAppPatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.BusinessAccountID != nil {
		cols["whatsapp_business_account_id"] = *p.BusinessAccountID
	}
	if p.PhoneNumberID != nil {
		cols["whatsapp_phone_number_id"] = *p.PhoneNumberID
	}
	if p.PhoneNumber != nil {
		cols["whatsapp_phone_number"] = *p.PhoneNumber
	}
	if p.Enabled != nil {
		cols["whatsapp_enabled"] = *p.Enabled
	}
	if p.Provider != nil {
		cols["whatsapp_provider"] = *p.Provider
	}
	if p.CreatedVia != nil {
		cols["whatsapp_created_via"] = *p.CreatedVia
	}
	if p.PhoneRegistered != nil {
		cols["whatsapp_phone_registered"] = *p.PhoneRegistered
	}
	if p.PhoneVerificationStatus != nil {
		cols["whatsapp_phone_verification_status"] = *p.PhoneVerificationStatus
	}
	if p.Verified != nil {
		cols["whatsapp_verified"] = *p.Verified
	}
	if p.AccountReviewStatus != nil {
		cols["whatsapp_account_review_status"] = *p.AccountReviewStatus
	}
	if p.TestMode != nil {
		cols["whatsapp_test_mode"] = *p.TestMode
	}
	if p.Ready != nil {
		cols["whatsapp_ready"] = *p.Ready
	}
	if p.PendingActions != nil {
		b, _ := json.Marshal(p.PendingActions)
		cols["whatsapp_pending_actions"] = string(b)
	} else if p.ClearPendingActions {
		cols["whatsapp_pending_actions"] = ""
	}
	if p.LastStatusCheckAt != nil {
		cols["whatsapp_last_status_check_at"] = *p.LastStatusCheckAt
	} else if p.ClearLastStatusCheck {
		cols["whatsapp_last_status_check_at"] = nil
	}
	return cols
}

// ApplyTo mutates t in memory the same way Columns would in the database.
func (p WhatsAppPatch) ApplyTo(t *TenantAccount) {
	if p.BusinessAccountID != nil {
		t.WhatsAppBusinessAccountID = *p.BusinessAccountID
	}
	if p.PhoneNumberID != nil {
		t.WhatsAppPhoneNumberID = *p.PhoneNumberID
	}
	if p.PhoneNumber != nil {
		t.WhatsAppPhoneNumber = *p.PhoneNumber
	}
	if p.Enabled != nil {
		t.WhatsAppEnabled = *p.Enabled
	}
	if p.Provider != nil {
		t.WhatsAppProvider = *p.Provider
	}
	if p.CreatedVia != nil {
		t.WhatsAppCreatedVia = *p.CreatedVia
	}
	if p.PhoneRegistered != nil {
		t.WhatsAppPhoneRegistered = *p.PhoneRegistered
	}
	if p.PhoneVerificationStatus != nil {
		t.WhatsAppPhoneVerificationStatus = *p.PhoneVerificationStatus
	}
	if p.Verified != nil {
		t.WhatsAppVerified = *p.Verified
	}
	if p.AccountReviewStatus != nil {
		t.WhatsAppAccountReviewStatus = *p.AccountReviewStatus
	}
	if p.TestMode != nil {
		t.WhatsAppTestMode = *p.TestMode
	}
	if p.Ready != nil {
		t.WhatsAppReady = *p.Ready
	}
	if v, ok := p.Columns()["whatsapp_pending_actions"]; ok {
		t.WhatsAppPendingActions = v.(string)
	}
	if p.LastStatusCheckAt != nil {
		t.WhatsAppLastStatusCheckAt = p.LastStatusCheckAt
	} else if p.ClearLastStatusCheck {
		t.WhatsAppLastStatusCheckAt = nil
	}
}

// DisconnectPatch clears every WhatsApp field back to its zero value.
func DisconnectPatch() WhatsAppPatch {
	return WhatsAppPatch{
		BusinessAccountID:       String(""),
		PhoneNumberID:           String(""),
		PhoneNumber:             String(""),
		Enabled:                 Bool(false),
		Provider:                String(""),
		CreatedVia:              String(""),
		PhoneRegistered:         Bool(false),
		PhoneVerificationStatus: String(""),
		Verified:                Bool(false),
		AccountReviewStatus:     String(""),
		TestMode:                Bool(false),
		Ready:                   Bool(false),
		ClearPendingActions:     true,
		ClearLastStatusCheck:    true,
	}
}

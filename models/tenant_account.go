package models

import (
	"encoding/json"
	"strings"
	"time"
)

/************************************************
/**** MARK: TENANT STATUS ****/
/************************************************/
const TENANT_STATUS_ACTIVE = "active"
const TENANT_STATUS_BLOCKED = "blocked"

/************************************************
/**** MARK: WHATSAPP PROVIDER ****/
/************************************************/
const WHATSAPP_PROVIDER_DIRECT = "direct"
const WHATSAPP_PROVIDER_TECH_PROVIDER = "tech-provider"

/************************************************
/**** MARK: WHATSAPP CREATED VIA ****/
/************************************************/
const WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP = "embedded-signup"
const WHATSAPP_CREATED_VIA_MANUAL_ENTRY = "manual-entry"
const WHATSAPP_CREATED_VIA_TEST_MODE = "test-mode"

/************************************************
/**** MARK: PHONE VERIFICATION STATUS ****/
/************************************************/
const WHATSAPP_PHONE_NOT_REGISTERED = "not-registered"
const WHATSAPP_PHONE_PENDING = "pending"
const WHATSAPP_PHONE_VALID = "valid"
const WHATSAPP_PHONE_CONNECTED = "connected"

/************************************************
/**** MARK: ACCOUNT REVIEW STATUS ****/
/************************************************/
const WHATSAPP_REVIEW_PENDING = "PENDING"
const WHATSAPP_REVIEW_APPROVED = "APPROVED"
const WHATSAPP_REVIEW_REJECTED = "REJECTED"

// TenantAccount is the one-per-business tenant document.
// Only the WhatsApp columns are owned by the connection workflow; everything else
// belongs to other screens and is never written from here.
type TenantAccount struct {
	ID     int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name   string `gorm:"not null;default:''" json:"name"`
	Status string `gorm:"not null;default:'active'" json:"status"`

	WhatsAppBusinessAccountID       string     `gorm:"column:whatsapp_business_account_id;default:''" json:"whatsappBusinessAccountId"`
	WhatsAppPhoneNumberID           string     `gorm:"column:whatsapp_phone_number_id;default:''" json:"whatsappPhoneNumberId"`
	WhatsAppPhoneNumber             string     `gorm:"column:whatsapp_phone_number;default:''" json:"whatsappPhoneNumber"`
	WhatsAppEnabled                 bool       `gorm:"column:whatsapp_enabled;not null;default:false" json:"whatsappEnabled"`
	WhatsAppProvider                string     `gorm:"column:whatsapp_provider;default:''" json:"whatsappProvider"`
	WhatsAppCreatedVia              string     `gorm:"column:whatsapp_created_via;default:''" json:"whatsappCreatedVia"`
	WhatsAppPhoneRegistered         bool       `gorm:"column:whatsapp_phone_registered;not null;default:false" json:"whatsappPhoneRegistered"`
	WhatsAppPhoneVerificationStatus string     `gorm:"column:whatsapp_phone_verification_status;default:''" json:"whatsappPhoneVerificationStatus"`
	WhatsAppVerified                bool       `gorm:"column:whatsapp_verified;not null;default:false" json:"whatsappVerified"`
	WhatsAppAccountReviewStatus     string     `gorm:"column:whatsapp_account_review_status;default:''" json:"whatsappAccountReviewStatus"`
	WhatsAppTestMode                bool       `gorm:"column:whatsapp_test_mode;not null;default:false" json:"whatsappTestMode"`
	WhatsAppReady                   bool       `gorm:"column:whatsapp_ready;not null;default:false" json:"whatsappReady"`
	WhatsAppPendingActions          string     `gorm:"column:whatsapp_pending_actions;type:text" json:"-"`
	WhatsAppLastStatusCheckAt       *time.Time `gorm:"column:whatsapp_last_status_check_at" json:"whatsappLastStatusCheckAt"`
	WhatsAppVersion                 int64      `gorm:"column:whatsapp_version;not null;default:0" json:"whatsappVersion"`
	WhatsAppUpdatedAt               *time.Time `gorm:"column:whatsapp_updated_at" json:"whatsappUpdatedAt"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// PendingActionList decodes the mirrored overall.pendingActions array.
func (t TenantAccount) PendingActionList() []string {
	raw := strings.TrimSpace(t.WhatsAppPendingActions)
	if raw == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

// IsLinked reports whether a business account is attached to the tenant.
func (t TenantAccount) IsLinked() bool {
	return strings.TrimSpace(t.WhatsAppBusinessAccountID) != ""
}

// CheckInvariants returns the name of the first violated WhatsApp invariant, or "".
func (t TenantAccount) CheckInvariants() string {
	if t.WhatsAppEnabled && !t.IsLinked() {
		return "whatsappEnabled without whatsappBusinessAccountId"
	}
	if t.WhatsAppVerified && !t.WhatsAppPhoneRegistered {
		return "whatsappVerified without whatsappPhoneRegistered"
	}
	return ""
}

package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	dbpkg "wabaconnect/db"
	"wabaconnect/models"
	"wabaconnect/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

/************************************************
/**** MARK: WEBHOOK FIELDS ****/
/************************************************/
const WEBHOOK_FIELD_ACCOUNT_REVIEW_UPDATE = "account_review_update"
const WEBHOOK_FIELD_ACCOUNT_UPDATE = "account_update"
const WEBHOOK_FIELD_PHONE_NUMBER_NAME_UPDATE = "phone_number_name_update"

type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Decision           string `json:"decision"`
				Event              string `json:"event"`
				PhoneNumber        string `json:"phone_number"`
				DisplayPhoneNumber string `json:"display_phone_number"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type accountChange struct {
	update     whatsapp.RemoteUpdate
	observedAt time.Time
}

// extractAccountChanges keeps the account-level changes the workflow reacts to.
func extractAccountChanges(payload WebhookPayload, now time.Time) []accountChange {
	var out []accountChange

	for _, entry := range payload.Entry {
		observedAt := now
		if entry.Time > 0 {
			observedAt = time.Unix(entry.Time, 0)
		}
		for _, change := range entry.Changes {
			u := whatsapp.RemoteUpdate{WabaID: strings.TrimSpace(entry.ID)}
			switch strings.TrimSpace(change.Field) {
			case WEBHOOK_FIELD_ACCOUNT_REVIEW_UPDATE:
				u.AccountReviewDecision = change.Value.Decision
			case WEBHOOK_FIELD_ACCOUNT_UPDATE:
				u.PhoneEvent = change.Value.Event
				u.PhoneNumber = change.Value.PhoneNumber
			case WEBHOOK_FIELD_PHONE_NUMBER_NAME_UPDATE:
				u.PhoneEvent = WEBHOOK_FIELD_PHONE_NUMBER_NAME_UPDATE
			default:
				continue
			}
			out = append(out, accountChange{update: u, observedAt: observedAt})
		}
	}

	return out
}

// verifyMetaSignature validates the request body against Meta's signature header.
//
// Meta sends: X-Hub-Signature-256: sha256=<hex>
// The secret is the Meta App Secret (NOT an access token).
func verifyMetaSignature(c *gin.Context, rawBody []byte) (bool, string) {
	secret := strings.TrimSpace(conf.WhatsApp.AppSecret)
	if secret == "" {
		return false, "app secret not configured"
	}

	sig := strings.TrimSpace(c.GetHeader("X-Hub-Signature-256"))
	if sig == "" {
		return false, "missing X-Hub-Signature-256"
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid X-Hub-Signature-256 format"
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false, "invalid signature hex"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return false, "signature mismatch"
	}

	return true, ""
}

func requireActiveTenantByID(c *gin.Context, db *gorm.DB, tenantID int64) (*models.TenantAccount, bool) {
	var tenant models.TenantAccount
	if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		RespondError(c, "tenant not found", http.StatusNotFound)
		return nil, false
	}
	if tenant.Status == models.TENANT_STATUS_BLOCKED {
		RespondError(c, "tenant is blocked", http.StatusForbidden)
		return nil, false
	}
	return &tenant, true
}

// GET /api/webhook/:tenantId
func WebhookVerify(c *gin.Context) {
	verifyToken := conf.WhatsApp.WebhookVerifyToken
	if verifyToken == "" {
		RespondError(c, "webhook verify token not configured", http.StatusInternalServerError)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	logger.Info("webhook verification",
		zap.String("path", c.FullPath()),
		zap.String("mode", mode),
		zap.Bool("token_ok", token == verifyToken),
	)

	if mode == "subscribe" && token == verifyToken && challenge != "" {
		c.String(http.StatusOK, "%s", challenge)
		return
	}

	RespondError(c, "forbidden", http.StatusForbidden)
}

// POST /api/webhook/:tenantId
// Account-level notifications from Meta, applied as remote-origin updates.
func WebhookUpdate(c *gin.Context) {
	tenantID, ok := ParamID(c, "tenantId")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured in context", http.StatusInternalServerError)
		return
	}
	svc := Workflow(c)
	if svc == nil {
		RespondError(c, "workflow not configured in context", http.StatusInternalServerError)
		return
	}

	if _, ok := requireActiveTenantByID(c, db, tenantID); !ok {
		return
	}

	// Read raw body once so we can validate Meta signature.
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, "failed to read body", http.StatusBadRequest)
		return
	}

	if ok, reason := verifyMetaSignature(c, raw); !ok {
		RespondError(c, "forbidden: "+reason, http.StatusForbidden)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	changes := extractAccountChanges(payload, time.Now())

	// answer Meta before doing any work
	c.String(http.StatusOK, "EVENT_RECEIVED")

	ctx := c.Request.Context()
	for _, ch := range changes {
		if _, err := svc.ApplyRemoteUpdate(ctx, tenantID, ch.update, ch.observedAt); err != nil {
			logger.Warn("failed to apply remote update",
				zap.Int64("tenant_id", tenantID),
				zap.String("waba_id", ch.update.WabaID),
				zap.Error(err),
			)
		}
	}
}

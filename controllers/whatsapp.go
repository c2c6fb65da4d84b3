package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wabaconnect/whatsapp"
)

// GET /api/whatsapp
// Returns the WhatsApp fields of the tenant and its link state.
func GetWhatsApp(c *gin.Context) {
	tenant, ok := GetTenantLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, ok := workflowFor(c); !ok {
		return
	}
	RespondSuccess(c, gin.H{
		"tenant":         tenant,
		"pendingActions": tenant.PendingActionList(),
		"state":          Workflow(c).State(tenant.ID),
	})
}

// POST /api/whatsapp/signup
func StartWhatsAppSignup(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	launch, err := Workflow(c).StartSignup(c.Request.Context(), tenantID)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, launch)
}

type signupMessageReq struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// POST /api/whatsapp/messages
// Forwards one cross-window message received by the dashboard. Ignored messages are
// answered with 202 and change nothing.
func HandleWhatsAppMessage(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}

	var req signupMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusAccepted, gin.H{"ignored": true})
		return
	}

	res, err := Workflow(c).HandleMessage(c.Request.Context(), tenantID, req.Origin, req.Data)
	if err != nil {
		if errors.Is(err, whatsapp.ErrIgnoredMessage) {
			c.JSON(http.StatusAccepted, gin.H{"ignored": true})
			return
		}
		var signupErr *whatsapp.SignupError
		if errors.As(err, &signupErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "retry": true})
			return
		}
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, res)
}

// POST /api/whatsapp/link
// Manual entry fallback.
func LinkWhatsAppManual(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	var req whatsapp.ManualLink
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := Workflow(c).LinkManual(c.Request.Context(), tenantID, req)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, res)
}

type submitPinReq struct {
	Pin string `json:"pin"`
}

// POST /api/whatsapp/pin
func SubmitWhatsAppPIN(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	var req submitPinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := Workflow(c).SubmitPIN(c.Request.Context(), tenantID, req.Pin)
	if err != nil {
		if errors.Is(err, whatsapp.ErrIncorrectPIN) || errors.Is(err, whatsapp.ErrInvalidPIN) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "requirePin": true})
			return
		}
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, res)
}

// DELETE /api/whatsapp/pin
// Closing the PIN prompt drops the held candidate.
func CancelWhatsAppPIN(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	RespondSuccess(c, gin.H{"cancelled": Workflow(c).CancelPIN(tenantID)})
}

// POST /api/whatsapp/status/refresh
func RefreshWhatsAppStatus(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	tenant, err := Workflow(c).RefreshStatus(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, whatsapp.ErrStatusUnavailable) {
			RespondSuccess(c, gin.H{"tenant": tenant, "warning": "status is not available right now"})
			return
		}
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"tenant": tenant})
}

type detectReq struct {
	SessionID string `json:"sessionId"`
}

// POST /api/whatsapp/detect
// Called when the signup popup closed without delivering a result.
func DetectWhatsAppAccount(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	var req detectReq
	_ = c.ShouldBindJSON(&req) // optional body

	res, err := Workflow(c).Detect(c.Request.Context(), tenantID, req.SessionID)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, res)
}

// POST /api/whatsapp/test-mode
func ActivateWhatsAppTestMode(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	res, err := Workflow(c).ActivateTestMode(c.Request.Context(), tenantID)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, res)
}

// DELETE /api/whatsapp
func DisconnectWhatsApp(c *gin.Context) {
	tenantID, ok := workflowFor(c)
	if !ok {
		return
	}
	tenant, err := Workflow(c).Disconnect(c.Request.Context(), tenantID)
	if err != nil {
		RespondWorkflowError(c, err)
		return
	}
	RespondSuccess(c, gin.H{"tenant": tenant, "state": Workflow(c).State(tenantID)})
}

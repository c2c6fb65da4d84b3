package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wabaconnect/config"
	"wabaconnect/whatsapp"
)

var (
	conf   config.Configuration
	logger = zap.NewNop()
)

func SetConfigurations(configuration config.Configuration) {
	conf = configuration
}

func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}

var workflowErrorCodes = []struct {
	target error
	code   int
}{
	{whatsapp.ErrTenantNotFound, http.StatusNotFound},
	{whatsapp.ErrMissingWabaID, http.StatusBadRequest},
	{whatsapp.ErrInvalidPIN, http.StatusBadRequest},
	{whatsapp.ErrIncorrectPIN, http.StatusUnprocessableEntity},
	{whatsapp.ErrNoPendingLink, http.StatusConflict},
	{whatsapp.ErrSignupReported, http.StatusUnprocessableEntity},
	{whatsapp.ErrTestModeConfig, http.StatusUnprocessableEntity},
	{whatsapp.ErrNothingDetected, http.StatusNotFound},
}

// RespondWorkflowError maps a workflow error to its HTTP status. Unknown errors are 500.
func RespondWorkflowError(c *gin.Context, err error) {
	for _, e := range workflowErrorCodes {
		if errors.Is(err, e.target) {
			RespondError(c, err.Error(), e.code)
			return
		}
	}
	RespondError(c, err.Error(), http.StatusInternalServerError)
}

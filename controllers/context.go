package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"wabaconnect/models"
	"wabaconnect/whatsapp"
)

const workflowKey = "whatsapp_workflow"
const sessionsKey = "signup_sessions"

// SessionReader resolves pending signup sessions for the callback page.
type SessionReader interface {
	Get(ctx context.Context, sessionID string) (models.PendingSignupSession, error)
}

func SetWorkflowToContext(svc *whatsapp.Service, sessions SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(workflowKey, svc)
		if sessions != nil {
			c.Set(sessionsKey, sessions)
		}
		c.Next()
	}
}

func Workflow(c *gin.Context) *whatsapp.Service {
	v, ok := c.Get(workflowKey)
	if !ok {
		return nil
	}
	svc, _ := v.(*whatsapp.Service)
	return svc
}

func signupSessions(c *gin.Context) SessionReader {
	v, ok := c.Get(sessionsKey)
	if !ok {
		return nil
	}
	s, _ := v.(SessionReader)
	return s
}

package router

import (
	"net/http"

	"wabaconnect/config"
	"wabaconnect/controllers"
	"wabaconnect/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Initialize wires all routes and middlewares: public routes, authenticated routes and
// "validated" routes (Authorizer).
func Initialize(r *gin.Engine, cfg config.Configuration, logger *zap.Logger) {
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.PublicOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Meta account webhooks, one subscription per tenant
	api.GET("/webhook/:tenantId", Logger(logger), controllers.WebhookVerify)
	api.POST("/webhook/:tenantId", Logger(logger), controllers.WebhookUpdate)

	// Public (no auth): embedded signup redirect target
	api.GET("/whatsapp/signup/callback", Logger(logger), controllers.WhatsAppSignupCallback)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())

	// Validated routes (token + active tenant)
	validated := auth.Group("")
	validated.Use(Authorizer())

	validated.GET("/whatsapp", Logger(logger), controllers.GetWhatsApp)
	validated.DELETE("/whatsapp", Logger(logger), controllers.DisconnectWhatsApp)
	validated.POST("/whatsapp/signup", Logger(logger), controllers.StartWhatsAppSignup)
	validated.POST("/whatsapp/messages", Logger(logger), controllers.HandleWhatsAppMessage)
	validated.POST("/whatsapp/link", Logger(logger), controllers.LinkWhatsAppManual)
	validated.POST("/whatsapp/pin", Logger(logger), controllers.SubmitWhatsAppPIN)
	validated.DELETE("/whatsapp/pin", Logger(logger), controllers.CancelWhatsAppPIN)
	validated.POST("/whatsapp/status/refresh", Logger(logger), controllers.RefreshWhatsAppStatus)
	validated.POST("/whatsapp/detect", Logger(logger), controllers.DetectWhatsAppAccount)
	validated.POST("/whatsapp/test-mode", Logger(logger), controllers.ActivateWhatsAppTestMode)

	logger.Info("routes initialized")
}

package router

import (
	"net/http"

	"wabaconnect/controllers"
	"wabaconnect/models"

	"github.com/gin-gonic/gin"
)

// Authorizer blocks access to protected routes when the tenant is not active.
func Authorizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := controllers.GetTenantLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		if tenant.Status == models.TENANT_STATUS_BLOCKED {
			controllers.RespondError(c, "tenant has no access to the application", http.StatusForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

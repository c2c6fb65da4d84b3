package controllers

import (
	"net/http"
	"strings"

	dbpkg "wabaconnect/db"
	"wabaconnect/models"

	"github.com/gin-gonic/gin"
)

const ctxTenantKey = "auth_tenant"

// AuthRequired validates the Bearer token and loads the tenant from DB into context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			RespondError(c, "missing bearer token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])
		tenantID, err := parseTenantToken(token, getJWTSecret())
		if err != nil {
			RespondError(c, "invalid or expired token", http.StatusUnauthorized)
			c.Abort()
			return
		}

		db := dbpkg.DBInstance(c)
		if db == nil {
			RespondError(c, "db not configured in context", http.StatusInternalServerError)
			c.Abort()
			return
		}
		var tenant models.TenantAccount
		if err := db.Where("id = ?", tenantID).First(&tenant).Error; err != nil {
			RespondError(c, "tenant not found", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ctxTenantKey, tenant)
		c.Next()
	}
}

// GetTenantLogged returns the tenant loaded by AuthRequired.
func GetTenantLogged(c *gin.Context) (models.TenantAccount, bool) {
	v, ok := c.Get(ctxTenantKey)
	if !ok {
		return models.TenantAccount{}, false
	}
	tenant, ok := v.(models.TenantAccount)
	return tenant, ok
}

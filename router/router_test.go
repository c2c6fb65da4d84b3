package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wabaconnect/config"
	"wabaconnect/controllers"
	"wabaconnect/db"
	"wabaconnect/models"
)

func TestInitializeRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var cfg config.Configuration
	cfg.Security.JwtSecret = "router-secret"
	controllers.SetConfigurations(cfg)

	conn, err := db.OpenMemory()
	require.NoError(t, err)
	defer conn.Close()
	blocked := models.TenantAccount{Name: "Blocked", Status: models.TENANT_STATUS_BLOCKED}
	require.NoError(t, conn.Create(&blocked).Error)

	r := gin.New()
	r.Use(db.SetDBtoContext(conn))
	Initialize(r, cfg, zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/whatsapp", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := controllers.IssueTenantToken("router-secret", blocked.ID, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/whatsapp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

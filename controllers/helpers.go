package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func ParamID(c *gin.Context, name string) (int64, bool) {
	v := c.Param(name)
	if v == "" {
		RespondError(c, name+" is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, name+" is invalid", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// workflowFor returns the logged tenant id. It responds with an error and returns false
// when the request is unauthenticated or the workflow is not wired.
func workflowFor(c *gin.Context) (int64, bool) {
	tenant, ok := GetTenantLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	if Workflow(c) == nil {
		RespondError(c, "workflow not configured in context", http.StatusInternalServerError)
		return 0, false
	}
	return tenant.ID, true
}

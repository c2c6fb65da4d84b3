package controllers

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wabaconnect/whatsapp"
)

type bridgeMessage struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	WabaID        string `json:"waba_id,omitempty"`
	PhoneNumberID string `json:"phone_number_id,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	Error         string `json:"error,omitempty"`
	State         string `json:"state,omitempty"`
}

// The page hands the result to the dashboard window that opened the popup. When there is
// no opener (popup was blocked and the whole page navigated) it goes back to the dashboard
// with the result in the query string.
var bridgePage = template.Must(template.New("bridge").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>WhatsApp</title></head>
<body>
<p>{{if eq .Message.Status "SUCCESS"}}Your WhatsApp account is connected. You can close this window.{{else}}The WhatsApp signup did not complete. You can close this window and try again.{{end}}</p>
<script>
(function () {
  var message = {{.Message}};
  var target = {{.TargetOrigin}};
  if (window.opener && !window.opener.closed) {
    window.opener.postMessage(message, target);
    window.close();
    return;
  }
  if ({{.Dashboard}}) {
    window.location.replace({{.Dashboard}} + "/?whatsapp_signup=" + encodeURIComponent(JSON.stringify(message)));
  }
})();
</script>
</body>
</html>
`))

// GET /api/whatsapp/signup/callback (public)
// Redirect target of the embedded signup.
func WhatsAppSignupCallback(c *gin.Context) {
	msg := bridgeMessage{
		Type:          whatsapp.BRIDGE_EVENT_TYPE,
		Status:        "SUCCESS",
		WabaID:        strings.TrimSpace(c.Query("waba_id")),
		PhoneNumberID: strings.TrimSpace(c.Query("phone_number_id")),
		PhoneNumber:   strings.TrimSpace(c.Query("phone_number")),
		State:         strings.TrimSpace(c.Query("state")),
	}
	if e := strings.TrimSpace(c.Query("error")); e != "" || msg.WabaID == "" {
		msg.Status = "ERROR"
		msg.Error = strings.TrimSpace(c.Query("error_description"))
		if msg.Error == "" {
			msg.Error = e
		}
		if msg.Error == "" {
			msg.Error = "no business account was shared"
		}
	}

	if sessions := signupSessions(c); sessions != nil && msg.State != "" {
		// informational only: an unknown or expired session does not block the result
		session, err := sessions.Get(c.Request.Context(), msg.State)
		if err != nil {
			logger.Info("signup callback for unknown session", zap.String("state", msg.State), zap.Error(err))
		} else {
			logger.Info("signup callback",
				zap.Int64("tenant_id", session.TenantID),
				zap.String("status", msg.Status),
				zap.Bool("expired", session.Expired(time.Now())),
			)
		}
	}

	dashboard := strings.TrimRight(conf.PublicOrigin, "/")
	target := dashboard
	if target == "" {
		target = "*"
	}

	var buf bytes.Buffer
	err := bridgePage.Execute(&buf, map[string]any{
		"Message":      msg,
		"TargetOrigin": target,
		"Dashboard":    dashboard,
	})
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

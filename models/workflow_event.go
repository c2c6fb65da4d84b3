package models

import "time"

/************************************************
/**** MARK: WORKFLOW EVENT TYPES ****/
/************************************************/
const WORKFLOW_EVENT_SIGNUP_STARTED = "waba.signup_started"
const WORKFLOW_EVENT_LINKED = "waba.linked"
const WORKFLOW_EVENT_PIN_REQUIRED = "waba.pin_required"
const WORKFLOW_EVENT_PIN_REJECTED = "waba.pin_rejected"
const WORKFLOW_EVENT_LINK_FAILED = "waba.link_failed"
const WORKFLOW_EVENT_STATUS_REFRESHED = "waba.status_refreshed"
const WORKFLOW_EVENT_TEST_MODE = "waba.test_mode_activated"
const WORKFLOW_EVENT_DISCONNECTED = "waba.disconnected"
const WORKFLOW_EVENT_REMOTE_UPDATE = "waba.remote_update"

// WorkflowEvent is an audit record of one step of the WhatsApp connection workflow.
type WorkflowEvent struct {
	Type     string         `json:"type"`
	TenantID int64          `json:"tenantId"`
	WabaID   string         `json:"wabaId,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}

package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Bridge event posted by our own signup callback page. It is trusted whatever the
// origin it arrives from: the callback page may be served from a different host than
// the dashboard. This is a known relaxation of the origin check.
const BRIDGE_EVENT_TYPE = "WHATSAPP_EMBEDDED_SIGNUP"

// Event type posted by the third-party signup SDK.
const SDK_EVENT_TYPE = "WA_EMBEDDED_SIGNUP"

// Shape names, also used as metric labels.
const (
	SHAPE_BRIDGE  = "bridge"
	SHAPE_SDK     = "sdk"
	SHAPE_RAW     = "raw"
	SHAPE_UNKNOWN = "unknown"
)

// Candidate is the canonical result of the embedded signup, whatever shape it came in.
type Candidate struct {
	WabaID        string          `json:"wabaId"`
	PhoneNumberID string          `json:"phoneNumberId,omitempty"`
	PhoneNumber   string          `json:"phoneNumber,omitempty"`
	RawPayload    json.RawMessage `json:"-"`
}

func (c Candidate) hasPhone() bool {
	return c.PhoneNumberID != "" || c.PhoneNumber != ""
}

// Message is a parsed cross-window message.
type Message struct {
	Shape     string
	Candidate Candidate
	// OriginBypassed is set when the message was accepted only because of the bridge tag.
	OriginBypassed bool
}

type accountIDs struct {
	WabaIDSnake        string `json:"waba_id"`
	WabaIDCamel        string `json:"wabaId"`
	PhoneNumberIDSnake string `json:"phone_number_id"`
	PhoneNumberIDCamel string `json:"phoneNumberId"`
	PhoneNumberSnake   string `json:"phone_number"`
	PhoneNumberCamel   string `json:"phoneNumber"`
}

func (a accountIDs) candidate(raw json.RawMessage) Candidate {
	return Candidate{
		WabaID:        firstNonEmpty(a.WabaIDSnake, a.WabaIDCamel),
		PhoneNumberID: firstNonEmpty(a.PhoneNumberIDSnake, a.PhoneNumberIDCamel),
		PhoneNumber:   firstNonEmpty(a.PhoneNumberSnake, a.PhoneNumberCamel),
		RawPayload:    raw,
	}
}

// envelope is the union of the fields of every known shape.
type envelope struct {
	accountIDs
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Event  string          `json:"event"`
	Error  json.RawMessage `json:"error"`
	Data   json.RawMessage `json:"data"`
}

type sdkData struct {
	accountIDs
	CurrentStep  string `json:"current_step"`
	ErrorMessage string `json:"error_message"`
}

// ParseMessage applies the origin policy and normalizes one cross-window message.
//
// It returns ErrIgnoredMessage (wrapped) for malformed, untrusted or unrecognized
// payloads, and a *SignupError when the popup explicitly reported a failure.
func ParseMessage(policy OriginPolicy, origin string, raw []byte) (Message, error) {
	payload, err := unwrapJSONString(raw)
	if err != nil {
		return Message{Shape: SHAPE_UNKNOWN}, fmt.Errorf("%w: malformed payload", ErrIgnoredMessage)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{Shape: SHAPE_UNKNOWN}, fmt.Errorf("%w: malformed payload", ErrIgnoredMessage)
	}

	bridge := env.Type == BRIDGE_EVENT_TYPE
	allowed := policy.Allowed(origin)
	if !bridge && !allowed {
		return Message{Shape: SHAPE_UNKNOWN}, fmt.Errorf("%w: untrusted origin %q", ErrIgnoredMessage, origin)
	}

	msg := Message{Shape: detectShape(env), OriginBypassed: bridge && !allowed}
	switch msg.Shape {
	case SHAPE_BRIDGE:
		msg.Candidate, err = normalizeBridge(env, payload)
	case SHAPE_SDK:
		msg.Candidate, err = normalizeSDK(env, payload)
	case SHAPE_RAW:
		msg.Candidate = env.accountIDs.candidate(payload)
	default:
		return msg, fmt.Errorf("%w: unrecognized shape", ErrIgnoredMessage)
	}
	if err != nil {
		return msg, err
	}

	msg.Candidate.WabaID = strings.TrimSpace(msg.Candidate.WabaID)
	msg.Candidate.PhoneNumberID = strings.TrimSpace(msg.Candidate.PhoneNumberID)
	msg.Candidate.PhoneNumber = strings.TrimSpace(msg.Candidate.PhoneNumber)
	if msg.Candidate.WabaID == "" {
		return msg, fmt.Errorf("%w: no waba id", ErrIgnoredMessage)
	}
	return msg, nil
}

func detectShape(env envelope) string {
	switch {
	case env.Type == BRIDGE_EVENT_TYPE:
		return SHAPE_BRIDGE
	case env.Type == SDK_EVENT_TYPE:
		return SHAPE_SDK
	case env.Type == "" && firstNonEmpty(env.WabaIDSnake, env.WabaIDCamel) != "":
		return SHAPE_RAW
	default:
		return SHAPE_UNKNOWN
	}
}

func normalizeBridge(env envelope, raw json.RawMessage) (Candidate, error) {
	switch strings.ToUpper(strings.TrimSpace(env.Status)) {
	case "ERROR":
		return Candidate{}, &SignupError{Message: errorText(env.Error)}
	case "SUCCESS", "":
		return env.accountIDs.candidate(raw), nil
	default:
		return Candidate{}, fmt.Errorf("%w: unknown bridge status %q", ErrIgnoredMessage, env.Status)
	}
}

func normalizeSDK(env envelope, raw json.RawMessage) (Candidate, error) {
	var data sdkData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Candidate{}, fmt.Errorf("%w: malformed sdk data", ErrIgnoredMessage)
		}
	}

	event := strings.ToUpper(strings.TrimSpace(env.Event))
	switch {
	case strings.HasPrefix(event, "FINISH"):
		return data.accountIDs.candidate(raw), nil
	case event == "CANCEL":
		msg := "signup cancelled"
		if data.CurrentStep != "" {
			msg += " at step " + data.CurrentStep
		}
		if data.ErrorMessage != "" {
			msg += ": " + data.ErrorMessage
		}
		return Candidate{}, &SignupError{Message: msg}
	case event == "ERROR":
		return Candidate{}, &SignupError{Message: data.ErrorMessage}
	default:
		return Candidate{}, fmt.Errorf("%w: sdk event %q", ErrIgnoredMessage, env.Event)
	}
}

// unwrapJSONString decodes payloads that were posted as a JSON-encoded string.
func unwrapJSONString(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, err
	}
	return bytes.TrimSpace([]byte(inner)), nil
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

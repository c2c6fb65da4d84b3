package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	GRAPH_DEFAULT_BASE_URL = "https://graph.facebook.com"
	GRAPH_DEFAULT_VERSION  = "v24.0"
)

// Graph error codes the connection workflow reacts to.
const (
	GRAPH_ERROR_PIN_MISMATCH       = 133005
	GRAPH_ERROR_PIN_REQUIRED       = 133006
	GRAPH_ERROR_ALREADY_REGISTERED = 133015
)

// GraphError is a non-2xx Graph API answer.
type GraphError struct {
	StatusCode int
	Code       int
	Subcode    int
	Type       string
	Message    string
	Body       string
}

func (e GraphError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph api error: status=%d code=%d message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GraphClient is a thin client for the WABA-level and phone-number-level Graph API calls
// used while connecting a tenant's WhatsApp Business Account.
type GraphClient struct {
	BaseURL     string
	AccessToken string
	ApiVersion  string // e.g. v24.0
	HTTPClient  *http.Client
}

// BusinessAccount is the subset of the WABA node we read.
type BusinessAccount struct {
	ID                         string `json:"id"`
	Name                       string `json:"name"`
	AccountReviewStatus        string `json:"account_review_status"`
	BusinessVerificationStatus string `json:"business_verification_status"`
}

// PhoneNumber is the subset of the phone number node we read.
type PhoneNumber struct {
	ID                     string `json:"id"`
	DisplayPhoneNumber     string `json:"display_phone_number"`
	VerifiedName           string `json:"verified_name"`
	CodeVerificationStatus string `json:"code_verification_status"`
	Status                 string `json:"status"`
	NameStatus             string `json:"name_status"`
	PlatformType           string `json:"platform_type"`
	QualityRating          string `json:"quality_rating"`
}

// OnCloudAPI reports whether the number is already registered for Cloud API messaging.
func (p PhoneNumber) OnCloudAPI() bool {
	return strings.EqualFold(p.PlatformType, "CLOUD_API")
}

// GranularScope is one entry of debug_token's granular_scopes.
type GranularScope struct {
	Scope     string   `json:"scope"`
	TargetIDs []string `json:"target_ids"`
}

const businessAccountFields = "id,name,account_review_status,business_verification_status"
const phoneNumberFields = "id,display_phone_number,verified_name,code_verification_status,status,name_status,platform_type,quality_rating"

func (c GraphClient) endpoint(path string, query url.Values) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = GRAPH_DEFAULT_BASE_URL
	}
	apiVersion := strings.TrimSpace(c.ApiVersion)
	if apiVersion == "" {
		apiVersion = GRAPH_DEFAULT_VERSION
	}
	u := fmt.Sprintf("%s/%s/%s", base, apiVersion, strings.TrimPrefix(path, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c GraphClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.AccessToken))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return decodeGraphError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func decodeGraphError(status int, raw []byte) error {
	gerr := GraphError{StatusCode: status, Body: string(raw)}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
			Subcode int    `json:"error_subcode"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		gerr.Code = envelope.Error.Code
		gerr.Subcode = envelope.Error.Subcode
		gerr.Type = envelope.Error.Type
		gerr.Message = envelope.Error.Message
	}
	return gerr
}

// SubscribeApp subscribes the current app to receive webhook updates for this WABA.
func (c GraphClient) SubscribeApp(ctx context.Context, wabaID string) error {
	if strings.TrimSpace(wabaID) == "" {
		return fmt.Errorf("waba_id is required")
	}
	return c.do(ctx, http.MethodPost, strings.TrimSpace(wabaID)+"/subscribed_apps", nil, nil, nil)
}

// GetBusinessAccount reads the review state of a WABA.
func (c GraphClient) GetBusinessAccount(ctx context.Context, wabaID string) (BusinessAccount, error) {
	var out BusinessAccount
	q := url.Values{"fields": {businessAccountFields}}
	err := c.do(ctx, http.MethodGet, strings.TrimSpace(wabaID), q, nil, &out)
	return out, err
}

// GetPhoneNumber reads the verification and registration state of a phone number.
func (c GraphClient) GetPhoneNumber(ctx context.Context, phoneNumberID string) (PhoneNumber, error) {
	var out PhoneNumber
	q := url.Values{"fields": {phoneNumberFields}}
	err := c.do(ctx, http.MethodGet, strings.TrimSpace(phoneNumberID), q, nil, &out)
	return out, err
}

// ListPhoneNumbers lists the numbers attached to a WABA.
func (c GraphClient) ListPhoneNumbers(ctx context.Context, wabaID string) ([]PhoneNumber, error) {
	var out struct {
		Data []PhoneNumber `json:"data"`
	}
	q := url.Values{"fields": {phoneNumberFields}}
	err := c.do(ctx, http.MethodGet, strings.TrimSpace(wabaID)+"/phone_numbers", q, nil, &out)
	return out.Data, err
}

// Register registers the phone number in Cloud API using the two-step verification PIN.
func (c GraphClient) Register(ctx context.Context, phoneNumberID string, pin string) error {
	return c.do(ctx, http.MethodPost, strings.TrimSpace(phoneNumberID)+"/register", nil, map[string]any{
		"messaging_product": "whatsapp",
		"pin":               pin,
	}, nil)
}

// DebugToken returns the granular scopes of inputToken. The client's own token must be
// an app token.
func (c GraphClient) DebugToken(ctx context.Context, inputToken string) ([]GranularScope, error) {
	var out struct {
		Data struct {
			IsValid        bool            `json:"is_valid"`
			GranularScopes []GranularScope `json:"granular_scopes"`
		} `json:"data"`
	}
	q := url.Values{"input_token": {inputToken}}
	if err := c.do(ctx, http.MethodGet, "debug_token", q, nil, &out); err != nil {
		return nil, err
	}
	if !out.Data.IsValid {
		return nil, fmt.Errorf("debug_token: token is not valid")
	}
	return out.Data.GranularScopes, nil
}

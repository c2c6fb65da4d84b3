package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minTestPhoneNumberIDLen = 10
	minTestAccessTokenLen   = 50
)

var placeholderMarkers = []string{"your_", "your-", "replace_me", "change_me", "<"}

// TestModeConfig is the canned "test account" used by the development/demo activation path.
type TestModeConfig struct {
	Enabled       bool     `json:"enabled" env:"ENABLED"`
	WabaID        string   `json:"waba_id" env:"WABA_ID"`
	PhoneNumberID string   `json:"phone_number_id" env:"PHONE_NUMBER_ID"`
	PhoneNumber   string   `json:"phone_number" env:"PHONE_NUMBER"`
	AccessToken   string   `json:"access_token" env:"ACCESS_TOKEN"`
	TokenTTL      Duration `json:"token_ttl" env:"TOKEN_TTL"`
}

// TokenLifetime is how long the embedded access token is expected to stay valid.
func (t TestModeConfig) TokenLifetime() time.Duration {
	if t.TokenTTL > 0 {
		return time.Duration(t.TokenTTL)
	}
	return 60 * time.Minute
}

// Validate rejects disabled, incomplete or placeholder test-mode blocks.
func (t TestModeConfig) Validate() error {
	if !t.Enabled {
		return errors.New("test mode is disabled")
	}
	var problems []string
	if strings.TrimSpace(t.WabaID) == "" || isPlaceholder(t.WabaID) {
		problems = append(problems, "waba_id is missing")
	}
	if len(strings.TrimSpace(t.PhoneNumberID)) < minTestPhoneNumberIDLen || isPlaceholder(t.PhoneNumberID) {
		problems = append(problems, fmt.Sprintf("phone_number_id must have at least %d characters", minTestPhoneNumberIDLen))
	}
	if len(strings.TrimSpace(t.AccessToken)) < minTestAccessTokenLen || isPlaceholder(t.AccessToken) {
		problems = append(problems, fmt.Sprintf("access_token must have at least %d characters", minTestAccessTokenLen))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func isPlaceholder(v string) bool {
	lower := strings.ToLower(strings.TrimSpace(v))
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

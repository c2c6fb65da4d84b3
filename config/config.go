package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Configuration struct {
	ApiPort     string `json:"api_port" env:"PORT"`
	MetricsPort string `json:"metrics_port" env:"METRICS_PORT"`
	LogLevel    string `json:"log_level" env:"LOG_LEVEL"`

	// PublicOrigin is the dashboard origin (scheme://host[:port]); it is always trusted
	// by the message listener and by CORS.
	PublicOrigin string `json:"public_origin" env:"PUBLIC_ORIGIN"`

	Database string `json:"database" env:"DATABASE"` // "sqlite3" or "postgres"
	DbHost   string `json:"db_host" env:"DB_HOST"`
	DbPort   string `json:"db_port" env:"DB_PORT"`
	DbUser   string `json:"db_user" env:"DB_USER"`
	DbName   string `json:"db_name" env:"DB_NAME"`
	DbPass   string `json:"db_pass" env:"DB_PASS"`
	DbPath   string `json:"db_path" env:"DB_PATH"`

	Redis struct {
		Addr     string `json:"addr" env:"REDIS_ADDR"`
		Password string `json:"password" env:"REDIS_PASS"`
		DB       int    `json:"db" env:"REDIS_DB"`
	} `json:"redis"`

	Kafka struct {
		Brokers []string `json:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		Topic   string   `json:"topic" env:"KAFKA_TOPIC"`
	} `json:"kafka"`

	Security struct {
		JwtSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	} `json:"security"`

	WhatsApp WhatsAppConfig `json:"whatsapp"`

	TestMode TestModeConfig `json:"test_mode" envPrefix:"WHATSAPP_TEST_"`
}

// WhatsAppConfig holds the app-level Meta settings used by the connection workflow.
type WhatsAppConfig struct {
	GraphBaseURL string `json:"graph_base_url" env:"WHATSAPP_GRAPH_BASE_URL"`
	ApiVersion   string `json:"api_version" env:"WHATSAPP_API_VERSION"`
	AppID        string `json:"app_id" env:"WHATSAPP_APP_ID"`
	AppSecret    string `json:"app_secret" env:"WHATSAPP_APP_SECRET"`
	ConfigID     string `json:"config_id" env:"WHATSAPP_CONFIG_ID"`

	// SystemUserToken is the tech-provider token used for every Graph call made on behalf of tenants.
	SystemUserToken string `json:"system_user_token" env:"WHATSAPP_SYSTEM_USER_TOKEN"`
	Provider        string `json:"provider" env:"WHATSAPP_PROVIDER"` // direct | tech-provider

	SignupBaseURL string `json:"signup_base_url" env:"WHATSAPP_SIGNUP_BASE_URL"`
	RedirectURI   string `json:"redirect_uri" env:"WHATSAPP_REDIRECT_URI"`

	TrustedOrigins     []string `json:"trusted_origins" env:"WHATSAPP_TRUSTED_ORIGINS" envSeparator:","`
	WebhookVerifyToken string   `json:"webhook_verify_token" env:"WEBHOOK_VERIFY_TOKEN"`

	PopupWidth  int `json:"popup_width" env:"WHATSAPP_POPUP_WIDTH"`
	PopupHeight int `json:"popup_height" env:"WHATSAPP_POPUP_HEIGHT"`
}

// Load reads the JSON file at path (optional), then .env, then environment overrides,
// and fills defaults.
func Load(path string) (Configuration, error) {
	var c Configuration

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only setups are fine
		default:
			return c, err
		}
	}

	// .env is optional in every environment
	_ = godotenv.Load()

	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("env overrides: %w", err)
	}

	c.applyDefaults()
	return c, c.Validate()
}

func (c *Configuration) applyDefaults() {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.MetricsPort == "" {
		c.MetricsPort = "8081"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.DbPath == "" {
		c.DbPath = "db/database.db"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "waba.connection"
	}
	if c.Security.JwtSecret == "" {
		c.Security.JwtSecret = "CHANGE_ME"
	}

	wa := &c.WhatsApp
	if wa.GraphBaseURL == "" {
		wa.GraphBaseURL = "https://graph.facebook.com"
	}
	if wa.ApiVersion == "" {
		wa.ApiVersion = "v24.0"
	}
	if wa.Provider == "" {
		wa.Provider = "tech-provider"
	}
	if wa.SignupBaseURL == "" {
		wa.SignupBaseURL = "https://business.facebook.com/messaging/whatsapp/onboard/"
	}
	if wa.RedirectURI == "" && c.PublicOrigin != "" {
		wa.RedirectURI = strings.TrimRight(c.PublicOrigin, "/") + "/api/whatsapp/signup/callback"
	}
	if len(wa.TrustedOrigins) == 0 {
		wa.TrustedOrigins = []string{"facebook.com", "web.facebook.com", "business.facebook.com"}
	}
	if wa.PopupWidth <= 0 {
		wa.PopupWidth = 600
	}
	if wa.PopupHeight <= 0 {
		wa.PopupHeight = 700
	}
}

// Validate checks the settings the service cannot start without.
// The test-mode block is validated separately (see TestModeConfig.Validate): a broken
// test-mode block only disables that feature.
func (c Configuration) Validate() error {
	if c.Database != "sqlite3" && c.Database != "postgres" && c.Database != "postgresql" {
		return fmt.Errorf("database must be sqlite3 or postgres, got %q", c.Database)
	}
	if c.WhatsApp.Provider != "direct" && c.WhatsApp.Provider != "tech-provider" {
		return fmt.Errorf("whatsapp.provider must be direct or tech-provider, got %q", c.WhatsApp.Provider)
	}
	return nil
}

// Package config loads the checkout client and billing server settings from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
)

const envProduction = "production"

// Client configures cmd/checkout.
type Client struct {
	APIBaseURL  string        `mapstructure:"API_BASE_URL"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`
	// TokenFile overrides the default token location under the user config dir.
	TokenFile string `mapstructure:"TOKEN_FILE"`
	// DemoFallback lets verification synthesize a success when the backend stays unreachable.
	// Refused when Env is production.
	DemoFallback bool          `mapstructure:"DEMO_FALLBACK"`
	Env          string        `mapstructure:"APP_ENV"`
	VerifyBudget time.Duration `mapstructure:"VERIFY_BUDGET"`
	PollInterval time.Duration `mapstructure:"POLL_INTERVAL"`
	PlansFile    string        `mapstructure:"PLANS_FILE"`
}

// Server configures cmd/PlanCheckout.
type Server struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL selects the Postgres repositories; empty keeps everything in memory.
	DatabaseURL        string        `mapstructure:"DB_CONNECTION_STRING"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTTTL             time.Duration `mapstructure:"JWT_TTL"`
	PlansFile          string        `mapstructure:"PLANS_FILE"`
	SandboxSettleAfter time.Duration `mapstructure:"SANDBOX_SETTLE_AFTER"`
	PendingTTL         time.Duration `mapstructure:"PENDING_TTL"`
	CheckoutBaseURL    string        `mapstructure:"CHECKOUT_BASE_URL"`
	SMTPHost           string        `mapstructure:"SMTP_HOST"`
	SMTPPort           int           `mapstructure:"SMTP_PORT"`
	EmailAddress       string        `mapstructure:"EMAIL_ADDRESS"`
	EmailPassword      string        `mapstructure:"EMAIL_PASSWORD"`
	Env                string        `mapstructure:"APP_ENV"`
}

func newViper(defaults map[string]interface{}) *viper.Viper {
	// Missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func LoadClient() (*Client, error) {
	v := newViper(map[string]interface{}{
		"API_BASE_URL":  "http://localhost:8080/api",
		"HTTP_TIMEOUT":  "15s",
		"TOKEN_FILE":    "",
		"DEMO_FALLBACK": false,
		"APP_ENV":       "",
		"VERIFY_BUDGET": "60s",
		"POLL_INTERVAL": "5s",
		"PLANS_FILE":    "",
	})

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("config: API_BASE_URL must be set")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if c.VerifyBudget <= 0 {
		return errors.New("config: VERIFY_BUDGET must be positive")
	}
	if c.PollInterval <= 0 || c.PollInterval > c.VerifyBudget {
		return errors.New("config: POLL_INTERVAL must be positive and within VERIFY_BUDGET")
	}
	if c.DemoFallback && strings.EqualFold(c.Env, envProduction) {
		return errors.New("config: DEMO_FALLBACK must not be true when APP_ENV=production")
	}
	return nil
}

// Verification returns the screen and quick-pay session settings. The budget and the demo
// switch apply to both; POLL_INTERVAL only changes the screen cadence.
func (c *Client) Verification() (screen, quickPay verification.Config) {
	screen = verification.ScreenConfig()
	screen.Budget = c.VerifyBudget
	screen.PollInterval = c.PollInterval
	screen.DemoFallback = c.DemoFallback

	quickPay = verification.QuickPayConfig()
	quickPay.Budget = c.VerifyBudget
	quickPay.DemoFallback = c.DemoFallback
	if quickPay.InitialDelay >= quickPay.Budget {
		quickPay.InitialDelay = 0
	}
	if quickPay.PollInterval > quickPay.Budget {
		quickPay.PollInterval = quickPay.Budget
	}
	return screen, quickPay
}

func LoadServer() (*Server, error) {
	v := newViper(map[string]interface{}{
		"HTTP_ADDR":            ":8080",
		"DB_CONNECTION_STRING": "",
		"JWT_SECRET":           "",
		"JWT_TTL":              "24h",
		"PLANS_FILE":           "",
		"SANDBOX_SETTLE_AFTER": "10s",
		"PENDING_TTL":          "15m",
		"CHECKOUT_BASE_URL":    "http://localhost:8080/checkout",
		"SMTP_HOST":            "",
		"SMTP_PORT":            587,
		"EMAIL_ADDRESS":        "",
		"EMAIL_PASSWORD":       "",
		"APP_ENV":              "",
	})

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Server) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	if c.SandboxSettleAfter < 0 {
		return errors.New("config: SANDBOX_SETTLE_AFTER must not be negative")
	}
	if c.PendingTTL <= 0 {
		return errors.New("config: PENDING_TTL must be positive")
	}
	if c.SMTPHost != "" && c.EmailAddress == "" {
		return errors.New("config: EMAIL_ADDRESS must be set when SMTP_HOST is")
	}
	return nil
}

// DatabaseURL reads only DB_CONNECTION_STRING, for tools that do not serve traffic.
func DatabaseURL() string {
	v := newViper(map[string]interface{}{"DB_CONNECTION_STRING": ""})
	return v.GetString("DB_CONNECTION_STRING")
}

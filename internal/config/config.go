package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process configuration resolved once at startup and
// passed explicitly through the fx graph.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	BillingEnabled bool

	Paystack PaystackConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookRateLimitRPS   float64
	WebhookRateLimitBurst int

	SMTP SMTPConfig

	SlackWebhookURL string
	SlackOpsChannel string
}

// PaystackConfig carries the gateway credentials. SecretKey and
// WebhookSecret are mandatory whenever billing is enabled.
type PaystackConfig struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "edusuite-billing"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		BillingEnabled: getenvBool("BILLING_ENABLED", true),
		Paystack: PaystackConfig{
			PublicKey:     strings.TrimSpace(getenv("PAYSTACK_PUBLIC_KEY", "")),
			SecretKey:     strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("PAYSTACK_WEBHOOK_SECRET", "")),
			BaseURL:       getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "edusuite"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           int(getenvInt64("REDIS_DB", 0)),
		WebhookRateLimitRPS:   getenvFloat64("WEBHOOK_RATE_LIMIT_RPS", 20),
		WebhookRateLimitBurst: int(getenvInt64("WEBHOOK_RATE_LIMIT_BURST", 60)),
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     int(getenvInt64("SMTP_PORT", 587)),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "billing@edusuite.ng"),
		},
		SlackWebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
		SlackOpsChannel: getenv("SLACK_OPS_CHANNEL", "#billing-ops"),
	}

	return cfg
}

// Validate fails startup when mandatory settings are absent.
func (c Config) Validate() error {
	if !c.BillingEnabled {
		return nil
	}
	if c.Paystack.SecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY is required when billing is enabled")
	}
	if c.Paystack.WebhookSecret == "" {
		return fmt.Errorf("PAYSTACK_WEBHOOK_SECRET is required when billing is enabled")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat64(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

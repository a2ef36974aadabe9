package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Angel One credentials
	AngelAPIKey     string
	AngelClientCode string
	AngelPIN        string
	AngelTOTPSecret string

	// Exchange-local timezone for the daily session reset boundary.
	// SmartAPI tokens die at 05:00 in this zone regardless of login time.
	ExchangeTZ string

	// Coinbase Advanced Trade credentials (optional; crypto endpoints are
	// disabled when unset)
	CoinbaseAPIBase    string
	CoinbaseKeyName    string
	CoinbasePrivateKey string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	HTTPAddr      string

	// Order status reconciliation
	ReconcileAttempts int
	ReconcileDelay    time.Duration

	// Optional alert channels for order placement events
	NotifyWebhookURL string
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		AngelAPIKey:     mustEnv("ANGEL_API_KEY"),
		AngelClientCode: mustEnv("ANGEL_CLIENT_CODE"),
		AngelPIN:        mustEnv("ANGEL_PIN"),
		AngelTOTPSecret: mustEnv("ANGEL_TOTP_SECRET"),

		ExchangeTZ: getEnv("ANGEL_EXCHANGE_TZ", "Asia/Kolkata"),

		CoinbaseAPIBase:    getEnv("COINBASE_API_BASE", "https://api.coinbase.com"),
		CoinbaseKeyName:    getEnv("COINBASE_API_KEY_NAME", ""),
		CoinbasePrivateKey: normalizeMultiline(getEnv("COINBASE_API_PRIVATE_KEY", "")),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/orders.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		ReconcileAttempts: getEnvInt("RECONCILE_ATTEMPTS", 5),
		ReconcileDelay:    time.Duration(getEnvInt("RECONCILE_DELAY_MS", 600)) * time.Millisecond,

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// Location resolves the exchange timezone, falling back to a fixed IST
// offset when the tzdata lookup fails (e.g. scratch containers).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ExchangeTZ)
	if err != nil {
		log.Printf("[config] cannot load timezone %q (%v), falling back to IST", c.ExchangeTZ, err)
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid value for %s: %q", key, v)
		return fallback
	}
	return n
}

// normalizeMultiline turns "\n" escapes in env-provided PEM keys into real
// newlines (systemd unit files and .env loaders flatten them).
func normalizeMultiline(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Hard floors on the cadence settings. A misconfigured interval below the
// floor would hammer the quote sources and the database.
const (
	MinPollInterval = 10 * time.Second
	MinSyncInterval = 30 * time.Second
)

// Config holds application configuration
type Config struct {
	// Database configuration
	DatabaseHost     string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Autotrade worker configuration
	Autotrade AutotradeConfig

	// Recommendation engine configuration
	Engine EngineConfig

	// Price feed configuration
	PriceFeed PriceFeedConfig

	// Notification configuration
	Notify NotifyConfig
}

// AutotradeConfig holds the worker cadence and order settings.
type AutotradeConfig struct {
	Enabled     bool
	SendEnabled bool // false means dry run: evaluate triggers, never claim or send

	// Order relay credentials. Values left as ${...} placeholders in the
	// environment are resolved from the info sidecar file.
	InfoPath   string
	WebhookURL string
	Password   string
	KISNumber  string

	DefaultAmount int
	PollInterval  time.Duration

	Optimize             string
	OptimizeLookbackBars int

	SyncEnabled           bool
	SyncInterval          time.Duration
	SyncMaxCodes          int
	CancelMissingSelected bool
	GenerateSellQueue     bool

	PurgeExpiredAfterDays int

	StrategyFile string
}

// EngineConfig holds the recommendation engine endpoint.
type EngineConfig struct {
	URL string
}

// PriceFeedConfig holds the quote source settings.
type PriceFeedConfig struct {
	BrokerQuoteURL string
	QuoteCacheTTL  time.Duration
}

// NotifyConfig holds the notification channel settings.
type NotifyConfig struct {
	DiscordWebhookURL string
	TelegramToken     string
	TelegramChatID    string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvInt("DB_PORT", 5432),
		DatabaseName:     getEnvOrDefault("DB_NAME", "autotrade"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "autotrade"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", ""),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Autotrade: AutotradeConfig{
			Enabled:     getEnvBool("AUTOTRADE_ENABLED", true),
			SendEnabled: getEnvBool("AUTOTRADE_SEND_ENABLED", false),

			InfoPath:   getEnvOrDefault("AUTOTRADE_INFO_PATH", ""),
			WebhookURL: getEnvOrDefault("AUTOTRADE_WEBHOOK_URL", ""),
			Password:   getEnvOrDefault("AUTOTRADE_PASSWORD", ""),
			KISNumber:  getEnvOrDefault("AUTOTRADE_KIS_NUMBER", "1"),

			DefaultAmount: getEnvInt("AUTOTRADE_DEFAULT_AMOUNT", 1),
			PollInterval:  getEnvDuration("AUTOTRADE_POLL_INTERVAL", 60*time.Second),

			Optimize:             getEnvOrDefault("AUTOTRADE_OPTIMIZE", ""),
			OptimizeLookbackBars: getEnvInt("AUTOTRADE_OPTIMIZE_LOOKBACK_BARS", 0),

			SyncEnabled:           getEnvBool("AUTOTRADE_SYNC_ENABLED", true),
			SyncInterval:          getEnvDuration("AUTOTRADE_SYNC_INTERVAL", 300*time.Second),
			SyncMaxCodes:          getEnvInt("AUTOTRADE_SYNC_MAX_CODES", 0),
			CancelMissingSelected: getEnvBool("AUTOTRADE_CANCEL_MISSING_SELECTED", true),
			GenerateSellQueue:     getEnvBool("AUTOTRADE_GENERATE_SELL_QUEUE", false),

			PurgeExpiredAfterDays: getEnvInt("AUTOTRADE_PURGE_EXPIRED_AFTER_DAYS", 7),

			StrategyFile: getEnvOrDefault("AUTOTRADE_STRATEGY_FILE", "strategy.yaml"),
		},

		Engine: EngineConfig{
			URL: getEnvOrDefault("ENGINE_URL", "http://localhost:8765"),
		},

		PriceFeed: PriceFeedConfig{
			BrokerQuoteURL: getEnvOrDefault("BROKER_QUOTE_URL", ""),
			QuoteCacheTTL:  getEnvDuration("QUOTE_CACHE_TTL", 30*time.Second),
		},

		Notify: NotifyConfig{
			DiscordWebhookURL: getEnvOrDefault("DISCORD_WEBHOOK_URL", ""),
			TelegramToken:     getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:    getEnvOrDefault("TELEGRAM_CHAT_ID", ""),
		},
	}

	cfg.applyFloors()
	cfg.fillFromInfoFile()
	return cfg
}

// applyFloors clamps the cadence and amount settings to their minimums.
func (c *Config) applyFloors() {
	a := &c.Autotrade
	if a.PollInterval < MinPollInterval {
		a.PollInterval = MinPollInterval
	}
	if a.SyncInterval < MinSyncInterval {
		a.SyncInterval = MinSyncInterval
	}
	if a.DefaultAmount < 1 {
		a.DefaultAmount = 1
	}
	if a.SyncMaxCodes < 0 {
		a.SyncMaxCodes = 0
	}
	if a.PurgeExpiredAfterDays < 0 {
		a.PurgeExpiredAfterDays = 0
	}
}

// fillFromInfoFile resolves relay credentials from the operator's info
// sidecar file. The webhook URL fills when the environment left it empty or
// as a ${...} placeholder; password and account number only when left as a
// placeholder, so an explicit env value always wins.
func (c *Config) fillFromInfoFile() {
	a := &c.Autotrade
	needsWebhook := a.WebhookURL == "" || isPlaceholder(a.WebhookURL)
	needsPassword := isPlaceholder(a.Password)
	needsKIS := isPlaceholder(a.KISNumber)
	if !needsWebhook && !needsPassword && !needsKIS {
		return
	}

	info, err := LoadInfoFile(a.InfoPath)
	if err != nil {
		// Leave placeholders in place; the dispatcher refuses to send
		// with unresolved credentials.
		return
	}
	if needsWebhook && info.WebhookURL != "" {
		a.WebhookURL = info.WebhookURL
	}
	if needsPassword && info.Password != "" {
		a.Password = info.Password
	}
	if needsKIS && info.KISNumber != "" {
		a.KISNumber = info.KISNumber
	}
}

// CredentialsResolved reports whether the relay settings are usable, i.e.
// present and not unresolved placeholders.
func (c *Config) CredentialsResolved() bool {
	a := &c.Autotrade
	return a.WebhookURL != "" && !isPlaceholder(a.WebhookURL) &&
		a.Password != "" && !isPlaceholder(a.Password)
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}")
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvBool gets environment variable as bool or returns default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return defaultValue
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

// getEnvDuration gets environment variable as a duration. Plain integers
// are read as seconds; Go duration strings work too.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Chat      ChatConfig
	Ticketing TicketingConfig
	Webhook   WebhookConfig
	Outbound  OutboundConfig
	Sync      SyncConfig
	Events    EventsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
	Env     string
}

// AuthConfig defines hashing parameters for the webhook credential.
type AuthConfig struct {
	BcryptCost int
}

// ChatConfig points at the chat platform API.
type ChatConfig struct {
	BaseURL  string
	BotToken string
	BotEmail string
}

// TicketingConfig points at the ticketing REST API.
type TicketingConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenPath    string
}

// WebhookConfig is the shared credential guarding the ticket webhook.
type WebhookConfig struct {
	Username string
	Password string
}

// OutboundConfig tunes the resilient caller.
type OutboundConfig struct {
	TimeoutSeconds           int
	MaxRetries               int
	RetryBaseDelayMillis     int
	RateLimitFallbackSeconds int
}

// SyncConfig tunes reconciliation, dedup and polling.
type SyncConfig struct {
	DedupWindowSeconds  int
	DedupBackend        string
	StatusWhitelist     []string
	PollEnabled         bool
	PollIntervalSeconds int
	Workers             int
	QueueSize           int
	UserCacheTTLSeconds int
	TrackingTTLHours    int
	AliasFile           string
}

// EventsConfig enables exporting bridge events to RabbitMQ. An empty
// AMQPURL disables the exporter.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// Load reads configuration from environment variables, applying defaults
// where possible. envFiles are loaded first without overriding variables
// already set; with none given, ./.env is tried.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chat-ticket-bridge"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Service: getEnv("APP_NAME", "chat-ticket-bridge"),
			Env:     getEnv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Chat: ChatConfig{
			BaseURL:  strings.TrimRight(getEnv("CHAT_API_URL", "https://webexapis.com/v1"), "/"),
			BotToken: os.Getenv("CHAT_BOT_TOKEN"),
			BotEmail: os.Getenv("CHAT_BOT_EMAIL"),
		},
		Ticketing: TicketingConfig{
			BaseURL:      strings.TrimRight(os.Getenv("TICKETING_API_URL"), "/"),
			ClientID:     os.Getenv("TICKETING_CLIENT_ID"),
			ClientSecret: os.Getenv("TICKETING_CLIENT_SECRET"),
			TokenPath:    getEnv("TICKETING_TOKEN_PATH", "/oauth/token"),
		},
		Webhook: WebhookConfig{
			Username: os.Getenv("WEBHOOK_USERNAME"),
			Password: os.Getenv("WEBHOOK_PASSWORD"),
		},
		Outbound: OutboundConfig{
			TimeoutSeconds:           getEnvAsInt("OUTBOUND_TIMEOUT_SECONDS", 15),
			MaxRetries:               getEnvAsInt("OUTBOUND_MAX_RETRIES", 3),
			RetryBaseDelayMillis:     getEnvAsInt("OUTBOUND_RETRY_BASE_DELAY_MS", 1000),
			RateLimitFallbackSeconds: getEnvAsInt("OUTBOUND_RATE_LIMIT_FALLBACK_SECONDS", 10),
		},
		Sync: SyncConfig{
			DedupWindowSeconds:  getEnvAsInt("SYNC_DEDUP_WINDOW_SECONDS", 30),
			DedupBackend:        strings.ToLower(getEnv("SYNC_DEDUP_BACKEND", "memory")),
			StatusWhitelist:     getEnvAsList("SYNC_STATUS_WHITELIST"),
			PollEnabled:         getEnvAsBool("SYNC_POLL_ENABLED", false),
			PollIntervalSeconds: getEnvAsInt("SYNC_POLL_INTERVAL_SECONDS", 60),
			Workers:             getEnvAsInt("SYNC_WORKERS", 8),
			QueueSize:           getEnvAsInt("SYNC_QUEUE_SIZE", 256),
			UserCacheTTLSeconds: getEnvAsInt("SYNC_USER_CACHE_TTL_SECONDS", 900),
			TrackingTTLHours:    getEnvAsInt("SYNC_TRACKING_TTL_HOURS", 0),
			AliasFile:           os.Getenv("SYNC_ALIAS_FILE"),
		},
		Events: EventsConfig{
			AMQPURL:  os.Getenv("EVENTS_AMQP_URL"),
			Exchange: getEnv("EVENTS_AMQP_EXCHANGE", "ticket-bridge.events"),
		},
	}

	return cfg, nil
}

// Validate reports every missing credential the process cannot start without.
func (c *Config) Validate() error {
	required := []struct {
		key, val string
	}{
		{"CHAT_BOT_TOKEN", c.Chat.BotToken},
		{"TICKETING_API_URL", c.Ticketing.BaseURL},
		{"TICKETING_CLIENT_ID", c.Ticketing.ClientID},
		{"TICKETING_CLIENT_SECRET", c.Ticketing.ClientSecret},
		{"WEBHOOK_USERNAME", c.Webhook.Username},
		{"WEBHOOK_PASSWORD", c.Webhook.Password},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Sync.DedupBackend != "memory" && c.Sync.DedupBackend != "redis" {
		return fmt.Errorf("invalid SYNC_DEDUP_BACKEND %q", c.Sync.DedupBackend)
	}
	if c.Sync.DedupBackend == "redis" && c.Redis.Addr == "" {
		return errors.New("SYNC_DEDUP_BACKEND=redis requires REDIS_ADDR")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout is the per-call deadline for outbound requests.
func (o OutboundConfig) Timeout() time.Duration {
	return secondsOr(o.TimeoutSeconds, 15)
}

// RetryBaseDelay is the unit of the linear retry backoff.
func (o OutboundConfig) RetryBaseDelay() time.Duration {
	if o.RetryBaseDelayMillis <= 0 {
		return time.Second
	}
	return time.Duration(o.RetryBaseDelayMillis) * time.Millisecond
}

// RateLimitFallback is used when a 429 carries no usable Retry-After.
func (o OutboundConfig) RateLimitFallback() time.Duration {
	return secondsOr(o.RateLimitFallbackSeconds, 10)
}

// DedupWindow returns the suppression window.
func (s SyncConfig) DedupWindow() time.Duration {
	return secondsOr(s.DedupWindowSeconds, 30)
}

// PollInterval returns the poll loop period.
func (s SyncConfig) PollInterval() time.Duration {
	return secondsOr(s.PollIntervalSeconds, 60)
}

// UserCacheTTL returns the user snapshot freshness.
func (s SyncConfig) UserCacheTTL() time.Duration {
	return secondsOr(s.UserCacheTTLSeconds, 900)
}

// TrackingTTL returns zero when eviction of idle tickets is disabled.
func (s SyncConfig) TrackingTTL() time.Duration {
	if s.TrackingTTLHours <= 0 {
		return 0
	}
	return time.Duration(s.TrackingTTLHours) * time.Hour
}

func secondsOr(val, fallback int) time.Duration {
	if val <= 0 {
		val = fallback
	}
	return time.Duration(val) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

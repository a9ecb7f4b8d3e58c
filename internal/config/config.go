package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Escalation EscalationConfig
	Advisor    AdvisorConfig
	Forum      ForumConfig
	Notify     NotifyConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines parameters for verifying identity-provider tokens.
type AuthConfig struct {
	JWTSecret string
}

// EscalationConfig carries the SLA-breach policy knobs.
type EscalationConfig struct {
	ThresholdHours  int
	Team            string
	Level           int
	CronSchedule    string
	LeaseTTLSeconds int
}

// Threshold returns the configured SLA breach age.
func (e EscalationConfig) Threshold() time.Duration {
	return time.Duration(e.ThresholdHours) * time.Hour
}

// LeaseTTL returns the per-ticket lease duration for scanner instances.
func (e EscalationConfig) LeaseTTL() time.Duration {
	return time.Duration(e.LeaseTTLSeconds) * time.Second
}

// AdvisorConfig configures the AI resolution advisor.
//
// RetrievalEscalationThreshold and SuppressionConfidenceThreshold are two
// independent knobs: the first flags auto-responses for human review, the
// second suppresses admin notification of auto-answered tickets. They are
// intentionally not unified.
type AdvisorConfig struct {
	BaseURL                        string
	APIKey                         string
	TimeoutSeconds                 int
	RetrievalEscalationThreshold   float64
	SuppressionConfidenceThreshold float64
}

// Timeout returns the advisor request timeout.
func (a AdvisorConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ForumConfig configures the forum-service client used by ticket conversion.
type ForumConfig struct {
	BaseURL             string
	TimeoutSeconds      int
	DefaultCategoryName string
}

// Timeout returns the forum request timeout.
func (f ForumConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// NotifyConfig holds notification sink endpoints and fanout behavior.
type NotifyConfig struct {
	SlackToken         string
	SlackChannel       string
	CRMWebhookURL      string
	SMTPHost           string
	SMTPPort           string
	SMTPUsername       string
	SMTPPassword       string
	EmailFrom          string
	SinkTimeoutSeconds int
	MaxRetries         int
}

// SinkTimeout returns the per-sink delivery timeout.
func (n NotifyConfig) SinkTimeout() time.Duration {
	return time.Duration(n.SinkTimeoutSeconds) * time.Second
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Escalation: EscalationConfig{
			ThresholdHours:  getEnvAsInt("ESCALATION_THRESHOLD_HOURS", 48),
			Team:            getEnv("ESCALATION_TEAM", "escalation_team"),
			Level:           getEnvAsInt("ESCALATION_LEVEL", 1),
			CronSchedule:    getEnv("ESCALATION_CRON_SCHEDULE", "*/15 * * * *"),
			LeaseTTLSeconds: getEnvAsInt("ESCALATION_LEASE_TTL_SECONDS", 60),
		},
		Advisor: AdvisorConfig{
			BaseURL:                        getEnv("ADVISOR_BASE_URL", ""),
			APIKey:                         os.Getenv("ADVISOR_API_KEY"),
			TimeoutSeconds:                 getEnvAsInt("ADVISOR_TIMEOUT_SECONDS", 10),
			RetrievalEscalationThreshold:   getEnvAsFloat("ADVISOR_RETRIEVAL_ESCALATION_THRESHOLD", 0.65),
			SuppressionConfidenceThreshold: getEnvAsFloat("ADVISOR_SUPPRESSION_CONFIDENCE_THRESHOLD", 0.8),
		},
		Forum: ForumConfig{
			BaseURL:             getEnv("FORUM_BASE_URL", ""),
			TimeoutSeconds:      getEnvAsInt("FORUM_TIMEOUT_SECONDS", 10),
			DefaultCategoryName: getEnv("FORUM_DEFAULT_CATEGORY_NAME", "Support"),
		},
		Notify: NotifyConfig{
			SlackToken:         os.Getenv("NOTIFY_SLACK_TOKEN"),
			SlackChannel:       getEnv("NOTIFY_SLACK_CHANNEL", "#support"),
			CRMWebhookURL:      os.Getenv("NOTIFY_CRM_WEBHOOK_URL"),
			SMTPHost:           os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:           getEnv("NOTIFY_SMTP_PORT", "587"),
			SMTPUsername:       os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:       os.Getenv("NOTIFY_SMTP_PASSWORD"),
			EmailFrom:          getEnv("NOTIFY_EMAIL_FROM", "support@example.com"),
			SinkTimeoutSeconds: getEnvAsInt("NOTIFY_SINK_TIMEOUT_SECONDS", 5),
			MaxRetries:         getEnvAsInt("NOTIFY_MAX_RETRIES", 2),
		},
	}

	return cfg, nil
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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

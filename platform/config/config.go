// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides bearer token validation settings for middleware.
// Tokens are issued by the external identity service; this service only verifies them.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// IdempotencyConfig provides settings for duplicate-submission suppression.
type IdempotencyConfig interface {
	GetRedisURL() string
	GetIdempotencyTTL() time.Duration
}

// EmailConfig provides settings for SMTP email delivery.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketInspectionReports() string
	IsMinIOEnabled() bool
}

// NotificationConfig provides settings for customer notifications.
type NotificationConfig interface {
	GetEmailFromName() string
	GetReminderLeadTime() time.Duration
	GetMinioBucketInspectionReports() string
}

// LifecycleConfig provides settings for the service-request lifecycle core.
type LifecycleConfig interface {
	GetInspectionChecklistFile() string
	GetBulkScheduleConcurrency() int
	GetAlertPollInterval() time.Duration
	GetPhoneDefaultRegion() string
	GetReminderLeadTime() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                          string
	HTTPAddr                     string
	DatabaseURL                  string
	JWTAccessSecret              string
	CORSAllowAll                 bool
	CORSOrigins                  []string
	CORSAllowCreds               bool
	RedisURL                     string
	RedisTLSInsecure             bool
	AsynqQueueName               string
	AsynqConcurrency             int
	IdempotencyTTL               time.Duration
	EmailEnabled                 bool
	SMTPHost                     string
	SMTPPort                     int
	SMTPUsername                 string
	SMTPPassword                 string
	EmailFromName                string
	EmailFromAddress             string
	MinIOEndpoint                string
	MinIOAccessKey               string
	MinIOSecretKey               string
	MinIOUseSSL                  bool
	MinioBucketInspectionReports string
	InspectionChecklistFile      string
	BulkScheduleConcurrency      int
	AlertPollInterval            time.Duration
	PhoneDefaultRegion           string
	ReminderLeadTime             time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// IdempotencyConfig implementation
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketInspectionReports() string {
	return c.MinioBucketInspectionReports
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// LifecycleConfig implementation
func (c *Config) GetInspectionChecklistFile() string  { return c.InspectionChecklistFile }
func (c *Config) GetBulkScheduleConcurrency() int     { return c.BulkScheduleConcurrency }
func (c *Config) GetAlertPollInterval() time.Duration { return c.AlertPollInterval }
func (c *Config) GetPhoneDefaultRegion() string       { return c.PhoneDefaultRegion }
func (c *Config) GetReminderLeadTime() time.Duration  { return c.ReminderLeadTime }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                          getEnv("APP_ENV", "development"),
		HTTPAddr:                     getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                  getEnv("DATABASE_URL", ""),
		JWTAccessSecret:              getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                 corsAllowAll,
		CORSOrigins:                  corsOrigins,
		CORSAllowCreds:               strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                     getEnv("REDIS_URL", ""),
		RedisTLSInsecure:             strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:               getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:             mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		IdempotencyTTL:               mustDuration(getEnv("IDEMPOTENCY_TTL", "10m")),
		EmailEnabled:                 emailEnabled && smtpHost != "",
		SMTPHost:                     smtpHost,
		SMTPPort:                     mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:                 getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                 getEnv("SMTP_PASSWORD", ""),
		EmailFromName:                getEnv("EMAIL_FROM_NAME", "Fleet Service"),
		EmailFromAddress:             getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:                getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:               getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:               getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                  strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketInspectionReports: getEnv("MINIO_BUCKET_INSPECTION_REPORTS", "inspection-reports"),
		InspectionChecklistFile:      getEnv("INSPECTION_CHECKLIST_FILE", ""),
		BulkScheduleConcurrency:      mustInt(getEnv("BULK_SCHEDULE_CONCURRENCY", "0")),
		AlertPollInterval:            mustDuration(getEnv("ALERT_POLL_INTERVAL", "30s")),
		PhoneDefaultRegion:           strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "US")),
		ReminderLeadTime:             mustDuration(getEnv("REMINDER_LEAD_TIME", "24h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.AlertPollInterval <= 0 {
		cfg.AlertPollInterval = 30 * time.Second
	}
	if cfg.BulkScheduleConcurrency < 0 {
		cfg.BulkScheduleConcurrency = 0
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

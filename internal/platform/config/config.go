package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Addr              string `yaml:"addr"`
	Environment       string `yaml:"environment"`
	LogLevel          string `yaml:"logLevel"`
	DatabaseURL       string `yaml:"databaseUrl"`
	MigrationsDir     string `yaml:"migrationsDir"`
	RunMigrations     bool   `yaml:"runMigrations"`
	RunSeed           bool   `yaml:"runSeed"`
	JWTSecret         string `yaml:"jwtSecret"`
	CronSecret        string `yaml:"cronSecret"`
	WebhookSecret     string `yaml:"webhookSecret"`
	DataEncryptionKey string `yaml:"dataEncryptionKey"`
	DashboardURL      string `yaml:"dashboardUrl"`

	MaxBodyBytes       int64 `yaml:"maxBodyBytes"`
	RateLimitPerMinute int   `yaml:"rateLimitPerMinute"`
	MetricsEnabled     bool  `yaml:"metricsEnabled"`

	Email EmailConfig `yaml:"email"`
	Jobs  JobsConfig  `yaml:"jobs"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	AMQPURL       string `yaml:"amqpUrl"`
	AMQPExchange  string `yaml:"amqpExchange"`

	TemplateCacheTTL time.Duration `yaml:"templateCacheTtl"`
}

type EmailConfig struct {
	FromEmail      string        `yaml:"fromEmail"`
	FromName       string        `yaml:"fromName"`
	ReplyTo        string        `yaml:"replyTo"`
	SendGridAPIKey string        `yaml:"sendgridApiKey"`
	SendGridURL    string        `yaml:"sendgridUrl"`
	SMTPHost       string        `yaml:"smtpHost"`
	SMTPPort       int           `yaml:"smtpPort"`
	SMTPUser       string        `yaml:"smtpUser"`
	SMTPPassword   string        `yaml:"smtpPassword"`
	SMTPTLSMode    string        `yaml:"smtpTlsMode"`
	SendTimeout    time.Duration `yaml:"sendTimeout"`
	SendInterval   time.Duration `yaml:"sendInterval"`
}

// JobsConfig schedules the batch jobs in-process. A zero interval leaves a
// job to the external trigger only.
type JobsConfig struct {
	PendingBatchSize  int           `yaml:"pendingBatchSize"`
	LockTTL           time.Duration `yaml:"lockTtl"`
	PendingInterval   time.Duration `yaml:"pendingInterval"`
	FollowUpInterval  time.Duration `yaml:"followUpInterval"`
	OverdueInterval   time.Duration `yaml:"overdueInterval"`
	SummariesInterval time.Duration `yaml:"summariesInterval"`
}

var smtpTLSModes = map[string]bool{"auto": true, "ssl": true, "none": true}

// Load reads .env (if present), then the YAML file at path or
// WIPETRACE_CONFIG, then applies environment overrides and defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{RunMigrations: true, RunSeed: true, MetricsEnabled: true}
	if path == "" {
		path = os.Getenv("WIPETRACE_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("APP_ADDR", c.Addr)
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MigrationsDir = getEnv("MIGRATIONS_DIR", c.MigrationsDir)
	c.RunMigrations = getEnvBool("RUN_MIGRATIONS", c.RunMigrations)
	c.RunSeed = getEnvBool("RUN_SEED", c.RunSeed)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.CronSecret = getEnv("CRON_SECRET", c.CronSecret)
	c.WebhookSecret = getEnv("EMAIL_WEBHOOK_SECRET", c.WebhookSecret)
	c.DataEncryptionKey = getEnv("DATA_ENCRYPTION_KEY", c.DataEncryptionKey)
	c.DashboardURL = getEnv("DASHBOARD_URL", c.DashboardURL)
	c.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes)))
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.TemplateCacheTTL = getEnvDuration("TEMPLATE_CACHE_TTL", c.TemplateCacheTTL)

	e := &c.Email
	e.FromEmail = getEnv("FROM_EMAIL", e.FromEmail)
	e.FromName = getEnv("FROM_NAME", e.FromName)
	e.ReplyTo = getEnv("REPLY_TO_EMAIL", e.ReplyTo)
	e.SendGridAPIKey = getEnv("SENDGRID_API_KEY", e.SendGridAPIKey)
	e.SendGridURL = getEnv("SENDGRID_API_URL", e.SendGridURL)
	e.SMTPHost = getEnv("SMTP_HOST", e.SMTPHost)
	e.SMTPPort = getEnvInt("SMTP_PORT", e.SMTPPort)
	e.SMTPUser = getEnv("SMTP_USER", e.SMTPUser)
	e.SMTPPassword = getEnv("SMTP_PASSWORD", e.SMTPPassword)
	e.SMTPTLSMode = getEnv("SMTP_TLS_MODE", e.SMTPTLSMode)
	e.SendTimeout = getEnvDuration("EMAIL_SEND_TIMEOUT", e.SendTimeout)
	e.SendInterval = getEnvDuration("EMAIL_SEND_INTERVAL", e.SendInterval)

	j := &c.Jobs
	j.PendingBatchSize = getEnvInt("JOB_PENDING_BATCH_SIZE", j.PendingBatchSize)
	j.LockTTL = getEnvDuration("JOB_LOCK_TTL", j.LockTTL)
	j.PendingInterval = getEnvDuration("JOB_PENDING_INTERVAL", j.PendingInterval)
	j.FollowUpInterval = getEnvDuration("JOB_FOLLOWUP_INTERVAL", j.FollowUpInterval)
	j.OverdueInterval = getEnvDuration("JOB_OVERDUE_INTERVAL", j.OverdueInterval)
	j.SummariesInterval = getEnvDuration("JOB_SUMMARIES_INTERVAL", j.SummariesInterval)
}

func (c *Config) applyDefaults() {
	setDefault(&c.Addr, ":8080")
	setDefault(&c.Environment, EnvDevelopment)
	setDefault(&c.LogLevel, "info")
	setDefault(&c.MigrationsDir, "migrations")
	setDefault(&c.AMQPExchange, "wipetrace.events")
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.TemplateCacheTTL == 0 {
		c.TemplateCacheTTL = 5 * time.Minute
	}

	e := &c.Email
	setDefault(&e.FromEmail, "noreply@wipemytrace.com")
	setDefault(&e.FromName, "Wipe My Trace")
	setDefault(&e.ReplyTo, "support@wipemytrace.com")
	setDefault(&e.SMTPTLSMode, "auto")
	if e.SMTPPort == 0 {
		e.SMTPPort = 587
	}
	if e.SendTimeout == 0 {
		e.SendTimeout = 15 * time.Second
	}
	if e.SendInterval == 0 {
		e.SendInterval = 2 * time.Second
	}

	if c.Jobs.PendingBatchSize == 0 {
		c.Jobs.PendingBatchSize = 50
	}
	if c.Jobs.LockTTL == 0 {
		c.Jobs.LockTTL = 10 * time.Minute
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if strings.TrimSpace(c.CronSecret) == "" {
			return fmt.Errorf("CRON_SECRET must be set in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.Email.SendTimeout <= 0 {
		return fmt.Errorf("EMAIL_SEND_TIMEOUT must be positive")
	}
	if !smtpTLSModes[c.Email.SMTPTLSMode] {
		return fmt.Errorf("SMTP_TLS_MODE must be one of auto, ssl, none")
	}
	return nil
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

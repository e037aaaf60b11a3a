package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

type LogConfig struct {
	Level string
}

type JWTConfig struct {
	SigningKey string
}

type MailConfig struct {
	SendGridAPIKey string
	From           string
	FromName       string
}

type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
}

type SchedulerConfig struct {
	Enabled        bool
	Timezone       string
	DailyLowStock  string
	HourlyLowStock string
	AutoRenew      string
	AutoReorder    string
	KickDelay      time.Duration
}

type ReorderConfig struct {
	SuppressDuplicates   bool
	ExpectedDeliveryDays int
}

type MetricsConfig struct {
	Namespace string
}

type Config struct {
	ServiceName string
	DatabaseURL string
	Database    DatabaseConfig
	Server      ServerConfig
	Log         LogConfig
	JWT         JWTConfig
	Mail        MailConfig
	Kafka       KafkaConfig
	Scheduler   SchedulerConfig
	Reorder     ReorderConfig
	Metrics     MetricsConfig
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "grocery-stock"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Database: DatabaseConfig{
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			PingTimeout:     getEnvAsDuration("DB_PING_TIMEOUT", 5*time.Second),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
		},
		Mail: MailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			From:           getEnv("MAIL_FROM", "no-reply@grocery-stock.local"),
			FromName:       getEnv("MAIL_FROM_NAME", "Grocery Stock"),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsList("KAFKA_BROKERS"),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "stock-events"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getEnvAsBool("SCHEDULER_ENABLED", true),
			Timezone:       getEnv("SCHEDULER_TIMEZONE", "America/New_York"),
			DailyLowStock:  getEnv("CRON_DAILY_LOW_STOCK", "0 9 * * *"),
			HourlyLowStock: getEnv("CRON_HOURLY_LOW_STOCK", "0 * * * *"),
			AutoRenew:      getEnv("CRON_AUTO_RENEW", "0 10 * * *"),
			AutoReorder:    getEnv("CRON_AUTO_REORDER", "*/30 * * * *"),
			KickDelay:      getEnvAsDuration("REORDER_KICK_DELAY", time.Second),
		},
		Reorder: ReorderConfig{
			SuppressDuplicates:   getEnvAsBool("REORDER_SUPPRESS_DUPLICATES", false),
			ExpectedDeliveryDays: getEnvAsInt("EXPECTED_DELIVERY_DAYS", 2),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "grocery_stock"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}
	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid DB_MAX_CONNS/DB_MIN_CONNS: %d/%d", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid PORT: %d", c.Server.Port)
	}
	if c.JWT.SigningKey == "" && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SIGNING_KEY is required when APP_ENV=%s", c.Server.Env)
	}
	if c.Reorder.ExpectedDeliveryDays < 0 {
		return fmt.Errorf("invalid EXPECTED_DELIVERY_DAYS: %d", c.Reorder.ExpectedDeliveryDays)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", c.Scheduler.Timezone, err)
	}
	return nil
}

// LogFields omits secrets.
func (c Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.Int("port", c.Server.Port),
		zap.Int("db_max_conns", c.Database.MaxConns),
		zap.Bool("scheduler_enabled", c.Scheduler.Enabled),
		zap.String("scheduler_timezone", c.Scheduler.Timezone),
		zap.Strings("kafka_brokers", c.Kafka.Brokers),
		zap.Bool("sendgrid_configured", c.Mail.SendGridAPIKey != ""),
		zap.Bool("suppress_duplicate_reorders", c.Reorder.SuppressDuplicates),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

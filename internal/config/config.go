package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ledger/internal/infrastructure/database"
)

type Config struct {
	DBConfig database.DBConfig

	HTTPPort       string `env:"LEDGER_HTTP_PORT"`
	LogLevel       string `env:"LOG_LEVEL"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	KafkaBrokerURL    string `env:"KAFKA_BROKER_URL"`
	LedgerEventsTopic string `env:"LEDGER_EVENTS_TOPIC"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	LockTimeout      time.Duration `env:"LEDGER_LOCK_TIMEOUT"`
	TxMaxRetries     int           `env:"LEDGER_TX_MAX_RETRIES"`
	TxInitialBackoff time.Duration `env:"LEDGER_TX_INITIAL_BACKOFF"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("LEDGER_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "password")
	cfg.DBConfig.DBName = getEnvOrDefault("LEDGER_DB_NAME", "ledger_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("LEDGER_DB_SSLMODE", "disable")

	cfg.HTTPPort = getEnvOrDefault("LEDGER_HTTP_PORT", "8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.LedgerEventsTopic = getEnvOrDefault("LEDGER_EVENTS_TOPIC", "ledger_events")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 15*time.Second)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.LockTimeout = getEnvAsDuration("LEDGER_LOCK_TIMEOUT", 5*time.Second)
	cfg.TxMaxRetries = max(getEnvAsInt("LEDGER_TX_MAX_RETRIES", 3), 0)
	cfg.TxInitialBackoff = getEnvAsDuration("LEDGER_TX_INITIAL_BACKOFF", 50*time.Millisecond)

	cfg.OTelEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	cfg.OTelEnabled = getEnvAsBool("OTEL_ENABLED", false)

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return c.DBConfig.MigrationURL()
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) TxConfig() database.TxConfig {
	return database.TxConfig{
		LockTimeout:    c.LockTimeout,
		MaxRetries:     c.TxMaxRetries,
		InitialBackoff: c.TxInitialBackoff,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

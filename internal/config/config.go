// Package config holds the runtime configuration of the signing services.
// Values come from an optional .env file layered under environment variables
// and are validated once at start-up.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete configuration shared by the api_gateway and the
// notification_dispatcher binaries.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	WorkerPool   WorkerPoolConfig
	Auth         AuthConfig
	Redis        RedisConfig
	Notification NotificationConfig
	Ledger       LedgerConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration // Grace period for in-flight requests
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
	LockTimeout     time.Duration // Upper bound on waiting for a deed row lock
}

// MongoDBConfig configures the delivery tracking store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig configures the notification transport. Requests are published to
// NotificationTopic and delivery receipts are consumed from ReceiptTopic.
type KafkaConfig struct {
	Brokers           string
	NotificationTopic string
	ReceiptTopic      string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

type WorkerPoolConfig struct {
	Size int
}

// AuthConfig describes how bearer tokens issued by the identity provider are verified.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string // optional; checked when set
	JWTAudience string // optional; checked when set
}

// RedisConfig configures the statistics snapshot cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	DB       int
	StatsTTL time.Duration
}

type NotificationConfig struct {
	FromName    string
	FrontendURL string
}

type LedgerConfig struct {
	PageSize int
}

func (c *Config) validate() error {
	var problems []string
	add := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	add(c.Server.Port <= 0, "SERVER_PORT must be greater than 0")
	add(c.Server.ShutdownTimeout <= 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	add(c.Server.ReadTimeout <= 0, "SERVER_READ_TIMEOUT must be greater than 0")
	add(c.Server.WriteTimeout <= 0, "SERVER_WRITE_TIMEOUT must be greater than 0")
	add(c.Server.IdleTimeout <= 0, "SERVER_IDLE_TIMEOUT must be greater than 0")

	add(c.Postgres.URL == "", "POSTGRES_URL is required")
	add(c.Postgres.MaxConns <= 0, "POSTGRES_MAX_CONNS must be greater than 0")
	add(c.Postgres.MinConns <= 0, "POSTGRES_MIN_CONNS must be greater than 0")
	add(c.Postgres.MinConns > c.Postgres.MaxConns, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS")
	add(c.Postgres.ConnMaxLifetime <= 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	add(c.Postgres.ConnMaxIdleTime <= 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	add(c.Postgres.LockTimeout < 0, "POSTGRES_LOCK_TIMEOUT must not be negative")

	add(c.MongoDB.URI == "", "MONGO_URI is required")
	add(c.MongoDB.Database == "", "MONGO_DATABASE is required")
	add(c.MongoDB.Timeout <= 0, "MONGO_TIMEOUT must be greater than 0")
	add(c.MongoDB.MaxPoolSize == 0, "MONGO_MAX_POOL_SIZE must be greater than 0")
	add(c.MongoDB.MaxConnIdleTime <= 0, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")

	add(c.Kafka.Brokers == "", "KAFKA_BROKERS is required")
	add(c.Kafka.NotificationTopic == "", "KAFKA_NOTIFICATION_TOPIC is required")
	add(c.Kafka.ReceiptTopic == "", "KAFKA_RECEIPT_TOPIC is required")
	add(c.Kafka.ConsumerGroup == "", "KAFKA_CONSUMER_GROUP is required")
	add(c.Kafka.MinBytes <= 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	add(c.Kafka.MaxBytes < c.Kafka.MinBytes, "KAFKA_CONSUMER_MAX_BYTES must not be lower than KAFKA_CONSUMER_MIN_BYTES")
	add(c.Kafka.MaxWait <= 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	add(c.Kafka.DLQTopic == "", "KAFKA_DLQ_TOPIC is required")

	add(c.Outbox.PollingInterval <= 0, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	add(c.Outbox.BatchSize <= 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	add(c.Outbox.MaxRetryAttempts <= 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")

	add(c.WorkerPool.Size <= 0, "WORKER_POOL_SIZE must be greater than 0")

	add(c.Auth.JWTSecret == "", "AUTH_JWT_SECRET is required")
	add(c.Redis.Addr != "" && c.Redis.StatsTTL <= 0, "REDIS_STATS_TTL must be greater than 0 when REDIS_ADDR is set")
	add(c.Ledger.PageSize <= 0, "LEDGER_PAGE_SIZE must be greater than 0")

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, ", "))
	}
	return nil
}

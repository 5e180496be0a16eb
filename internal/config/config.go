// Package config defines all configuration structures for ChemSight.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// GRPCConfig holds the gRPC health/reflection listener parameters.
type GRPCConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Port       int  `mapstructure:"port"`
	Reflection bool `mapstructure:"reflection"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	AutoOffsetReset   string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries   int           `mapstructure:"producer_retries"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	AutoCreateTopics  bool          `mapstructure:"auto_create_topics"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	NumPartitions     int           `mapstructure:"num_partitions"`
	EventEncoding     string        `mapstructure:"event_encoding"` // "json" | "proto"
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// MilvusConfig holds Milvus vector-store connection parameters.
type MilvusConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Addr           string `mapstructure:"addr"`
	DBName         string `mapstructure:"db_name"`
	Collection     string `mapstructure:"collection"`
	FingerprintDim int    `mapstructure:"fingerprint_dim"`
	DefaultTopK    int    `mapstructure:"default_top_k"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters used for
// structure depictions.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// PubChemConfig holds PUG-REST client parameters.
type PubChemConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst"`
}

// LLMConfig holds the OpenAI-compatible completion endpoint parameters.
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Stop        []string      `mapstructure:"stop"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds analysis pipeline and conformer parameters.
type AnalysisConfig struct {
	ResultCacheTTL     time.Duration `mapstructure:"result_cache_ttl"`
	ResolverCacheTTL   time.Duration `mapstructure:"resolver_cache_ttl"`
	NegativeCacheTTL   time.Duration `mapstructure:"negative_cache_ttl"`
	MaxHeavyAtoms      int           `mapstructure:"max_heavy_atoms"`
	ConformerAttempts  int           `mapstructure:"conformer_attempts"`
	ConformerMaxIter   int           `mapstructure:"conformer_max_iterations"`
	ConformerTimeout   time.Duration `mapstructure:"conformer_timeout"`
	ResolveConcurrency int           `mapstructure:"resolve_concurrency"`
	InlineStructures   bool          `mapstructure:"inline_structures"`
}

// RateLimitConfig holds the per-client HTTP rate limiter parameters.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// WorkerConfig holds indexing-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	MessageTimeout time.Duration `mapstructure:"message_timeout"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for ChemSight.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	Milvus     MilvusConfig      `mapstructure:"milvus"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	PubChem    PubChemConfig     `mapstructure:"pubchem"`
	LLM        LLMConfig         `mapstructure:"llm"`
	Analysis   AnalysisConfig    `mapstructure:"analysis"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Log        logging.LogConfig `mapstructure:"log"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.GRPC.Enabled {
		if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
			return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
		}
		if c.GRPC.Port == c.Server.Port {
			return fmt.Errorf("config: grpc.port must differ from server.port (%d)", c.Server.Port)
		}
	}

	// Database
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
		switch c.Kafka.EventEncoding {
		case "json", "proto":
		default:
			return fmt.Errorf("config: kafka.event_encoding %q is invalid; expected json|proto", c.Kafka.EventEncoding)
		}
	}

	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must contain at least one address")
	}

	if c.Milvus.Enabled {
		if c.Milvus.Addr == "" {
			return fmt.Errorf("config: milvus.addr is required")
		}
		if c.Milvus.FingerprintDim < 64 || c.Milvus.FingerprintDim%8 != 0 {
			return fmt.Errorf("config: milvus.fingerprint_dim must be a multiple of 8 and ≥ 64, got %d", c.Milvus.FingerprintDim)
		}
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required")
		}
	}

	if c.PubChem.Enabled && c.PubChem.RateLimit <= 0 {
		return fmt.Errorf("config: pubchem.rate_limit must be > 0, got %v", c.PubChem.RateLimit)
	}

	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("config: llm.base_url is required")
		}
		if c.LLM.MaxTokens < 1 {
			return fmt.Errorf("config: llm.max_tokens must be ≥ 1, got %d", c.LLM.MaxTokens)
		}
	}

	// Analysis
	if c.Analysis.ConformerAttempts < 1 {
		return fmt.Errorf("config: analysis.conformer_attempts must be ≥ 1, got %d", c.Analysis.ConformerAttempts)
	}
	if c.Analysis.MaxHeavyAtoms < 1 {
		return fmt.Errorf("config: analysis.max_heavy_atoms must be ≥ 1, got %d", c.Analysis.MaxHeavyAtoms)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: rate_limit.requests_per_second must be > 0")
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// HTTPAddr returns the host:port the HTTP server listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DSN builds the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

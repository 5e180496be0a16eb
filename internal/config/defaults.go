package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second
	DefaultServerMaxBodySize     = 1 << 20

	DefaultGRPCPort = 9090

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "chemsight"
	DefaultDBName     = "chemsight"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 20
	DefaultRedisKeyPrefix = "chemsight:"
	DefaultRedisTTL       = 24 * time.Hour

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaGroupID       = "chemsight-indexer"
	DefaultKafkaEventEncoding = "json"

	DefaultOpenSearchAddress = "http://localhost:9200"
	DefaultOpenSearchPrefix  = "chemsight"

	DefaultMilvusAddr       = "localhost:19530"
	DefaultMilvusCollection = "compound_fingerprints"
	DefaultFingerprintDim   = 2048
	DefaultMilvusTopK       = 10

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "structures"
	DefaultPresignExpiry = time.Hour

	DefaultPubChemBaseURL   = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	DefaultPubChemTimeout   = 10 * time.Second
	DefaultPubChemRateLimit = 5.0

	DefaultLLMBaseURL   = "http://localhost:8000/v1"
	DefaultLLMModel     = "local"
	DefaultLLMMaxTokens = 256
	DefaultLLMTimeout   = 60 * time.Second

	DefaultResultCacheTTL     = time.Hour
	DefaultResolverCacheTTL   = 24 * time.Hour
	DefaultNegativeCacheTTL   = 10 * time.Minute
	DefaultMaxHeavyAtoms      = 150
	DefaultConformerAttempts  = 4
	DefaultConformerMaxIter   = 2000
	DefaultConformerTimeout   = 10 * time.Second
	DefaultResolveConcurrency = 4

	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40

	DefaultWorkerConcurrency    = 4
	DefaultWorkerMaxRetries     = 3
	DefaultWorkerRetryBackoff   = 500 * time.Millisecond
	DefaultWorkerMessageTimeout = 30 * time.Second

	DefaultMetricsNamespace = "chemsight"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultLLMStop are the stop sequences sent with every completion request.
var DefaultLLMStop = []string{"</s>", "User:"}

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins. Enabled flags are not
// touched here; see setViperDefaults for file/env driven defaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30 * time.Minute
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB 0 is both the default and a valid explicit value.
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = 3
	}
	if cfg.Kafka.EventEncoding == "" {
		cfg.Kafka.EventEncoding = DefaultKafkaEventEncoding
	}

	// ── Search ────────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddress}
	}
	if cfg.OpenSearch.IndexPrefix == "" {
		cfg.OpenSearch.IndexPrefix = DefaultOpenSearchPrefix
	}
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = DefaultMilvusCollection
	}
	if cfg.Milvus.FingerprintDim == 0 {
		cfg.Milvus.FingerprintDim = DefaultFingerprintDim
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultMilvusTopK
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = DefaultPresignExpiry
	}

	// ── PubChem ───────────────────────────────────────────────────────────────
	if cfg.PubChem.BaseURL == "" {
		cfg.PubChem.BaseURL = DefaultPubChemBaseURL
	}
	if cfg.PubChem.Timeout == 0 {
		cfg.PubChem.Timeout = DefaultPubChemTimeout
	}
	if cfg.PubChem.RateLimit == 0 {
		cfg.PubChem.RateLimit = DefaultPubChemRateLimit
	}
	if cfg.PubChem.Burst == 0 {
		cfg.PubChem.Burst = 1
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultLLMBaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if len(cfg.LLM.Stop) == 0 {
		cfg.LLM.Stop = append([]string(nil), DefaultLLMStop...)
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.ResultCacheTTL == 0 {
		cfg.Analysis.ResultCacheTTL = DefaultResultCacheTTL
	}
	if cfg.Analysis.ResolverCacheTTL == 0 {
		cfg.Analysis.ResolverCacheTTL = DefaultResolverCacheTTL
	}
	if cfg.Analysis.NegativeCacheTTL == 0 {
		cfg.Analysis.NegativeCacheTTL = DefaultNegativeCacheTTL
	}
	if cfg.Analysis.MaxHeavyAtoms == 0 {
		cfg.Analysis.MaxHeavyAtoms = DefaultMaxHeavyAtoms
	}
	if cfg.Analysis.ConformerAttempts == 0 {
		cfg.Analysis.ConformerAttempts = DefaultConformerAttempts
	}
	if cfg.Analysis.ConformerMaxIter == 0 {
		cfg.Analysis.ConformerMaxIter = DefaultConformerMaxIter
	}
	if cfg.Analysis.ConformerTimeout == 0 {
		cfg.Analysis.ConformerTimeout = DefaultConformerTimeout
	}
	if cfg.Analysis.ResolveConcurrency == 0 {
		cfg.Analysis.ResolveConcurrency = DefaultResolveConcurrency
	}

	// ── Rate limit ────────────────────────────────────────────────────────────
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultWorkerMaxRetries
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = DefaultWorkerRetryBackoff
	}
	if cfg.Worker.MessageTimeout == 0 {
		cfg.Worker.MessageTimeout = DefaultWorkerMessageTimeout
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = "chemsight"
	}
}

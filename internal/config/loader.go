package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all ChemSight settings.
const envPrefix = "CHEMSIGHT"

// newViper builds a pre-configured Viper instance: YAML file type, CHEMSIGHT_
// env prefix, automatic env binding, and a key replacer that maps "." → "_"
// so that nested keys like "database.host" resolve to "CHEMSIGHT_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	return v
}

// setViperDefaults registers every key viper must know about for AutomaticEnv
// to pick it up during Unmarshal. Values that cannot be expressed as a
// zero-value check in ApplyDefaults (feature toggles) are set here.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", DefaultGRPCPort)
	v.SetDefault("grpc.reflection", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", DefaultDBUser)
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.group_id", DefaultKafkaGroupID)
	v.SetDefault("kafka.auto_create_topics", true)
	v.SetDefault("kafka.event_encoding", DefaultKafkaEventEncoding)

	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.addresses", []string{DefaultOpenSearchAddress})
	v.SetDefault("opensearch.user", "")
	v.SetDefault("opensearch.password", "")

	v.SetDefault("milvus.enabled", false)
	v.SetDefault("milvus.addr", DefaultMilvusAddr)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", DefaultMinIOBucket)

	v.SetDefault("pubchem.enabled", true)
	v.SetDefault("pubchem.base_url", DefaultPubChemBaseURL)
	v.SetDefault("pubchem.rate_limit", DefaultPubChemRateLimit)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.base_url", DefaultLLMBaseURL)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", DefaultLLMModel)
	v.SetDefault("llm.max_tokens", DefaultLLMMaxTokens)
	v.SetDefault("llm.temperature", 0)

	v.SetDefault("analysis.inline_structures", true)
	v.SetDefault("analysis.conformer_attempts", DefaultConformerAttempts)
	v.SetDefault("analysis.max_heavy_atoms", DefaultMaxHeavyAtoms)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)

	v.SetDefault("worker.concurrency", DefaultWorkerConcurrency)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Load reads the YAML file at configPath, merges any CHEMSIGHT_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from CHEMSIGHT_* environment variables,
// with no config file required.
//
//	CHEMSIGHT_<SECTION>_<FIELD>   e.g.  CHEMSIGHT_DATABASE_HOST, CHEMSIGHT_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadAuto loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.
func LoadAuto(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: failed to load %s: %w", p, err)
		}
	}
	return nil
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is written. Only hot-reloadable settings
// (log level, rate limits) should be applied by the callback.
//
// Watch is non-blocking. Invalid intermediate files are reported to onError
// (when non-nil) and onChange is skipped.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

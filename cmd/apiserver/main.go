// API server entry point for ChemSight.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ChemSight/internal/application/analysis"
	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ChemSight/internal/infrastructure/database/redis"
	"github.com/turtacn/ChemSight/internal/infrastructure/external/llm"
	"github.com/turtacn/ChemSight/internal/infrastructure/external/pubchem"
	"github.com/turtacn/ChemSight/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/milvus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/opensearch"
	"github.com/turtacn/ChemSight/internal/infrastructure/storage/minio"
	"github.com/turtacn/ChemSight/internal/intelligence/chem_extractor"
	grpcserver "github.com/turtacn/ChemSight/internal/interfaces/grpc"
	httpserver "github.com/turtacn/ChemSight/internal/interfaces/http"
	"github.com/turtacn/ChemSight/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemSight/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const startupTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	cfg, err := config.LoadAuto(configPath)
	if err != nil {
		return err
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = "chemsight-apiserver"
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("starting ChemSight API server",
		logging.String("version", version),
		logging.String("http_addr", cfg.HTTPAddr()),
		logging.Bool("grpc", cfg.GRPC.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		err := config.Watch(configPath, func(*config.Config) {
			logger.Warn("configuration file changed, restart to apply", logging.String("path", configPath))
		}, func(err error) {
			logger.Error("configuration file is invalid", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)
	metrics.SetBuildInfo(version, commit)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	infra, err := newInfrastructure(startCtx, cfg, logger, metrics)
	cancel()
	if err != nil {
		return err
	}
	defer infra.Close()

	svc := infra.analysisService(cfg, logger, metrics)

	var grpcSrv *grpcserver.Server
	observers := healthFanout{metrics}
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(":"+strconv.Itoa(cfg.GRPC.Port),
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(metrics),
			grpcserver.WithReflection(cfg.GRPC.Reflection),
		)
		if err != nil {
			return err
		}
		observers = append(observers, grpcSrv)
	}

	gin.SetMode(cfg.Server.Mode)
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.Server.CORSOrigins
	corsCfg.AllowWildcard = true
	logCfg := middleware.DefaultLoggingConfig()

	routerCfg := httpserver.RouterConfig{
		AnalysisHandler: handlers.NewAnalysisHandler(svc),
		HealthHandler:   handlers.NewHealthHandler(version, observers, infra.checks...),
		CORS:            &corsCfg,
		Logging:         &logCfg,
		HTTPMetrics:     metrics,
		MaxBodySize:     cfg.Server.MaxBodySize,
		Logger:          logger,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.BurstSize = cfg.RateLimit.Burst
		limiter := middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.CleanupInterval)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
		routerCfg.RateLimit = rl
	}

	httpSrv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.HTTPAddr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpserver.NewRouter(routerCfg), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Error("gRPC server shutdown error", logging.Err(err))
			}
		}
		return httpSrv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers stopped")
	return nil
}

// infrastructure holds the optional backends. Disabled backends stay nil and
// the analysis service runs without them.
type infrastructure struct {
	db        *postgres.Connection
	redis     *redis.Client
	search    *opensearch.Client
	milvus    *milvus.Client
	minio     *minio.MinIOClient
	producer  *kafka.Producer
	checks    []handlers.HealthChecker
	logger    logging.Logger
	pubchem   *pubchem.Client
	llm       *llm.Client
	searcher  *opensearch.Searcher
	similar   *milvus.Searcher
	structure minio.StructureStore
	closers   []namedCloser
}

func newInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics) (_ *infrastructure, err error) {
	infra := &infrastructure{logger: logger}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	if cfg.Database.Enabled {
		if infra.db, err = postgres.NewConnection(cfg.Database, logger); err != nil {
			return nil, err
		}
		infra.onClose("postgres", infra.db.Close)
		if cfg.Database.AutoMigrate {
			m, err := postgres.NewMigrator(cfg.Database.DSN(), logger)
			if err != nil {
				return nil, err
			}
			err = m.Up()
			m.Close()
			if err != nil {
				return nil, err
			}
		}
		infra.checks = append(infra.checks, healthCheck{"postgres", infra.db.HealthCheck})
	}

	if cfg.Redis.Enabled {
		if infra.redis, err = redis.NewClient(redisConfig(cfg.Redis), logger); err != nil {
			return nil, err
		}
		infra.onClose("redis", infra.redis.Close)
		infra.checks = append(infra.checks, healthCheck{"redis", infra.redis.Ping})
	}

	if cfg.OpenSearch.Enabled {
		if infra.search, err = opensearch.NewClient(cfg.OpenSearch, logger); err != nil {
			return nil, err
		}
		infra.onClose("opensearch", infra.search.Close)
		if err = opensearch.NewIndexer(infra.search, "false", logger).EnsureIndex(ctx); err != nil {
			return nil, err
		}
		infra.searcher = opensearch.NewSearcher(infra.search, logger)
		infra.checks = append(infra.checks, healthCheck{"opensearch", infra.search.Ping})
	}

	if cfg.Milvus.Enabled {
		if infra.milvus, err = milvus.NewClient(cfg.Milvus, logger); err != nil {
			return nil, err
		}
		infra.onClose("milvus", infra.milvus.Close)
		coll := milvus.NewCollectionManager(infra.milvus, cfg.Milvus.Collection, cfg.Milvus.FingerprintDim, logger)
		if err = coll.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		infra.similar = milvus.NewSearcher(infra.milvus, coll, cfg.Milvus.DefaultTopK, logger)
		infra.checks = append(infra.checks, healthCheck{"milvus", infra.milvus.CheckHealth})
	}

	if cfg.MinIO.Enabled {
		if infra.minio, err = minio.NewMinIOClient(cfg.MinIO, logger); err != nil {
			return nil, err
		}
		if err = infra.minio.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		infra.structure = minio.NewStructureStore(infra.minio, logger)
		infra.checks = append(infra.checks, healthCheck{"minio", minioHealth(infra.minio)})
	}

	if cfg.Kafka.Enabled {
		if cfg.Kafka.AutoCreateTopics {
			tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
			if err != nil {
				return nil, err
			}
			err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor))
			tm.Close()
			if err != nil {
				return nil, err
			}
		}
		if infra.producer, err = kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger); err != nil {
			return nil, err
		}
		infra.onClose("kafka", infra.producer.Close)
	}

	if cfg.PubChem.Enabled {
		infra.pubchem = pubchem.NewClient(cfg.PubChem, logger, pubchem.WithMetrics(metrics))
	}
	if c := llm.NewClient(cfg.LLM, logger); c.Enabled() {
		infra.llm = c
	}
	return infra, nil
}

// analysisService assembles the pipeline over whichever backends are up.
func (infra *infrastructure) analysisService(cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics) *analysis.Service {
	dict := chem_extractor.DefaultDictionary()
	resolverOpts := []chem_extractor.ResolverOption{
		chem_extractor.WithResolverMetrics(metrics),
		chem_extractor.WithResolverLogger(logger),
	}
	opts := []analysis.Option{analysis.WithMetrics(metrics), analysis.WithLogger(logger)}

	if infra.db != nil {
		repo := repositories.NewCompoundRepository(infra.db, logger)
		resolverOpts = append(resolverOpts, chem_extractor.WithStore(repo))
		opts = append(opts,
			analysis.WithRegistry(molecule.NewService(repo, logger)),
			analysis.WithRecorder(analysisRecorder{repositories.NewAnalysisLogRepository(infra.db)}),
		)
	}
	if infra.redis != nil {
		cache := redis.NewRedisCache(infra.redis, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
		resolverOpts = append(resolverOpts, chem_extractor.WithCache(cache))
		opts = append(opts,
			analysis.WithResultCache(cache),
			analysis.WithLocker(redis.NewLocker(infra.redis, logger)))
	}
	if infra.searcher != nil {
		resolverOpts = append(resolverOpts, chem_extractor.WithSearcher(infra.searcher))
		opts = append(opts, analysis.WithSearcher(compoundSearcher{infra.searcher}))
	}
	if infra.similar != nil {
		opts = append(opts, analysis.WithSimilarityIndex(similarityIndex{infra.similar}))
	}
	if infra.structure != nil {
		opts = append(opts, analysis.WithStructureStore(infra.structure))
	}
	if infra.producer != nil {
		opts = append(opts, analysis.WithPublisher(kafka.NewEventPublisher(infra.producer, cfg.Kafka.EventEncoding, logger)))
	}
	if infra.pubchem != nil {
		resolverOpts = append(resolverOpts, chem_extractor.WithPubChem(infra.pubchem))
	}

	var fallback chem_extractor.EntityExtractor
	if infra.llm != nil {
		fallback = chem_extractor.NewLLMExtractor(infra.llm, logger)
		opts = append(opts, analysis.WithCompleter(infra.llm))
	}

	extractor := chem_extractor.NewExtractor(dict, fallback, chem_extractor.DefaultExtractorConfig(), logger)
	resolver := chem_extractor.NewResolver(dict, chem_extractor.ResolverConfigFrom(cfg.Analysis), resolverOpts...)
	return analysis.NewService(extractor, resolver, dict, analysis.ConfigFrom(cfg.Analysis, cfg.Milvus.FingerprintDim), opts...)
}

// Close releases every opened backend, most recently opened first.
func (infra *infrastructure) Close() {
	for i := len(infra.closers) - 1; i >= 0; i-- {
		c := infra.closers[i]
		if err := c.close(); err != nil {
			infra.logger.Warn("failed to close backend", logging.String("backend", c.name), logging.Err(err))
		}
	}
	infra.closers = nil
}

func (infra *infrastructure) onClose(name string, fn func() error) {
	infra.closers = append(infra.closers, namedCloser{name, fn})
}

type namedCloser struct {
	name  string
	close func() error
}

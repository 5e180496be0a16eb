// Indexing worker entry point for ChemSight. It consumes compound-analysed
// events and keeps the OpenSearch and Milvus indexes in step with the
// compound registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/ChemSight/internal/application/indexing"
	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/milvus"
	"github.com/turtacn/ChemSight/internal/infrastructure/search/opensearch"
	httpserver "github.com/turtacn/ChemSight/internal/interfaces/http"
	"github.com/turtacn/ChemSight/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemSight/pkg/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

const (
	defaultHealthAddr = ":8081"
	startupTimeout    = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration")
	workers := flag.Int("workers", 0, "number of consumers in the group (default: worker.concurrency)")
	healthAddr := flag.String("health-addr", defaultHealthAddr, "address of the health and metrics endpoint")
	flag.Parse()

	if err := run(*configPath, *envFile, *healthAddr, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, healthAddr string, workers int) error {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	cfg, err := config.LoadAuto(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "kafka is disabled; the worker has nothing to consume")
	}
	if !cfg.OpenSearch.Enabled && !cfg.Milvus.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "neither opensearch nor milvus is enabled; nothing to index")
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = "chemsight-worker"
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	opts := []indexing.Option{indexing.WithMetrics(metrics), indexing.WithLogger(logger)}
	var checks []handlers.HealthChecker

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if cfg.OpenSearch.Enabled {
		client, err := opensearch.NewClient(cfg.OpenSearch, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		idx := opensearch.NewIndexer(client, "false", logger)
		if err := idx.EnsureIndex(startCtx); err != nil {
			return err
		}
		opts = append(opts, indexing.WithTextIndex(textIndex{idx}))
		checks = append(checks, healthCheck{"opensearch", client.Ping})
	}
	if cfg.Milvus.Enabled {
		client, err := milvus.NewClient(cfg.Milvus, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		coll := milvus.NewCollectionManager(client, cfg.Milvus.Collection, cfg.Milvus.FingerprintDim, logger)
		if err := coll.EnsureCollection(startCtx); err != nil {
			return err
		}
		opts = append(opts, indexing.WithFingerprintIndex(fingerprintIndex{milvus.NewSearcher(client, coll, cfg.Milvus.DefaultTopK, logger)}))
		checks = append(checks, healthCheck{"milvus", client.CheckHealth})
	}
	cancel()

	indexer := indexing.NewIndexer(kafka.TopicCompoundAnalyzed, cfg.Milvus.FingerprintDim, opts...)
	handle := func(ctx context.Context, msg *kafka.Message) error {
		ev, err := kafka.DecodeCompoundAnalyzed(msg)
		if err != nil {
			metrics.RecordMessage(msg.Topic, indexing.OutcomeRejected, 0)
			return err
		}
		return indexer.Handle(logging.WithRequestID(ctx, ev.EventID), ev)
	}

	// Failed messages go to the dead-letter topic.
	deadLetter, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger)
	if err != nil {
		return err
	}
	defer deadLetter.Close()

	n := workerCount(workers, cfg.Worker)
	consumers := make([]*kafka.Consumer, 0, n)
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close consumer", logging.Err(err))
			}
		}
	}()
	for i := 0; i < n; i++ {
		c, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka, cfg.Worker, kafka.TopicCompoundAnalyzed), deadLetter, logger)
		if err != nil {
			return err
		}
		c.Subscribe(kafka.TopicCompoundAnalyzed, handle)
		if err := c.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	healthSrv := httpserver.NewServer(httpserver.ServerConfig{Addr: healthAddr}, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, metrics, checks...),
		MetricsHandler: collector.Handler(),
		Logger:         logger,
	}), logger)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()

	logger.Info("worker started",
		logging.Int("consumers", n),
		logging.String("topic", kafka.TopicCompoundAnalyzed),
		logging.String("group", cfg.Kafka.GroupID))
	<-ctx.Done()

	logger.Info("shutting down worker")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	for _, c := range consumers {
		processed, retried, dead := c.Stats()
		logger.Info("consumer stopped",
			logging.Int64("processed", processed),
			logging.Int64("retried", retried),
			logging.Int64("dead_lettered", dead))
	}
	return nil
}

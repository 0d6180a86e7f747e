package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"veristat/internal/jwttoken"
	"veristat/internal/platform/config"
	"veristat/internal/platform/database"
	"veristat/internal/platform/health"
	"veristat/internal/platform/httpserver"
	"veristat/internal/platform/kafka"
	"veristat/internal/platform/kafka/producer"
	"veristat/internal/platform/logger"
	"veristat/internal/platform/redis"
	"veristat/internal/status/classifier"
	"veristat/internal/status/coordinator"
	"veristat/internal/status/events"
	"veristat/internal/status/fetcher"
	"veristat/internal/status/handler"
	"veristat/internal/status/metrics"
	"veristat/internal/status/service"
	"veristat/internal/status/store"
	"veristat/pkg/platform/circuit"
)

// main wires the status pipeline, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing veristat",
		"addr", cfg.Addr,
		"fetcher_mode", cfg.FetcherMode,
		"cache_ttl", cfg.CacheTTL,
		"debounce", cfg.Debounce,
	)

	healthHandler := health.New()

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	pool, err := database.New(dbConfig)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}

	// The cache: redis when configured, in-process LRU otherwise.
	var cache store.Cache
	if redisClient != nil {
		cache = store.NewRedisCache(redisClient.Client, cfg.CacheTTL)
	} else {
		cache = store.NewInMemoryCache(cfg.CacheTTL, store.WithMaxEntries(cfg.CacheMaxEntries))
	}

	var recordFetcher fetcher.RecordFetcher
	switch cfg.FetcherMode {
	case config.FetcherModeHTTP:
		recordFetcher = fetcher.NewHTTPFetcher(cfg.BackendURL, cfg.FetchTimeout)
	case config.FetcherModePostgres:
		recordFetcher = fetcher.NewPostgresFetcher(pool.DB())
	case config.FetcherModeMock:
		recordFetcher = fetcher.MockFetcher{Latency: 50 * time.Millisecond}
	}
	recordFetcher = fetcher.NewBreakerFetcher(recordFetcher, circuit.New("kyc-backend"), log)

	statusMetrics := metrics.New()

	coordOpts := []coordinator.Option{
		coordinator.WithDebounce(cfg.Debounce),
		coordinator.WithFetchDelay(cfg.FetchDelay),
		coordinator.WithMetrics(statusMetrics),
	}

	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err = producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Retries:         3,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		coordOpts = append(coordOpts, coordinator.WithEventSink(
			events.NewPublisher(kafkaProducer, cfg.KafkaStatusTopic, log)))

		kafkaHealth := kafka.NewHealthChecker(cfg.KafkaBrokers)
		healthHandler.RegisterCheck(kafkaHealth.Name(), func() error {
			return kafkaHealth.Check(context.Background())
		})
	}

	coord := coordinator.New(cache, recordFetcher, classifier.Default(), log, coordOpts...)
	statusService := service.New(cache, coord, log)

	jwtValidator := jwttoken.NewMiddlewareAdapter(jwttoken.NewValidator(cfg.JWTSigningKey))
	statusHandler := handler.New(statusService, log, jwtValidator)

	router := chi.NewRouter()
	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	statusHandler.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

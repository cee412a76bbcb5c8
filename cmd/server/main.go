package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/hot-product/internal/adapter/handler"
	"github.com/rl1809/hot-product/internal/adapter/messaging"
	"github.com/rl1809/hot-product/internal/adapter/storage"
	"github.com/rl1809/hot-product/internal/config"
	"github.com/rl1809/hot-product/internal/core/service"
	"github.com/rl1809/hot-product/internal/metrics"
	"github.com/rl1809/hot-product/internal/port"
)

type eventSink interface {
	port.EventPublisher
	Close() error
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so that deferred closes always happen.
func run() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := log.With().Str("service", "hot-product").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open mysql")
		return 1
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to ping mysql")
		return 1
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if cfg.Migrate {
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to apply schema")
			return 1
		}
	}
	logger.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 100,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// the cache path degrades to the store, so a missing redis is not fatal
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	} else {
		logger.Info().Msg("connected to redis")
	}
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Kafka
	var events eventSink = messaging.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, logger)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaOrderTopic).Msg("order events enabled")
	}
	defer events.Close()

	// Services
	m := metrics.New(prometheus.DefaultRegisterer)
	hotCache := service.NewHotProductCache(mysqlAdapter, redisAdapter, cfg.HotCache, logger, m)
	productService := service.NewProductService(mysqlAdapter, hotCache, logger)
	orderService := service.NewOrderService(mysqlAdapter, hotCache, events, logger, m)

	hotCache.Warm(ctx)

	grpcServer := handler.NewGRPCServer(handler.NewGRPCHandler(productService, orderService), logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(productService, orderService, prometheus.DefaultGatherer, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return 1
	}
	logger.Info().Msg("stopped")
	return 0
}

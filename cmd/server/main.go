package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/survivor-trade/internal/adapter/handler"
	"github.com/rl1809/survivor-trade/internal/adapter/messaging"
	"github.com/rl1809/survivor-trade/internal/adapter/storage"
	"github.com/rl1809/survivor-trade/internal/config"
	"github.com/rl1809/survivor-trade/internal/core/service"
	"github.com/rl1809/survivor-trade/internal/logger"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	if err := run(cfg, zl); err != nil {
		zl.Error("server exited with error", zap.Error(err))
		zl.Sync()
		os.Exit(1)
	}
	zl.Sync()
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	db, closeDB, err := openStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeDB()

	// Idempotency cache
	var cache port.CacheRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb)
		zl.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		zl.Warn("REDIS_ADDR not set, idempotency keys are ignored")
	}

	// Event publisher
	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		zl.Info("publishing trade events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = messaging.NewLogPublisher(zl)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	dispatcher := service.NewEventDispatcher(publisher, cfg.EventQueueSize, zl, m)
	dispatcher.Start(cfg.EventWorkers)

	// Services
	ledger := service.NewLedgerService(db, zl, m)
	trades := service.NewTradeService(db, ledger, cache, dispatcher, zl, m)
	survivors := service.NewSurvivorService(db, zl)
	items := service.NewItemService(db, zl)
	reports := service.NewReportService(db)

	// HTTP
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpHandler := handler.NewHTTPHandler(survivors, items, ledger, trades, reports, zl)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, reg, zl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC
	grpcServer := grpc.NewServer()
	handler.RegisterTradeServiceServer(grpcServer, handler.NewGRPCHandler(trades, zl))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		zl.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		zl.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		zl.Info("gRPC server stopped")
		return err
	})

	err = g.Wait()

	// Settlements have stopped; flush what is queued.
	dispatcher.Close()
	zl.Info("event dispatcher stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (port.DatabaseRepository, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		zl.Warn("using in-memory store, data is lost on exit")
		return storage.NewMemoryAdapter(), func() {}, nil
	}

	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	zl.Info("connected to mysql")

	return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
}

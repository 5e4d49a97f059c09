package main // Entry point of the floor allocation API

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/floor"
	"github.com/iliyamo/floor-allocation/internal/handler"
	"github.com/iliyamo/floor-allocation/internal/middleware"
	"github.com/iliyamo/floor-allocation/internal/queue"
	"github.com/iliyamo/floor-allocation/internal/router"
	queue_publisher "github.com/iliyamo/floor-allocation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	floorCfg, err := config.LoadFloorConfig(cfg.FloorConfig)
	if err != nil {
		logger.Fatal("floor config", zap.Error(err))
	}

	db, dialect, err := database.OpenConfigured(cfg)
	if err != nil {
		logger.Fatal("database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, dialect); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	svc := floor.NewService(db, dialect, floorCfg,
		floor.WithLogger(logger.Named("floor")),
		floor.WithMetrics(floor.NewMetrics(reg)),
		floor.WithNotifier(floor.Notifiers{
			middleware.NewCacheInvalidator(cacheCfg, rdb, logger),
			queue_publisher.New(queue.BrokerURL(), logger.Named("publisher")),
		}),
	)

	e := echo.New()
	e.HideBanner = true
	fh := handler.NewFloorHandler(svc)
	router.RegisterRoutes(e)
	router.RegisterPublic(e, fh, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterAdmin(e, fh, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterMetrics(e, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	consumer := queue.NewConsumer(logger.Named("consumer"))
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("floor consumer stopped", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("driver", dialect.Name))
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProductionConfig().Build()
}

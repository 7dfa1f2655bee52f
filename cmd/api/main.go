package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/TrendingArchive/internal/api"
	"github.com/LJTian/TrendingArchive/internal/auth"
	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/config"
	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/LJTian/TrendingArchive/internal/scheduler"
	"github.com/LJTian/TrendingArchive/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	appLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 存储不可用直接退出
	store, err := storage.NewStore(ctx, storage.Options{
		DSN:           cfg.PostgresDSN,
		MaxOpenConns:  cfg.DBMaxOpenConns,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		StatsCacheTTL: cfg.StatsCacheTTL,
	}, appLog)
	if err != nil {
		appLog.Fatal("init store failed", logger.Error(err))
	}
	defer func() { _ = store.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cache := collector.NewRedisCache(store.Redis, cfg.CacheTTL)
	registry := collector.NewDefaultRegistry(cache, appLog, cfg.RequestTimeout)
	appLog.Info("sources registered", logger.Strings("sources", registry.Names()))

	s, err := scheduler.New(cfg.CronSpec, registry, store, scheduler.Options{
		MinInterval: cfg.MinFetchInterval,
		Pacer:       scheduler.NewIntervalPacer(cfg.SourceDelay),
		State:       scheduler.NewState(),
		Metrics:     scheduler.NewMetrics(reg),
		Logger:      appLog.With(logger.String("component", "scheduler")),
	})
	if err != nil {
		appLog.Fatal("init scheduler failed", logger.Error(err))
	}
	s.Start(cfg.RunOnStart)

	gin.SetMode(cfg.GinMode)
	server := api.NewServer(store, api.Options{
		Verifier:      auth.NewVerifier(cfg.APIKey, cfg.APISecret),
		Registry:      registry,
		EnableHistory: cfg.EnableHistoryAPI,
		Logger:        appLog.With(logger.String("component", "api")),
		Registerer:    reg,
		Gatherer:      reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("starting api server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server exit", logger.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown", logger.Error(err))
	}
	// 进行中的采集会在当前数据源结束后退出
	s.Stop()
	appLog.Info("bye")
}

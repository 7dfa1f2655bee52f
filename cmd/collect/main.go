package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/config"
	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/LJTian/TrendingArchive/internal/scheduler"
	"github.com/LJTian/TrendingArchive/internal/storage"
)

// 只执行一轮强制采集后退出，适合手动补数据或外部 cron 调用
func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	appLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Printf("init logger failed: %v", err)
		return 1
	}
	defer func() { _ = appLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, storage.Options{
		DSN:           cfg.PostgresDSN,
		MaxOpenConns:  cfg.DBMaxOpenConns,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
	}, appLog)
	if err != nil {
		appLog.Error("init store failed", logger.Error(err))
		return 1
	}
	defer func() { _ = store.Close() }()

	cache := collector.NewRedisCache(store.Redis, cfg.CacheTTL)
	registry := collector.NewDefaultRegistry(cache, appLog, cfg.RequestTimeout)

	// 不注册定时任务，只跑一轮
	s, err := scheduler.New("", registry, store, scheduler.Options{
		MinInterval: cfg.MinFetchInterval,
		Pacer:       scheduler.NewIntervalPacer(cfg.SourceDelay),
		Logger:      appLog,
	})
	if err != nil {
		appLog.Error("init scheduler failed", logger.Error(err))
		return 1
	}

	report, err := s.RunAll(ctx, true)
	if err != nil {
		appLog.Error("collect run aborted", logger.Error(err))
		return 1
	}
	failed := report.Count(scheduler.OutcomeFailed) + report.Count(scheduler.OutcomeWriteFailed)
	for _, sr := range report.Sources {
		appLog.Info("source result",
			logger.String("source", sr.Source),
			logger.String("outcome", sr.Outcome),
			logger.Int("fetched", sr.Fetched),
			logger.Int("stored", sr.Stored))
	}
	if failed > 0 {
		appLog.Warn("collect finished with failures", logger.Int("failed", failed))
		return 1
	}
	return 0
}

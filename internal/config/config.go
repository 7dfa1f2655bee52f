package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	GinMode  string
	LogLevel string

	PostgresDSN    string
	DBMaxOpenConns int

	RedisAddr     string
	RedisPassword string

	// 采集器缓存与请求超时，仅供数据源适配器使用
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	StatsCacheTTL  time.Duration

	CronSpec         string
	RunOnStart       bool
	MinFetchInterval time.Duration
	SourceDelay      time.Duration

	EnableHistoryAPI bool
	APIKey           string
	APISecret        string
}

// Load 先加载 .env（不存在则忽略），再读取环境变量
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warn: load .env: %v", err)
	}

	cfg := &Config{
		AppPort:  getEnv("PORT", "6688"),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 10),

		RedisAddr:     getEnv("REDIS_HOST", "127.0.0.1") + ":" + getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CacheTTL:       time.Duration(getInt("CACHE_TTL", 60*60)) * time.Second,
		RequestTimeout: time.Duration(getInt("REQUEST_TIMEOUT", 10000)) * time.Millisecond,
		StatsCacheTTL:  time.Duration(getInt("STATS_CACHE_TTL", 60)) * time.Second,

		CronSpec:         getEnv("CRON_SCHEDULE", "0 * * * *"),
		RunOnStart:       getBool("RUN_ON_START", true),
		MinFetchInterval: getDuration("MIN_FETCH_INTERVAL", 30*time.Minute),
		SourceDelay:      getDuration("SOURCE_DELAY", 60*time.Second),

		EnableHistoryAPI: getBool("ENABLE_HISTORY_API", true),
		APIKey:           getEnv("API_KEY", "dailyhot-api-secret-key"),
		APISecret:        getEnv("API_SECRET", "dailyhot-api-secret-value"),
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_NAME", "dailyhot"),
			getEnv("DB_PORT", "5432"),
		)
	}

	log.Printf("config loaded: port=%s cron=%s runOnStart=%t history=%t", cfg.AppPort, cfg.CronSpec, cfg.RunOnStart, cfg.EnableHistoryAPI)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

// getBool 只有 "true"（不区分大小写）才视为开启
func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d < 0 {
		return def
	}
	return d
}

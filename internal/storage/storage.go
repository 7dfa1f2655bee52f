package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/LJTian/TrendingArchive/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewsRecord 热榜历史表，只追加不更新；(source, item_id) 上没有唯一约束，
// 每轮采集都会为同一条目再写一行，需要“当前状态”的调用方自行取最新一行
type NewsRecord struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Source      string         `gorm:"size:50;not null;index:idx_news_source;index:idx_news_source_item_id,priority:1" json:"source"`
	ItemID      string         `gorm:"size:255;index:idx_news_source_item_id,priority:2" json:"itemId"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	URL         string         `gorm:"type:text" json:"url"`
	MobileURL   string         `gorm:"type:text" json:"mobileUrl"`
	Cover       string         `gorm:"type:text" json:"cover"`
	Hot         int64          `json:"hot"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_news_created_at" json:"createdAt"`
	RawData     datatypes.JSON `gorm:"type:jsonb" json:"rawData"`
}

func (NewsRecord) TableName() string {
	return "news_data"
}

type Options struct {
	DSN           string
	MaxOpenConns  int
	RedisAddr     string
	RedisPassword string
	// StatsCacheTTL 聚合查询（数据源列表、统计）的缓存时间，0 表示不缓存
	StatsCacheTTL time.Duration
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	processor *processor.SimpleProcessor
	statsTTL  time.Duration
	log       logger.Logger
	now       func() time.Time
}

// NewStore 连接并校验 PostgreSQL，失败直接返回错误（调用方应退出进程）；
// Redis 不可用时只告警，相关缓存随之关闭
func NewStore(ctx context.Context, opts Options, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&NewsRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if opts.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: opts.RedisAddr, Password: opts.RedisPassword})
		redisCtx, cancelRedis := context.WithTimeout(ctx, 3*time.Second)
		defer cancelRedis()
		if err := rdb.Ping(redisCtx).Err(); err != nil {
			log.Warn("redis ping failed, caches disabled", logger.String("addr", opts.RedisAddr), logger.Error(err))
			_ = rdb.Close()
			rdb = nil
		}
	}

	s := NewStoreWithDB(db, rdb, log)
	s.statsTTL = opts.StatsCacheTTL
	return s, nil
}

// NewStoreWithDB 复用已有连接，不做迁移；测试时配合 sqlmock 使用
func NewStoreWithDB(db *gorm.DB, rdb *redis.Client, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		DB:        db,
		Redis:     rdb,
		processor: processor.NewSimpleProcessor(),
		log:       log,
		now:       time.Now,
	}
}

// SetStatsCacheTTL 调整聚合查询缓存时间
func (s *Store) SetStatsCacheTTL(ttl time.Duration) {
	s.statsTTL = ttl
}

// Ping 用于健康检查
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

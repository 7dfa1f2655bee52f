// Package api 提供历史热榜的查询接口
package api

import (
	"context"

	"github.com/LJTian/TrendingArchive/internal/auth"
	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/LJTian/TrendingArchive/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewsReader 查询接口依赖的存储能力
type NewsReader interface {
	ListNews(ctx context.Context, q storage.NewsQuery) (*storage.NewsPage, error)
	ListSources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*storage.Stats, error)
	Ping(ctx context.Context) error
}

type Options struct {
	// Verifier 为空时所有 /api 请求都会被拒绝
	Verifier      *auth.Verifier
	Registry      *collector.Registry
	EnableHistory bool
	Logger        logger.Logger
	// Registerer 注册 HTTP 指标；Gatherer 非空时挂载 /metrics
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type Server struct {
	store         NewsReader
	verifier      *auth.Verifier
	registry      *collector.Registry
	enableHistory bool
	log           logger.Logger
	metrics       *httpMetrics
	gatherer      prometheus.Gatherer
}

func NewServer(store NewsReader, opts Options) *Server {
	if opts.Verifier == nil {
		opts.Verifier = auth.NewVerifier("", "")
	}
	if opts.Registry == nil {
		opts.Registry = collector.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Server{
		store:         store,
		verifier:      opts.Verifier,
		registry:      opts.Registry,
		enableHistory: opts.EnableHistory,
		log:           opts.Logger,
		metrics:       newHTTPMetrics(opts.Registerer),
		gatherer:      opts.Gatherer,
	}
}

// Router 带全套中间件的 gin 引擎
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(s.log), RequestLogger(s.log), s.metrics.middleware())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/", s.root)
	r.GET("/health", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", auth.Middleware(s.verifier, s.log))
	{
		api.GET("/news", s.listNews)
		api.GET("/sources", s.listSources)
		api.GET("/stats", s.stats)
		api.GET("/history", s.history)
		api.GET("/live/:source", s.live)
	}
}

package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/TrendingArchive/internal/logger"
)

// Adapter 把 Source 包装成 Fetcher：清理控制字符、读写缓存，并吞掉所有错误与 panic
type Adapter struct {
	source Source
	cache  ResultCache
	log    logger.Logger
	now    func() time.Time
}

// NewAdapter cache 可为 nil，表示不缓存
func NewAdapter(src Source, cache ResultCache, log logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{
		source: src,
		cache:  cache,
		log:    log.With(logger.String("source", src.Name())),
		now:    time.Now,
	}
}

func (a *Adapter) Name() string {
	return a.source.Name()
}

// Fetch bypassCache 为 true 时跳过缓存读取，但仍会用新结果刷新缓存
func (a *Adapter) Fetch(ctx context.Context, bypassCache bool) (res Result) {
	now := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("fetch panicked", logger.Error(fmt.Errorf("%v", r)))
			res = emptyResult(now)
		}
	}()

	if !bypassCache && a.cache != nil {
		if cached, ok := a.cache.Load(ctx, a.Name()); ok {
			cached.FromCache = true
			return cached
		}
	}

	items, err := a.source.FetchItems(ctx)
	if err != nil {
		a.log.Error("fetch failed", logger.Error(err))
		return emptyResult(now)
	}

	clean := make([]Item, 0, len(items))
	for _, it := range items {
		clean = append(clean, SanitizeItem(it))
	}
	res = Result{Items: clean, UpdateTime: now}
	if a.cache != nil && len(clean) > 0 {
		a.cache.Store(ctx, a.Name(), res)
	}
	return res
}

func emptyResult(now time.Time) Result {
	return Result{Items: []Item{}, FromCache: false, UpdateTime: now}
}

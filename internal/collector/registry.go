package collector

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/TrendingArchive/internal/logger"
)

// Registry 数据源注册表：启动时显式注册，按名称排序遍历
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register 注册一个数据源，名称为空或重复时报错
func (r *Registry) Register(f Fetcher) error {
	name := f.Name()
	if name == "" {
		return fmt.Errorf("register fetcher: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fetchers[name]; ok {
		return fmt.Errorf("register fetcher %q: already registered", name)
	}
	r.fetchers[name] = f
	return nil
}

// MustRegister 同 Register，失败时 panic，用于启动阶段
func (r *Registry) MustRegister(fs ...Fetcher) {
	for _, f := range fs {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[name]
	return f, ok
}

// Names 返回按字母序排列的数据源名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetchers 按 Names 的顺序返回数据源
func (r *Registry) Fetchers() []Fetcher {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fetcher, 0, len(names))
	for _, name := range names {
		out = append(out, r.fetchers[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fetchers)
}

// NewDefaultRegistry 注册内置的全部数据源，cmd/api 与 cmd/collect 共用
func NewDefaultRegistry(cache ResultCache, log logger.Logger, timeout time.Duration) *Registry {
	r := NewRegistry()
	r.MustRegister(
		NewAdapter(&BaiduHotFetcher{Timeout: timeout}, cache, log),
		NewAdapter(&GitHubTrendingFetcher{Timeout: timeout}, cache, log),
		NewAdapter(&HackerNewsFetcher{Timeout: timeout}, cache, log),
		NewAdapter(&XTrendsFetcher{Timeout: timeout}, cache, log),
	)
	return r
}

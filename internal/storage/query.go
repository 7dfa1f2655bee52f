package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/TrendingArchive/internal/logger"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000

	OrderByCreatedAt = "created_at"
	OrderByHot       = "hot"
	OrderBySource    = "source"

	dateLayout = "2006-01-02"
	statsDays  = 30

	sourcesCacheKey = "trendingarchive:sources"
	statsCacheKey   = "trendingarchive:stats"
)

// 允许排序的列，其余一律回退到 created_at；排序列只会来自这里，不拼接用户输入
var sortableColumns = map[string]struct{}{
	OrderByCreatedAt: {},
	OrderByHot:       {},
	OrderBySource:    {},
}

// NewsFilter 日期条件优先级：Date > StartDate+EndDate > 仅 StartDate > 仅 EndDate
type NewsFilter struct {
	Source    string
	Date      string
	StartDate string
	EndDate   string
}

type NewsQuery struct {
	NewsFilter
	Limit   int
	Offset  int
	OrderBy string
	// Order ASC 或 DESC，其他值按 DESC 处理
	Order string
}

type NewsPage struct {
	Items   []NewsRecord
	Total   int64
	Limit   int
	Offset  int
	HasMore bool
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Stats struct {
	Total    int64         `json:"total"`
	BySource []SourceCount `json:"bySource"`
	ByDate   []DateCount   `json:"byDate"`
}

// Normalize 补默认值并收敛非法输入，结果可以直接用于拼 SQL
func (q NewsQuery) Normalize() NewsQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if _, ok := sortableColumns[q.OrderBy]; !ok {
		q.OrderBy = OrderByCreatedAt
	}
	if strings.EqualFold(q.Order, "ASC") {
		q.Order = "ASC"
	} else {
		q.Order = "DESC"
	}
	q.Source = strings.TrimSpace(q.Source)
	q.Date = validDate(q.Date)
	q.StartDate = validDate(q.StartDate)
	q.EndDate = validDate(q.EndDate)
	return q
}

// 格式不对的日期视为未传
func validDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}

func (f NewsFilter) apply(db *gorm.DB) *gorm.DB {
	if f.Source != "" {
		db = db.Where("source = ?", f.Source)
	}
	switch {
	case f.Date != "":
		db = db.Where("DATE(created_at) = ?", f.Date)
	case f.StartDate != "" && f.EndDate != "":
		db = db.Where("DATE(created_at) BETWEEN ? AND ?", f.StartDate, f.EndDate)
	case f.StartDate != "":
		db = db.Where("DATE(created_at) >= ?", f.StartDate)
	case f.EndDate != "":
		db = db.Where("DATE(created_at) <= ?", f.EndDate)
	}
	return db
}

// ListNews 分页查询历史；总数用同一组过滤条件单独 count
func (s *Store) ListNews(ctx context.Context, q NewsQuery) (*NewsPage, error) {
	q = q.Normalize()

	var total int64
	if err := q.apply(s.DB.WithContext(ctx).Model(&NewsRecord{})).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count news: %w", err)
	}

	items := make([]NewsRecord, 0)
	err := q.apply(s.DB.WithContext(ctx).Model(&NewsRecord{})).
		Order(fmt.Sprintf("%s %s, id %s", q.OrderBy, q.Order, q.Order)).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}

	return &NewsPage{
		Items:   items,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		HasMore: int64(q.Offset+len(items)) < total,
	}, nil
}

// ListSources 出现过的数据源，按字母序
func (s *Store) ListSources(ctx context.Context) ([]string, error) {
	sources := make([]string, 0)
	err := s.cached(ctx, sourcesCacheKey, &sources, func() error {
		return s.DB.WithContext(ctx).
			Raw("SELECT DISTINCT source FROM news_data ORDER BY source").
			Scan(&sources).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Stats 总行数、按数据源计数（降序）、最近 30 个有数据的日期计数（日期降序）
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{BySource: []SourceCount{}, ByDate: []DateCount{}}
	err := s.cached(ctx, statsCacheKey, st, func() error {
		db := s.DB.WithContext(ctx)
		if err := db.Model(&NewsRecord{}).Count(&st.Total).Error; err != nil {
			return err
		}
		if err := db.Raw("SELECT source, COUNT(*) AS count FROM news_data GROUP BY source ORDER BY count DESC").
			Scan(&st.BySource).Error; err != nil {
			return err
		}
		return db.Raw(`SELECT TO_CHAR(DATE(created_at), 'YYYY-MM-DD') AS date, COUNT(*) AS count
FROM news_data
GROUP BY DATE(created_at)
ORDER BY DATE(created_at) DESC
LIMIT ?`, statsDays).Scan(&st.ByDate).Error
	})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// cached 读穿缓存：命中直接解码到 dst，未命中执行 load 再回写；Redis 出错只降级不报错
func (s *Store) cached(ctx context.Context, key string, dst any, load func() error) error {
	if s.Redis == nil || s.statsTTL <= 0 {
		return load()
	}

	if raw, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
		if err := json.Unmarshal(raw, dst); err == nil {
			return nil
		}
	}

	if err := load(); err != nil {
		return err
	}
	if raw, err := json.Marshal(dst); err == nil {
		if err := s.Redis.Set(ctx, key, raw, s.statsTTL).Err(); err != nil {
			s.log.Warn("cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return nil
}

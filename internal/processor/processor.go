package processor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/TrendingArchive/internal/collector"
)

// ProcessedNews 是写入存储层前的统一结构
type ProcessedNews struct {
	ItemID      string
	Title       string
	Description string
	URL         string
	MobileURL   string
	Cover       string
	Hot         int64
	// RawData 原始条目的 JSON，保留转换前的值便于排查
	RawData []byte
}

// SimpleProcessor 做入库前的字段归一化，不做去重：每轮采集都是一份独立快照
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process now 用于合成缺失的 itemId，同一批次共用同一时刻
func (p *SimpleProcessor) Process(items []collector.Item, now time.Time) ([]ProcessedNews, error) {
	out := make([]ProcessedNews, 0, len(items))
	for i, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("marshal item %d: %w", i, err)
		}
		mobile := it.MobileURL
		if mobile == "" {
			mobile = it.URL
		}
		out = append(out, ProcessedNews{
			ItemID:      ResolveItemID(it, now),
			Title:       it.Title,
			Description: it.Description,
			URL:         it.URL,
			MobileURL:   mobile,
			Cover:       it.Cover,
			Hot:         NormalizeHot(it.Hot),
			RawData:     raw,
		})
	}
	return out, nil
}

// ResolveItemID 优先用数据源给的 id，否则用 标题-毫秒时间戳 兜底（不保证唯一）
func ResolveItemID(it collector.Item, now time.Time) string {
	if it.ID != "" {
		return it.ID
	}
	return it.Title + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// NormalizeHot 把热度统一成整数：空值、无法解析的一律为 0
func NormalizeHot(v any) int64 {
	switch h := v.(type) {
	case nil:
		return 0
	case string:
		return parseHot(h)
	case json.Number:
		return parseHot(h.String())
	case int:
		return int64(h)
	case int8:
		return int64(h)
	case int16:
		return int64(h)
	case int32:
		return int64(h)
	case int64:
		return h
	case uint:
		return clampUint(uint64(h))
	case uint8:
		return int64(h)
	case uint16:
		return int64(h)
	case uint32:
		return int64(h)
	case uint64:
		return clampUint(h)
	case float32:
		return truncFloat(float64(h))
	case float64:
		return truncFloat(h)
	default:
		return 0
	}
}

// parseHot 去掉千分位逗号后解析开头的整数部分，如 "12,345" -> 12345，"3.5万" -> 3
func parseHot(s string) int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for ; end < len(s); end++ {
		if s[end] < '0' || s[end] > '9' {
			break
		}
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func truncFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(math.Trunc(f))
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return 0
	}
	return int64(u)
}

package collector

import (
	"context"
	"time"
)

// Item 数据源适配器输出的统一条目，序列化结果即入库的 raw_data
type Item struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"desc,omitempty"`
	URL         string `json:"url,omitempty"`
	MobileURL   string `json:"mobileUrl,omitempty"`
	Cover       string `json:"cover,omitempty"`
	Author      string `json:"author,omitempty"`
	// Timestamp 数据源给出的发布时间（毫秒），可为空
	Timestamp int64 `json:"timestamp,omitempty"`
	// Hot 热度：数字或形如 "12,345" 的字符串，入库时统一转换
	Hot   any            `json:"hot,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Result 一次抓取的结果
type Result struct {
	Items      []Item    `json:"data"`
	FromCache  bool      `json:"fromCache"`
	UpdateTime time.Time `json:"updateTime"`
}

// Fetcher 调度器看到的数据源契约：永不返回错误，失败时返回空结果
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, bypassCache bool) Result
}

// Source 具体的抓取实现，只负责解析某一个外部接口
type Source interface {
	Name() string
	FetchItems(ctx context.Context) ([]Item, error)
}

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	hnBaseURL          = "https://hacker-news.firebaseio.com/v0"
	hnDefaultLimit     = 30
	hnMaxResponseBytes = 1 << 20 // 1MB
	hnConcurrency      = 10
)

// HackerNewsFetcher 通过官方 Firebase API 抓取 Hacker News 热门故事
type HackerNewsFetcher struct {
	BaseURL string
	Limit   int
	Timeout time.Duration
	Client  *http.Client
}

func (h *HackerNewsFetcher) Name() string {
	return "hackernews"
}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsFetcher) FetchItems(ctx context.Context) ([]Item, error) {
	base := h.BaseURL
	if base == "" {
		base = hnBaseURL
	}
	limit := h.Limit
	if limit <= 0 {
		limit = hnDefaultLimit
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: timeoutOr(h.Timeout, 10*time.Second)}
	}

	var ids []int
	if err := getJSON(ctx, client, base+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("hackernews: top stories: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	// 并发拉取详情，按榜单位置写回，保持排名顺序
	stories := make([]*hnItem, len(ids))
	var wg sync.WaitGroup
	sem := make(chan struct{}, hnConcurrency)
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			var it hnItem
			if err := getJSON(ctx, client, fmt.Sprintf("%s/item/%d.json", base, id), &it); err != nil {
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}
			stories[idx] = &it
		}(i, id)
	}
	wg.Wait()

	results := make([]Item, 0, len(stories))
	for rank, it := range stories {
		if it == nil {
			continue
		}
		discussURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		itemURL := it.URL
		if itemURL == "" {
			itemURL = discussURL
		}
		results = append(results, Item{
			ID:        strconv.Itoa(it.ID),
			Title:     it.Title,
			URL:       itemURL,
			MobileURL: discussURL,
			Author:    it.By,
			Timestamp: it.Time * 1000,
			Hot:       it.Score,
			Extra: map[string]any{
				"comments": it.Descendants,
				"rank":     rank + 1,
			},
		})
	}
	return results, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, hnMaxResponseBytes)).Decode(v)
}

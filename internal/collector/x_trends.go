package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	xTrendsURL          = "https://trends24.in/"
	xTrendsMaxItems     = 50
	xTrendsMaxBodyBytes = 2 << 20 // 2MB
	browserUA           = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var xTrendLinkRe = regexp.MustCompile(`<a\s+[^>]*href="(https://twitter\.com/search\?q=[^"]+)"[^>]*>([^<]+)</a>`)

// XTrendsFetcher 抓取 X (Twitter) 热搜，数据来自 trends24.in（全球榜）
type XTrendsFetcher struct {
	BaseURL string
	Timeout time.Duration
}

func (x *XTrendsFetcher) Name() string {
	return "x"
}

type xTrend struct {
	title string
	url   string
}

func (x *XTrendsFetcher) FetchItems(ctx context.Context) ([]Item, error) {
	pageURL := x.BaseURL
	if pageURL == "" {
		pageURL = xTrendsURL
	}

	list, err := x.fetchWithColly(pageURL)
	if len(list) == 0 {
		// colly 解析不到时退回到正则解析原始 HTML
		list, err = x.fetchWithHTTP(ctx, pageURL)
	}
	if err != nil {
		return nil, err
	}
	if len(list) > xTrendsMaxItems {
		list = list[:xTrendsMaxItems]
	}

	results := make([]Item, 0, len(list))
	for i, t := range list {
		results = append(results, Item{
			ID:        t.title,
			Title:     t.title,
			URL:       t.url,
			MobileURL: t.url,
			// 榜单没有热度值，用排名折算
			Hot:   xTrendsMaxItems - i,
			Extra: map[string]any{"rank": i + 1},
		})
	}
	return results, nil
}

func (x *XTrendsFetcher) fetchWithColly(pageURL string) ([]xTrend, error) {
	c := colly.NewCollector(colly.UserAgent(browserUA))
	c.SetRequestTimeout(timeoutOr(x.Timeout, 15*time.Second))

	var list []xTrend
	seen := make(map[string]bool)
	c.OnHTML(`a[href*='twitter.com/search']`, func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		title := strings.TrimSpace(e.Text)
		if href == "" || title == "" || seen[href] {
			return
		}
		seen[href] = true
		list = append(list, xTrend{title: title, url: toXSearchURL(href)})
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("x: visit trends: %w", err)
	}
	return list, nil
}

func (x *XTrendsFetcher) fetchWithHTTP(ctx context.Context, pageURL string) ([]xTrend, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)

	client := &http.Client{Timeout: timeoutOr(x.Timeout, 15*time.Second)}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("x: get trends: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("x: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, xTrendsMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("x: read trends: %w", err)
	}
	return parseTrendLinks(string(body)), nil
}

// parseTrendLinks 从 HTML 中解析出所有 twitter.com/search 链接及标题
func parseTrendLinks(html string) []xTrend {
	seen := make(map[string]bool)
	var list []xTrend
	for _, m := range xTrendLinkRe.FindAllStringSubmatch(html, -1) {
		href := m[1]
		title := strings.TrimSpace(m[2])
		if title == "" || len(title) > 200 || seen[href] {
			continue
		}
		seen[href] = true
		list = append(list, xTrend{title: title, url: toXSearchURL(href)})
	}
	return list
}

func toXSearchURL(twitterSearchURL string) string {
	if rest, ok := strings.CutPrefix(twitterSearchURL, "https://twitter.com/search?"); ok {
		return "https://x.com/search?" + rest
	}
	if u, err := url.Parse(twitterSearchURL); err == nil && u.Host == "twitter.com" {
		u.Host = "x.com"
		return u.String()
	}
	return twitterSearchURL
}

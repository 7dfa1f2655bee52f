package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const baiduBoardURL = "https://top.baidu.com/board?tab=realtime"

// BaiduHotFetcher 抓取百度实时热搜榜
type BaiduHotFetcher struct {
	// BaseURL 为空时使用线上榜单地址，测试时指向 httptest
	BaseURL string
	Timeout time.Duration
}

func (b *BaiduHotFetcher) Name() string {
	return "baidu"
}

func (b *BaiduHotFetcher) FetchItems(ctx context.Context) ([]Item, error) {
	boardURL := b.BaseURL
	if boardURL == "" {
		boardURL = baiduBoardURL
	}

	c := colly.NewCollector(colly.UserAgent("TrendingArchiveBot/1.0"))
	c.SetRequestTimeout(timeoutOr(b.Timeout, 5*time.Second))

	results := make([]Item, 0, 50)
	var visitErr error

	// 页面结构可能调整，此处基于当前的 DOM 结构做“尽力而为”的解析
	c.OnHTML("div.category-wrap_iQLoo", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("div.c-single-text-ellipsis"))
		if title == "" {
			return
		}

		link := boardURL
		if href := e.ChildAttr("a", "href"); href != "" {
			if strings.HasPrefix(href, "http") {
				link = href
			} else {
				link = e.Request.AbsoluteURL(href)
			}
		}

		heatText := strings.TrimSpace(e.ChildText("div.hot-index_1Bl1a"))

		desc := ""
		for _, sel := range []string{"div[class*='content']", "div[class*='desc']", "div[class*='intro']", "p"} {
			if desc = strings.TrimSpace(e.ChildText(sel)); desc != "" {
				break
			}
		}
		if desc == "" {
			desc = fallbackBaiduDesc(e, title, heatText)
		}

		results = append(results, Item{
			Title:       title,
			Description: cleanBaiduDesc(desc),
			URL:         link,
			MobileURL:   link,
			Cover:       e.ChildAttr("img", "src"),
			Hot:         heatText,
		})
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(boardURL); err != nil {
		return nil, fmt.Errorf("baidu: visit board: %w", err)
	}
	if visitErr != nil {
		return nil, fmt.Errorf("baidu: %w", visitErr)
	}
	return results, nil
}

// cleanBaiduDesc 去掉简介中的“查看更多”等链接文案，只保留正文
func cleanBaiduDesc(s string) string {
	s = strings.TrimSpace(s)
	for _, cut := range []string{"[查看更多>]", "[查看更多&gt;]", "查看更多"} {
		if idx := strings.Index(s, cut); idx != -1 {
			s = strings.TrimSpace(s[:idx])
		}
	}
	return s
}

// fallbackBaiduDesc 从当前条目内找非标题、非热度的最长段落作为介绍
func fallbackBaiduDesc(e *colly.HTMLElement, title, heatText string) string {
	var best string
	const minLen = 20

	e.DOM.Find("div, p, span").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t == "" || t == title || t == heatText || len(t) < minLen {
			return
		}
		// 排除纯数字（热度）
		if _, err := strconv.Atoi(strings.ReplaceAll(t, ",", "")); err == nil {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

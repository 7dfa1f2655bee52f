package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const githubTrendingURL = "https://github.com/trending"

// GitHubTrendingFetcher 抓取 GitHub Trending，仓库介绍（p 标签）作为描述
type GitHubTrendingFetcher struct {
	BaseURL string
	Timeout time.Duration
}

func (g *GitHubTrendingFetcher) Name() string {
	return "github"
}

func (g *GitHubTrendingFetcher) FetchItems(ctx context.Context) ([]Item, error) {
	pageURL := g.BaseURL
	if pageURL == "" {
		pageURL = githubTrendingURL
	}

	c := colly.NewCollector(colly.UserAgent("TrendingArchiveBot/1.0"))
	c.SetRequestTimeout(timeoutOr(g.Timeout, 5*time.Second))

	results := make([]Item, 0, 25)
	var visitErr error

	c.OnHTML("article.Box-row", func(e *colly.HTMLElement) {
		titleSel := e.DOM.Find("h2 a")
		if titleSel.Length() == 0 {
			return
		}
		href, ok := titleSel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		// "owner / repo" 中间带空白，压缩成 owner/repo
		repoName := strings.Join(strings.Fields(titleSel.Text()), "")
		fullURL := "https://github.com" + href

		results = append(results, Item{
			ID:          strings.TrimPrefix(href, "/"),
			Title:       repoName,
			Description: strings.TrimSpace(e.ChildText("p")),
			URL:         fullURL,
			MobileURL:   fullURL,
			Hot:         strings.TrimSpace(e.ChildText(`a[href$="/stargazers"]`)),
			Extra: map[string]any{
				"language": strings.TrimSpace(e.ChildText(`span[itemprop="programmingLanguage"]`)),
			},
		})
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("github: visit trending: %w", err)
	}
	if visitErr != nil {
		return nil, fmt.Errorf("github: %w", visitErr)
	}
	return results, nil
}

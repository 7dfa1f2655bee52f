package api

import (
	"net/http"

	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/storage"
	"github.com/gin-gonic/gin"
)

// HistoryItem /api/history 对外的条目格式
type HistoryItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Desc      string `json:"desc"`
	URL       string `json:"url"`
	MobileURL string `json:"mobileUrl"`
	Cover     string `json:"cover"`
	Hot       int64  `json:"hot"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

func toHistoryItem(r storage.NewsRecord) HistoryItem {
	return HistoryItem{
		ID:        r.ItemID,
		Title:     r.Title,
		Desc:      r.Description,
		URL:       r.URL,
		MobileURL: r.MobileURL,
		Cover:     r.Cover,
		Hot:       r.Hot,
		Source:    r.Source,
		Timestamp: r.CreatedAt.UnixMilli(),
	}
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "TrendingArchive API service is running"})
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryFailed 错误细节只进日志，不返回给客户端
func queryFailed(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "query failed"})
}

func (s *Server) listNews(c *gin.Context) {
	page, err := s.store.ListNews(c.Request.Context(), parseNewsQuery(c))
	if err != nil {
		queryFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"total":      page.Total,
		"data":       page.Items,
		"pagination": pagination(page),
	})
}

func pagination(p *storage.NewsPage) gin.H {
	return gin.H{"limit": p.Limit, "offset": p.Offset, "hasMore": p.HasMore}
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.store.ListSources(c.Request.Context())
	if err != nil {
		queryFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": sources})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		queryFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": st})
}

// history 功能关闭时仍返回 success 信封，方便客户端统一处理
func (s *Server) history(c *gin.Context) {
	if !s.enableHistory {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"total":   0,
			"data":    []HistoryItem{},
			"message": "history API is disabled",
		})
		return
	}

	page, err := s.store.ListNews(c.Request.Context(), parseNewsQuery(c))
	if err != nil {
		queryFailed(c, err)
		return
	}
	items := make([]HistoryItem, 0, len(page.Items))
	for _, r := range page.Items {
		items = append(items, toHistoryItem(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"total":      page.Total,
		"data":       items,
		"pagination": pagination(page),
	})
}

// live 直接读取数据源当前榜单（经由结果缓存），不落库
func (s *Server) live(c *gin.Context) {
	name := c.Param("source")
	f, ok := s.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "unknown source"})
		return
	}
	res := f.Fetch(c.Request.Context(), false)
	if res.Items == nil {
		res.Items = []collector.Item{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"source":     name,
		"fromCache":  res.FromCache,
		"updateTime": res.UpdateTime,
		"total":      len(res.Items),
		"data":       res.Items,
	})
}

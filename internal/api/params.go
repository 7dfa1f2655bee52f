package api

import (
	"strconv"

	"github.com/LJTian/TrendingArchive/internal/storage"
	"github.com/gin-gonic/gin"
)

// parseNewsQuery 读取查询参数；非法值不报错，一律回退到默认值
func parseNewsQuery(c *gin.Context) storage.NewsQuery {
	return storage.NewsQuery{
		NewsFilter: storage.NewsFilter{
			Source:    c.Query("source"),
			Date:      c.Query("date"),
			StartDate: c.Query("startDate"),
			EndDate:   c.Query("endDate"),
		},
		Limit:   queryInt(c, "limit", storage.DefaultLimit),
		Offset:  queryInt(c, "offset", 0),
		OrderBy: c.Query("orderBy"),
		Order:   c.Query("order"),
	}.Normalize()
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

package auth

import (
	"errors"
	"net/http"

	"github.com/LJTian/TrendingArchive/internal/logger"
	"github.com/gin-gonic/gin"
)

// Middleware 校验失败返回 401 {status:"error", message:<原因>} 并中止处理链
func Middleware(v *Verifier, log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *gin.Context) {
		err := v.Verify(c.Request)
		if err == nil {
			c.Next()
			return
		}

		reason := ErrInvalidSignature.Reason
		var authErr *Error
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		log.Warn("request rejected",
			logger.String("path", c.Request.URL.Path),
			logger.String("client_ip", c.ClientIP()),
			logger.String("reason", reason))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": reason,
		})
	}
}

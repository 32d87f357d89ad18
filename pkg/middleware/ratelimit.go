package middleware

import (
	"net/http"

	"acdmx.com/pkg/common"
	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/metrics"
	"acdmx.com/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const codeTooManyRequests = 429

// RateLimit 按 ip + 路由限流
func RateLimit(service string, store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if !store.Allow(c.ClientIP() + ":" + route) {
			// 可控拒绝，不打堆栈
			logger.Warn(c.Request.Context(), "http rate limited",
				zap.String("ip", c.ClientIP()),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues(service, route).Inc()
			common.Fail(c, http.StatusTooManyRequests, codeTooManyRequests, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}

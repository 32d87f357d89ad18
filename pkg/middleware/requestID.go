package middleware

import (
	"context"

	"acdmx.com/pkg/common"
	"acdmx.com/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ReqId 透传或生成 request id，同时写回响应头
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if rid == "" {
			rid = common.New()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIdKey, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

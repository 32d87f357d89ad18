package common

import (
	"net/http"

	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailFromErr 业务错误按码映射 http 状态，对外只回 code + message
func FailFromErr(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	httpStatus := HTTPStatusOf(code)
	if httpStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "http error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("biz_code", code),
			zap.Error(err),
		)
	} else {
		logger.Debug(c.Request.Context(), "request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.Int("biz_code", code),
			zap.Error(err),
		)
	}
	Fail(c, httpStatus, code, xerr.MessageOf(err))
}

func HTTPStatusOf(code int) int {
	switch code {
	case xerr.RequestParamsError, xerr.Validation, xerr.CapacityViolation, xerr.InsufficientFunds, xerr.Arithmetic:
		return http.StatusBadRequest
	case xerr.Unauthorized:
		return http.StatusForbidden
	case xerr.RecordNotFound:
		return http.StatusNotFound
	case xerr.PhaseViolation, xerr.Timing:
		return http.StatusConflict
	case xerr.EngineBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 劫持输出到内存 buffer，级别走包内的 AtomicLevel
func hijack() *bytes.Buffer {
	buffer := &bytes.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buffer),
		level,
	)
	Log = zap.New(core)
	return buffer
}

func TestLogger_Info_WithTraceAndRequestID(t *testing.T) {
	SetLevel("info")
	buffer := hijack()

	ctx := context.WithValue(context.Background(), TraceIdKey, "test-trace-12345")
	ctx = context.WithValue(ctx, RequestIdKey, "req-1")

	Info(ctx, "购买成功", zap.String("buyer", "0xabc"), zap.Uint64("units", 42))

	var logEntry map[string]interface{}
	err := json.Unmarshal(buffer.Bytes(), &logEntry)
	assert.NoError(t, err, "日志输出必须是合法的 JSON")

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "购买成功", logEntry["msg"])
	assert.Equal(t, "0xabc", logEntry["buyer"])
	assert.Equal(t, float64(42), logEntry["units"])
	assert.Equal(t, "test-trace-12345", logEntry["trace_id"])
	assert.Equal(t, "req-1", logEntry["request_id"])
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	SetLevel("info")
	buffer := hijack()

	Error(context.Background(), "数据库连接失败", zap.String("db", "mysql"))

	var logEntry map[string]interface{}
	_ = json.Unmarshal(buffer.Bytes(), &logEntry)

	_, exists := logEntry["trace_id"]
	assert.False(t, exists, "没有 TraceID 的 Context 不应该输出 trace_id 字段")
	assert.Equal(t, "error", logEntry["level"])
}

func TestLogger_SetLevel(t *testing.T) {
	buffer := hijack()

	SetLevel("warn")
	Info(context.Background(), "被过滤")
	assert.Equal(t, 0, buffer.Len())

	// 非法级别不改变当前级别
	SetLevel("loud")
	Info(context.Background(), "依然被过滤")
	assert.Equal(t, 0, buffer.Len())

	SetLevel("debug")
	Debug(context.Background(), "可以看到")
	assert.Contains(t, buffer.String(), "可以看到")
	SetLevel("info")
}

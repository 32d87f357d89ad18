package safe

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"acdmx.com/pkg/logger"
	"go.uber.org/zap"
)

var panics atomic.Uint64

// Panics 进程内累计恢复的 panic 次数
func Panics() uint64 { return panics.Load() }

// Go 安全启动协程
func Go(fn func()) {
	GoNamed("", fn)
}

// GoNamed 带名字启动，panic 日志里能看出是哪个后台任务
func GoNamed(name string, fn func()) {
	go func() {
		defer recoverAndLog(context.Background(), name)
		fn()
	}()
}

// GoCtx 携带 context 的协程，日志里保留链路信息
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer recoverAndLog(ctx, "")
		fn(ctx)
	}()
}

func recoverAndLog(ctx context.Context, name string) {
	r := recover()
	if r == nil {
		return
	}
	panics.Add(1)
	stack := string(debug.Stack())
	if logger.Log != nil {
		logger.Error(ctx, "goroutine panic recovered",
			zap.String("task", name),
			zap.Any("panic", r),
			zap.String("stack", stack),
		)
		return
	}
	fmt.Printf("goroutine panic [%s]: %v\nStack: %s\n", name, r, stack)
}

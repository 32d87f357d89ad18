package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"acdmx.com/internal/app"
	"acdmx.com/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("config", "", "配置文件路径，默认 ./config/platform-service.yaml")
	flag.Parse()

	// 收到 SIGINT/SIGTERM 取消 ctx，Run 里统一做优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 配置加载失败时日志还没按配置初始化，Fatal 会先用默认配置兜底
	a, err := app.New(*file)
	if err != nil {
		logger.Fatal(ctx, "init app", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		logger.Fatal(context.Background(), "run", zap.Error(err))
	}
	logger.Info(context.Background(), "service stopped")
	logger.Sync()
}

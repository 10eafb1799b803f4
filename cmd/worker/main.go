package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/qingyan2022/ofd-previewer/config"
	"github.com/qingyan2022/ofd-previewer/internal/service/preview"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
	"github.com/qingyan2022/ofd-previewer/pkg/worker"
)

func main() {
	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 创建预览服务
	previewService, err := preview.GetService(log)
	if err != nil {
		log.Error("Failed to create preview service", logger.Error(err))
		os.Exit(1)
	}

	rc := cfg.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:   rc.Addr,
		RedisDB:     rc.DB,
		Concurrency: rc.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	previewWorker, err := worker.NewPreviewWorker(workerCfg, previewService, log)
	if err != nil {
		log.Error("Failed to create preview worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := previewWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	previewWorker.Stop()
	log.Info("Worker stopped")
}

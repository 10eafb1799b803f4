package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/qingyan2022/ofd-previewer/internal/service/preview"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
	"github.com/qingyan2022/ofd-previewer/pkg/queue"
)

// PreviewWorker 消费预热任务的后台 worker
type PreviewWorker struct {
	BaseWorker
	service preview.Service
}

func NewPreviewWorker(cfg *Config, service preview.Service, log logger.Logger) (*PreviewWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &PreviewWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		service: service,
	}
	w.mux.HandleFunc(queue.TaskTypePrewarm, w.handlePrewarm)
	return w, nil
}

func (w *PreviewWorker) handlePrewarm(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	w.logger.Info("Processing prewarm task",
		logger.String("taskId", task.ID),
		logger.String("fileId", task.FileID),
	)
	return w.service.HandlePrewarm(ctx, &task)
}

func (w *PreviewWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

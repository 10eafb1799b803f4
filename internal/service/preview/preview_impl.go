package preview

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cfg "github.com/qingyan2022/ofd-previewer/config"
	"github.com/qingyan2022/ofd-previewer/internal/cache"
	"github.com/qingyan2022/ofd-previewer/internal/engine"
	"github.com/qingyan2022/ofd-previewer/internal/engine/basic"
	"github.com/qingyan2022/ofd-previewer/internal/engine/cli"
	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/converters"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
	"github.com/qingyan2022/ofd-previewer/pkg/queue"
	"github.com/qingyan2022/ofd-previewer/pkg/storage"
)

type PreviewService struct {
	cache     *cache.ResultCache
	store     storage.Storage
	queue     queue.Queue
	converter converters.PageConverter
	logger    logger.Logger

	// 预热时并行渲染的页数上限
	maxConcurrent int
}

func NewService(
	rc *cache.ResultCache,
	store storage.Storage,
	q queue.Queue,
	converter converters.PageConverter,
	log logger.Logger,
) *PreviewService {
	return &PreviewService{
		cache:         rc,
		store:         store,
		queue:         q,
		converter:     converter,
		logger:        log,
		maxConcurrent: 4,
	}
}

// GetService 按配置装配预览服务：存储、队列、策略编排器、结果缓存
func GetService(log logger.Logger) (Service, error) {
	pc := cfg.GetPreviewerConfig()

	store, err := storage.NewStorage(storage.Config{
		Type: storage.StorageType(pc.StorageType),
		Root: pc.StorageRoot,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q, err := queue.GetQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	// CLI 策略配置了就排最前，内置策略永远垫底兜底
	var strategies []engine.Strategy
	if pc.CLIPath != "" && !pc.CLIDisabled {
		strategies = append(strategies, cli.New(cli.Config{
			Path:          pc.CLIPath,
			Timeout:       pc.CLITimeout,
			KeepArtifacts: pc.CLIKeepArtifacts,
		}, log))
	}
	strategies = append(strategies, basic.New(log))

	orch := engine.NewOrchestrator(log, pc.EngineOrder, strategies...)
	rc := cache.New(cache.Config{
		DocCapacity:   pc.DocCacheCapacity,
		PageCapacity:  pc.PageCacheCapacity,
		DocTTL:        pc.DocCacheTTL,
		PageTTL:       pc.PageCacheTTL,
		ParseTimeout:  pc.ParseTimeout,
		RenderTimeout: pc.RenderTimeout,
	}, orch, log)

	return NewService(rc, store, q, converters.NewPageConverter(pc.MaxPNGWidth), log), nil
}

// document 解析（或命中缓存取回）fileID 对应的文档
func (s *PreviewService) document(ctx context.Context, fileID string) (*models.ParsedDocument, []byte, storage.FileRef, error) {
	ref, err := s.store.Resolve(ctx, fileID)
	if err != nil {
		return nil, nil, storage.FileRef{}, err
	}
	doc, buf, err := s.cache.GetOrParse(ctx, ref.Path, ref.ModTimeUnix, func() ([]byte, error) {
		return s.store.Read(ctx, fileID)
	})
	if err != nil {
		return nil, nil, storage.FileRef{}, err
	}
	return doc, buf, ref, nil
}

func (s *PreviewService) GetMetadata(ctx context.Context, fileID string) (*models.DocumentMetadata, error) {
	doc, _, _, err := s.document(ctx, fileID)
	if err != nil {
		return nil, err
	}
	meta := doc.Metadata
	return &meta, nil
}

func (s *PreviewService) GetCapabilities(ctx context.Context, fileID string) (*models.DocumentCapabilities, error) {
	doc, _, _, err := s.document(ctx, fileID)
	if err != nil {
		return nil, err
	}
	caps := doc.Capabilities
	return &caps, nil
}

func (s *PreviewService) GetPage(ctx context.Context, fileID string, page int, format string) (string, []byte, error) {
	doc, buf, ref, err := s.document(ctx, fileID)
	if err != nil {
		return "", nil, err
	}
	rendered, err := s.cache.GetOrRenderPage(ctx, ref.Path, page, ref.ModTimeUnix, doc, buf)
	if err != nil {
		return "", nil, err
	}
	return s.converter.Convert(doc.Metadata, rendered, format)
}

func (s *PreviewService) GetText(ctx context.Context, fileID string, page int) ([]models.PageTextItem, error) {
	doc, buf, ref, err := s.document(ctx, fileID)
	if err != nil {
		return nil, err
	}
	rendered, err := s.cache.GetOrRenderPage(ctx, ref.Path, page, ref.ModTimeUnix, doc, buf)
	if err != nil {
		return nil, err
	}
	return rendered.TextItems, nil
}

func (s *PreviewService) Upload(ctx context.Context, reader io.Reader, filename string) (string, error) {
	fileID, err := s.store.Store(ctx, reader, filename)
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	s.logger.Info("Document uploaded",
		logger.String("fileId", fileID),
		logger.String("filename", filename),
	)
	return fileID, nil
}

// Prewarm 把解析+全页渲染作为异步任务入队
func (s *PreviewService) Prewarm(ctx context.Context, fileID string) (*models.PrewarmTask, error) {
	// 入队前确认文件存在，坏路径直接拒绝
	if _, err := s.store.Resolve(ctx, fileID); err != nil {
		return nil, err
	}

	taskID := uuid.New().String()
	now := time.Now()
	task := &queue.Task{
		ID:        taskID,
		Type:      queue.TaskTypePrewarm,
		Priority:  2,
		FileID:    fileID,
		CreatedAt: now,
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    string(models.StatusPending),
		StartedAt: now,
	}); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Prewarm task created",
		logger.String("taskId", taskID),
		logger.String("fileId", fileID),
	)
	return &models.PrewarmTask{
		ID:        taskID,
		FileID:    fileID,
		Status:    models.StatusPending,
		CreatedAt: now,
	}, nil
}

func (s *PreviewService) GetTaskStatus(ctx context.Context, taskID string) (*models.PrewarmTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return &models.PrewarmTask{
		ID:        status.TaskID,
		Status:    models.TaskStatusValue(status.Status),
		Progress:  status.Progress,
		Error:     status.Error,
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// HandlePrewarm 预热任务的执行体：解析文档后并行渲染全部页面填充缓存
func (s *PreviewService) HandlePrewarm(ctx context.Context, task *queue.Task) error {
	if task == nil || task.FileID == "" {
		return fmt.Errorf("invalid task: missing file id")
	}

	s.logger.Info("Prewarming document",
		logger.String("taskId", task.ID),
		logger.String("fileId", task.FileID),
	)

	doc, buf, ref, err := s.document(ctx, task.FileID)
	if err != nil {
		s.saveFinalStatus(ctx, task, models.StatusFailed, err)
		return fmt.Errorf("failed to parse document: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.maxConcurrent)
	for page := 1; page <= doc.Metadata.Pages; page++ {
		page := page
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}
			if _, err := s.cache.GetOrRenderPage(ctx, ref.Path, page, ref.ModTimeUnix, doc, buf); err != nil {
				return fmt.Errorf("failed to render page %d: %w", page, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.saveFinalStatus(ctx, task, models.StatusFailed, err)
		return err
	}

	s.saveFinalStatus(ctx, task, models.StatusCompleted, nil)
	s.logger.Info("Prewarm completed",
		logger.String("taskId", task.ID),
		logger.Int("pages", doc.Metadata.Pages),
		logger.String("engine", doc.Engine),
	)
	return nil
}

func (s *PreviewService) saveFinalStatus(ctx context.Context, task *queue.Task, status models.TaskStatusValue, cause error) {
	final := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     string(status),
		StartedAt:  task.CreatedAt,
		FinishedAt: time.Now(),
	}
	if status == models.StatusCompleted {
		final.Progress = 1.0
	}
	if cause != nil {
		final.Error = cause.Error()
	}
	if err := s.queue.SaveStatus(ctx, final); err != nil {
		s.logger.Error("Failed to save final status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}
}

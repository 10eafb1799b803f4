package preview

import (
	"context"
	"io"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/queue"
)

// Service 预览核心对 HTTP 层暴露的操作。page 参数一律 1 起始
type Service interface {
	GetMetadata(ctx context.Context, fileID string) (*models.DocumentMetadata, error)
	GetCapabilities(ctx context.Context, fileID string) (*models.DocumentCapabilities, error)
	GetPage(ctx context.Context, fileID string, page int, format string) (contentType string, data []byte, err error)
	GetText(ctx context.Context, fileID string, page int) ([]models.PageTextItem, error)
	Upload(ctx context.Context, reader io.Reader, filename string) (string, error)
	Prewarm(ctx context.Context, fileID string) (*models.PrewarmTask, error)
	GetTaskStatus(ctx context.Context, taskID string) (*models.PrewarmTask, error)
	HandlePrewarm(ctx context.Context, task *queue.Task) error
}

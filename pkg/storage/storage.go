package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinio StorageType = "minio"
)

// FileRef 文件身份：规范化绝对路径 + 毫秒级修改时间。
// 缓存键与新鲜度判定都以它为准
type FileRef struct {
	Path        string
	ModTimeUnix int64 // epoch 毫秒
	Size        int64
}

// Storage 接口定义：解析文件身份、读取字节、保存上传。
// 预览核心不做路径校验与沙箱，这里是它的文件解析协作方
type Storage interface {
	// Resolve 解析文件身份（规范路径与当前 mtime）
	Resolve(ctx context.Context, name string) (FileRef, error)
	// Read 读取文件全部字节
	Read(ctx context.Context, name string) ([]byte, error)
	// Store 保存文件，返回后续访问用的标识
	Store(ctx context.Context, reader io.Reader, filename string) (string, error)
}

// Config 存储后端配置
type Config struct {
	Type StorageType
	// Root 本地后端的根目录
	Root string
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(cfg Config, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.Root, log)
	case StorageTypeMinio:
		return NewMinioStorage(log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

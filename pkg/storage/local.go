package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// LocalStorage 本地文件系统后端。name 一律限制在 root 之下，
// 路径穿越片段在拼接前被折叠掉
type LocalStorage struct {
	root   string
	logger logger.Logger
}

func NewLocalStorage(root string, log logger.Logger) (*LocalStorage, error) {
	if root == "" {
		root = "data"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStorage{root: abs, logger: log}, nil
}

func (l *LocalStorage) path(name string) string {
	clean := filepath.Clean("/" + filepath.ToSlash(name))
	return filepath.Join(l.root, clean)
}

// Resolve implements Storage.Resolve
func (l *LocalStorage) Resolve(ctx context.Context, name string) (FileRef, error) {
	p := l.path(name)
	info, err := os.Stat(p)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return FileRef{}, fmt.Errorf("not a regular file: %s", name)
	}
	return FileRef{
		Path:        p,
		ModTimeUnix: info.ModTime().UnixMilli(),
		Size:        info.Size(),
	}, nil
}

// Read implements Storage.Read
func (l *LocalStorage) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Store implements Storage.Store
func (l *LocalStorage) Store(ctx context.Context, reader io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	id := uuid.New().String() + ext
	dst := l.path(id)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", id, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write %s: %w", id, err)
	}

	l.logger.Info("Stored file",
		logger.String("fileId", id),
		logger.String("filename", filename),
	)
	return id, nil
}

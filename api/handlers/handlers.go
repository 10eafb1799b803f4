package handlers

import (
	"github.com/qingyan2022/ofd-previewer/internal/service/preview"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

type Handlers struct {
	Preview *PreviewHandler
}

func NewHandlers(previewService preview.Service, logger logger.Logger) *Handlers {
	return &Handlers{
		Preview: NewPreviewHandler(previewService, logger),
	}
}

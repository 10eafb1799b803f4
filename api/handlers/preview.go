package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/internal/service/preview"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

type PreviewHandler struct {
	service preview.Service
	logger  logger.Logger
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewPreviewHandler(service preview.Service, logger logger.Logger) *PreviewHandler {
	return &PreviewHandler{
		service: service,
		logger:  logger,
	}
}

// Upload 上传文档
func (h *PreviewHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	fileID, err := h.service.Upload(c.Request.Context(), file, header.Filename)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to store file", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fileId":   fileID,
		"filename": header.Filename,
		"size":     header.Size,
	})
}

// GetMetadata 获取文档元数据
func (h *PreviewHandler) GetMetadata(c *gin.Context) {
	meta, err := h.service.GetMetadata(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		h.handleError(c, statusFromError(err), "Failed to get metadata", err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// GetCapabilities 获取渲染能力
func (h *PreviewHandler) GetCapabilities(c *gin.Context) {
	caps, err := h.service.GetCapabilities(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		h.handleError(c, statusFromError(err), "Failed to get capabilities", err)
		return
	}
	c.JSON(http.StatusOK, caps)
}

// GetPage 获取单页渲染结果，format 取 svg/png/pdf，默认 svg
func (h *PreviewHandler) GetPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid page number", err)
		return
	}
	format := c.DefaultQuery("format", "svg")

	contentType, data, err := h.service.GetPage(c.Request.Context(), c.Param("fileId"), page, format)
	if err != nil {
		h.handleError(c, statusFromError(err), "Failed to render page", err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// GetText 获取单页提取文本
func (h *PreviewHandler) GetText(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid page number", err)
		return
	}

	items, err := h.service.GetText(c.Request.Context(), c.Param("fileId"), page)
	if err != nil {
		h.handleError(c, statusFromError(err), "Failed to extract text", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Prewarm 提交预热任务
func (h *PreviewHandler) Prewarm(c *gin.Context) {
	task, err := h.service.Prewarm(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		h.handleError(c, statusFromError(err), "Failed to enqueue prewarm task", err)
		return
	}
	c.JSON(http.StatusAccepted, task)
}

// GetTaskStatus 查询预热任务状态
func (h *PreviewHandler) GetTaskStatus(c *gin.Context) {
	task, err := h.service.GetTaskStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Task not found", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// statusFromError 把核心错误分类映射到 HTTP 状态码
func statusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPage):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, models.ErrMalformedArchive),
		errors.Is(err, models.ErrMalformedXML),
		errors.Is(err, models.ErrInvalidDocument),
		errors.Is(err, models.ErrEntryNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStrategyTimeout),
		errors.Is(err, models.ErrOperationTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrNoStrategyAvailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError 统一错误处理
func (h *PreviewHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}

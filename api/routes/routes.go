package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/qingyan2022/ofd-previewer/api/handlers"
	"github.com/qingyan2022/ofd-previewer/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")

	// 文档预览路由组
	docs := v1.Group("/documents")
	{
		docs.POST("", h.Preview.Upload)
		docs.GET("/:fileId/metadata", h.Preview.GetMetadata)
		docs.GET("/:fileId/capabilities", h.Preview.GetCapabilities)
		docs.GET("/:fileId/pages/:page", h.Preview.GetPage)
		docs.GET("/:fileId/pages/:page/text", h.Preview.GetText)
		docs.POST("/:fileId/prewarm", h.Preview.Prewarm)
	}

	v1.GET("/tasks/:taskId", h.Preview.GetTaskStatus)
}

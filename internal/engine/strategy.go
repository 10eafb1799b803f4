// Package engine 定义渲染策略契约，并提供带回退的策略编排器
package engine

import (
	"context"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// Strategy 渲染策略接口：每个后端（内置解析、外部 CLI …）实现同一契约，
// 编排逻辑对具体后端保持无感
type Strategy interface {
	// Name 策略名，唯一，写入 ParsedDocument.Engine
	Name() string

	// IsAvailable 检查策略当前是否可用（外部依赖是否就绪）
	IsAvailable() bool

	// CanRender 判断本策略能否消费该文档的页引用。
	// 页引用是产出策略私有的不透明标识，盲目回退会把一种策略的
	// 标识交给另一种策略，产生无声的错误结果
	CanRender(doc *models.ParsedDocument) bool

	// Parse 解析字节缓冲为结构化文档
	Parse(ctx context.Context, buf []byte) (*models.ParsedDocument, error)

	// RenderPage 渲染 0 起始下标的单页
	RenderPage(ctx context.Context, buf []byte, doc *models.ParsedDocument, pageIndex int) (*models.RenderedPage, error)
}

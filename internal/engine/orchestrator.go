package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// Orchestrator 按注册顺序持有一组策略，首次使用时探测各策略可用性，
// 之后沿用该快照（环境变化不会被重新感知，这是有意的取舍，不是缺陷）
type Orchestrator struct {
	registered []Strategy
	preferred  []string
	logger     logger.Logger

	probeOnce sync.Once
	available []Strategy
}

// NewOrchestrator 创建编排器。strategies 的顺序即注册顺序，
// preferred 是全局偏好的策略名列表，可为空
func NewOrchestrator(log logger.Logger, preferred []string, strategies ...Strategy) *Orchestrator {
	return &Orchestrator{
		registered: strategies,
		preferred:  preferred,
		logger:     log,
	}
}

// Parse 依序尝试每个可用策略，第一个成功者的结果原样返回；
// 全部失败时抛出最后一个错误
func (o *Orchestrator) Parse(ctx context.Context, buf []byte) (*models.ParsedDocument, error) {
	order, err := o.orderFor("")
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, s := range order {
		doc, err := s.Parse(ctx, buf)
		if err != nil {
			o.logger.Warn("strategy parse failed",
				logger.String("engine", s.Name()),
				logger.Error(err),
			)
			lastErr = err
			continue
		}
		if doc.Engine == "" {
			doc.Engine = s.Name()
		}
		return doc, nil
	}
	return nil, lastErr
}

// RenderPage 渲染 0 起始下标的单页。优先使用产出该文档的策略，
// 其余策略只有声明与文档兼容时才会作为回退参与，且跳过不计入失败
func (o *Orchestrator) RenderPage(ctx context.Context, buf []byte, doc *models.ParsedDocument, pageIndex int) (*models.RenderedPage, error) {
	if pageIndex < 0 || pageIndex >= len(doc.PageRefs) {
		return nil, fmt.Errorf("%w: page %d of %d", models.ErrInvalidPage, pageIndex+1, len(doc.PageRefs))
	}

	order, err := o.orderFor(doc.Engine)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, s := range order {
		if !s.CanRender(doc) {
			continue
		}
		page, err := s.RenderPage(ctx, buf, doc, pageIndex)
		if err != nil {
			o.logger.Warn("strategy render failed",
				logger.String("engine", s.Name()),
				logger.Int("page", pageIndex+1),
				logger.Error(err),
			)
			lastErr = err
			continue
		}
		return page, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no compatible strategy for engine %q", models.ErrNoStrategyAvailable, doc.Engine)
	}
	return nil, lastErr
}

// Engines 返回可用策略名（探测顺序），供诊断接口使用
func (o *Orchestrator) Engines() ([]string, error) {
	avail, err := o.availableStrategies()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(avail))
	for _, s := range avail {
		names = append(names, s.Name())
	}
	return names, nil
}

func (o *Orchestrator) availableStrategies() ([]Strategy, error) {
	o.probeOnce.Do(func() {
		for _, s := range o.registered {
			if !s.IsAvailable() {
				o.logger.Info("strategy unavailable, skipping",
					logger.String("engine", s.Name()),
				)
				continue
			}
			o.available = append(o.available, s)
		}
	})
	if len(o.available) == 0 {
		return nil, models.ErrNoStrategyAvailable
	}
	return o.available, nil
}

// orderFor 计算一次调用的尝试顺序：文档自身的引擎最先，
// 其次全局偏好顺序，最后按注册顺序补齐，按名字去重
func (o *Orchestrator) orderFor(engine string) ([]Strategy, error) {
	avail, err := o.availableStrategies()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(avail))
	out := make([]Strategy, 0, len(avail))
	push := func(name string) {
		for _, s := range avail {
			if s.Name() == name && !seen[name] {
				seen[name] = true
				out = append(out, s)
			}
		}
	}

	if engine != "" {
		push(engine)
	}
	for _, name := range o.preferred {
		push(name)
	}
	for _, s := range avail {
		push(s.Name())
	}
	return out, nil
}

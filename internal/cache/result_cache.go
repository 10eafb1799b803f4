// Package cache 结果缓存：文档级与页级两层，各自按容量做 LRU 淘汰、
// 按插入时间做绝对 TTL 过期；命中要求捕获时的 mtime 与文件当前 mtime 一致
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// Renderer 缓存未命中时的计算后端，由 engine.Orchestrator 满足
type Renderer interface {
	Parse(ctx context.Context, buf []byte) (*models.ParsedDocument, error)
	RenderPage(ctx context.Context, buf []byte, doc *models.ParsedDocument, pageIndex int) (*models.RenderedPage, error)
}

type Config struct {
	DocCapacity   int
	PageCapacity  int
	DocTTL        time.Duration
	PageTTL       time.Duration
	ParseTimeout  time.Duration
	RenderTimeout time.Duration
}

func (c *Config) defaults() {
	if c.DocCapacity <= 0 {
		c.DocCapacity = 64
	}
	if c.PageCapacity <= 0 {
		c.PageCapacity = 256
	}
	if c.DocTTL <= 0 {
		c.DocTTL = 10 * time.Minute
	}
	if c.PageTTL <= 0 {
		c.PageTTL = 10 * time.Minute
	}
	if c.ParseTimeout <= 0 {
		c.ParseTimeout = 15 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 20 * time.Second
	}
}

type docEntry struct {
	doc        *models.ParsedDocument
	buf        []byte
	mtime      int64
	insertedAt time.Time
	elem       *list.Element
}

type pageKey struct {
	fileID string
	page   int // 1 起始
}

type pageEntry struct {
	page       *models.RenderedPage
	mtime      int64 // 捕获时文档的 mtime
	insertedAt time.Time
	elem       *list.Element
}

type docFlight struct {
	done chan struct{}
	doc  *models.ParsedDocument
	buf  []byte
	err  error
}

type pageFlight struct {
	done chan struct{}
	page *models.RenderedPage
	err  error
}

type docFlightKey struct {
	fileID string
	mtime  int64
}

type pageFlightKey struct {
	fileID string
	mtime  int64
	page   int
}

type ResultCache struct {
	cfg      Config
	renderer Renderer
	logger   logger.Logger

	mu       sync.Mutex
	docs     map[string]*docEntry
	docLRU   *list.List // front = 最近使用
	pages    map[pageKey]*pageEntry
	pageLRU  *list.List
	inParse  map[docFlightKey]*docFlight
	inRender map[pageFlightKey]*pageFlight
}

func New(cfg Config, renderer Renderer, log logger.Logger) *ResultCache {
	cfg.defaults()
	return &ResultCache{
		cfg:      cfg,
		renderer: renderer,
		logger:   log,
		docs:     make(map[string]*docEntry),
		docLRU:   list.New(),
		pages:    make(map[pageKey]*pageEntry),
		pageLRU:  list.New(),
		inParse:  make(map[docFlightKey]*docFlight),
		inRender: make(map[pageFlightKey]*pageFlight),
	}
}

// GetOrParse 返回 fileID 对应的解析结果与原始字节。
// 命中要求 mtime 一致且未过 TTL；未命中时通过 load 读取字节并在
// 解析超时保护下调用编排器，成功结果整体取代旧条目。
// 并发的同 (fileID, mtime) 未命中只会触发一次解析
func (c *ResultCache) GetOrParse(ctx context.Context, fileID string, mtime int64, load func() ([]byte, error)) (*models.ParsedDocument, []byte, error) {
	c.mu.Lock()
	if e, ok := c.docs[fileID]; ok {
		if e.mtime == mtime && time.Since(e.insertedAt) < c.cfg.DocTTL {
			c.docLRU.MoveToFront(e.elem)
			doc, buf := e.doc, e.buf
			c.mu.Unlock()
			return doc, buf, nil
		}
		c.removeDocLocked(fileID, e)
	}

	key := docFlightKey{fileID: fileID, mtime: mtime}
	if f, ok := c.inParse[key]; ok {
		c.mu.Unlock()
		<-f.done
		return f.doc, f.buf, f.err
	}
	f := &docFlight{done: make(chan struct{})}
	c.inParse[key] = f
	c.mu.Unlock()

	f.doc, f.buf, f.err = c.parse(ctx, load)

	c.mu.Lock()
	delete(c.inParse, key)
	if f.err == nil {
		c.storeDocLocked(fileID, mtime, f.doc, f.buf)
	}
	c.mu.Unlock()
	close(f.done)

	return f.doc, f.buf, f.err
}

// GetOrRenderPage 返回 1 起始页号 page 的渲染结果。页条目的新鲜度
// 以文档当前 mtime 判定：文档变了页就算陈旧，与页缓存是否被碰过无关
func (c *ResultCache) GetOrRenderPage(ctx context.Context, fileID string, page int, mtime int64, doc *models.ParsedDocument, buf []byte) (*models.RenderedPage, error) {
	// 越界请求在进任何策略之前拒绝
	if page < 1 || page > len(doc.PageRefs) || page > doc.Metadata.Pages {
		return nil, fmt.Errorf("%w: page %d of %d", models.ErrInvalidPage, page, doc.Metadata.Pages)
	}

	pk := pageKey{fileID: fileID, page: page}
	c.mu.Lock()
	if e, ok := c.pages[pk]; ok {
		if e.mtime == mtime && time.Since(e.insertedAt) < c.cfg.PageTTL {
			c.pageLRU.MoveToFront(e.elem)
			rendered := e.page
			c.mu.Unlock()
			return rendered, nil
		}
		c.removePageLocked(pk, e)
	}

	key := pageFlightKey{fileID: fileID, mtime: mtime, page: page}
	if f, ok := c.inRender[key]; ok {
		c.mu.Unlock()
		<-f.done
		return f.page, f.err
	}
	f := &pageFlight{done: make(chan struct{})}
	c.inRender[key] = f
	c.mu.Unlock()

	f.page, f.err = runWithTimeout(ctx, c.cfg.RenderTimeout, func(ctx context.Context) (*models.RenderedPage, error) {
		return c.renderer.RenderPage(ctx, buf, doc, page-1)
	})

	c.mu.Lock()
	delete(c.inRender, key)
	if f.err == nil {
		c.storePageLocked(pk, mtime, f.page)
	}
	c.mu.Unlock()
	close(f.done)

	return f.page, f.err
}

func (c *ResultCache) parse(ctx context.Context, load func() ([]byte, error)) (*models.ParsedDocument, []byte, error) {
	buf, err := load()
	if err != nil {
		return nil, nil, err
	}
	doc, err := runWithTimeout(ctx, c.cfg.ParseTimeout, func(ctx context.Context) (*models.ParsedDocument, error) {
		return c.renderer.Parse(ctx, buf)
	})
	if err != nil {
		return nil, nil, err
	}
	return doc, buf, nil
}

func (c *ResultCache) storeDocLocked(fileID string, mtime int64, doc *models.ParsedDocument, buf []byte) {
	if old, ok := c.docs[fileID]; ok {
		c.removeDocLocked(fileID, old)
	}
	e := &docEntry{doc: doc, buf: buf, mtime: mtime, insertedAt: time.Now()}
	e.elem = c.docLRU.PushFront(fileID)
	c.docs[fileID] = e
	for len(c.docs) > c.cfg.DocCapacity {
		oldest := c.docLRU.Back()
		key := oldest.Value.(string)
		c.removeDocLocked(key, c.docs[key])
		c.logger.Debug("evicted document cache entry", logger.String("fileId", key))
	}
}

func (c *ResultCache) storePageLocked(pk pageKey, mtime int64, page *models.RenderedPage) {
	if old, ok := c.pages[pk]; ok {
		c.removePageLocked(pk, old)
	}
	e := &pageEntry{page: page, mtime: mtime, insertedAt: time.Now()}
	e.elem = c.pageLRU.PushFront(pk)
	c.pages[pk] = e
	for len(c.pages) > c.cfg.PageCapacity {
		oldest := c.pageLRU.Back()
		key := oldest.Value.(pageKey)
		c.removePageLocked(key, c.pages[key])
	}
}

func (c *ResultCache) removeDocLocked(fileID string, e *docEntry) {
	c.docLRU.Remove(e.elem)
	delete(c.docs, fileID)
}

func (c *ResultCache) removePageLocked(pk pageKey, e *pageEntry) {
	c.pageLRU.Remove(e.elem)
	delete(c.pages, pk)
}

// runWithTimeout 在限定时长内执行 fn；超时返回 ErrOperationTimedOut。
// fn 通过 ctx 感知取消，后台 goroutine 不会被无限期遗留
func runWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", models.ErrOperationTimedOut, ctx.Err())
	}
}

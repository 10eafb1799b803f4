// Package basic 纯进程内的 OFD 渲染策略，只支持文本对象子集。
// 没有外部依赖，永远可用，作为兜底策略注册在最后
package basic

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/internal/ofd"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// Name 引擎名
const Name = "basic"

// 物理页框缺失或非法时的默认尺寸（A4，毫米）
const (
	defaultWidthMM  = 210.0
	defaultHeightMM = 297.0
	defaultFontSize = 12.0
)

type Strategy struct {
	logger logger.Logger
}

func New(log logger.Logger) *Strategy {
	return &Strategy{logger: log}
}

func (s *Strategy) Name() string { return Name }

// IsAvailable 恒为 true：无外部依赖
func (s *Strategy) IsAvailable() bool { return true }

// CanRender 只有当所有页引用形如常规 XML 条目路径时才认领：
// 其他策略可能用任意标识作页引用，本策略无法消费
func (s *Strategy) CanRender(doc *models.ParsedDocument) bool {
	for _, ref := range doc.PageRefs {
		if !strings.HasSuffix(strings.ToLower(ref), ".xml") {
			return false
		}
	}
	return true
}

func (s *Strategy) Parse(ctx context.Context, buf []byte) (*models.ParsedDocument, error) {
	archive, err := ofd.Open(buf)
	if err != nil {
		return nil, err
	}

	// 根描述文件 OFD.xml 可能在包内任意目录，大小写不敏感
	rootPath, ok := archive.FindEntry("OFD.xml")
	if !ok {
		return nil, fmt.Errorf("%w: missing root descriptor", models.ErrInvalidDocument)
	}
	rootText, err := archive.ReadText(rootPath)
	if err != nil {
		return nil, err
	}
	rootNode, err := ofd.ParseXML(rootText)
	if err != nil {
		return nil, err
	}

	meta := models.DocumentMetadata{
		WidthMM:         defaultWidthMM,
		HeightMM:        defaultHeightMM,
		TextExtractable: true,
	}
	if info := rootNode.Find("DocInfo"); info != nil {
		if t := info.Child("Title"); t != nil {
			meta.Title = t.Text
		}
		if a := info.Child("Author"); a != nil {
			meta.Author = a.Text
		}
		if d := info.Child("CreationDate"); d != nil {
			meta.CreationDate = d.Text
		}
	}

	// 文档主体描述文件由 DocRoot 指向，相对根描述文件所在目录解析
	docRoot := rootNode.Find("DocRoot")
	if docRoot == nil || docRoot.Text == "" {
		return nil, fmt.Errorf("%w: missing document root", models.ErrInvalidDocument)
	}
	docPath := ofd.ResolvePath(path.Dir(rootPath), docRoot.Text)
	docText, err := archive.ReadText(docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: missing document root", models.ErrInvalidDocument)
	}
	docNode, err := ofd.ParseXML(docText)
	if err != nil {
		return nil, err
	}

	if w, h, ok := parsePhysicalBox(docNode); ok {
		meta.WidthMM, meta.HeightMM = w, h
	}

	// 页引用相对文档主体描述文件所在目录解析，不是包根。
	// 无法解析出引用的页节点静默丢弃
	docDir := path.Dir(docPath)
	var refs []string
	if pages := docNode.Find("Pages"); pages != nil {
		for _, page := range pages.FindAll("Page") {
			ref := pageContentRef(page)
			if ref == "" {
				continue
			}
			refs = append(refs, ofd.ResolvePath(docDir, ref))
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no pages", models.ErrInvalidDocument)
	}
	meta.Pages = len(refs)

	return &models.ParsedDocument{
		Metadata: meta,
		Capabilities: models.DocumentCapabilities{
			Text: true,
		},
		Engine:   Name,
		PageRefs: refs,
	}, nil
}

func (s *Strategy) RenderPage(ctx context.Context, buf []byte, doc *models.ParsedDocument, pageIndex int) (*models.RenderedPage, error) {
	if pageIndex < 0 || pageIndex >= len(doc.PageRefs) {
		return nil, fmt.Errorf("%w: page %d of %d", models.ErrInvalidPage, pageIndex+1, len(doc.PageRefs))
	}

	archive, err := ofd.Open(buf)
	if err != nil {
		return nil, err
	}
	content, err := archive.ReadText(doc.PageRefs[pageIndex])
	if err != nil {
		return nil, err
	}
	node, err := ofd.ParseXML(content)
	if err != nil {
		return nil, err
	}

	items := extractTextItems(node)
	svg := buildSVG(doc.Metadata.WidthMM, doc.Metadata.HeightMM, items)

	return &models.RenderedPage{
		SVG:       svg,
		TextItems: items,
	}, nil
}

// extractTextItems 按文档顺序遍历图层、文本对象、文字段，
// 收集每段文字的内容与排版信息
func extractTextItems(page *ofd.Node) []models.PageTextItem {
	var items []models.PageTextItem
	for _, layer := range page.FindAll("Layer") {
		for _, obj := range layer.FindAll("TextObject") {
			size := obj.AttrFloat("Size", defaultFontSize)
			font := obj.AttrString("Font")
			fill := ""
			if fc := obj.Child("FillColor"); fc != nil {
				fill = fc.AttrString("Value")
			}
			for _, code := range obj.FindAll("TextCode") {
				items = append(items, models.PageTextItem{
					Text:      code.Text,
					X:         code.AttrFloat("X", 0),
					Y:         code.AttrFloat("Y", 0),
					FontSize:  size,
					FontName:  font,
					FillColor: fill,
				})
			}
		}
	}
	return items
}

// parsePhysicalBox 读取物理页框“x y w h”中的宽高。
// 缺失或非数值时回退默认值：对畸形文件保持宽容而不是报错
func parsePhysicalBox(doc *ofd.Node) (w, h float64, ok bool) {
	box := doc.Find("PhysicalBox")
	if box == nil {
		return 0, 0, false
	}
	fields := strings.Fields(box.Text)
	if len(fields) != 4 {
		return 0, 0, false
	}
	width, err1 := strconv.ParseFloat(fields[2], 64)
	height, err2 := strconv.ParseFloat(fields[3], 64)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// pageContentRef 按优先级取页内容引用：BaseLoc 属性、File 属性、
// 嵌套 Content 引用
func pageContentRef(page *ofd.Node) string {
	if ref := page.AttrString("BaseLoc"); ref != "" {
		return ref
	}
	if ref := page.AttrString("File"); ref != "" {
		return ref
	}
	if c := page.Child("Content"); c != nil {
		if ref := c.AttrString("Loc"); ref != "" {
			return ref
		}
		return c.Text
	}
	return ""
}

package converters

import (
	"fmt"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// 页面输出格式
const (
	FormatSVG = "svg"
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// PageConverter 把缓存中的渲染结果转换为请求的输出格式。
// 转换是无状态的后处理，绝不修改 RenderedPage
type PageConverter interface {
	Convert(meta models.DocumentMetadata, page *models.RenderedPage, format string) (contentType string, data []byte, err error)
}

type pageConverter struct {
	// maxPNGWidth PNG 输出的最大像素宽度，0 表示不限制
	maxPNGWidth int
}

func NewPageConverter(maxPNGWidth int) PageConverter {
	return &pageConverter{maxPNGWidth: maxPNGWidth}
}

func (c *pageConverter) Convert(meta models.DocumentMetadata, page *models.RenderedPage, format string) (string, []byte, error) {
	switch format {
	case FormatSVG:
		return "image/svg+xml", []byte(page.SVG), nil
	case FormatPNG:
		data, err := c.toPNG(meta, page)
		if err != nil {
			return "", nil, err
		}
		return "image/png", data, nil
	case FormatPDF:
		data, err := c.toPDF(meta, page)
		if err != nil {
			return "", nil, err
		}
		return "application/pdf", data, nil
	default:
		return "", nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

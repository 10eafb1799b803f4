package converters

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// toPDF 按物理页框尺寸建页，把文本项放回原位置。
// 保真度以缓存的文本项为限，矢量内容不参与
func (c *pageConverter) toPDF(meta models.DocumentMetadata, page *models.RenderedPage) ([]byte, error) {
	w, h := meta.WidthMM, meta.HeightMM
	if w <= 0 || h <= 0 {
		w, h = 210, 297
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(0, 0, 0)

	for _, item := range page.TextItems {
		if item.FontSize > 0 {
			pdf.SetFontSize(item.FontSize)
		}
		pdf.Text(item.X, item.Y, item.Text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

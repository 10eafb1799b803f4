package basic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// placeholderText 零文本页的占位提示：文本子集文件里没有文字是合法情况，
// 软降级而不是报错
const placeholderText = "Basic text rendering only: no renderable text content found on this page"

var svgEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// buildSVG 把文本项包进以毫米为单位、白底的 SVG 根元素
func buildSVG(widthMM, heightMM float64, items []models.PageTextItem) string {
	var sb strings.Builder
	w := formatMM(widthMM)
	h := formatMM(heightMM)

	fmt.Fprintf(&sb,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%smm" height="%smm" viewBox="0 0 %s %s">`,
		w, h, w, h)
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%s" height="%s" fill="#ffffff"/>`, w, h)

	if len(items) == 0 {
		fmt.Fprintf(&sb,
			`<text x="%s" y="%s" font-size="4" fill="#888888">%s</text>`,
			formatMM(widthMM/20), formatMM(heightMM/10), svgEscaper.Replace(placeholderText))
	}
	for _, item := range items {
		fill := "#000000"
		if item.FillColor != "" {
			fill = rgbToHex(item.FillColor)
		}
		fmt.Fprintf(&sb,
			`<text x="%s" y="%s" font-size="%s" fill="%s">%s</text>`,
			formatMM(item.X), formatMM(item.Y), formatMM(item.FontSize), fill,
			svgEscaper.Replace(item.Text))
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// rgbToHex 把 OFD 的“r g b”颜色三元组转成 SVG 颜色，转不动就原样返回
func rgbToHex(value string) string {
	fields := strings.Fields(value)
	if len(fields) != 3 {
		return value
	}
	rgb := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 255 {
			return value
		}
		rgb[i] = n
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

package converters

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// pngScale 毫米到像素的缩放（约 96dpi）
const pngScale = 96.0 / 25.4

// toPNG 光栅化缓存的 SVG
func (c *pageConverter) toPNG(meta models.DocumentMetadata, page *models.RenderedPage) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(page.SVG))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	wMM, hMM := icon.ViewBox.W, icon.ViewBox.H
	if wMM <= 0 || hMM <= 0 {
		wMM, hMM = meta.WidthMM, meta.HeightMM
	}
	if wMM <= 0 || hMM <= 0 {
		return nil, fmt.Errorf("invalid page dimensions %gx%g", wMM, hMM)
	}

	w := int(wMM*pngScale + 0.5)
	h := int(hMM*pngScale + 0.5)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	var out image.Image = img
	if c.maxPNGWidth > 0 && w > c.maxPNGWidth {
		out = imaging.Resize(img, c.maxPNGWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

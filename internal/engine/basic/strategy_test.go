package basic

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

const rootDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<ofd:OFD xmlns:ofd="http://www.ofdspec.org/2016" Version="1.0">
  <ofd:DocBody>
    <ofd:DocInfo>
      <ofd:Title>电子发票</ofd:Title>
      <ofd:Author>测试开票系统</ofd:Author>
      <ofd:CreationDate>2024-01-15</ofd:CreationDate>
    </ofd:DocInfo>
    <ofd:DocRoot>Doc_0/Document.xml</ofd:DocRoot>
  </ofd:DocBody>
</ofd:OFD>`

const documentBody = `<?xml version="1.0" encoding="UTF-8"?>
<ofd:Document xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:CommonData>
    <ofd:PageArea>
      <ofd:PhysicalBox>0 0 210 140</ofd:PhysicalBox>
    </ofd:PageArea>
  </ofd:CommonData>
  <ofd:Pages>
    <ofd:Page ID="1" BaseLoc="Pages/Page_0/Content.xml"/>
    <ofd:Page ID="2" BaseLoc="Pages/Page_1/Content.xml"/>
  </ofd:Pages>
</ofd:Document>`

const pageContent = `<?xml version="1.0" encoding="UTF-8"?>
<ofd:Page xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:Content>
    <ofd:Layer>
      <ofd:TextObject ID="7" Size="10.5" Font="2">
        <ofd:FillColor Value="255 0 0"/>
        <ofd:TextCode X="25.3" Y="40">价税合计</ofd:TextCode>
      </ofd:TextObject>
      <ofd:TextObject ID="8">
        <ofd:TextCode X="60" Y="40">￥128.00 &amp; tax</ofd:TextCode>
      </ofd:TextObject>
    </ofd:Layer>
  </ofd:Content>
</ofd:Page>`

const emptyPageContent = `<?xml version="1.0" encoding="UTF-8"?>
<ofd:Page xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:Content><ofd:Layer/></ofd:Content>
</ofd:Page>`

func buildOFD(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fixtureOFD(t *testing.T) []byte {
	return buildOFD(t, map[string]string{
		"OFD.xml":                      rootDescriptor,
		"Doc_0/Document.xml":           documentBody,
		"Doc_0/Pages/Page_0/Content.xml": pageContent,
		"Doc_0/Pages/Page_1/Content.xml": emptyPageContent,
	})
}

func newStrategy() *Strategy {
	return New(logger.NewTestLogger())
}

func TestParse(t *testing.T) {
	s := newStrategy()
	doc, err := s.Parse(context.Background(), fixtureOFD(t))
	require.NoError(t, err)

	assert.Equal(t, Name, doc.Engine)
	assert.Equal(t, 2, doc.Metadata.Pages)
	assert.Equal(t, 210.0, doc.Metadata.WidthMM)
	assert.Equal(t, 140.0, doc.Metadata.HeightMM)
	assert.Equal(t, "电子发票", doc.Metadata.Title)
	assert.Equal(t, "测试开票系统", doc.Metadata.Author)
	assert.Equal(t, "2024-01-15", doc.Metadata.CreationDate)
	assert.True(t, doc.Metadata.TextExtractable)
	assert.True(t, doc.Capabilities.Text)
	assert.Equal(t, []string{
		"Doc_0/Pages/Page_0/Content.xml",
		"Doc_0/Pages/Page_1/Content.xml",
	}, doc.PageRefs)
}

func TestParseMissingRootDescriptor(t *testing.T) {
	s := newStrategy()
	buf := buildOFD(t, map[string]string{"readme.txt": "no descriptor here"})

	_, err := s.Parse(context.Background(), buf)
	assert.ErrorIs(t, err, models.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "missing root descriptor")
}

func TestParseMissingDocumentRoot(t *testing.T) {
	s := newStrategy()
	// DocRoot 指向的条目不存在
	buf := buildOFD(t, map[string]string{"OFD.xml": rootDescriptor})

	_, err := s.Parse(context.Background(), buf)
	assert.ErrorIs(t, err, models.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "missing document root")
}

func TestParseNoPages(t *testing.T) {
	s := newStrategy()
	buf := buildOFD(t, map[string]string{
		"OFD.xml": rootDescriptor,
		"Doc_0/Document.xml": `<ofd:Document xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:Pages/>
</ofd:Document>`,
	})

	_, err := s.Parse(context.Background(), buf)
	assert.ErrorIs(t, err, models.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "no pages")
}

func TestParseDefaultPhysicalBox(t *testing.T) {
	s := newStrategy()
	buf := buildOFD(t, map[string]string{
		"OFD.xml": rootDescriptor,
		"Doc_0/Document.xml": `<ofd:Document xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:CommonData>
    <ofd:PageArea><ofd:PhysicalBox>0 0 bad data</ofd:PhysicalBox></ofd:PageArea>
  </ofd:CommonData>
  <ofd:Pages><ofd:Page ID="1" BaseLoc="Pages/Page_0/Content.xml"/></ofd:Pages>
</ofd:Document>`,
		"Doc_0/Pages/Page_0/Content.xml": emptyPageContent,
	})

	doc, err := s.Parse(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 210.0, doc.Metadata.WidthMM)
	assert.Equal(t, 297.0, doc.Metadata.HeightMM)
}

func TestParseMalformedArchive(t *testing.T) {
	s := newStrategy()
	_, err := s.Parse(context.Background(), []byte("garbage"))
	assert.ErrorIs(t, err, models.ErrMalformedArchive)
}

func TestRenderPage(t *testing.T) {
	s := newStrategy()
	buf := fixtureOFD(t)
	doc, err := s.Parse(context.Background(), buf)
	require.NoError(t, err)

	page, err := s.RenderPage(context.Background(), buf, doc, 0)
	require.NoError(t, err)

	require.Len(t, page.TextItems, 2)
	first := page.TextItems[0]
	assert.Equal(t, "价税合计", first.Text)
	assert.Equal(t, 25.3, first.X)
	assert.Equal(t, 40.0, first.Y)
	assert.Equal(t, 10.5, first.FontSize)
	assert.Equal(t, "2", first.FontName)
	assert.Equal(t, "255 0 0", first.FillColor)

	second := page.TextItems[1]
	assert.Equal(t, "￥128.00 & tax", second.Text)
	assert.Equal(t, defaultFontSize, second.FontSize)
	assert.Empty(t, second.FillColor)

	assert.True(t, strings.HasPrefix(page.SVG, `<svg xmlns="http://www.w3.org/2000/svg" width="210mm" height="140mm" viewBox="0 0 210 140">`))
	assert.Contains(t, page.SVG, `fill="#ff0000"`)
	assert.Contains(t, page.SVG, "价税合计")
	// XML 特殊字符必须转义
	assert.Contains(t, page.SVG, "￥128.00 &amp; tax")
	assert.NotContains(t, page.SVG, placeholderText)
}

func TestRenderPageWithoutText(t *testing.T) {
	s := newStrategy()
	buf := fixtureOFD(t)
	doc, err := s.Parse(context.Background(), buf)
	require.NoError(t, err)

	page, err := s.RenderPage(context.Background(), buf, doc, 1)
	require.NoError(t, err)

	assert.Empty(t, page.TextItems)
	assert.Contains(t, page.SVG, placeholderText)
}

func TestRenderPageOutOfRange(t *testing.T) {
	s := newStrategy()
	buf := fixtureOFD(t)
	doc, err := s.Parse(context.Background(), buf)
	require.NoError(t, err)

	_, err = s.RenderPage(context.Background(), buf, doc, -1)
	assert.ErrorIs(t, err, models.ErrInvalidPage)

	_, err = s.RenderPage(context.Background(), buf, doc, 2)
	assert.ErrorIs(t, err, models.ErrInvalidPage)
}

func TestCanRender(t *testing.T) {
	s := newStrategy()

	assert.True(t, s.CanRender(&models.ParsedDocument{
		PageRefs: []string{"Doc_0/Pages/Page_0/Content.xml", "Doc_0/Pages/Page_1/CONTENT.XML"},
	}))
	assert.False(t, s.CanRender(&models.ParsedDocument{
		PageRefs: []string{"page-1", "page-2"},
	}))
	assert.True(t, s.CanRender(&models.ParsedDocument{}))
}

func TestRGBToHex(t *testing.T) {
	assert.Equal(t, "#ff0000", rgbToHex("255 0 0"))
	assert.Equal(t, "#0a141e", rgbToHex("10 20 30"))
	assert.Equal(t, "not a color", rgbToHex("not a color"))
	assert.Equal(t, "300 0 0", rgbToHex("300 0 0"))
}

package ofd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

func TestParseXMLStripsNamespacePrefixes(t *testing.T) {
	// 厂商对命名空间前缀的使用并不一致，树里只保留本地名
	node, err := ParseXML(`<?xml version="1.0"?>
<ofd:OFD xmlns:ofd="http://www.ofdspec.org/2016" Version="1.0">
  <ofd:DocBody>
    <ofd:DocRoot>Doc_0/Document.xml</ofd:DocRoot>
  </ofd:DocBody>
</ofd:OFD>`)
	require.NoError(t, err)

	assert.Equal(t, "OFD", node.Name)
	body := node.Child("DocBody")
	require.NotNil(t, body)
	root := body.Child("DocRoot")
	require.NotNil(t, root)
	assert.Equal(t, "Doc_0/Document.xml", root.Text)
}

func TestParseXMLAttributeCoercion(t *testing.T) {
	node, err := ParseXML(`<Page ID="12" BaseLoc="Pages/Page_0/Content.xml" Scale="1.5"/>`)
	require.NoError(t, err)

	assert.Equal(t, float64(12), node.Attrs["ID"])
	assert.Equal(t, 1.5, node.Attrs["Scale"])
	assert.Equal(t, "Pages/Page_0/Content.xml", node.Attrs["BaseLoc"])

	assert.Equal(t, "12", node.AttrString("ID"))
	assert.Equal(t, 1.5, node.AttrFloat("Scale", 0))
	assert.Equal(t, 7.0, node.AttrFloat("Missing", 7))
	assert.Equal(t, 3.0, node.AttrFloat("BaseLoc", 3))
}

func TestParseXMLAttrsSeparateFromChildren(t *testing.T) {
	node, err := ParseXML(`<TextObject Size="10.5"><Size>child</Size></TextObject>`)
	require.NoError(t, err)

	assert.Equal(t, 10.5, node.AttrFloat("Size", 0))
	require.NotNil(t, node.Child("Size"))
	assert.Equal(t, "child", node.Child("Size").Text)
}

func TestParseXMLMalformed(t *testing.T) {
	_, err := ParseXML(`<Open><Unclosed>`)
	assert.ErrorIs(t, err, models.ErrMalformedXML)

	_, err = ParseXML(``)
	assert.ErrorIs(t, err, models.ErrMalformedXML)
}

func TestFindAndFindAllDocumentOrder(t *testing.T) {
	node, err := ParseXML(`<Content>
  <Layer><TextObject ID="1"/><TextObject ID="2"/></Layer>
  <Layer><TextObject ID="3"/></Layer>
</Content>`)
	require.NoError(t, err)

	objs := node.FindAll("TextObject")
	require.Len(t, objs, 3)
	assert.Equal(t, "1", objs[0].AttrString("ID"))
	assert.Equal(t, "2", objs[1].AttrString("ID"))
	assert.Equal(t, "3", objs[2].AttrString("ID"))

	first := node.Find("TextObject")
	require.NotNil(t, first)
	assert.Equal(t, "1", first.AttrString("ID"))
}

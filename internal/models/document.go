package models

// DocumentMetadata 文档元数据，解析成功后不可变
type DocumentMetadata struct {
	Pages           int     `json:"pages"`
	WidthMM         float64 `json:"widthMM"`
	HeightMM        float64 `json:"heightMM"`
	Title           string  `json:"title,omitempty"`
	Author          string  `json:"author,omitempty"`
	CreationDate    string  `json:"creationDate,omitempty"`
	TextExtractable bool    `json:"textExtractable"`
}

// DocumentCapabilities 描述产出该文档的渲染路径能够忠实呈现的特性，
// 是策略的属性而不是文件的属性
type DocumentCapabilities struct {
	Text        bool `json:"text"`
	Vector      bool `json:"vector"`
	Images      bool `json:"images"`
	Annotations bool `json:"annotations"`
	Signatures  bool `json:"signatures"`
}

// ParsedDocument 一次成功解析的结果。PageRefs 是策略私有的不透明页标识，
// 只有 Engine 命名的策略（或声明兼容的策略）能够消费
type ParsedDocument struct {
	Metadata     DocumentMetadata     `json:"metadata"`
	Capabilities DocumentCapabilities `json:"capabilities"`
	Engine       string               `json:"engine"`
	PageRefs     []string             `json:"pageRefs"`
	Internal     interface{}          `json:"-"`
}

// PageTextItem 一段提取出的文本，顺序为文档遍历顺序（图层、对象、文字段）
type PageTextItem struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  float64 `json:"fontSize"`
	FontName  string  `json:"fontName,omitempty"`
	FillColor string  `json:"fillColor,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
}

// RenderedPage 单页渲染结果，下游格式转换不得修改
type RenderedPage struct {
	SVG       string         `json:"svg"`
	TextItems []PageTextItem `json:"textItems"`
}

package ofd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// Node 是一棵可按属性寻址的 XML 树。元素名已剥离命名空间前缀
// （各厂商的前缀用法并不一致），属性与子元素分开存放，
// 形如数字的属性值被强转为 float64
type Node struct {
	Name     string
	Attrs    map[string]interface{}
	Text     string
	Children []*Node
}

// ParseXML 将 UTF-8 文本解析为 Node 树，失败返回 ErrMalformedXML
func ParseXML(text string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(text))

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Name:  localName(t.Name.Local),
				Attrs: make(map[string]interface{}, len(t.Attr)),
			}
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				n.Attrs[localName(attr.Name.Local)] = coerce(attr.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", models.ErrMalformedXML)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element", models.ErrMalformedXML)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += strings.TrimSpace(string(t))
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", models.ErrMalformedXML)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unclosed element %s", models.ErrMalformedXML, stack[len(stack)-1].Name)
	}
	return root, nil
}

// Child 返回第一个名为 name 的直接子元素
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find 深度优先查找第一个名为 name 的后代元素（含自身）
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// FindAll 深度优先收集所有名为 name 的后代元素（含自身），保持文档顺序
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	if n.Name == name {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.FindAll(name)...)
	}
	return out
}

// AttrString 以字符串形式返回属性值，缺失返回空串
func (n *Node) AttrString(name string) string {
	v, ok := n.Attrs[name]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AttrFloat 以数值形式返回属性值，缺失或非数值返回 def
func (n *Node) AttrFloat(name string, def float64) float64 {
	v, ok := n.Attrs[name]
	if !ok {
		return def
	}
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func localName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func coerce(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return value
}

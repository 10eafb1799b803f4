// Package ofd 提供 OFD 容器（zip 包装的 XML 文档）的条目访问与 XML 树解析
package ofd

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/qingyan2022/ofd-previewer/internal/models"
)

// Archive 是一个以规范化内部路径索引的 zip 容器
type Archive struct {
	entries map[string]*zip.File
	names   []string
}

// Open 将字节缓冲作为 zip 打开，失败返回 ErrMalformedArchive
func Open(buf []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedArchive, err)
	}

	a := &Archive{entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := Normalize(f.Name)
		if _, dup := a.entries[name]; !dup {
			a.names = append(a.names, name)
		}
		a.entries[name] = f
	}
	return a, nil
}

// FindEntry 按文件名在整个包内查找条目（大小写不敏感，忽略目录），
// 返回规范化后的完整条目路径
func (a *Archive) FindEntry(filename string) (string, bool) {
	lower := strings.ToLower(filename)
	for _, name := range a.names {
		if strings.ToLower(path.Base(name)) == lower {
			return name, true
		}
	}
	return "", false
}

// Has 判断规范化路径对应的条目是否存在
func (a *Archive) Has(p string) bool {
	_, ok := a.entries[Normalize(p)]
	return ok
}

// ReadText 读取条目内容并按 UTF-8 解码，条目缺失返回 ErrEntryNotFound
func (a *Archive) ReadText(p string) (string, error) {
	f, ok := a.entries[Normalize(p)]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrEntryNotFound, p)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", models.ErrMalformedArchive, p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrMalformedArchive, p, err)
	}
	return string(data), nil
}

// ResolvePath 将 ref 相对 baseDir 解析为规范化条目路径。
// 前导 / 视为包根，./ 与 .. 片段按目录语义归约
func ResolvePath(baseDir, ref string) string {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "\\", "/")
	if strings.HasPrefix(ref, "/") {
		return Normalize(ref)
	}
	return Normalize(path.Join(baseDir, ref))
}

// Normalize 归约条目路径：去掉前导 /，折叠 ./ 与 .. 片段
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

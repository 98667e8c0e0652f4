// Copyright 2025-2026 肖其顿 (XIAO QI DUN)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inkpdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "github.com/xiaoqidun/jbig2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// ImageDPI 单页图像源的默认分辨率
const ImageDPI = 144.0

// SourceKind 源文档类型
type SourceKind int

const (
	SourcePDF SourceKind = iota
	SourceImage
	SourceBundle
)

// String 类型名称
func (k SourceKind) String() string {
	switch k {
	case SourcePDF:
		return "pdf"
	case SourceImage:
		return "image"
	case SourceBundle:
		return "bundle"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// SourceRef 源文档引用
type SourceRef string

// Source 只读源文档
type Source struct {
	Kind      SourceKind
	Name      string
	Data      []byte
	PageCount int
	Bounds    []Box
	bundle    *BundleReader
}

// PageSize 获取源页面尺寸
// 入参: index 源页面索引
// 返回: Size 尺寸(磅), bool 是否有效
func (s *Source) PageSize(index int) (Size, bool) {
	if s == nil || index < 0 || index >= len(s.Bounds) {
		return Size{}, false
	}
	return s.Bounds[index].Size(), true
}

// SourceProvider 源文档提供者
type SourceProvider interface {
	Source(ctx context.Context, ref SourceRef) (*Source, error)
}

// LocalSourceProvider 本地文件源
type LocalSourceProvider struct {
	Root string
}

var _ SourceProvider = LocalSourceProvider{}

// Source 读取并解析本地源文档
func (p LocalSourceProvider) Source(ctx context.Context, ref SourceRef) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := string(ref)
	if p.Root != "" && !filepath.IsAbs(name) {
		name = filepath.Join(p.Root, name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return InspectSource(filepath.Base(name), data)
}

// InspectSource 识别源文档类型并读取页面尺寸
// 入参: name 名称, data 文件内容
// 返回: *Source 源文档, error 错误信息
func InspectSource(name string, data []byte) (*Source, error) {
	src := &Source{Name: name, Data: data}
	var err error
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		src.Kind = SourcePDF
		src.Bounds, err = inspectPDF(data)
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		src.Kind = SourceBundle
		src.bundle, err = NewBundleReader(bytes.NewReader(data), int64(len(data)))
		if err == nil {
			src.Bounds, err = bundleBounds(src.bundle)
		}
	default:
		src.Kind = SourceImage
		var cfg image.Config
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
		if err == nil {
			src.Bounds = []Box{imageBox(cfg.Width, cfg.Height)}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, name, err)
	}
	src.PageCount = len(src.Bounds)
	return src, nil
}

// imageBox 图像像素换算为页面区域
func imageBox(w, h int) Box {
	return Box{W: float64(w) * 72 / ImageDPI, H: float64(h) * 72 / ImageDPI}
}

// bundleBounds 读取页面包各页区域
func bundleBounds(br *BundleReader) ([]Box, error) {
	out := make([]Box, br.PageCount())
	for i := range out {
		b, err := br.PageBox(i)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// inspectPDF 读取PDF各页可见区域
// 优先使用 CropBox, 旋转90度或270度时交换宽高
func inspectPDF(data []byte) ([]Box, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	n, err := pagetree.NumPages(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoPages
	}
	out := make([]Box, n)
	for i := 0; i < n; i++ {
		dict, err := pagetree.GetPage(r, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		rect, err := pdf.GetRectangle(r, dict["CropBox"])
		if err != nil || rect == nil {
			rect, err = pdf.GetRectangle(r, dict["MediaBox"])
		}
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		box := Box{W: A4.W, H: A4.H}
		if rect != nil {
			box = Box{X: rect.LLx, Y: rect.LLy, W: rect.URx - rect.LLx, H: rect.URy - rect.LLy}
		}
		if rot, err := pdf.GetInteger(r, dict["Rotate"]); err == nil && (rot%180+180)%180 == 90 {
			box.W, box.H = box.H, box.W
		}
		out[i] = box
	}
	return out, nil
}

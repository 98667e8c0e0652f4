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
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"path"
	"strings"
)

// BundleReader 页面包阅读器
// 页面包为zip压缩包, 包含 Bundle.xml 清单与逐页图像
type BundleReader struct {
	Zip      *zip.Reader
	Manifest *BundleManifest
}

// NewBundleReader 从流创建页面包阅读器
// 入参: r IO读取器, size 数据大小
// 返回: *BundleReader 阅读器实例, error 错误信息
func NewBundleReader(r io.ReaderAt, size int64) (*BundleReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	br := &BundleReader{Zip: zr}
	data, err := br.readFile(bundleManifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", bundleManifestName, err)
	}
	var m BundleManifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", bundleManifestName, err)
	}
	if len(m.Pages.Page) == 0 {
		return nil, fmt.Errorf("%w: empty bundle", ErrNoPages)
	}
	br.Manifest = &m
	return br, nil
}

// readFile 读取压缩包内的文件
// 入参: name 文件名
// 返回: []byte 文件内容, error 错误信息
func (r *BundleReader) readFile(name string) ([]byte, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	for _, f := range r.Zip.File {
		if f.Name == name {
			return readZipFile(f)
		}
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

// readZipFile 读取zip文件内容
// 入参: f zip文件对象
// 返回: []byte 文件内容, error 错误信息
func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// PageCount 页面数量
func (r *BundleReader) PageCount() int {
	return len(r.Manifest.Pages.Page)
}

// PageBox 获取页面物理区域
// 入参: index 页面索引
// 返回: Box 区域(磅), error 错误信息
func (r *BundleReader) PageBox(index int) (Box, error) {
	if index < 0 || index >= r.PageCount() {
		return Box{}, fmt.Errorf("%w: bundle page %d", ErrPageOutOfRange, index)
	}
	page := r.Manifest.Pages.Page[index]
	if page.PhysicalBox != "" {
		return ParseBox(page.PhysicalBox)
	}
	data, err := r.readFile(page.BaseLoc)
	if err != nil {
		return Box{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Box{}, err
	}
	return imageBox(cfg.Width, cfg.Height), nil
}

// PageImage 解码页面图像
// 入参: index 页面索引
// 返回: image.Image 页面图像, error 错误信息
func (r *BundleReader) PageImage(index int) (image.Image, error) {
	if index < 0 || index >= r.PageCount() {
		return nil, fmt.Errorf("%w: bundle page %d", ErrPageOutOfRange, index)
	}
	data, err := r.readFile(r.Manifest.Pages.Page[index].BaseLoc)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// BundlePageData 写入页面包的单页数据
type BundlePageData struct {
	Name string
	Data []byte
	Box  *Box
}

// WriteBundle 写出页面包
// 入参: w 输出流, title 标题, pages 页面数据
// 返回: error 错误信息
func WriteBundle(w io.Writer, title string, pages []BundlePageData) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	zw := zip.NewWriter(w)
	m := BundleManifest{Version: "1.0", Title: title}
	for i, p := range pages {
		loc := path.Join("Pages", fmt.Sprintf("%d_%s", i+1, path.Base(p.Name)))
		bp := BundlePage{ID: fmt.Sprint(i + 1), BaseLoc: loc}
		if p.Box != nil {
			bp.PhysicalBox = fmt.Sprintf("%g %g %g %g", p.Box.X, p.Box.Y, p.Box.W, p.Box.H)
		}
		m.Pages.Page = append(m.Pages.Page, bp)
		f, err := zw.Create(loc)
		if err != nil {
			return err
		}
		if _, err := f.Write(p.Data); err != nil {
			return err
		}
	}
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	f, err := zw.Create(bundleManifestName)
	if err != nil {
		return err
	}
	if _, err := f.Write(append([]byte(xml.Header), data...)); err != nil {
		return err
	}
	return zw.Close()
}

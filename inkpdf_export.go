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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// PageExportData 导出用的单页数据, 不持久化
type PageExportData struct {
	Raster   image.Image
	Drawing  Drawing
	PageSize Size
}

// SubDocument 作业导出中的子文档
// Source 为 nil 表示源文档不可用, 此时 PageCount 为已知的原始页数
type SubDocument struct {
	Ordinal   int
	Source    *Source
	PageCount int
}

// DefaultCreationTime 导出PDF的默认创建时间
var DefaultCreationTime = time.Unix(0, 0).UTC()

// creationDate PDF信息字典中的创建时间
var creationDate = regexp.MustCompile(`/CreationDate\(D:\d{14}(Z|[+-]\d{4})\)`)

// Compositor 导出合成器
// 只读取存储快照, 从不修改存储
type Compositor struct {
	store    *Store
	renderer *Renderer
	created  time.Time
}

// pinCreationDate 将PDF创建时间替换为固定时间
// 替换保持字节长度不变, 交叉引用表的偏移无需调整
// 入参: data PDF数据, t 创建时间
// 返回: []byte PDF数据, error 错误信息
func pinCreationDate(data []byte, t time.Time) ([]byte, error) {
	loc := creationDate.FindSubmatchIndex(data)
	if loc == nil {
		return data, nil
	}
	offset := 0
	if zone := data[loc[2]:loc[3]]; zone[0] != 'Z' {
		hh, _ := strconv.Atoi(string(zone[1:3]))
		mm, _ := strconv.Atoi(string(zone[3:5]))
		offset = (hh*60 + mm) * 60
		if zone[0] == '-' {
			offset = -offset
		}
	}
	pinned := "/CreationDate(D:" + t.In(time.FixedZone("", offset)).Format("20060102150405Z0700") + ")"
	if len(pinned) != loc[1]-loc[0] {
		return nil, fmt.Errorf("creation time %v out of range", t)
	}
	copy(data[loc[0]:loc[1]], pinned)
	return data, nil
}

// entrySize 结构位置k的页面尺寸
// 空白页取前一个原始页的尺寸, 其次取后一个原始页, 都没有时为A4
func entrySize(entries []PageEntry, src *Source, k int) Size {
	size := func(j int) (Size, bool) {
		idx, ok := entries[j].Source()
		if !ok {
			return Size{}, false
		}
		sz, ok := src.PageSize(idx)
		return sz, ok && !sz.IsZero()
	}
	if sz, ok := size(k); ok {
		return sz
	}
	for j := k - 1; j >= 0; j-- {
		if sz, ok := size(j); ok {
			return sz
		}
	}
	for j := k + 1; j < len(entries); j++ {
		if sz, ok := size(j); ok {
			return sz
		}
	}
	return A4
}

// pageSize 导出页面尺寸(磅), 有光栅图时为光栅尺寸除以缩放比例
func (c *Compositor) pageSize(page PageExportData) Size {
	if page.Raster != nil {
		b := page.Raster.Bounds()
		return Size{W: float64(b.Dx()) / c.renderer.Scale, H: float64(b.Dy()) / c.renderer.Scale}
	}
	if page.PageSize.IsZero() {
		return A4
	}
	return page.PageSize
}

// composePage 合成单页画布
// 绘制顺序: 白色背景, 源页面光栅图, 浅色模式笔迹
func (c *Compositor) composePage(page PageExportData) *canvas.Canvas {
	wmm, hmm := c.pageSize(page).mm()
	cv := canvas.New(wmm, hmm)
	ctx := canvas.NewContext(cv)
	ctx.SetFillColor(canvas.White)
	ctx.DrawPath(0, 0, canvas.Rectangle(wmm, hmm))
	if page.Raster != nil {
		dpmm := float64(page.Raster.Bounds().Dx()) / wmm
		ctx.DrawImage(0, 0, page.Raster, canvas.DPMM(dpmm))
	}
	drawInk(ctx, page.Drawing, canvasToPage(c.renderer.Scale, hmm), Light)
	return cv
}

// GeneratePDF 生成多页PDF
// 入参: ctx 上下文, pages 页面数据, w 输出流
// 返回: error 错误信息
func (c *Compositor) GeneratePDF(ctx context.Context, pages []PageExportData, w io.Writer) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	var buf bytes.Buffer
	var p *pdf.PDF
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		cv := c.composePage(page)
		if i == 0 {
			p = pdf.New(&buf, cv.W, cv.H, nil)
		} else {
			p.NewPage(cv.W, cv.H)
		}
		cv.RenderTo(p)
	}
	if err := p.Close(); err != nil {
		return err
	}
	data, err := pinCreationDate(buf.Bytes(), c.created)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// PagesForPlan 按页面计划构造导出数据
// 原始页渲染为浅色光栅图, 空白页无光栅图
// 入参: ctx 上下文, src 源文档, plan 页面计划, drawings 笔迹列表
// 返回: []PageExportData 页面数据, error 错误信息
func (c *Compositor) PagesForPlan(ctx context.Context, src *Source, plan PagePlan, drawings []Drawing) ([]PageExportData, error) {
	entries := plan.Entries()
	drawings = Reconcile(drawings, len(entries))
	var indexes []int
	seen := make(map[int]int)
	for _, e := range entries {
		if idx, ok := e.Source(); ok {
			if _, dup := seen[idx]; !dup {
				seen[idx] = len(indexes)
				indexes = append(indexes, idx)
			}
		}
	}
	var rasters []image.Image
	if src != nil && len(indexes) > 0 {
		var err error
		rasters, err = c.renderer.RenderPages(ctx, src, indexes, Light)
		if err != nil {
			return nil, err
		}
	}
	out := make([]PageExportData, len(entries))
	for k, e := range entries {
		out[k] = PageExportData{Drawing: drawings[k], PageSize: entrySize(entries, src, k)}
		if idx, ok := e.Source(); ok && rasters != nil {
			out[k].Raster = rasters[seen[idx]]
		}
	}
	return out, nil
}

// ExportDocument 导出单个文档
// 源文档不可用时按保存的页面结构导出空白页和笔迹, 没有页面结构时返回 ErrSourceUnavailable
// 入参: ctx 上下文, id 文档标识, src 源文档, w 输出流
// 返回: error 错误信息
func (c *Compositor) ExportDocument(ctx context.Context, id DocumentID, src *Source, w io.Writer) error {
	pageCount := 0
	if src != nil {
		pageCount = src.PageCount
	}
	snap, err := c.store.Snapshot(ctx, id, pageCount)
	if err != nil {
		return err
	}
	if src == nil {
		if _, ok := snap.Plan.(Structured); !ok {
			return fmt.Errorf("document %s: %w", id, ErrSourceUnavailable)
		}
		Logger("export").WithField("document", id).Warn("source unavailable, exporting blank pages")
	}
	pages, err := c.PagesForPlan(ctx, src, snap.Plan, snap.Drawings)
	if err != nil {
		return err
	}
	if err := c.GeneratePDF(ctx, pages, w); err != nil {
		return err
	}
	Logger("export").WithField("document", id).Infof("exported %d pages", len(pages))
	return nil
}

// ExportSession 导出编辑会话的当前内容, 包含未保存的笔迹
func (c *Compositor) ExportSession(ctx context.Context, s *CanvasSession, w io.Writer) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	pages, err := c.PagesForPlan(ctx, s.Source(), snap.Plan, snap.Drawings)
	if err != nil {
		return err
	}
	return c.GeneratePDF(ctx, pages, w)
}

// GenerateAssignmentPDF 导出作业, 按顺序拼接全部子文档
// 子文档逐个处理, 无页面结构时按原始页导出且无笔迹
// 源文档不可用的子文档导出为空白页, 页数未知时导出一个占位页
// 入参: ctx 上下文, parent 父文档标识, subs 子文档列表, w 输出流
// 返回: error 错误信息
func (c *Compositor) GenerateAssignmentPDF(ctx context.Context, parent DocumentID, subs []SubDocument, w io.Writer) error {
	log := Logger("export").WithField("assignment", parent)
	var all []PageExportData
	for _, sub := range subs {
		id := SubDocumentKey{Parent: parent, Ordinal: sub.Ordinal}.ID()
		pageCount := sub.PageCount
		if sub.Source != nil {
			pageCount = sub.Source.PageCount
		}
		snap, err := c.store.Snapshot(ctx, id, pageCount)
		if err != nil {
			return fmt.Errorf("sub-document %d: %w", sub.Ordinal, err)
		}
		if sub.Source == nil {
			entry := log.WithField("ordinal", sub.Ordinal)
			_, structured := snap.Plan.(Structured)
			switch {
			case structured:
				entry.Warn("source unavailable, exporting blank pages")
			case pageCount > 0:
				entry.Warn("source unavailable and no page structure, exporting blank pages")
			default:
				snap.Plan, snap.Drawings = Unedited{PageCount: 1}, make([]Drawing, 1)
				entry.Warn("source unavailable and page count unknown, exporting a placeholder page")
			}
		}
		pages, err := c.PagesForPlan(ctx, sub.Source, snap.Plan, snap.Drawings)
		if err != nil {
			return fmt.Errorf("sub-document %d: %w", sub.Ordinal, err)
		}
		all = append(all, pages...)
	}
	if err := c.GeneratePDF(ctx, all, w); err != nil {
		return err
	}
	log.Infof("exported %d sub-documents, %d pages", len(subs), len(all))
	return nil
}

// ExportFile 导出到文件
// 先写入同目录临时文件, 成功后重命名, 失败或取消时删除临时文件
// 入参: ctx 上下文, path 目标路径, fn 写入函数
// 返回: error 错误信息
func ExportFile(ctx context.Context, path string, fn func(w io.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()
	bw := bufio.NewWriter(f)
	if err = fn(bw); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

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
	"image/color"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultScale 画布像素与磅的固定比例
const DefaultScale = 2.0

// Renderer 渲染器实现
// 无共享可变状态, 可并发使用
type Renderer struct {
	Scale       float64
	DarkTone    color.NRGBA
	Concurrency int
	rasterizer  Rasterizer
}

// RendererOption 渲染器配置选项
type RendererOption func(*Renderer)

// CanvasSize 源页面的画布像素尺寸
// 入参: src 源文档, index 源页面索引
// 返回: image.Point 像素尺寸, bool 是否有效
func (r *Renderer) CanvasSize(src *Source, index int) (image.Point, bool) {
	size, ok := src.PageSize(index)
	if !ok || size.IsZero() {
		return image.Point{}, false
	}
	w, h := size.Pixels(r.Scale)
	return image.Pt(w, h), true
}

// RenderPage 渲染源页面为光栅图
// 失败时返回 nil 与 ErrSourceUnavailable, 调用方按无背景处理
// 入参: ctx 上下文, src 源文档, index 源页面索引, mode 配色模式
// 返回: image.Image 页面图像, error 错误信息
func (r *Renderer) RenderPage(ctx context.Context, src *Source, index int, mode ColorMode) (image.Image, error) {
	size, ok := r.CanvasSize(src, index)
	if !ok {
		return nil, fmt.Errorf("%w: page %d out of range", ErrSourceUnavailable, index)
	}
	img, err := r.decodePage(ctx, src, index)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrSourceUnavailable, index, err)
	}
	out := flatten(img, size)
	if mode == Dark {
		return remapImage(out, r.DarkTone), nil
	}
	return out, nil
}

// decodePage 按源类型解码页面
func (r *Renderer) decodePage(ctx context.Context, src *Source, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch src.Kind {
	case SourcePDF:
		if r.rasterizer == nil {
			return nil, fmt.Errorf("no pdf rasterizer configured")
		}
		return r.rasterizer.Rasterize(ctx, src.Data, index, 72*r.Scale)
	case SourceImage:
		img, _, err := image.Decode(bytes.NewReader(src.Data))
		return img, err
	case SourceBundle:
		if src.bundle == nil {
			return nil, fmt.Errorf("bundle not loaded")
		}
		return src.bundle.PageImage(index)
	}
	return nil, fmt.Errorf("unknown source kind %v", src.Kind)
}

// flatten 重采样到目标尺寸并合成到白色底上
func flatten(img image.Image, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rectangle{Max: size})
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if img.Bounds().Size() == size {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// RenderPages 并发渲染多个源页面
// 单页失败时对应位置为 nil 并记录警告
// 入参: ctx 上下文, src 源文档, indexes 源页面索引, mode 配色模式
// 返回: []image.Image 页面图像, error 上下文错误
func (r *Renderer) RenderPages(ctx context.Context, src *Source, indexes []int, mode ColorMode) ([]image.Image, error) {
	out := make([]image.Image, len(indexes))
	g, gctx := errgroup.WithContext(ctx)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i, idx := range indexes {
		g.Go(func() error {
			img, err := r.RenderPage(gctx, src, idx, mode)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				Logger("renderer").WithError(err).WithField("page", idx).Warn("render failed, page exported without background")
				return nil
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderDrawing 光栅化笔迹, 背景透明
// 入参: d 笔迹, size 画布像素尺寸, mode 配色模式
// 返回: image.Image 笔迹图像
func (r *Renderer) RenderDrawing(d Drawing, size image.Point, mode ColorMode) image.Image {
	wmm := float64(size.X) / r.Scale * mmPerPt
	hmm := float64(size.Y) / r.Scale * mmPerPt
	c := canvas.New(wmm, hmm)
	ctx := canvas.NewContext(c)
	drawInk(ctx, d, canvasToPage(r.Scale, hmm), mode)
	return rasterizer.Draw(c, canvas.DPMM(r.Scale/mmPerPt), canvas.DefaultColorSpace)
}

// RenderComposite 渲染页面背景与笔迹
// 背景不可用时使用配色模式对应的纯色底
// 入参: ctx 上下文, src 源文档, index 源页面索引(空白页为-1), size 画布像素尺寸, d 笔迹, mode 配色模式
// 返回: image.Image 合成图像
func (r *Renderer) RenderComposite(ctx context.Context, src *Source, index int, size image.Point, d Drawing, mode ColorMode) image.Image {
	dst := image.NewNRGBA(image.Rectangle{Max: size})
	var paper color.Color = color.White
	if mode == Dark {
		paper = r.DarkTone
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)
	if index >= 0 {
		if bg, err := r.RenderPage(ctx, src, index, mode); err == nil {
			draw.CatmullRom.Scale(dst, dst.Bounds(), bg, bg.Bounds(), draw.Src, nil)
		} else {
			Logger("renderer").WithError(err).Warn("background unavailable")
		}
	}
	ink := r.RenderDrawing(d, size, mode)
	draw.Draw(dst, dst.Bounds(), ink, ink.Bounds().Min, draw.Over)
	return dst
}

// drawInk 绘制笔迹到画布上下文
// 入参: ctx 画布上下文, d 笔迹, m 画布像素到画布毫米的变换, mode 配色模式
func drawInk(ctx *canvas.Context, d Drawing, m Matrix, mode ColorMode) {
	k := m.Scale()
	for _, s := range d.Strokes {
		if len(s.Points) == 0 {
			continue
		}
		col := strokeColor(s, mode)
		width := math.Max(s.Width, 0.5) * k
		ctx.Push()
		if len(s.Points) == 1 {
			x, y := m.Transform(s.Points[0].X, s.Points[0].Y)
			ctx.SetStrokeColor(canvas.Transparent)
			ctx.SetFillColor(col)
			ctx.DrawPath(x, y, canvas.Circle(width/2))
			ctx.Pop()
			continue
		}
		p := &canvas.Path{}
		x, y := m.Transform(s.Points[0].X, s.Points[0].Y)
		p.MoveTo(x, y)
		for _, pt := range s.Points[1:] {
			x, y = m.Transform(pt.X, pt.Y)
			p.LineTo(x, y)
		}
		ctx.SetFillColor(canvas.Transparent)
		ctx.SetStrokeColor(col)
		ctx.SetStrokeWidth(width)
		if s.Tool == InkHighlighter {
			ctx.SetStrokeCapper(canvas.ButtCap)
			ctx.SetStrokeJoiner(canvas.BevelJoin)
		} else {
			ctx.SetStrokeCapper(canvas.RoundCap)
			ctx.SetStrokeJoiner(canvas.RoundJoin)
		}
		ctx.DrawPath(0, 0, p)
		ctx.Pop()
	}
}

// strokeColor 笔画最终颜色, 荧光笔与铅笔带透明度
func strokeColor(s Stroke, mode ColorMode) color.NRGBA {
	c := InkColor(s.Color, mode)
	switch s.Tool {
	case InkHighlighter:
		c.A = uint8(float64(c.A) * 0.35)
	case InkPencil:
		c.A = uint8(float64(c.A) * 0.85)
	}
	return c
}

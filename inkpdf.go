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

// Package inkpdf 手写批注的页面结构、笔迹持久化与PDF合成导出
package inkpdf

import (
	"image/color"
	"runtime"
	"time"
)

// NewRenderer 创建渲染器
// 入参: opts 渲染选项
// 返回: *Renderer 渲染器实例
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		Scale:       DefaultScale,
		DarkTone:    DefaultDarkTone,
		Concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithScale 设置画布缩放比例
// 入参: scale 每磅像素数
// 返回: RendererOption 渲染选项
func WithScale(scale float64) RendererOption {
	return func(r *Renderer) {
		if scale > 0 {
			r.Scale = scale
		}
	}
}

// WithDarkTone 设置深色模式背景色
// 入参: c 背景色
// 返回: RendererOption 渲染选项
func WithDarkTone(c color.Color) RendererOption {
	return func(r *Renderer) {
		r.DarkTone = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
}

// WithRasterizer 设置PDF光栅化实现
// 入参: rz 光栅化实现
// 返回: RendererOption 渲染选项
func WithRasterizer(rz Rasterizer) RendererOption {
	return func(r *Renderer) {
		r.rasterizer = rz
	}
}

// WithConcurrency 设置单文档并发渲染页数
// 入参: n 并发数
// 返回: RendererOption 渲染选项
func WithConcurrency(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.Concurrency = n
		}
	}
}

// NewCompositor 创建导出合成器
// 入参: store 存储, renderer 渲染器, opts 合成选项
// 返回: *Compositor 合成器实例
func NewCompositor(store *Store, renderer *Renderer, opts ...CompositorOption) *Compositor {
	c := &Compositor{store: store, renderer: renderer, created: DefaultCreationTime}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompositorOption 合成器配置选项
type CompositorOption func(*Compositor)

// WithCreationTime 设置导出PDF的创建时间, 相同输入总是得到相同的字节
// 入参: t 创建时间
// 返回: CompositorOption 合成选项
func WithCreationTime(t time.Time) CompositorOption {
	return func(c *Compositor) {
		c.created = t
	}
}

// SessionOption 会话配置选项
type SessionOption func(*CanvasSession)

// WithDebounce 设置笔迹保存防抖间隔
// 入参: d 间隔
// 返回: SessionOption 会话选项
func WithDebounce(d time.Duration) SessionOption {
	return func(s *CanvasSession) {
		s.debounce = d
	}
}

// WithColorMode 设置会话初始配色模式
// 入参: mode 配色模式
// 返回: SessionOption 会话选项
func WithColorMode(mode ColorMode) SessionOption {
	return func(s *CanvasSession) {
		s.mode = mode
	}
}

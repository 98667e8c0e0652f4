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
	"fmt"
	"math"
	"strconv"
	"strings"
)

// mmPerPt 每磅毫米数, canvas 以毫米为单位
const mmPerPt = 25.4 / 72

// A4 默认页面尺寸, 单位磅
var A4 = Size{W: 595.28, H: 841.89}

// Size 页面尺寸, 单位磅
type Size struct {
	W, H float64
}

// IsZero 是否为零尺寸
func (s Size) IsZero() bool {
	return s.W <= 0 || s.H <= 0
}

// Pixels 按缩放比例换算像素尺寸
// 入参: scale 缩放比例
// 返回: int 宽度像素, int 高度像素
func (s Size) Pixels(scale float64) (int, int) {
	return int(math.Round(s.W * scale)), int(math.Round(s.H * scale))
}

// mm 换算为毫米
func (s Size) mm() (float64, float64) {
	return s.W * mmPerPt, s.H * mmPerPt
}

// Box 矩形区域
type Box struct {
	X, Y, W, H float64
}

// Size 矩形尺寸
func (b Box) Size() Size {
	return Size{W: b.W, H: b.H}
}

// Intersects 是否与另一矩形相交
func (b Box) Intersects(o Box) bool {
	return b.X < o.X+o.W && o.X < b.X+b.W && b.Y < o.Y+o.H && o.Y < b.Y+b.H
}

// Normalize 将负宽高转换为正值
func (b Box) Normalize() Box {
	if b.W < 0 {
		b.X, b.W = b.X+b.W, -b.W
	}
	if b.H < 0 {
		b.Y, b.H = b.Y+b.H, -b.H
	}
	return b
}

// ParseBox 解析Box字符串
// 入参: s 字符串, 格式 "x y w h"
// 返回: Box 矩形对象, error 错误信息
func ParseBox(s string) (Box, error) {
	v := parseFloats(s)
	if len(v) != 4 {
		return Box{}, fmt.Errorf("invalid box %q", s)
	}
	return Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// Matrix 2D仿射变换矩阵
type Matrix struct {
	a, b, c, d, e, f float64
}

// canvasToPage 画布像素到页面毫米的变换, Y轴翻转
// 入参: scale 缩放比例, pageH 页面高度(毫米)
// 返回: Matrix 变换矩阵
func canvasToPage(scale, pageH float64) Matrix {
	k := mmPerPt / scale
	return Matrix{a: k, d: -k, f: pageH}
}

// Transform 应用变换矩阵
// 入参: x X坐标, y Y坐标
// 返回: float64 变换后X, float64 变换后Y
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.e, m.b*x + m.d*y + m.f
}

// Scale 平均缩放比例, 用于线宽换算
func (m Matrix) Scale() float64 {
	return math.Sqrt(math.Abs(m.a*m.d - m.b*m.c))
}

// parseFloats 解析空白或逗号分隔的浮点数数组
func parseFloats(s string) []float64 {
	parts := strings.Fields(strings.ReplaceAll(s, ",", " "))
	result := make([]float64, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.ParseFloat(p, 64); err == nil {
			result = append(result, v)
		}
	}
	return result
}

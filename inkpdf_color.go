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
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"
)

// ColorMode 显示配色模式
type ColorMode int

const (
	Light ColorMode = iota
	Dark
)

// String 模式名称
func (m ColorMode) String() string {
	if m == Dark {
		return "dark"
	}
	return "light"
}

// ParseColorMode 解析模式名称
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "light":
		return Light, nil
	case "dark":
		return Dark, nil
	}
	return Light, fmt.Errorf("unknown color mode %q", s)
}

// DefaultDarkTone 深色模式背景色 #1C1C1E
var DefaultDarkTone = color.NRGBA{R: 0x1c, G: 0x1c, B: 0x1e, A: 0xff}

// ParseColor 解析颜色字符串
// 入参: val 颜色值, 支持 "#RRGGBB" 与 "R G B"
// 返回: color.NRGBA 颜色对象, error 错误信息
func ParseColor(val string) (color.NRGBA, error) {
	val = strings.TrimSpace(val)
	if strings.HasPrefix(val, "#") {
		hex := val[1:]
		if len(hex) != 6 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", val)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", val)
		}
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	parts := strings.Fields(val)
	if len(parts) != 3 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", val)
	}
	var rgb [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color %q", val)
		}
		rgb[i] = uint8(n)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}

// luminance 相对亮度, 取值 0..1
func luminance(c color.NRGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// lerp8 线性插值
func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// RemapDark 深色模式两点映射
// 亮度0映射为白色, 亮度1映射为 tone, 中间线性插值, 透明度不变
// 入参: c 原始颜色, tone 深色背景色
// 返回: color.NRGBA 映射后颜色
func RemapDark(c color.Color, tone color.NRGBA) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	t := luminance(n)
	return color.NRGBA{
		R: lerp8(255, tone.R, t),
		G: lerp8(255, tone.G, t),
		B: lerp8(255, tone.B, t),
		A: n.A,
	}
}

// remapImage 对整幅图像应用深色映射
func remapImage(src image.Image, tone color.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	for i := 0; i < len(dst.Pix); i += 4 {
		c := RemapDark(color.NRGBA{R: dst.Pix[i], G: dst.Pix[i+1], B: dst.Pix[i+2], A: dst.Pix[i+3]}, tone)
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = c.R, c.G, c.B
	}
	return dst
}

// InkColor 笔画显示颜色
// 深色模式下保持色相, 反转HSL亮度
// 入参: c 笔画颜色, mode 配色模式
// 返回: color.NRGBA 显示颜色
func InkColor(c color.NRGBA, mode ColorMode) color.NRGBA {
	if mode != Dark {
		return c
	}
	h, s, l := rgbToHSL(c)
	r, g, b := hslToRGB(h, s, 1-l)
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}

// rgbToHSL RGB转HSL, 各分量取值 0..1
func rgbToHSL(c color.NRGBA) (float64, float64, float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxV := math.Max(r, math.Max(g, b))
	minV := math.Min(r, math.Min(g, b))
	l := (maxV + minV) / 2
	if maxV == minV {
		return 0, 0, l
	}
	d := maxV - minV
	s := d / (1 - math.Abs(2*l-1))
	var h float64
	switch maxV {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h, s, l
}

// hslToRGB HSL转RGB
func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h*6, 2)-1))
	m := l - c/2
	var r, g, b float64
	switch int(h * 6) {
	case 0:
		r, g, b = c, x, 0
	case 1:
		r, g, b = x, c, 0
	case 2:
		r, g, b = 0, c, x
	case 3:
		r, g, b = 0, x, c
	case 4:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to8 := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v+m)) * 255))
	}
	return to8(r), to8(g), to8(b)
}

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
	"fmt"
	"image/color"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// inkFormatVersion 笔迹数据格式版本
const inkFormatVersion byte = 1

// inkMagic 笔迹数据头
var inkMagic = []byte("INK")

// InkTool 笔画工具
type InkTool int

const (
	InkPen InkTool = iota
	InkPencil
	InkHighlighter
)

// Point 笔画采样点, 画布像素坐标, 原点在左上角
type Point struct {
	X        float64 `cbor:"1,keyasint"`
	Y        float64 `cbor:"2,keyasint"`
	Pressure float64 `cbor:"3,keyasint,omitempty"`
}

// Stroke 单条笔画
type Stroke struct {
	Tool   InkTool     `cbor:"1,keyasint"`
	Color  color.NRGBA `cbor:"2,keyasint"`
	Width  float64     `cbor:"3,keyasint"`
	Points []Point     `cbor:"4,keyasint"`
}

// Bounds 笔画外接矩形, 包含线宽
// 返回: Box 外接矩形
func (s Stroke) Bounds() Box {
	if len(s.Points) == 0 {
		return Box{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range s.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	h := s.Width / 2
	return Box{X: minX - h, Y: minY - h, W: maxX - minX + s.Width, H: maxY - minY + s.Width}
}

// Clone 深拷贝
func (s Stroke) Clone() Stroke {
	s.Points = append([]Point(nil), s.Points...)
	return s
}

// hits 判断点是否落在笔画附近
func (s Stroke) hits(p Point, radius float64) bool {
	r := radius + s.Width/2
	for i, q := range s.Points {
		if math.Hypot(q.X-p.X, q.Y-p.Y) <= r {
			return true
		}
		if i > 0 && segmentDistance(s.Points[i-1], q, p) <= r {
			return true
		}
	}
	return false
}

// segmentDistance 点到线段的距离
func segmentDistance(a, b, p Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// Drawing 单页笔迹
type Drawing struct {
	Strokes []Stroke `cbor:"1,keyasint"`
}

// IsEmpty 是否为空
func (d Drawing) IsEmpty() bool {
	return len(d.Strokes) == 0
}

// Clone 深拷贝
func (d Drawing) Clone() Drawing {
	if d.Strokes == nil {
		return Drawing{}
	}
	strokes := make([]Stroke, len(d.Strokes))
	for i, s := range d.Strokes {
		strokes[i] = s.Clone()
	}
	return Drawing{Strokes: strokes}
}

// cloneDrawings 深拷贝笔迹列表
func cloneDrawings(ds []Drawing) []Drawing {
	out := make([]Drawing, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}

// Reconcile 将笔迹列表补齐或截断到指定页数
// 入参: drawings 笔迹列表, n 页数
// 返回: []Drawing 长度为n的笔迹列表
func Reconcile(drawings []Drawing, n int) []Drawing {
	out := make([]Drawing, n)
	copy(out, drawings)
	return out
}

// InkCodec 笔迹编解码
// 数据格式: "INK" + 版本 + 压缩算法 + CBOR负载
type InkCodec struct {
	Compression Compression
	enc         cbor.EncMode
}

// NewInkCodec 创建笔迹编解码器
// 入参: c 压缩算法
// 返回: *InkCodec 编解码器, error 错误信息
func NewInkCodec(c Compression) (*InkCodec, error) {
	if _, err := c.compressor(); err != nil {
		return nil, err
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &InkCodec{Compression: c, enc: enc}, nil
}

// Encode 编码笔迹
func (c *InkCodec) Encode(d Drawing) ([]byte, error) {
	payload, err := c.enc.Marshal(d)
	if err != nil {
		return nil, err
	}
	comp, err := c.Compression.compressor()
	if err != nil {
		return nil, err
	}
	body, err := comp.Encode(payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(inkMagic)+2+len(body))
	out = append(out, inkMagic...)
	out = append(out, inkFormatVersion, byte(c.Compression))
	return append(out, body...), nil
}

// Decode 解码笔迹, 与写入时的压缩算法无关
func (c *InkCodec) Decode(data []byte) (Drawing, error) {
	if len(data) < len(inkMagic)+2 || !bytes.Equal(data[:len(inkMagic)], inkMagic) {
		return Drawing{}, fmt.Errorf("%w: bad header", ErrUnsupportedInk)
	}
	version := data[len(inkMagic)]
	if version == 0 || version > inkFormatVersion {
		return Drawing{}, fmt.Errorf("%w: version %d", ErrUnsupportedInk, version)
	}
	comp, err := Compression(data[len(inkMagic)+1]).compressor()
	if err != nil {
		return Drawing{}, err
	}
	payload, err := comp.Decode(data[len(inkMagic)+2:])
	if err != nil {
		return Drawing{}, fmt.Errorf("%w: %v", ErrUnsupportedInk, err)
	}
	var d Drawing
	if err := cbor.Unmarshal(payload, &d); err != nil {
		return Drawing{}, fmt.Errorf("%w: %v", ErrUnsupportedInk, err)
	}
	if len(d.Strokes) == 0 {
		d.Strokes = nil
	}
	return d, nil
}

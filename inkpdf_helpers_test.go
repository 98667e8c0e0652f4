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
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// flakyBackend 可注入故障并统计写入次数的后端
type flakyBackend struct {
	Backend
	failWrites atomic.Bool
	puts       atomic.Int64
	applies    atomic.Int64
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{Backend: NewMemoryBackend()}
}

func (f *flakyBackend) PutBytes(ctx context.Context, key string, value []byte) error {
	if f.failWrites.Load() {
		return errInjected
	}
	f.puts.Add(1)
	return f.Backend.PutBytes(ctx, key, value)
}

func (f *flakyBackend) Apply(ctx context.Context, batch *Batch) error {
	if f.failWrites.Load() {
		return errInjected
	}
	f.applies.Add(1)
	return f.Backend.Apply(ctx, batch)
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	store, err := NewStore(backend)
	require.NoError(t, err)
	return store
}

// solidPNG 生成纯色PNG
func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// imageSource 单页图像源
func imageSource(t *testing.T, w, h int) *Source {
	t.Helper()
	src, err := InspectSource("page.png", solidPNG(t, w, h, color.Gray{Y: 230}))
	require.NoError(t, err)
	return src
}

// bundleSource 多页页面包源, 每页尺寸以磅为单位
func bundleSource(t *testing.T, sizes ...Size) *Source {
	t.Helper()
	pages := make([]BundlePageData, len(sizes))
	for i, sz := range sizes {
		w, h := sz.Pixels(ImageDPI / 72)
		box := Box{W: sz.W, H: sz.H}
		pages[i] = BundlePageData{Name: "page.png", Data: solidPNG(t, w, h, color.Gray{Y: 200}), Box: &box}
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBundle(&buf, "test", pages))
	src, err := InspectSource("test.bundle", buf.Bytes())
	require.NoError(t, err)
	return src
}

func line(c color.NRGBA, pts ...Point) Stroke {
	return Stroke{Tool: InkPen, Color: c, Width: 4, Points: pts}
}

var black = color.NRGBA{A: 255}

func drawingWith(n int) Drawing {
	var d Drawing
	for i := 0; i < n; i++ {
		x := float64(10 + i*20)
		d.Strokes = append(d.Strokes, line(black, Point{X: x, Y: 10}, Point{X: x, Y: 40, Pressure: 0.5}))
	}
	return d
}

func newID() DocumentID {
	return uuid.New()
}

func keyCount(t *testing.T, b Backend) int {
	t.Helper()
	keys, err := b.ListKeys(context.Background(), "")
	require.NoError(t, err)
	return len(keys)
}

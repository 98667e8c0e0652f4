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
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDrawing() Drawing {
	return Drawing{Strokes: []Stroke{
		{Tool: InkPen, Color: color.NRGBA{R: 200, A: 255}, Width: 3, Points: []Point{{X: 1, Y: 2, Pressure: 0.5}, {X: 30.25, Y: 40}}},
		{Tool: InkHighlighter, Color: color.NRGBA{R: 255, G: 230, A: 255}, Width: 12, Points: []Point{{X: 5, Y: 5}}},
		{Tool: InkPencil, Color: color.NRGBA{G: 80, B: 160, A: 200}, Width: 1.5, Points: []Point{{X: 0, Y: 0}, {X: 8, Y: 8}, {X: 16, Y: 0}}},
	}}
}

func TestInkCodec_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGZip, CompressionLZ4, CompressionBrotli} {
		t.Run(c.String(), func(t *testing.T) {
			codec, err := NewInkCodec(c)
			require.NoError(t, err)
			data, err := codec.Encode(sampleDrawing())
			require.NoError(t, err)
			assert.Equal(t, "INK", string(data[:3]))
			assert.Equal(t, byte(c), data[4])

			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, sampleDrawing(), got)

			empty, err := codec.Encode(Drawing{})
			require.NoError(t, err)
			got, err = codec.Decode(empty)
			require.NoError(t, err)
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestInkCodec_DecodeAnyCompression(t *testing.T) {
	writer, err := NewInkCodec(CompressionBrotli)
	require.NoError(t, err)
	reader, err := NewInkCodec(CompressionNone)
	require.NoError(t, err)
	data, err := writer.Encode(sampleDrawing())
	require.NoError(t, err)
	got, err := reader.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sampleDrawing(), got)
}

func TestInkCodec_Rejects(t *testing.T) {
	codec, err := NewInkCodec(CompressionNone)
	require.NoError(t, err)
	tests := map[string][]byte{
		"short":       []byte("IN"),
		"bad magic":   []byte("PNG\x01\x00"),
		"version 0":   []byte("INK\x00\x00"),
		"future":      []byte("INK\x09\x00"),
		"bad payload": []byte("INK\x01\x00\xff\xff"),
	}
	for name, data := range tests {
		_, err := codec.Decode(data)
		assert.ErrorIs(t, err, ErrUnsupportedInk, name)
	}
	_, err = NewInkCodec(Compression(42))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGZip, CompressionLZ4, CompressionBrotli} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("zstd")
	assert.Error(t, err)
}

func TestDrawing_Clone(t *testing.T) {
	d := sampleDrawing()
	c := d.Clone()
	c.Strokes[0].Points[0].X = 99
	c.Strokes = append(c.Strokes, Stroke{})
	assert.Equal(t, sampleDrawing(), d)
	assert.Nil(t, Drawing{}.Clone().Strokes)
}

func TestReconcile(t *testing.T) {
	d := []Drawing{drawingWith(1), drawingWith(2)}
	assert.Len(t, Reconcile(d, 4), 4)
	assert.True(t, Reconcile(d, 4)[3].IsEmpty())
	assert.Equal(t, []Drawing{drawingWith(1)}, Reconcile(d, 1))
	assert.Empty(t, Reconcile(nil, 0))
}

func TestStroke_Bounds(t *testing.T) {
	s := Stroke{Width: 2, Points: []Point{{X: 10, Y: 20}, {X: 30, Y: 5}}}
	assert.Equal(t, Box{X: 9, Y: 4, W: 22, H: 17}, s.Bounds())
	assert.Equal(t, Box{}, Stroke{Width: 2}.Bounds())
}

func TestStroke_Hits(t *testing.T) {
	s := Stroke{Width: 2, Points: []Point{{X: 0, Y: 0}, {X: 10, Y: 0}}}
	assert.True(t, s.hits(Point{X: 5, Y: 1.5}, 1))
	assert.True(t, s.hits(Point{X: 0, Y: 0}, 0))
	assert.False(t, s.hits(Point{X: 5, Y: 5}, 1))
	assert.False(t, s.hits(Point{X: 14, Y: 0}, 1))
}

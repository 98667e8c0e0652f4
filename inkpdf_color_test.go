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
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#1C1C1E", want: DefaultDarkTone},
		{in: " #ff0080 ", want: color.NRGBA{R: 255, B: 128, A: 255}},
		{in: "10 20 30", want: color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
		{in: "#fff", wantErr: true},
		{in: "#gggggg", wantErr: true},
		{in: "1 2", wantErr: true},
		{in: "1 2 300", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseColorMode(t *testing.T) {
	m, err := ParseColorMode("Dark")
	require.NoError(t, err)
	assert.Equal(t, Dark, m)
	m, err = ParseColorMode("")
	require.NoError(t, err)
	assert.Equal(t, Light, m)
	_, err = ParseColorMode("sepia")
	assert.Error(t, err)
	assert.Equal(t, "dark", Dark.String())
}

func TestRemapDark(t *testing.T) {
	tone := DefaultDarkTone
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, RemapDark(color.Black, tone))
	assert.Equal(t, tone, RemapDark(color.White, tone))

	mid := RemapDark(color.NRGBA{R: 128, G: 128, B: 128, A: 90}, tone)
	assert.Equal(t, uint8(90), mid.A)
	assert.Greater(t, mid.R, tone.R)
	assert.Less(t, mid.R, uint8(255))

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	out := remapImage(img, tone)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, tone, out.NRGBAAt(1, 0))
}

func TestInkColor(t *testing.T) {
	black := color.NRGBA{A: 255}
	red := color.NRGBA{R: 255, A: 200}
	navy := color.NRGBA{B: 128, A: 255}

	assert.Equal(t, navy, InkColor(navy, Light))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, InkColor(black, Dark))
	assert.Equal(t, red, InkColor(red, Dark), "full saturation at half lightness is unchanged")

	lifted := InkColor(navy, Dark)
	assert.Greater(t, luminance(lifted), luminance(navy))
	back := InkColor(lifted, Dark)
	assert.InDelta(t, navy.R, back.R, 1)
	assert.InDelta(t, navy.G, back.G, 1)
	assert.InDelta(t, navy.B, back.B, 1)
}

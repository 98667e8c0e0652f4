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
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rasterizer PDF页面光栅化
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, page int, dpi float64) (image.Image, error)
}

// PopplerRasterizer 调用 pdftoppm 光栅化
type PopplerRasterizer struct {
	Path string
}

var _ Rasterizer = PopplerRasterizer{}

// Rasterize 光栅化PDF单页
// 入参: ctx 上下文, data PDF数据, page 页面索引(从0开始), dpi 分辨率
// 返回: image.Image 页面图像, error 错误信息
func (p PopplerRasterizer) Rasterize(ctx context.Context, data []byte, page int, dpi float64) (image.Image, error) {
	bin := p.Path
	if bin == "" {
		bin = "pdftoppm"
	}
	dir, err := os.MkdirTemp("", "inkpdf-raster-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "out")
	n := strconv.Itoa(page + 1)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-f", n, "-l", n,
		"-r", strconv.FormatFloat(dpi, 'f', 2, 64),
		"-png", "-singlefile", in, out)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", bin, err, bytes.TrimSpace(stderr.Bytes()))
	}
	f, err := os.Open(out + ".png")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

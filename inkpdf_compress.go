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
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/pierrec/lz4/v4"
)

// Compression 笔迹数据压缩算法
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionGZip
	CompressionLZ4
	CompressionBrotli
)

// String 算法名称
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGZip:
		return "gzip"
	case CompressionLZ4:
		return "lz4"
	case CompressionBrotli:
		return "brotli"
	}
	return fmt.Sprintf("Compression(%d)", byte(c))
}

// ParseCompression 解析算法名称
// 入参: s 名称
// 返回: Compression 算法, error 错误信息
func ParseCompression(s string) (Compression, error) {
	for _, c := range []Compression{CompressionNone, CompressionGZip, CompressionLZ4, CompressionBrotli} {
		if c.String() == s {
			return c, nil
		}
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

// Compressor 压缩编解码
type Compressor interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// compressor 获取算法实现
func (c Compression) compressor() (Compressor, error) {
	switch c {
	case CompressionNone:
		return nopCompressor{}, nil
	case CompressionGZip:
		return gzipCompressor{}, nil
	case CompressionLZ4:
		return lz4Compressor{}, nil
	case CompressionBrotli:
		return brotliCompressor{}, nil
	}
	return nil, fmt.Errorf("%w: compression %d", ErrUnsupportedInk, byte(c))
}

type nopCompressor struct{}

func (nopCompressor) Encode(data []byte) ([]byte, error) { return data, nil }
func (nopCompressor) Decode(data []byte) ([]byte, error) { return data, nil }

type gzipCompressor struct{}

func (gzipCompressor) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type lz4Compressor struct{}

func (lz4Compressor) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decode(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

type brotliCompressor struct{}

func (brotliCompressor) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (brotliCompressor) Decode(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}

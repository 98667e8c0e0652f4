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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// tempPrefix 暂存文件前缀, 列举时跳过
const tempPrefix = ".tmp-"

// FileBackend 文件系统后端
// 每个键对应根目录下的一个文件, 写入采用临时文件加重命名
type FileBackend struct {
	Root string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend 创建文件系统后端
// 入参: root 根目录
// 返回: *FileBackend 后端实例, error 错误信息
func NewFileBackend(root string) (*FileBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{Root: root}, nil
}

// keyPath 键对应的文件路径
func (f *FileBackend) keyPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean != "/"+key || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, tempPrefix) {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	return filepath.Join(f.Root, filepath.FromSlash(key)), nil
}

// stage 写入临时文件
// 返回: string 临时文件路径, string 目标路径, error 错误信息
func (f *FileBackend) stage(key string, value []byte) (string, string, error) {
	dst, err := f.keyPath(key)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+"*")
	if err != nil {
		return "", "", err
	}
	name := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", "", err
	}
	return name, dst, nil
}

// PutBytes 写入临时文件后重命名为目标文件
func (f *FileBackend) PutBytes(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, dst, err := f.stage(key, value)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// GetBytes 读取键对应的文件
func (f *FileBackend) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := f.keyPath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// ListKeys 遍历根目录列举键, 跳过暂存文件
func (f *FileBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := path.Dir(prefix + "x")
	start := f.Root
	if dir != "." {
		start = filepath.Join(f.Root, filepath.FromSlash(dir))
	}
	var keys []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(f.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys 删除键对应的文件
func (f *FileBackend) DeleteKeys(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		p, err := f.keyPath(k)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Apply 先暂存全部写入, 全部成功后再依次重命名与删除
// 暂存失败时已有文件保持不变
func (f *FileBackend) Apply(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	type staged struct{ tmp, dst string }
	var done []staged
	cleanup := func() {
		for _, s := range done {
			os.Remove(s.tmp)
		}
	}
	for _, op := range batch.Ops {
		if op.Delete {
			if _, err := f.keyPath(op.Key); err != nil {
				cleanup()
				return err
			}
			continue
		}
		tmp, dst, err := f.stage(op.Key, op.Value)
		if err != nil {
			cleanup()
			return err
		}
		done = append(done, staged{tmp, dst})
	}
	for i, s := range done {
		if err := os.Rename(s.tmp, s.dst); err != nil {
			for _, rest := range done[i:] {
				os.Remove(rest.tmp)
			}
			return err
		}
	}
	var deletes []string
	for _, op := range batch.Ops {
		if op.Delete {
			deletes = append(deletes, op.Key)
		}
	}
	return f.DeleteKeys(context.WithoutCancel(ctx), deletes)
}

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
	"fmt"
	"sort"
)

// AnnotationStore 单页笔迹存储
// 键为 (文档, 结构位置)
type AnnotationStore struct {
	backend Backend
	codec   *InkCodec
}

// NewAnnotationStore 创建笔迹存储
// 入参: backend 持久化后端, codec 笔迹编解码器
// 返回: *AnnotationStore 存储实例
func NewAnnotationStore(backend Backend, codec *InkCodec) *AnnotationStore {
	return &AnnotationStore{backend: backend, codec: codec}
}

// Save 保存单页笔迹
func (a *AnnotationStore) Save(ctx context.Context, id DocumentID, page int, d Drawing) error {
	if page < 0 {
		return fmt.Errorf("%w: page %d", ErrPageOutOfRange, page)
	}
	key := inkKey{Document: id, Page: page}.String()
	data, err := a.codec.Encode(d)
	if err != nil {
		return err
	}
	if err := a.backend.PutBytes(ctx, key, data); err != nil {
		return persistenceError("save drawing", key, err)
	}
	return nil
}

// Load 读取单页笔迹, 不存在时返回空笔迹
func (a *AnnotationStore) Load(ctx context.Context, id DocumentID, page int) (Drawing, error) {
	data, ok, err := a.backend.GetBytes(ctx, inkKey{Document: id, Page: page}.String())
	if err != nil || !ok {
		return Drawing{}, err
	}
	return a.codec.Decode(data)
}

// storedPages 列出已保存的页位置, 升序
func (a *AnnotationStore) storedPages(ctx context.Context, id DocumentID) ([]int, error) {
	keys, err := a.backend.ListKeys(ctx, inkPrefix(id))
	if err != nil {
		return nil, err
	}
	pages := make([]int, 0, len(keys))
	for _, k := range keys {
		ik, ok := parseInkKey(k)
		if !ok || ik.Document != id {
			continue
		}
		pages = append(pages, ik.Page)
	}
	sort.Ints(pages)
	return pages, nil
}

// Orphans 列出位置不小于n的笔迹
// 入参: ctx 上下文, id 文档标识, n 页数
// 返回: []int 孤立笔迹位置, error 错误信息
func (a *AnnotationStore) Orphans(ctx context.Context, id DocumentID, n int) ([]int, error) {
	pages, err := a.storedPages(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, p := range pages {
		if p >= n {
			out = append(out, p)
		}
	}
	return out, nil
}

// batchAll 构造全量保存批次: 写入 0..n 并删除其余
func (a *AnnotationStore) batchAll(ctx context.Context, b *Batch, id DocumentID, drawings []Drawing) error {
	for i, d := range drawings {
		data, err := a.codec.Encode(d)
		if err != nil {
			return err
		}
		b.Put(inkKey{Document: id, Page: i}.String(), data)
	}
	orphans, err := a.Orphans(ctx, id, len(drawings))
	if err != nil {
		return err
	}
	for _, p := range orphans {
		b.Delete(inkKey{Document: id, Page: p}.String())
	}
	return nil
}

// SaveAll 保存全部笔迹并清理多余的页
// 调用完成后存储中恰有 len(drawings) 条记录
func (a *AnnotationStore) SaveAll(ctx context.Context, id DocumentID, drawings []Drawing) error {
	var b Batch
	if err := a.batchAll(ctx, &b, id, drawings); err != nil {
		return err
	}
	if err := a.backend.Apply(ctx, &b); err != nil {
		return persistenceError("save drawings", inkPrefix(id), err)
	}
	return nil
}

// LoadAll 读取n页笔迹, 缺失页为空
func (a *AnnotationStore) LoadAll(ctx context.Context, id DocumentID, n int) ([]Drawing, error) {
	out := make([]Drawing, n)
	for i := range out {
		d, err := a.Load(ctx, id, i)
		if err != nil {
			return nil, fmt.Errorf("load drawing %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// DeleteAll 删除文档的全部笔迹与页面结构
func (a *AnnotationStore) DeleteAll(ctx context.Context, id DocumentID) error {
	keys, err := a.backend.ListKeys(ctx, documentPrefix(id))
	if err != nil {
		return err
	}
	var b Batch
	b.Delete(keys...)
	b.Delete(structureKey(id))
	if err := a.backend.Apply(ctx, &b); err != nil {
		return persistenceError("delete document", documentPrefix(id), err)
	}
	return nil
}

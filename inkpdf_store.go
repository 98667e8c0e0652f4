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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Store 页面结构与笔迹的组合存储
// 同一文档的提交与快照通过读写锁互斥
type Store struct {
	backend     Backend
	codec       *InkCodec
	compression Compression
	Structures  *PageStructureStore
	Annotations *AnnotationStore
	locks       sync.Map
}

// StoreOption 存储配置选项
type StoreOption func(*Store)

// WithCompression 设置笔迹压缩算法
// 入参: c 压缩算法
// 返回: StoreOption 存储选项
func WithCompression(c Compression) StoreOption {
	return func(s *Store) {
		s.compression = c
	}
}

// Snapshot 文档只读快照
type Snapshot struct {
	Plan     PagePlan
	Drawings []Drawing
}

// NewStore 创建组合存储
// 入参: backend 持久化后端, opts 存储选项
// 返回: *Store 存储实例, error 错误信息
func NewStore(backend Backend, opts ...StoreOption) (*Store, error) {
	s := &Store{backend: backend, compression: CompressionLZ4}
	for _, opt := range opts {
		opt(s)
	}
	codec, err := NewInkCodec(s.compression)
	if err != nil {
		return nil, err
	}
	s.codec = codec
	s.Structures = NewPageStructureStore(backend)
	s.Annotations = NewAnnotationStore(backend, codec)
	return s, nil
}

// Backend 底层后端
func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) lock(id DocumentID) *sync.RWMutex {
	mu, _ := s.locks.LoadOrStore(id, new(sync.RWMutex))
	return mu.(*sync.RWMutex)
}

// Commit 原子提交页面结构与全部笔迹
// 笔迹数量必须与页数一致, 多余的已存笔迹在同一批次中删除
// 入参: ctx 上下文, id 文档标识, st 页面结构, drawings 笔迹列表
// 返回: error 错误信息
func (s *Store) Commit(ctx context.Context, id DocumentID, st DocumentStructure, drawings []Drawing) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if len(drawings) != st.Len() {
		return fmt.Errorf("%w: %d drawings for %d pages", ErrStructureDrawingMismatch, len(drawings), st.Len())
	}
	data, err := encodeStructure(st)
	if err != nil {
		return err
	}
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	var b Batch
	b.Put(structureKey(id), data)
	if err := s.Annotations.batchAll(ctx, &b, id, drawings); err != nil {
		return persistenceError("commit", documentPrefix(id), err)
	}
	if err := s.backend.Apply(ctx, &b); err != nil {
		return persistenceError("commit", documentPrefix(id), err)
	}
	Logger("store").WithField("document", id).Debugf("committed %d pages", st.Len())
	return nil
}

// SaveDrawing 保存单页笔迹
func (s *Store) SaveDrawing(ctx context.Context, id DocumentID, page int, d Drawing) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.Annotations.Save(ctx, id, page, d)
}

// Snapshot 读取一致的文档快照
// 无页面结构时返回原始页计划与空笔迹
// 入参: ctx 上下文, id 文档标识, pageCount 源文档页数
// 返回: Snapshot 快照, error 错误信息
func (s *Store) Snapshot(ctx context.Context, id DocumentID, pageCount int) (Snapshot, error) {
	mu := s.lock(id)
	mu.RLock()
	defer mu.RUnlock()
	plan, err := s.Structures.Plan(ctx, id, pageCount)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Plan: plan}
	switch p := plan.(type) {
	case Structured:
		snap.Drawings, err = s.Annotations.LoadAll(ctx, id, p.Structure.Len())
	case Unedited:
		snap.Drawings = make([]Drawing, p.PageCount)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// DeleteDocument 删除文档的全部数据
func (s *Store) DeleteDocument(ctx context.Context, id DocumentID) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.Annotations.DeleteAll(ctx, id)
}

// Documents 列出存储中的全部文档
// 返回: []DocumentID 文档标识, 按字符串升序
func (s *Store) Documents(ctx context.Context) ([]DocumentID, error) {
	keys, err := s.backend.ListKeys(ctx, docKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := mapset.NewThreadUnsafeSet[DocumentID]()
	for _, k := range keys {
		if id, ok := parseDocumentKey(k); ok {
			ids.Add(id)
		}
	}
	out := ids.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// sweepOrphans 删除文档中超出页面结构的笔迹
// 返回: int 删除数量, error 错误信息
func (s *Store) sweepOrphans(ctx context.Context, id DocumentID) (int, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	st, ok, err := s.Structures.Load(ctx, id)
	if err != nil || !ok {
		return 0, err
	}
	orphans, err := s.Annotations.Orphans(ctx, id, st.Len())
	if err != nil || len(orphans) == 0 {
		return 0, err
	}
	keys := make([]string, len(orphans))
	for i, p := range orphans {
		keys[i] = inkKey{Document: id, Page: p}.String()
	}
	if err := s.backend.DeleteKeys(ctx, keys); err != nil {
		return 0, persistenceError("sweep", inkPrefix(id), err)
	}
	return len(keys), nil
}

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
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Backend 键值持久化后端
type Backend interface {
	// PutBytes 写入单个键
	PutBytes(ctx context.Context, key string, value []byte) error
	// GetBytes 读取单个键, 不存在时返回 false
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	// ListKeys 按前缀列出键, 结果有序
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// DeleteKeys 删除键, 不存在的键被忽略
	DeleteKeys(ctx context.Context, keys []string) error
	// Apply 原子地执行一批写入与删除
	Apply(ctx context.Context, batch *Batch) error
}

// BatchOp 批量操作项
type BatchOp struct {
	Key    string
	Value  []byte
	Delete bool
}

// Batch 批量写入
type Batch struct {
	Ops []BatchOp
}

// Put 追加写入
func (b *Batch) Put(key string, value []byte) {
	b.Ops = append(b.Ops, BatchOp{Key: key, Value: value})
}

// Delete 追加删除
func (b *Batch) Delete(keys ...string) {
	for _, k := range keys {
		b.Ops = append(b.Ops, BatchOp{Key: k, Delete: true})
	}
}

// Len 操作数量
func (b *Batch) Len() int {
	return len(b.Ops)
}

const (
	docKeyPrefix    = "doc/"
	structureSuffix = "structure"
	inkSegment      = "ink/"
)

// documentPrefix 文档命名空间前缀
func documentPrefix(id DocumentID) string {
	return docKeyPrefix + id.String() + "/"
}

// structureKey 页面结构键
func structureKey(id DocumentID) string {
	return documentPrefix(id) + structureSuffix
}

// inkPrefix 笔迹键前缀
func inkPrefix(id DocumentID) string {
	return documentPrefix(id) + inkSegment
}

// inkKey 笔迹键
type inkKey struct {
	Document DocumentID
	Page     int
}

// String 编码为后端键
func (k inkKey) String() string {
	return fmt.Sprintf("%s%06d", inkPrefix(k.Document), k.Page)
}

// parseInkKey 解析笔迹键
// 入参: key 后端键
// 返回: inkKey 笔迹键, bool 是否为笔迹键
func parseInkKey(key string) (inkKey, bool) {
	rest, ok := strings.CutPrefix(key, docKeyPrefix)
	if !ok {
		return inkKey{}, false
	}
	idPart, rest, ok := strings.Cut(rest, "/")
	if !ok {
		return inkKey{}, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return inkKey{}, false
	}
	pagePart, ok := strings.CutPrefix(rest, inkSegment)
	if !ok || pagePart == "" {
		return inkKey{}, false
	}
	page, err := strconv.Atoi(pagePart)
	if err != nil || page < 0 {
		return inkKey{}, false
	}
	return inkKey{Document: id, Page: page}, true
}

// parseDocumentKey 解析键所属文档
func parseDocumentKey(key string) (DocumentID, bool) {
	rest, ok := strings.CutPrefix(key, docKeyPrefix)
	if !ok {
		return DocumentID{}, false
	}
	idPart, _, ok := strings.Cut(rest, "/")
	if !ok {
		return DocumentID{}, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return DocumentID{}, false
	}
	return id, true
}

// MemoryBackend 内存后端
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// PutBytes 写入值的副本
func (m *MemoryBackend) PutBytes(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// GetBytes 返回值的副本
func (m *MemoryBackend) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// ListKeys 按前缀列举键, 结果升序
func (m *MemoryBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys 删除键
func (m *MemoryBackend) DeleteKeys(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Apply 持有写锁执行整个批次
func (m *MemoryBackend) Apply(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range batch.Ops {
		if op.Delete {
			delete(m.data, op.Key)
			continue
		}
		m.data[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

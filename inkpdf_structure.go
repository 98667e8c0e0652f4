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
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// structureFormatVersion 页面结构持久化格式版本
const structureFormatVersion = 1

// DocumentID 可批注文档标识
type DocumentID = uuid.UUID

// SubDocumentKey 子文档复合键
// 由父文档与序号唯一确定一个子文档
type SubDocumentKey struct {
	Parent  DocumentID
	Ordinal int
}

// ID 派生子文档的稳定标识
// 同一父文档与序号总是得到同一标识
// 返回: DocumentID 子文档标识
func (k SubDocumentKey) ID() DocumentID {
	return uuid.NewSHA1(k.Parent, []byte(fmt.Sprintf("ordinal:%d", k.Ordinal)))
}

// PageKind 页面类型
type PageKind int

const (
	// PageOriginal 源文档页面
	PageOriginal PageKind = iota
	// PageBlank 插入的空白页
	PageBlank
)

// String 返回页面类型名称
func (k PageKind) String() string {
	switch k {
	case PageOriginal:
		return "original"
	case PageBlank:
		return "blank"
	}
	return fmt.Sprintf("PageKind(%d)", int(k))
}

// PageEntry 页面计划中的一项
type PageEntry struct {
	Kind          PageKind
	OriginalIndex int
}

// OriginalPage 创建源文档页面项
// 入参: index 源文档页索引
// 返回: PageEntry 页面项
func OriginalPage(index int) PageEntry {
	return PageEntry{Kind: PageOriginal, OriginalIndex: index}
}

// BlankPage 创建空白页面项
// 返回: PageEntry 页面项
func BlankPage() PageEntry {
	return PageEntry{Kind: PageBlank, OriginalIndex: -1}
}

// Source 返回源文档页索引
// 返回: int 源页索引, bool 是否为源文档页面
func (e PageEntry) Source() (int, bool) {
	if e.Kind != PageOriginal {
		return 0, false
	}
	return e.OriginalIndex, true
}

// DocumentStructure 文档页面计划
type DocumentStructure struct {
	Pages             []PageEntry
	OriginalPageCount int
}

// DefaultStructure 创建恒等映射的页面计划
// 入参: n 源文档页数
// 返回: DocumentStructure 页面计划
func DefaultStructure(n int) DocumentStructure {
	pages := make([]PageEntry, n)
	for i := range pages {
		pages[i] = OriginalPage(i)
	}
	return DocumentStructure{Pages: pages, OriginalPageCount: n}
}

// Len 页面数量
func (s DocumentStructure) Len() int {
	return len(s.Pages)
}

// Clone 深拷贝
func (s DocumentStructure) Clone() DocumentStructure {
	pages := make([]PageEntry, len(s.Pages))
	copy(pages, s.Pages)
	return DocumentStructure{Pages: pages, OriginalPageCount: s.OriginalPageCount}
}

// Validate 校验页面计划不变量
// 返回: error 错误信息
func (s DocumentStructure) Validate() error {
	if len(s.Pages) == 0 {
		return fmt.Errorf("%w: no pages", ErrInvalidStructure)
	}
	if s.OriginalPageCount < 0 {
		return fmt.Errorf("%w: negative original page count", ErrInvalidStructure)
	}
	for i, p := range s.Pages {
		switch p.Kind {
		case PageOriginal:
			if p.OriginalIndex < 0 || p.OriginalIndex >= s.OriginalPageCount {
				return fmt.Errorf("%w: page %d references original %d of %d", ErrInvalidStructure, i, p.OriginalIndex, s.OriginalPageCount)
			}
		case PageBlank:
		default:
			return fmt.Errorf("%w: page %d has unknown kind %d", ErrInvalidStructure, i, p.Kind)
		}
	}
	return nil
}

// InsertBlank 在指定位置插入空白页
// 入参: pos 插入位置, 取值 0..Len()
// 返回: DocumentStructure 新页面计划, error 错误信息
func (s DocumentStructure) InsertBlank(pos int) (DocumentStructure, error) {
	if pos < 0 || pos > len(s.Pages) {
		return s, fmt.Errorf("%w: insert at %d of %d", ErrPageOutOfRange, pos, len(s.Pages))
	}
	pages := make([]PageEntry, 0, len(s.Pages)+1)
	pages = append(pages, s.Pages[:pos]...)
	pages = append(pages, BlankPage())
	pages = append(pages, s.Pages[pos:]...)
	return DocumentStructure{Pages: pages, OriginalPageCount: s.OriginalPageCount}, nil
}

// Remove 删除指定位置的页面
// 最后一页不可删除
// 入参: k 页面位置
// 返回: DocumentStructure 新页面计划, error 错误信息
func (s DocumentStructure) Remove(k int) (DocumentStructure, error) {
	if len(s.Pages) <= 1 {
		return s, ErrInvalidDeletion
	}
	if k < 0 || k >= len(s.Pages) {
		return s, fmt.Errorf("%w: delete %d of %d", ErrPageOutOfRange, k, len(s.Pages))
	}
	pages := make([]PageEntry, 0, len(s.Pages)-1)
	pages = append(pages, s.Pages[:k]...)
	pages = append(pages, s.Pages[k+1:]...)
	return DocumentStructure{Pages: pages, OriginalPageCount: s.OriginalPageCount}, nil
}

// PagePlan 导出时的页面计划
// 取值为 Structured 或 Unedited
type PagePlan interface {
	// Entries 返回页面项列表
	Entries() []PageEntry
	isPagePlan()
}

// Structured 已保存页面结构的文档
type Structured struct {
	Structure DocumentStructure
}

// Entries 返回保存的页面项
func (p Structured) Entries() []PageEntry {
	return p.Structure.Clone().Pages
}

func (Structured) isPagePlan() {}

// Unedited 从未编辑过结构的文档, 按源页恒等映射
type Unedited struct {
	PageCount int
}

// Entries 返回恒等映射页面项
func (p Unedited) Entries() []PageEntry {
	return DefaultStructure(p.PageCount).Pages
}

func (Unedited) isPagePlan() {}

// structureWire 页面结构的持久化形式
type structureWire struct {
	Version           int         `json:"version"`
	Pages             []entryWire `json:"pages"`
	OriginalPageCount int         `json:"originalPageCount"`
}

type entryWire struct {
	Kind  string `json:"kind"`
	Index *int   `json:"index,omitempty"`
}

// encodeStructure 编码页面结构
func encodeStructure(s DocumentStructure) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	w := structureWire{
		Version:           structureFormatVersion,
		Pages:             make([]entryWire, len(s.Pages)),
		OriginalPageCount: s.OriginalPageCount,
	}
	for i, p := range s.Pages {
		w.Pages[i].Kind = p.Kind.String()
		if idx, ok := p.Source(); ok {
			w.Pages[i].Index = &idx
		}
	}
	return json.Marshal(w)
}

// decodeStructure 解码并校验页面结构
func decodeStructure(data []byte) (DocumentStructure, error) {
	var w structureWire
	if err := json.Unmarshal(data, &w); err != nil {
		return DocumentStructure{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if w.Version < 1 || w.Version > structureFormatVersion {
		return DocumentStructure{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidStructure, w.Version)
	}
	s := DocumentStructure{
		Pages:             make([]PageEntry, len(w.Pages)),
		OriginalPageCount: w.OriginalPageCount,
	}
	for i, p := range w.Pages {
		switch p.Kind {
		case "original":
			if p.Index == nil {
				return DocumentStructure{}, fmt.Errorf("%w: page %d missing index", ErrInvalidStructure, i)
			}
			s.Pages[i] = OriginalPage(*p.Index)
		case "blank":
			s.Pages[i] = BlankPage()
		default:
			return DocumentStructure{}, fmt.Errorf("%w: page %d kind %q", ErrInvalidStructure, i, p.Kind)
		}
	}
	return s, s.Validate()
}

// PageStructureStore 页面结构存储
type PageStructureStore struct {
	backend Backend
}

// NewPageStructureStore 创建页面结构存储
// 入参: backend 持久化后端
// 返回: *PageStructureStore 存储实例
func NewPageStructureStore(backend Backend) *PageStructureStore {
	return &PageStructureStore{backend: backend}
}

// Load 读取页面结构
// 返回: DocumentStructure 页面结构, bool 是否存在, error 错误信息
func (s *PageStructureStore) Load(ctx context.Context, id DocumentID) (DocumentStructure, bool, error) {
	data, ok, err := s.backend.GetBytes(ctx, structureKey(id))
	if err != nil || !ok {
		return DocumentStructure{}, false, err
	}
	st, err := decodeStructure(data)
	if err != nil {
		return DocumentStructure{}, false, err
	}
	return st, true, nil
}

// Plan 读取导出用页面计划
// 入参: ctx 上下文, id 文档标识, pageCount 源文档页数
// 返回: PagePlan 页面计划, error 错误信息
func (s *PageStructureStore) Plan(ctx context.Context, id DocumentID, pageCount int) (PagePlan, error) {
	st, ok, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Unedited{PageCount: pageCount}, nil
	}
	return Structured{Structure: st}, nil
}

// Save 保存页面结构
func (s *PageStructureStore) Save(ctx context.Context, id DocumentID, st DocumentStructure) error {
	data, err := encodeStructure(st)
	if err != nil {
		return err
	}
	if err := s.backend.PutBytes(ctx, structureKey(id), data); err != nil {
		return persistenceError("save structure", structureKey(id), err)
	}
	return nil
}

// Delete 删除页面结构
func (s *PageStructureStore) Delete(ctx context.Context, id DocumentID) error {
	if err := s.backend.DeleteKeys(ctx, []string{structureKey(id)}); err != nil {
		return persistenceError("delete structure", structureKey(id), err)
	}
	return nil
}

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
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce 笔迹保存防抖间隔
const DefaultDebounce = 500 * time.Millisecond

// SessionState 会话状态
type SessionState int

const (
	StateViewing SessionState = iota
	StateDrawing
	StateErasing
	StateSelecting
)

// String 状态名称
func (s SessionState) String() string {
	switch s {
	case StateViewing:
		return "viewing"
	case StateDrawing:
		return "drawing"
	case StateErasing:
		return "erasing"
	case StateSelecting:
		return "selecting"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// selection 选中的笔画
type selection struct {
	page    int
	strokes mapset.Set[int]
}

// CanvasSession 单文档编辑会话
// 所有编辑在一个顺序队列中执行, 结构编辑与笔迹保存互斥
type CanvasSession struct {
	id       DocumentID
	store    *Store
	renderer *Renderer
	source   *Source
	debounce time.Duration
	log      *logrus.Entry

	// 以下字段仅在队列协程中访问
	bg        context.Context
	mode      ColorMode
	state     SessionState
	structure DocumentStructure
	drawings  []Drawing
	selected  *selection
	clipboard []Stroke
	dirty     mapset.Set[int]
	gen       map[int]uint64
	timers    map[int]*time.Timer

	queue     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// OpenSession 打开编辑会话
// 首次打开时创建并保存原始页结构
// 入参: ctx 上下文, store 存储, renderer 渲染器, src 源文档, id 文档标识, opts 会话选项
// 返回: *CanvasSession 会话实例, error 错误信息
func OpenSession(ctx context.Context, store *Store, renderer *Renderer, src *Source, id DocumentID, opts ...SessionOption) (*CanvasSession, error) {
	if src == nil || src.PageCount == 0 {
		return nil, ErrNoPages
	}
	s := &CanvasSession{
		id:       id,
		store:    store,
		renderer: renderer,
		source:   src,
		debounce: DefaultDebounce,
		log:      Logger("session").WithField("document", id),
		bg:       context.WithoutCancel(ctx),
		dirty:    mapset.NewThreadUnsafeSet[int](),
		gen:      make(map[int]uint64),
		timers:   make(map[int]*time.Timer),
		queue:    make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	snap, err := store.Snapshot(ctx, id, src.PageCount)
	if err != nil {
		return nil, err
	}
	switch p := snap.Plan.(type) {
	case Structured:
		s.structure = p.Structure
		s.drawings = snap.Drawings
	case Unedited:
		s.structure = DefaultStructure(p.PageCount)
		s.drawings = Reconcile(nil, p.PageCount)
		if err := store.Commit(ctx, id, s.structure, s.drawings); err != nil {
			return nil, err
		}
		s.log.Info("created page structure")
	}
	go s.loop()
	return s, nil
}

// loop 编辑队列
func (s *CanvasSession) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

// 队列任务状态
const (
	taskQueued int32 = iota
	taskRunning
	taskAbandoned
)

// submit 提交任务到队列
func (s *CanvasSession) submit(fn func()) bool {
	select {
	case s.queue <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do 在队列中执行并等待结果
// 返回 ctx 错误时 fn 一定没有执行, fn 开始执行后总是返回其结果
func (s *CanvasSession) do(ctx context.Context, fn func() error) error {
	var state atomic.Int32
	errc := make(chan error, 1)
	task := func() {
		if !state.CompareAndSwap(taskQueued, taskRunning) {
			return
		}
		if err := ctx.Err(); err != nil {
			errc <- err
			return
		}
		errc <- fn()
	}
	select {
	case s.queue <- task:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		if state.CompareAndSwap(taskQueued, taskAbandoned) {
			return ctx.Err()
		}
		select {
		case err := <-errc:
			return err
		case <-s.stopped:
			return ErrSessionClosed
		}
	}
}

// checkPage 校验结构位置
func (s *CanvasSession) checkPage(k int) error {
	if k < 0 || k >= len(s.drawings) {
		return fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, k, len(s.drawings))
	}
	return nil
}

// ID 文档标识
func (s *CanvasSession) ID() DocumentID {
	return s.id
}

// Source 源文档
func (s *CanvasSession) Source() *Source {
	return s.source
}

// PageCount 当前页数
func (s *CanvasSession) PageCount(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() error {
		n = s.structure.Len()
		return nil
	})
	return n, err
}

// State 当前状态
func (s *CanvasSession) State(ctx context.Context) (SessionState, error) {
	var st SessionState
	err := s.do(ctx, func() error {
		st = s.state
		return nil
	})
	return st, err
}

// SelectTool 切换工具状态, 离开选择状态时清除选中
func (s *CanvasSession) SelectTool(ctx context.Context, state SessionState) error {
	if state < StateViewing || state > StateSelecting {
		return fmt.Errorf("%w: %v", ErrInvalidTool, state)
	}
	return s.do(ctx, func() error {
		if state != StateSelecting {
			s.selected = nil
		}
		s.state = state
		return nil
	})
}

// SetColorMode 设置显示配色模式, 不影响导出
func (s *CanvasSession) SetColorMode(ctx context.Context, mode ColorMode) error {
	return s.do(ctx, func() error {
		s.mode = mode
		return nil
	})
}

// commitEdit 原子提交结构编辑
// 提交失败时工作副本保持编辑前的值
func (s *CanvasSession) commitEdit(ctx context.Context, st DocumentStructure, drawings []Drawing) error {
	s.stopTimers()
	if err := s.store.Commit(ctx, s.id, st, drawings); err != nil {
		s.rearm()
		return err
	}
	s.structure, s.drawings = st, drawings
	s.selected = nil
	s.dirty.Clear()
	return nil
}

// InsertAfter 在位置k之后插入空白页
// 入参: ctx 上下文, k 结构位置
// 返回: int 新页位置, error 错误信息
func (s *CanvasSession) InsertAfter(ctx context.Context, k int) (int, error) {
	pos := k + 1
	err := s.do(ctx, func() error {
		if err := s.checkPage(k); err != nil {
			return err
		}
		return s.insertAt(ctx, pos)
	})
	return pos, err
}

// InsertAtEnd 在末尾插入空白页
// 返回: int 新页位置, error 错误信息
func (s *CanvasSession) InsertAtEnd(ctx context.Context) (int, error) {
	var pos int
	err := s.do(ctx, func() error {
		pos = s.structure.Len()
		return s.insertAt(ctx, pos)
	})
	return pos, err
}

func (s *CanvasSession) insertAt(ctx context.Context, pos int) error {
	st, err := s.structure.InsertBlank(pos)
	if err != nil {
		return err
	}
	drawings := make([]Drawing, 0, len(s.drawings)+1)
	drawings = append(drawings, s.drawings[:pos]...)
	drawings = append(drawings, Drawing{})
	drawings = append(drawings, s.drawings[pos:]...)
	if err := s.commitEdit(ctx, st, drawings); err != nil {
		return err
	}
	s.log.WithField("position", pos).Debug("inserted blank page")
	return nil
}

// DeleteCurrent 删除位置k的页面及其笔迹
// 仅剩一页时返回 ErrInvalidDeletion 且不做任何修改
func (s *CanvasSession) DeleteCurrent(ctx context.Context, k int) error {
	return s.do(ctx, func() error {
		if err := s.checkPage(k); err != nil {
			return err
		}
		st, err := s.structure.Remove(k)
		if err != nil {
			return err
		}
		drawings := make([]Drawing, 0, len(s.drawings)-1)
		drawings = append(drawings, s.drawings[:k]...)
		drawings = append(drawings, s.drawings[k+1:]...)
		if err := s.commitEdit(ctx, st, drawings); err != nil {
			return err
		}
		s.log.WithField("position", k).Debug("deleted page")
		return nil
	})
}

// ClearCurrent 清空位置k的笔迹, 页面结构不变
func (s *CanvasSession) ClearCurrent(ctx context.Context, k int) error {
	return s.do(ctx, func() error {
		if err := s.checkPage(k); err != nil {
			return err
		}
		drawings := append([]Drawing(nil), s.drawings...)
		drawings[k] = Drawing{}
		return s.commitEdit(ctx, s.structure, drawings)
	})
}

// UpdateDrawing 替换位置k的笔迹, 延迟保存
// 连续更新合并为最后一次保存
func (s *CanvasSession) UpdateDrawing(ctx context.Context, k int, d Drawing) error {
	d = d.Clone()
	return s.do(ctx, func() error {
		if err := s.checkPage(k); err != nil {
			return err
		}
		s.setDrawing(k, d)
		return nil
	})
}

// AddStroke 在位置k追加笔画, 仅限绘制状态
func (s *CanvasSession) AddStroke(ctx context.Context, k int, stroke Stroke) error {
	stroke = stroke.Clone()
	return s.do(ctx, func() error {
		if s.state != StateDrawing {
			return fmt.Errorf("%w: add stroke while %v", ErrInvalidTool, s.state)
		}
		if err := s.checkPage(k); err != nil {
			return err
		}
		d := s.drawings[k].Clone()
		d.Strokes = append(d.Strokes, stroke)
		s.setDrawing(k, d)
		return nil
	})
}

// EraseAt 擦除位置k上经过指定点的笔画, 仅限擦除状态
// 返回: int 擦除数量, error 错误信息
func (s *CanvasSession) EraseAt(ctx context.Context, k int, p Point, radius float64) (int, error) {
	var n int
	err := s.do(ctx, func() error {
		if s.state != StateErasing {
			return fmt.Errorf("%w: erase while %v", ErrInvalidTool, s.state)
		}
		if err := s.checkPage(k); err != nil {
			return err
		}
		var kept []Stroke
		for _, st := range s.drawings[k].Strokes {
			if st.hits(p, radius) {
				n++
				continue
			}
			kept = append(kept, st.Clone())
		}
		if n > 0 {
			s.setDrawing(k, Drawing{Strokes: kept})
		}
		return nil
	})
	return n, err
}

// Select 选中位置k上与矩形相交的笔画, 仅限选择状态
// 返回: int 选中数量, error 错误信息
func (s *CanvasSession) Select(ctx context.Context, k int, rect Box) (int, error) {
	var n int
	err := s.do(ctx, func() error {
		if s.state != StateSelecting {
			return fmt.Errorf("%w: select while %v", ErrInvalidTool, s.state)
		}
		if err := s.checkPage(k); err != nil {
			return err
		}
		rect = rect.Normalize()
		set := mapset.NewThreadUnsafeSet[int]()
		for i, st := range s.drawings[k].Strokes {
			if st.Bounds().Intersects(rect) {
				set.Add(i)
			}
		}
		n = set.Cardinality()
		s.selected = nil
		if n > 0 {
			s.selected = &selection{page: k, strokes: set}
		}
		return nil
	})
	return n, err
}

// HasSelection 是否有选中的笔画
func (s *CanvasSession) HasSelection(ctx context.Context) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		ok = s.state == StateSelecting && s.selected != nil
		return nil
	})
	return ok, err
}

// selectedStrokes 拆分选中与未选中的笔画
func (s *CanvasSession) selectedStrokes() (int, []Stroke, []Stroke, error) {
	if s.state != StateSelecting || s.selected == nil {
		return 0, nil, nil, ErrNoSelection
	}
	k := s.selected.page
	var picked, rest []Stroke
	for i, st := range s.drawings[k].Strokes {
		if s.selected.strokes.Contains(i) {
			picked = append(picked, st.Clone())
		} else {
			rest = append(rest, st.Clone())
		}
	}
	return k, picked, rest, nil
}

// CopySelection 复制选中的笔画到剪贴板
func (s *CanvasSession) CopySelection(ctx context.Context) error {
	return s.do(ctx, func() error {
		_, picked, _, err := s.selectedStrokes()
		if err != nil {
			return err
		}
		s.clipboard = picked
		return nil
	})
}

// CutSelection 剪切选中的笔画到剪贴板
func (s *CanvasSession) CutSelection(ctx context.Context) error {
	return s.do(ctx, func() error {
		k, picked, rest, err := s.selectedStrokes()
		if err != nil {
			return err
		}
		s.clipboard = picked
		s.selected = nil
		s.setDrawing(k, Drawing{Strokes: rest})
		return nil
	})
}

// DeleteSelection 删除选中的笔画
func (s *CanvasSession) DeleteSelection(ctx context.Context) error {
	return s.do(ctx, func() error {
		k, _, rest, err := s.selectedStrokes()
		if err != nil {
			return err
		}
		s.selected = nil
		s.setDrawing(k, Drawing{Strokes: rest})
		return nil
	})
}

// Paste 粘贴剪贴板笔画到位置k
func (s *CanvasSession) Paste(ctx context.Context, k int) error {
	return s.do(ctx, func() error {
		if len(s.clipboard) == 0 {
			return ErrNoSelection
		}
		if err := s.checkPage(k); err != nil {
			return err
		}
		d := s.drawings[k].Clone()
		for _, st := range s.clipboard {
			d.Strokes = append(d.Strokes, st.Clone())
		}
		s.setDrawing(k, d)
		return nil
	})
}

// setDrawing 更新工作副本并安排延迟保存
func (s *CanvasSession) setDrawing(k int, d Drawing) {
	if len(d.Strokes) == 0 {
		d.Strokes = nil
	}
	s.drawings[k] = d
	s.dirty.Add(k)
	s.schedule(k)
}

// schedule 重置页面的防抖计时器
func (s *CanvasSession) schedule(k int) {
	s.gen[k]++
	gen := s.gen[k]
	if t, ok := s.timers[k]; ok {
		t.Stop()
	}
	s.timers[k] = time.AfterFunc(s.debounce, func() {
		s.submit(func() { s.savePage(k, gen) })
	})
}

// savePage 计时器到期后保存页面, 过期的计时器直接忽略
func (s *CanvasSession) savePage(k int, gen uint64) {
	if s.gen[k] != gen || !s.dirty.Contains(k) {
		return
	}
	delete(s.timers, k)
	if err := s.store.SaveDrawing(s.bg, s.id, k, s.drawings[k]); err != nil {
		s.log.WithError(err).WithField("page", k).Warn("drawing save failed")
		return
	}
	s.dirty.Remove(k)
}

// stopTimers 停止全部防抖计时器
func (s *CanvasSession) stopTimers() {
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
		s.gen[k]++
	}
}

// rearm 为未保存的页面重新安排保存
func (s *CanvasSession) rearm() {
	for _, k := range s.dirty.ToSlice() {
		if k < len(s.drawings) {
			s.schedule(k)
		}
	}
}

// flush 立即保存全部未保存的页面
func (s *CanvasSession) flush(ctx context.Context) error {
	s.stopTimers()
	pages := s.dirty.ToSlice()
	sort.Ints(pages)
	for _, k := range pages {
		if err := s.store.SaveDrawing(ctx, s.id, k, s.drawings[k]); err != nil {
			s.rearm()
			return err
		}
		s.dirty.Remove(k)
	}
	return nil
}

// Flush 立即保存全部未保存的笔迹
func (s *CanvasSession) Flush(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.flush(ctx)
	})
}

// Snapshot 工作副本的只读快照, 包含未保存的笔迹
func (s *CanvasSession) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = Snapshot{
			Plan:     Structured{Structure: s.structure.Clone()},
			Drawings: cloneDrawings(s.drawings),
		}
		return nil
	})
	return snap, err
}

// RenderPage 按会话配色模式渲染位置k的页面与笔迹
func (s *CanvasSession) RenderPage(ctx context.Context, k int) (image.Image, error) {
	var (
		entries []PageEntry
		d       Drawing
		mode    ColorMode
	)
	err := s.do(ctx, func() error {
		if err := s.checkPage(k); err != nil {
			return err
		}
		entries = append([]PageEntry(nil), s.structure.Pages...)
		d = s.drawings[k].Clone()
		mode = s.mode
		return nil
	})
	if err != nil {
		return nil, err
	}
	w, h := entrySize(entries, s.source, k).Pixels(s.renderer.Scale)
	idx, ok := entries[k].Source()
	if !ok {
		idx = -1
	}
	return s.renderer.RenderComposite(ctx, s.source, idx, image.Pt(w, h), d, mode), nil
}

// Close 保存未保存的笔迹并关闭会话
func (s *CanvasSession) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
	})
	return err
}

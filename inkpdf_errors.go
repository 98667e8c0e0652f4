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
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable 源文档缺失或损坏, 该页按空白页处理
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoPages 导出结果没有任何页面
	ErrNoPages = errors.New("no pages to export")
	// ErrPersistenceWrite 持久化写入失败
	ErrPersistenceWrite = errors.New("persistence write failure")
	// ErrStructureDrawingMismatch 笔迹数量与页面数量不一致
	ErrStructureDrawingMismatch = errors.New("drawing count does not match page count")
	// ErrInvalidDeletion 不允许删除最后一页
	ErrInvalidDeletion = errors.New("cannot delete the last remaining page")
	// ErrInvalidStructure 页面结构不满足不变量
	ErrInvalidStructure = errors.New("invalid document structure")
	// ErrPageOutOfRange 页面位置越界
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrInvalidTool 当前工具状态不允许该操作
	ErrInvalidTool = errors.New("operation not allowed with current tool")
	// ErrNoSelection 没有选中的笔画
	ErrNoSelection = errors.New("no selection")
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("session closed")
	// ErrUnsupportedInk 无法识别的笔迹数据
	ErrUnsupportedInk = errors.New("unsupported ink blob")
)

// PersistenceError 持久化错误
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

// Error 实现error接口
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap 返回底层错误
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceWrite, e.Err}
}

// persistenceError 包装后端写入错误
func persistenceError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}

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
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var pkgLogger atomic.Pointer[logrus.Logger]

// SetLogger 替换包日志器, nil 恢复为 logrus 标准日志器
func SetLogger(l *logrus.Logger) {
	pkgLogger.Store(l)
}

// Logger 获取组件日志
// 入参: component 组件名
// 返回: *logrus.Entry 日志条目
func Logger(component string) *logrus.Entry {
	l := pkgLogger.Load()
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("component", component)
}

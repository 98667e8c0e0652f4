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

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// SweepReport 清理结果
type SweepReport struct {
	Documents int
	Removed   int
}

// OrphanSweeper 孤立笔迹清理任务
// 删除位置超出页面结构的笔迹记录
type OrphanSweeper struct {
	store   *Store
	cron    *cron.Cron
	running mapset.Set[DocumentID]
	log     *logrus.Entry
}

// NewOrphanSweeper 创建清理任务
// 入参: store 存储
// 返回: *OrphanSweeper 清理任务
func NewOrphanSweeper(store *Store) *OrphanSweeper {
	return &OrphanSweeper{
		store:   store,
		cron:    cron.New(),
		running: mapset.NewSet[DocumentID](),
		log:     Logger("sweeper"),
	}
}

// Sweep 清理全部文档, 正在被其他调用清理的文档跳过
// 入参: ctx 上下文
// 返回: SweepReport 清理结果, error 错误信息
func (s *OrphanSweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	ids, err := s.store.Documents(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.running.Add(id) {
			s.log.WithField("document", id).Warn("sweep already running")
			continue
		}
		n, err := s.store.sweepOrphans(ctx, id)
		s.running.Remove(id)
		if err != nil {
			return report, err
		}
		report.Documents++
		report.Removed += n
		if n > 0 {
			s.log.WithField("document", id).Infof("removed %d orphaned drawings", n)
		}
	}
	return report, nil
}

// Start 按cron表达式定期清理
// 入参: schedule cron表达式, 例如 "@every 1h"
// 返回: error 错误信息
func (s *OrphanSweeper) Start(schedule string) error {
	err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.WithError(err).Error("sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop 停止定期清理
func (s *OrphanSweeper) Stop() {
	s.cron.Stop()
}

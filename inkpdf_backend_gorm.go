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
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// KVEntry 键值表记录
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:255;not null"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName 表名
func (KVEntry) TableName() string {
	return "inkpdf_kv"
}

// GormBackend 关系数据库后端
type GormBackend struct {
	db *gorm.DB
}

var _ Backend = (*GormBackend)(nil)

// OpenGorm 按驱动名打开数据库
// 入参: driver 驱动名(sqlite, postgres), dsn 连接串
// 返回: *gorm.DB 数据库连接, error 错误信息
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// NewGormBackend 创建数据库后端并迁移表结构
// 入参: db 数据库连接
// 返回: *GormBackend 后端实例, error 错误信息
func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, err
	}
	return &GormBackend{db: db}, nil
}

// upsert 写入或覆盖
func upsert(tx *gorm.DB, key string, value []byte) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&KVEntry{Key: key, Value: value}).Error
}

// PutBytes 写入或覆盖一个键
func (g *GormBackend) PutBytes(ctx context.Context, key string, value []byte) error {
	return upsert(g.db.WithContext(ctx), key, value)
}

// GetBytes 读取键值, 键不存在时 ok 为 false
func (g *GormBackend) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	var e KVEntry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// escapeLike 转义LIKE通配符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListKeys 按前缀列举键, 结果升序
func (g *GormBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := g.db.WithContext(ctx).Model(&KVEntry{}).
		Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}

// DeleteKeys 删除键, 不存在的键忽略
func (g *GormBackend) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Where("key IN ?", keys).Delete(&KVEntry{}).Error
}

// Apply 在一个事务中执行, 空批次不开启事务
func (g *GormBackend) Apply(ctx context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return ctx.Err()
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deletes []string
		for _, op := range batch.Ops {
			if op.Delete {
				deletes = append(deletes, op.Key)
				continue
			}
			if err := upsert(tx, op.Key, op.Value); err != nil {
				return err
			}
		}
		if len(deletes) == 0 {
			return nil
		}
		return tx.Where("key IN ?", deletes).Delete(&KVEntry{}).Error
	})
}

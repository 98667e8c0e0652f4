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
	"sort"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// RedisBackend Redis后端
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend 创建Redis后端
// 入参: client Redis客户端, namespace 键命名空间, 为空时使用 "inkpdf:"
// 返回: *RedisBackend 后端实例
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "inkpdf:"
	}
	return &RedisBackend{client: client, namespace: namespace}
}

// DialRedis 连接Redis
// 入参: addr 地址, password 密码, db 库编号
// 返回: *redis.Client 客户端
func DialRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2,
	})
}

// PutBytes 写入键值, 不设置过期时间
func (r *RedisBackend) PutBytes(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.namespace+key, value, 0).Err()
}

// GetBytes 读取键值, redis.Nil 视为不存在
func (r *RedisBackend) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// globEscape 转义SCAN匹配模式中的特殊字符
func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// ListKeys 使用SCAN按前缀列举键
func (r *RedisBackend) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, globEscape(r.namespace+prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys 删除键
func (r *RedisBackend) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.namespace + k
	}
	return r.client.Del(ctx, full...).Err()
}

// Apply 使用MULTI/EXEC事务管道执行, 空批次不访问服务端
func (r *RedisBackend) Apply(ctx context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return ctx.Err()
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, op := range batch.Ops {
			if op.Delete {
				p.Del(ctx, r.namespace+op.Key)
				continue
			}
			p.Set(ctx, r.namespace+op.Key, op.Value, 0)
		}
		return nil
	})
	return err
}

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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) Backend

func testBackends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
		"file": func(t *testing.T) Backend {
			b, err := NewFileBackend(t.TempDir())
			require.NoError(t, err)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			db, err := OpenGorm("sqlite", filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			t.Cleanup(func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			})
			b, err := NewGormBackend(db)
			require.NoError(t, err)
			return b
		},
		"redis": func(t *testing.T) Backend {
			addr := os.Getenv("INKPDF_TEST_REDIS")
			if addr == "" {
				t.Skip("INKPDF_TEST_REDIS not set")
			}
			client := DialRedis(addr, "", 0)
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisBackend(client, "inkpdf-test:"+uuid.NewString()+":")
		},
	}
}

func TestBackends(t *testing.T) {
	for name, factory := range testBackends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := factory(t)

			_, ok, err := b.GetBytes(ctx, "doc/a/structure")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.PutBytes(ctx, "doc/a/structure", []byte("s1")))
			require.NoError(t, b.PutBytes(ctx, "doc/a/structure", []byte("s2")))
			got, ok, err := b.GetBytes(ctx, "doc/a/structure")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("s2"), got)

			var batch Batch
			batch.Put("doc/a/ink/000001", []byte{1})
			batch.Put("doc/a/ink/000000", []byte{0})
			batch.Put("doc/a_b/ink/000000", []byte{9})
			batch.Put("doc/b/ink/000000", []byte{2})
			require.NoError(t, b.Apply(ctx, &batch))

			keys, err := b.ListKeys(ctx, "doc/a/")
			require.NoError(t, err)
			assert.Equal(t, []string{"doc/a/ink/000000", "doc/a/ink/000001", "doc/a/structure"}, keys)

			keys, err = b.ListKeys(ctx, "doc/a/ink/")
			require.NoError(t, err)
			assert.Equal(t, []string{"doc/a/ink/000000", "doc/a/ink/000001"}, keys)

			batch = Batch{}
			batch.Put("doc/a/ink/000000", []byte{7})
			batch.Delete("doc/a/ink/000001", "doc/a/ink/000099")
			require.NoError(t, b.Apply(ctx, &batch))
			got, ok, err = b.GetBytes(ctx, "doc/a/ink/000000")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte{7}, got)
			_, ok, err = b.GetBytes(ctx, "doc/a/ink/000001")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.DeleteKeys(ctx, []string{"doc/a/structure", "doc/missing"}))
			require.NoError(t, b.DeleteKeys(ctx, nil))
			require.NoError(t, b.Apply(ctx, &Batch{}), "empty batch is a no-op")
			keys, err = b.ListKeys(ctx, "doc/")
			require.NoError(t, err)
			assert.Equal(t, []string{"doc/a/ink/000000", "doc/a_b/ink/000000", "doc/b/ink/000000"}, keys)
		})
	}
}

func TestMemoryBackend_CopiesValues(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	v := []byte("abc")
	require.NoError(t, b.PutBytes(ctx, "k", v))
	v[0] = 'x'
	got, _, err := b.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'y'
	again, _, _ := b.GetBytes(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, 1, keyCount(t, b))
}

func TestMemoryBackend_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewMemoryBackend()
	assert.ErrorIs(t, b.PutBytes(ctx, "k", nil), context.Canceled)
	assert.ErrorIs(t, b.Apply(ctx, &Batch{}), context.Canceled)
}

func TestFileBackend_Keys(t *testing.T) {
	ctx := context.Background()
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../escape", "doc//x", "doc/.tmp-1/x", `doc\x`, "/abs"} {
		assert.Error(t, b.PutBytes(ctx, key, []byte{1}), key)
	}
	require.NoError(t, b.PutBytes(ctx, "doc/x/ink/000000", []byte{1}))
	entries, err := os.ReadDir(filepath.Join(b.Root, "doc", "x", "ink"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "000000", entries[0].Name())
}

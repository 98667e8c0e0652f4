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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnnotationStore(t *testing.T) (*AnnotationStore, *MemoryBackend) {
	t.Helper()
	codec, err := NewInkCodec(CompressionLZ4)
	require.NoError(t, err)
	b := NewMemoryBackend()
	return NewAnnotationStore(b, codec), b
}

func TestAnnotationStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	a, _ := newAnnotationStore(t)
	id := newID()

	d, err := a.Load(ctx, id, 3)
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())

	require.NoError(t, a.Save(ctx, id, 3, drawingWith(2)))
	d, err = a.Load(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, drawingWith(2), d)

	assert.ErrorIs(t, a.Save(ctx, id, -1, drawingWith(1)), ErrPageOutOfRange)
}

func TestAnnotationStore_SaveAllRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	a, _ := newAnnotationStore(t)
	id := newID()
	other := newID()
	require.NoError(t, a.Save(ctx, other, 0, drawingWith(1)))

	require.NoError(t, a.SaveAll(ctx, id, []Drawing{drawingWith(1), drawingWith(2), drawingWith(3), drawingWith(4)}))
	pages, err := a.storedPages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, pages)

	require.NoError(t, a.Save(ctx, id, 9, drawingWith(1)))
	orphans, err := a.Orphans(ctx, id, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{9}, orphans)

	require.NoError(t, a.SaveAll(ctx, id, []Drawing{drawingWith(4), {}}))
	pages, err = a.storedPages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pages)

	all, err := a.LoadAll(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, []Drawing{drawingWith(4), {}, {}}, all)

	d, err := a.Load(ctx, other, 0)
	require.NoError(t, err)
	assert.Equal(t, drawingWith(1), d, "other documents untouched")
}

func TestAnnotationStore_DeleteAll(t *testing.T) {
	ctx := context.Background()
	a, b := newAnnotationStore(t)
	id := newID()
	other := newID()
	require.NoError(t, NewPageStructureStore(b).Save(ctx, id, DefaultStructure(2)))
	require.NoError(t, a.SaveAll(ctx, id, []Drawing{drawingWith(1), drawingWith(1)}))
	require.NoError(t, a.Save(ctx, other, 0, drawingWith(1)))
	require.Equal(t, 4, keyCount(t, b))

	require.NoError(t, a.DeleteAll(ctx, id))
	assert.Equal(t, 1, keyCount(t, b))
	keys, err := b.ListKeys(ctx, documentPrefix(id))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAnnotationStore_WriteFailure(t *testing.T) {
	ctx := context.Background()
	codec, err := NewInkCodec(CompressionNone)
	require.NoError(t, err)
	fb := newFlakyBackend()
	fb.failWrites.Store(true)
	a := NewAnnotationStore(fb, codec)

	err = a.Save(ctx, newID(), 0, drawingWith(1))
	assert.ErrorIs(t, err, ErrPersistenceWrite)
	assert.ErrorIs(t, err, errInjected)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save drawing", pe.Op)

	assert.ErrorIs(t, a.SaveAll(ctx, newID(), []Drawing{{}}), ErrPersistenceWrite)
}

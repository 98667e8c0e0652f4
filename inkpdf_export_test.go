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
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
)

func captureLogs(t *testing.T) *logtest.Hook {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })
	return hook
}

func inspectPDFBytes(t *testing.T, data []byte) *Source {
	t.Helper()
	src, err := InspectSource("out.pdf", data)
	require.NoError(t, err)
	require.Equal(t, SourcePDF, src.Kind)
	return src
}

func TestCompositor_GeneratePDFEmpty(t *testing.T) {
	var buf bytes.Buffer
	comp := NewCompositor(nil, NewRenderer())
	assert.ErrorIs(t, comp.GeneratePDF(context.Background(), nil, &buf), ErrNoPages)
	assert.Zero(t, buf.Len())
}

func TestCompositor_PagesForPlan(t *testing.T) {
	ctx := context.Background()
	first, second := Size{W: 300, H: 400}, Size{W: 200, H: 100}
	src := bundleSource(t, first, second)
	comp := NewCompositor(nil, NewRenderer())

	plan := Structured{Structure: DocumentStructure{
		Pages:             []PageEntry{OriginalPage(0), BlankPage(), OriginalPage(1), OriginalPage(0)},
		OriginalPageCount: 2,
	}}
	pages, err := comp.PagesForPlan(ctx, src, plan, []Drawing{drawingWith(1), drawingWith(2)})
	require.NoError(t, err)
	require.Len(t, pages, 4)

	assert.Equal(t, image.Rect(0, 0, 600, 800), pages[0].Raster.Bounds())
	assert.Nil(t, pages[1].Raster, "blank pages have no raster")
	assert.Equal(t, first, pages[1].PageSize)
	assert.Equal(t, drawingWith(2), pages[1].Drawing)
	assert.Equal(t, image.Rect(0, 0, 400, 200), pages[2].Raster.Bounds())
	assert.True(t, pages[2].Drawing.IsEmpty(), "missing drawings are empty")
	assert.Same(t, pages[0].Raster, pages[3].Raster, "repeated source pages render once")

	dpmm := canvas.DPMM(comp.renderer.Scale / mmPerPt)
	blank := rasterizer.Draw(comp.composePage(pages[1]), dpmm, canvas.DefaultColorSpace)
	assert.Equal(t, uint8(255), grayAt(blank, 150, 150), "blank page background is white")
	assert.Less(t, grayAt(blank, 10, 25), uint8(60))
	assert.Less(t, grayAt(blank, 30, 25), uint8(60))
	original := rasterizer.Draw(comp.composePage(pages[0]), dpmm, canvas.DefaultColorSpace)
	assert.InDelta(t, 200, grayAt(original, 150, 150), 3, "original page keeps its source background")
	assert.Less(t, grayAt(original, 10, 25), uint8(60))

	var buf bytes.Buffer
	require.NoError(t, comp.GeneratePDF(ctx, pages, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), first, first, second, first)
}

func TestCompositor_ExportDocument(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())
	comp := NewCompositor(store, NewRenderer())
	src := bundleSource(t, A4, Size{W: 200, H: 100})

	var buf bytes.Buffer
	require.NoError(t, comp.ExportDocument(ctx, newID(), src, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), A4, Size{W: 200, H: 100})

	id := newID()
	st, err := DefaultStructure(2).InsertBlank(2)
	require.NoError(t, err)
	st, err = st.Remove(0)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, id, st, []Drawing{drawingWith(1), drawingWith(2)}))

	buf.Reset()
	require.NoError(t, comp.ExportDocument(ctx, id, src, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), Size{W: 200, H: 100}, Size{W: 200, H: 100})

	snap, err := store.Snapshot(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, []Drawing{drawingWith(1), drawingWith(2)}, snap.Drawings, "export leaves the store untouched")
}

var pdfCreationDate = regexp.MustCompile(`/CreationDate\(D:([0-9]{14}(?:Z|[+-][0-9]{4}))\)`)

func TestCompositor_GeneratePDFDeterministic(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	comp := NewCompositor(nil, NewRenderer(), WithCreationTime(created))
	pages, err := comp.PagesForPlan(ctx, bundleSource(t, A4, Size{W: 200, H: 100}), Unedited{PageCount: 2}, []Drawing{drawingWith(1)})
	require.NoError(t, err)

	var first, second bytes.Buffer
	require.NoError(t, comp.GeneratePDF(ctx, pages, &first))
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, comp.GeneratePDF(ctx, pages, &second))
	assert.True(t, bytes.Equal(first.Bytes(), second.Bytes()), "identical pages export identical bytes")

	m := pdfCreationDate.FindSubmatch(first.Bytes())
	require.NotNil(t, m)
	stamp, err := time.Parse("20060102150405Z0700", string(m[1]))
	require.NoError(t, err)
	assert.True(t, created.Equal(stamp))
	assertSizes(t, inspectPDFBytes(t, first.Bytes()), A4, Size{W: 200, H: 100})
}

func TestPinCreationDate(t *testing.T) {
	created := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	a := []byte("2 0 obj\n<</CreationDate(D:20261019113825Z)/Producer(tdewolff/canvas)>>\nendobj\n")
	b := []byte("2 0 obj\n<</CreationDate(D:20261019113826Z)/Producer(tdewolff/canvas)>>\nendobj\n")
	n := len(a)
	pa, err := pinCreationDate(a, created)
	require.NoError(t, err)
	pb, err := pinCreationDate(b, created)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Len(t, pa, n)
	assert.Contains(t, string(pa), "/CreationDate(D:20200102030405Z)")

	local, err := pinCreationDate([]byte("<</CreationDate(D:20261019193825+0800)>>"), created)
	require.NoError(t, err)
	assert.Equal(t, "<</CreationDate(D:20200102110405+0800)>>", string(local))

	west, err := pinCreationDate([]byte("<</CreationDate(D:20261019063825-0500)>>"), created)
	require.NoError(t, err)
	assert.Equal(t, "<</CreationDate(D:20200101220405-0500)>>", string(west))

	_, err = pinCreationDate([]byte("<</CreationDate(D:20261019113825Z)>>"), time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	plain := []byte("<</Producer(x)>>")
	out, err := pinCreationDate(plain, created)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestCompositor_ExportDocumentWithoutSource(t *testing.T) {
	ctx := context.Background()
	hook := captureLogs(t)
	store := newTestStore(t, NewMemoryBackend())
	comp := NewCompositor(store, NewRenderer())

	var buf bytes.Buffer
	err := comp.ExportDocument(ctx, newID(), nil, &buf)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Zero(t, buf.Len())

	id := newID()
	st, err := DefaultStructure(2).InsertBlank(1)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, id, st, []Drawing{drawingWith(1), {}, drawingWith(2)}))
	require.NoError(t, comp.ExportDocument(ctx, id, nil, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), A4, A4, A4)
	var warns int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["document"] == id {
			warns++
		}
	}
	assert.Equal(t, 1, warns)
}

func TestCompositor_ExportIgnoresColorMode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, NewMemoryBackend())
	r := NewRenderer()
	comp := NewCompositor(store, r)
	s := openTestSession(t, store, imageSource(t, 200, 100), WithColorMode(Dark), WithDebounce(time.Hour))
	require.NoError(t, s.UpdateDrawing(ctx, 0, drawingWith(1)))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	pages, err := comp.PagesForPlan(ctx, s.Source(), snap.Plan, snap.Drawings)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.InDelta(t, 230, grayAt(pages[0].Raster, 150, 50), 1, "raster rendered in light mode")

	img := rasterizer.Draw(comp.composePage(pages[0]), canvas.DPMM(r.Scale/mmPerPt), canvas.DefaultColorSpace)
	assert.Less(t, grayAt(img, 10, 25), uint8(60), "ink keeps its light color")
	assert.InDelta(t, 230, grayAt(img, 150, 50), 3)

	var buf bytes.Buffer
	require.NoError(t, comp.ExportSession(ctx, s, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), Size{W: 100, H: 50})
}

func TestCompositor_GenerateAssignmentPDF(t *testing.T) {
	ctx := context.Background()
	hook := captureLogs(t)
	store := newTestStore(t, NewMemoryBackend())
	comp := NewCompositor(store, NewRenderer())
	parent := newID()

	structured := SubDocumentKey{Parent: parent, Ordinal: 0}.ID()
	st, err := DefaultStructure(1).InsertBlank(1)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, structured, st, []Drawing{drawingWith(1), drawingWith(2)}))

	lost := SubDocumentKey{Parent: parent, Ordinal: 3}.ID()
	require.NoError(t, store.Commit(ctx, lost, DefaultStructure(1), []Drawing{drawingWith(1)}))

	small := Size{W: 200, H: 100}
	wide, narrow, square := Size{W: 300, H: 200}, Size{W: 100, H: 50}, Size{W: 250, H: 250}
	subs := []SubDocument{
		{Ordinal: 0, Source: bundleSource(t, small)},
		{Ordinal: 1, Source: bundleSource(t, wide, narrow, square)},
		{Ordinal: 2},
		{Ordinal: 3},
		{Ordinal: 4, PageCount: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, comp.GenerateAssignmentPDF(ctx, parent, subs, &buf))
	assertSizes(t, inspectPDFBytes(t, buf.Bytes()), small, small, wide, narrow, square, A4, A4, A4, A4)

	warned := make(map[any]int)
	for _, e := range hook.AllEntries() {
		if o, ok := e.Data["ordinal"]; ok && e.Level == logrus.WarnLevel {
			warned[o]++
		}
	}
	assert.Equal(t, map[any]int{2: 1, 3: 1, 4: 1}, warned)

	buf.Reset()
	err = comp.GenerateAssignmentPDF(ctx, parent, nil, &buf)
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestExportFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	err := ExportFile(ctx, out, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errInjected
	})
	assert.ErrorIs(t, err, errInjected)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file removed on failure")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = ExportFile(canceled, out, func(w io.Writer) error {
		_, err := w.Write([]byte("data"))
		return err
	})
	assert.True(t, errors.Is(err, context.Canceled))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, ExportFile(ctx, out, func(w io.Writer) error {
		_, err := w.Write([]byte("complete"))
		return err
	}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

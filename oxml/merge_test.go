package oxml

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/midbel/xlstream/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func teamRows(values ...[]any) SheetSpec {
	return SheetSpec{
		Name:    "Teams",
		Columns: []Column{{Name: "Team"}, {Name: "Member"}},
		Rows: func(yield func([]any, error) bool) {
			for _, v := range values {
				if !yield(v, nil) {
					return
				}
			}
		},
	}
}

func mergeFile(t *testing.T, spec SheetSpec) []excelize.MergeCell {
	t.Helper()
	var (
		src = writeWorkbook(t, DefaultOptions(), spec)
		dst = filepath.Join(t.TempDir(), "merged.xlsx")
	)
	err := MergeSameCellsFile(context.Background(), src, dst, DefaultOptions())
	require.NoError(t, err)

	x, err := excelize.OpenFile(dst)
	require.NoError(t, err)
	defer x.Close()

	merges, err := x.GetMergeCells("Teams")
	require.NoError(t, err)
	return merges
}

func mergeRefs(merges []excelize.MergeCell) []string {
	var list []string
	for _, m := range merges {
		list = append(list, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	slices.Sort(list)
	return list
}

func TestMergeSameCells(t *testing.T) {
	merges := mergeFile(t, teamRows(
		[]any{"A", "foo"},
		[]any{"A", "bar"},
		[]any{"A", "baz"},
		[]any{"B", "qux"},
		[]any{"B", "quux"},
	))
	assert.Equal(t, []string{"A2:A4", "A5:A6"}, mergeRefs(merges))
	for _, m := range merges {
		if m.GetStartAxis() == "A2" {
			assert.Equal(t, "A", m.GetCellValue())
		}
	}
}

func TestMergeSameCellsDistinct(t *testing.T) {
	merges := mergeFile(t, teamRows(
		[]any{"A", "foo"},
		[]any{"B", "bar"},
		[]any{"C", "baz"},
		[]any{nil, "qux"},
		[]any{nil, "quux"},
	))
	assert.Empty(t, merges)
}

func TestMergeSameCellsExisting(t *testing.T) {
	spec := teamRows(
		[]any{"A", 1},
		[]any{"A", 1},
		[]any{"A", 2},
		[]any{"B", 2},
		[]any{"B", 3},
	)
	spec.Merges = []*layout.Range{
		layout.NewRange(layout.NewPosition(3, 1), layout.NewPosition(3, 2)),
	}
	merges := mergeFile(t, spec)
	assert.Equal(t, []string{"A3:B3", "A5:A6", "B4:B5"}, mergeRefs(merges))
}

func TestMergeUnknownSheet(t *testing.T) {
	var (
		src = writeWorkbook(t, DefaultOptions(), teamRows())
		dst = filepath.Join(t.TempDir(), "merged.xlsx")
	)
	err := MergeSameCellsFile(context.Background(), src, dst, DefaultOptions(), "Other")
	assert.ErrorIs(t, err, ErrFound)
}

func TestMergeCancelled(t *testing.T) {
	src := writeWorkbook(t, DefaultOptions(), teamRows([]any{"A", 1}, []any{"A", 2}))
	f, err := Open(src, DefaultOptions())
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := CreateArchive(filepath.Join(t.TempDir(), "merged.xlsx"))
	require.NoError(t, err)
	defer a.Close()
	err = <-f.MergeSameCellsAsync(ctx, a)
	assert.ErrorIs(t, err, ErrCancelled)
}

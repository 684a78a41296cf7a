package oxml

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var employeeColumns = []Column{
	{Name: "Name", Key: "name"},
	{Name: "Age", Key: "age"},
	{Name: "Salary", Key: "salary", Format: "#,##0.00"},
	{Name: "Active", Key: "active"},
	{Name: "Hired", Key: "hired", Format: "yyyy-mm-dd"},
}

var hired = time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC)

func employeeRows() iter.Seq2[[]any, error] {
	rows := [][]any{
		{"foo", 42, 1500.5, true, hired},
		{"bar", 37, 2100.25, false, hired.AddDate(1, 0, 0)},
		{"foo", nil, 0, true, hired},
	}
	return func(yield func([]any, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func writeWorkbook(t *testing.T, opts Options, specs ...SheetSpec) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "workbook.xlsx")
	w, err := Create(file, opts)
	require.NoError(t, err)
	for _, s := range specs {
		require.NoError(t, w.WriteSheet(context.Background(), s))
	}
	require.NoError(t, w.Close())
	return file
}

func TestWriteRead(t *testing.T) {
	file := writeWorkbook(t, DefaultOptions(), SheetSpec{
		Name:         "Employees",
		Columns:      employeeColumns,
		Rows:         employeeRows(),
		FreezeHeader: true,
		AutoFilter:   true,
		Active:       true,
	})

	f, err := Open(file, DefaultOptions())
	require.NoError(t, err)
	defer f.Close()

	sheets := f.Sheets()
	require.Len(t, sheets, 1)
	assert.Equal(t, "Employees", sheets[0].Name)
	assert.Equal(t, layout.Dimension{Lines: 4, Columns: 5}, sheets[0].Size)

	var rows []*Row
	for row, err := range f.Rows(context.Background(), "employees") {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 4)

	header := rows[0].Values()
	assert.Equal(t, []value.Value{
		value.Text("Name"),
		value.Text("Age"),
		value.Text("Salary"),
		value.Text("Active"),
		value.Text("Hired"),
	}, header)

	first := rows[1].Values()
	require.Len(t, first, 5)
	assert.Equal(t, value.Text("foo"), first[0])
	assert.Equal(t, value.Float(42), first[1])
	assert.Equal(t, value.Float(1500.5), first[2])
	assert.Equal(t, value.Boolean(true), first[3])
	when, ok := first[4].(value.Date)
	require.True(t, ok, "date expected, got %T", first[4])
	assert.True(t, hired.Equal(when.Time()))

	last := rows[3].Values()
	assert.True(t, value.IsBlank(last[1]))
	assert.Equal(t, value.Float(0), last[2])

	assert.Equal(t, 2, f.SharedStrings().Len()-len(employeeColumns))
}

func TestWriteExcelize(t *testing.T) {
	file := writeWorkbook(t, DefaultOptions(), SheetSpec{
		Name:    "Employees",
		Columns: employeeColumns,
		Rows:    employeeRows(),
		Merges: []*layout.Range{
			layout.NewRange(layout.NewPosition(2, 1), layout.NewPosition(3, 1)),
		},
	})

	x, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer x.Close()

	cells := map[string]string{
		"A1": "Name",
		"A2": "foo",
		"B2": "42",
		"C3": "2100.25",
		"D2": "1",
		"D3": "0",
		"E2": "44270",
	}
	for cell, want := range cells {
		got, err := x.GetCellValue("Employees", cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
	merges, err := x.GetMergeCells("Employees")
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A2", merges[0].GetStartAxis())
	assert.Equal(t, "A3", merges[0].GetEndAxis())
}

func TestWriteFastMode(t *testing.T) {
	opts := DefaultOptions()
	opts.FastMode = true
	file := writeWorkbook(t, opts, SheetSpec{
		Columns: employeeColumns,
		Rows:    employeeRows(),
	})

	x, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer x.Close()

	rows, err := x.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "bar", rows[2][0])
}

func TestWriteSheetNames(t *testing.T) {
	file := writeWorkbook(t, DefaultOptions(),
		SheetSpec{Name: "Data"},
		SheetSpec{Name: "data"},
		SheetSpec{},
		SheetSpec{Name: "Hidden", State: StateHidden},
	)
	f, err := Open(file, DefaultOptions())
	require.NoError(t, err)
	defer f.Close()

	var names []string
	for _, s := range f.Sheets() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Data", "data_001", "Sheet3", "Hidden"}, names)

	sh, err := f.Sheet("hidden")
	require.NoError(t, err)
	assert.False(t, sh.Visible())
}

func TestWriteSheetNameRules(t *testing.T) {
	var (
		file = filepath.Join(t.TempDir(), "workbook.xlsx")
		ctx  = context.Background()
		long = strings.Repeat("x", 31)
	)
	w, err := Create(file, DefaultOptions())
	require.NoError(t, err)

	invalid := []string{
		strings.Repeat("x", 40) + "[a]:b/c",
		strings.Repeat("é", 32),
		"a/b",
		`a\b`,
		"what?",
		"[data]",
		"'quoted'",
		"History",
	}
	for _, name := range invalid {
		err := w.WriteSheet(ctx, SheetSpec{Name: name})
		assert.ErrorIs(t, err, ErrSheetName, name)
	}
	require.NoError(t, w.WriteSheet(ctx, SheetSpec{Name: long}))
	require.NoError(t, w.WriteSheet(ctx, SheetSpec{Name: long}))
	require.NoError(t, w.WriteSheet(ctx, SheetSpec{Name: strings.Repeat("é", 31)}))
	require.NoError(t, w.Close())

	f, err := Open(file, DefaultOptions())
	require.NoError(t, err)
	defer f.Close()

	var names []string
	for _, s := range f.Sheets() {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Name), 31, s.Name)
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{long, strings.Repeat("x", 27) + "_001", strings.Repeat("é", 31)}, names)

	x, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, names, x.GetSheetList())
}

func TestWriteInvalidFormat(t *testing.T) {
	var (
		file = filepath.Join(t.TempDir(), "workbook.xlsx")
		ctx  = context.Background()
	)
	w, err := Create(file, DefaultOptions())
	require.NoError(t, err)

	err = w.WriteSheet(ctx, SheetSpec{
		Columns: []Column{{Name: "Bad", Format: "[Red"}},
	})
	assert.ErrorIs(t, err, ErrFormat)

	err = w.WriteSheet(ctx, SheetSpec{
		Media: []Media{{Id: "logo", Data: []byte("not an image")}},
	})
	assert.ErrorIs(t, err, ErrMedia)

	require.NoError(t, w.WriteSheet(ctx, SheetSpec{Columns: employeeColumns, Rows: employeeRows()}))
	require.NoError(t, w.Close())

	f, err := Open(file, DefaultOptions())
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.Sheets(), 1)
}

func TestWriteCancelled(t *testing.T) {
	var (
		dir  = t.TempDir()
		tmp  = t.TempDir()
		file = filepath.Join(dir, "cancelled.xlsx")
	)
	opts := DefaultOptions()
	opts.TempDir = tmp

	w, err := Create(file, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.WriteSheet(ctx, SheetSpec{Columns: employeeColumns, Rows: employeeRows()})
	assert.ErrorIs(t, err, ErrCancelled)

	var se *SheetError
	assert.ErrorAs(t, err, &se)

	assert.Error(t, w.Close())
	assert.ErrorIs(t, w.WriteSheet(context.Background(), SheetSpec{}), ErrClosed)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
	for _, d := range []string{dir, tmp} {
		entries, err := os.ReadDir(d)
		require.NoError(t, err)
		assert.Empty(t, entries, d)
	}
}

func TestWriteRowError(t *testing.T) {
	var (
		file = filepath.Join(t.TempDir(), "workbook.xlsx")
		rows = func(yield func([]any, error) bool) {
			yield([]any{"foo", struct{}{}}, nil)
		}
	)
	w, err := Create(file, DefaultOptions())
	require.NoError(t, err)

	err = w.WriteSheet(context.Background(), SheetSpec{Name: "Data", Rows: rows})
	assert.ErrorIs(t, err, ErrConversion)

	var se *SheetError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Data", se.Sheet)
	assert.Equal(t, int64(1), se.Line)
	assert.Equal(t, int64(2), se.Column)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestRowsFromMaps(t *testing.T) {
	maps := []map[string]any{
		{"name": "foo", "age": 42, "salary": 1.5, "active": true, "hired": hired},
		{"name": "bar"},
	}
	var (
		rows [][]any
		err  error
	)
	for row, e := range RowsFromMaps(employeeColumns, slices.Values(maps)) {
		if e != nil {
			err = e
			break
		}
		rows = append(rows, row)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"foo", 42, 1.5, true, hired}, rows[0])
	assert.ErrorIs(t, err, ErrColumn)
}

func TestWriteMedia(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	file := writeWorkbook(t, DefaultOptions(), SheetSpec{
		Name: "Logo",
		Media: []Media{
			{Id: "logo", Data: buf.Bytes(), Line: 2, Column: 2},
			{Id: "banner", Data: buf.Bytes(), Anchor: TwoCellAnchor},
		},
	})

	entries := readEntries(t, file)
	for _, name := range []string{
		"xl/media/image1.png",
		"xl/media/image2.png",
		"xl/drawings/drawing1.xml",
		"xl/drawings/_rels/drawing1.xml.rels",
		"xl/worksheets/_rels/sheet1.xml.rels",
	} {
		assert.Contains(t, entries, name)
	}
	assert.Contains(t, readEntry(t, entries["[Content_Types].xml"]), `Extension="png"`)

	drawing := readEntry(t, entries["xl/drawings/drawing1.xml"])
	assert.Contains(t, drawing, "<xdr:oneCellAnchor>")
	assert.Contains(t, drawing, "<xdr:twoCellAnchor")
	assert.Contains(t, drawing, `r:embed="rId2"`)

	x, err := excelize.OpenFile(file)
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, []string{"Logo"}, x.GetSheetList())
}

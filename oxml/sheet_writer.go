package oxml

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"time"

	"github.com/midbel/xlstream/format"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
	"github.com/rs/zerolog"
)

// Column describes a column of a written sheet. Index is the 1-based column
// where the values are written, 0 means the position of the column in the
// list. Key is left untouched by the writer and can be used by callers to map
// their data to the column.
type Column struct {
	Index  int
	Name   string
	Width  float64
	Format string
	Style  *Style
	Hidden bool
	Key    any
}

type SheetSpec struct {
	Name         string
	Columns      []Column
	Rows         iter.Seq2[[]any, error]
	State        SheetState
	Active       bool
	FreezeHeader bool
	AutoFilter   bool
	Merges       []*layout.Range
	Media        []Media
}

// RowsFromMaps builds the rows of a sheet from maps keyed by the Key of the
// columns. Missing keys give ErrColumn.
func RowsFromMaps(columns []Column, seq iter.Seq[map[string]any]) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		for m := range seq {
			row := make([]any, len(columns))
			for i, c := range columns {
				key, ok := c.Key.(string)
				if !ok {
					key = c.Name
				}
				v, ok := m[key]
				if !ok {
					yield(nil, fmt.Errorf("%w: %s", ErrColumn, key))
					return
				}
				row[i] = v
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// WriteSheet writes a complete worksheet. The rows are consumed until the
// sequence is exhausted. Invalid formats or media are reported before any
// data is written; any other failure aborts the workbook.
func (w *Writer) WriteSheet(ctx context.Context, spec SheetSpec) error {
	if w.closed {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}
	start := time.Now()
	sw, err := w.prepareSheet(spec)
	if err != nil {
		return err
	}
	defer sw.release()
	if err := sw.write(ctx); err != nil {
		return w.fail(ctx, err)
	}
	w.sheets = append(w.sheets, sw.sheet)
	zerolog.Ctx(ctx).Debug().
		Str("sheet", sw.sheet.Name).
		Int64("rows", sw.line).
		Int("media", len(sw.media)).
		Dur("elapsed", elapsed(start)).
		Msg("sheet written")
	return nil
}

type sheetWriter struct {
	*Writer
	spec  SheetSpec
	sheet *writtenSheet

	columns []int64
	styles  []int
	dates   []bool
	widths  *ColumnWidths
	bounds  layout.Range
	line    int64
	header  bool

	spool *os.File
	out   *bufio.Writer
	media []drawingEntry
}

func (w *Writer) prepareSheet(spec SheetSpec) (*sheetWriter, error) {
	if err := checkSheetName(spec.Name); err != nil {
		return nil, err
	}
	sw := sheetWriter{
		Writer: w,
		spec:   spec,
		widths: NewColumnWidths(w.opts.MinColumnWidth, w.opts.MaxColumnWidth),
		header: len(spec.Columns) > 0 && !w.opts.SkipHeader,
	}
	for i, c := range spec.Columns {
		col := int64(c.Index)
		if col <= 0 {
			col = int64(i + 1)
		}
		if col > layout.MaxColumn {
			return nil, fmt.Errorf("%w: column %d out of range", ErrAddress, col)
		}
		style, date, err := w.columnStyle(c)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		sw.columns = append(sw.columns, col)
		sw.styles = append(sw.styles, style)
		sw.dates = append(sw.dates, date)
		sw.widths.Set(int(col-1), c.Width)
	}
	for i := range spec.Media {
		m := spec.Media[i]
		if err := m.prepare(); err != nil {
			return nil, err
		}
		sw.media = append(sw.media, drawingEntry{Media: m})
	}
	n := len(w.sheets) + 1
	sw.sheet = &writtenSheet{
		Sheet: Sheet{
			Id:     fmt.Sprintf("rId%d", n),
			Name:   w.sheetName(spec.Name),
			Index:  n,
			State:  spec.State,
			Active: spec.Active,
			Path:   w.createTarget("worksheets", fmt.Sprintf("sheet%d.xml", n)),
		},
	}
	if len(sw.media) > 0 {
		sw.sheet.drawing = w.createTarget("drawings", fmt.Sprintf("drawing%d.xml", n))
	}
	return &sw, nil
}

func (w *Writer) columnStyle(c Column) (int, bool, error) {
	var style Style
	if c.Style != nil {
		style = *c.Style
	}
	if c.Format != "" {
		style.NumFmt = c.Format
	}
	if style == (Style{}) {
		return 0, false, nil
	}
	ix, err := w.styles.Register(style)
	if err != nil {
		return 0, false, err
	}
	return ix, style.NumFmt != "" && format.IsDateFormat(style.NumFmt), nil
}

func (w *sheetWriter) write(ctx context.Context) error {
	if w.opts.FastMode {
		return w.writeDirect(ctx)
	}
	f, err := os.CreateTemp(w.opts.TempDir, "xlstream-sheet-*.xml")
	if err != nil {
		return err
	}
	w.spool = f
	w.out = bufio.NewWriterSize(f, w.opts.BufferSize)
	if err := w.writeRows(ctx); err != nil {
		return err
	}
	if err := w.out.Flush(); err != nil {
		return err
	}
	if _, err := w.spool.Seek(0, io.SeekStart); err != nil {
		return err
	}
	out, err := w.archive.Create(w.sheet.Path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriterSize(out, w.opts.BufferSize)
	w.writeHead(buf)
	if _, err := io.Copy(buf, w.spool); err != nil {
		return err
	}
	w.writeTail(buf)
	if err := buf.Flush(); err != nil {
		return err
	}
	return w.writeDrawing()
}

// writeDirect streams the rows in the worksheet entry. Columns keep their
// initial width and no dimension is written.
func (w *sheetWriter) writeDirect(ctx context.Context) error {
	out, err := w.archive.Create(w.sheet.Path)
	if err != nil {
		return err
	}
	w.out = bufio.NewWriterSize(out, w.opts.BufferSize)
	w.writeHead(w.out)
	if err := w.writeRows(ctx); err != nil {
		return err
	}
	w.writeTail(w.out)
	if err := w.out.Flush(); err != nil {
		return err
	}
	return w.writeDrawing()
}

func (w *sheetWriter) writeRows(ctx context.Context) error {
	w.out.WriteString("<sheetData>")
	if w.header {
		w.line++
		w.out.WriteString(`<row r="1">`)
		for i, c := range w.spec.Columns {
			pos := layout.NewPosition(w.line, w.columns[i])
			w.writeString(pos, w.headerStyle, c.Name)
		}
		w.out.WriteString("</row>")
	}
	if w.spec.Rows != nil {
		for values, err := range w.spec.Rows {
			if e := ctx.Err(); e != nil {
				return sheetError(w.sheet.Name, w.line+1, 0, fmt.Errorf("%w: %s", ErrCancelled, e))
			}
			if err != nil {
				return sheetError(w.sheet.Name, w.line+1, 0, err)
			}
			w.line++
			if err := w.writeRow(values); err != nil {
				return err
			}
		}
	}
	w.out.WriteString("</sheetData>")
	return nil
}

func (w *sheetWriter) writeRow(values []any) error {
	fmt.Fprintf(w.out, `<row r="%d">`, w.line)
	for i, v := range values {
		var (
			col   int64
			style int
			date  bool
		)
		if i < len(w.columns) {
			col, style, date = w.columns[i], w.styles[i], w.dates[i]
		} else {
			col = int64(i + 1)
			if n := len(w.columns); n > 0 {
				col = w.columns[n-1] + int64(i-n+1)
			}
		}
		val, err := value.Of(v)
		if err != nil {
			return sheetError(w.sheet.Name, w.line, col, err)
		}
		pos := layout.NewPosition(w.line, col)
		switch x := val.(type) {
		case value.Blank:
			continue
		case value.Text:
			w.writeString(pos, style, string(x))
		case value.Float:
			w.writeCell(pos, style, "", x.String())
			w.widths.Observe(int(col-1), x.String())
		case value.Boolean:
			v := "0"
			if x {
				v = "1"
			}
			w.writeCell(pos, style, TypeBool, v)
		case value.Date:
			if !date {
				style = w.dateStyle
			}
			serial := format.ToSerial(x.Time(), w.opts.Date1904)
			w.writeCell(pos, style, "", strconv.FormatFloat(serial, 'f', -1, 64))
			w.widths.Fit(int(col-1), len(w.opts.DateFormat))
		case value.Error:
			w.writeCell(pos, style, TypeError, string(x))
		default:
			return sheetError(w.sheet.Name, w.line, col, fmt.Errorf("%w: %T", ErrConversion, val))
		}
	}
	w.out.WriteString("</row>")
	return nil
}

func (w *sheetWriter) writeString(pos layout.Position, style int, str string) {
	ix := w.sst.Intern(str)
	w.writeCell(pos, style, TypeSharedStr, strconv.Itoa(ix))
	w.widths.Observe(int(pos.Column-1), str)
}

func (w *sheetWriter) writeCell(pos layout.Position, style int, kind, val string) {
	w.bounds.Expand(pos)
	w.out.WriteString(`<c r="`)
	w.out.WriteString(pos.Addr())
	w.out.WriteByte('"')
	if style > 0 {
		fmt.Fprintf(w.out, ` s="%d"`, style)
	}
	if kind != "" {
		fmt.Fprintf(w.out, ` t="%s"`, kind)
	}
	w.out.WriteString("><v>")
	escapeText(w.out, val)
	w.out.WriteString("</v></c>")
}

func (w *sheetWriter) writeHead(out *bufio.Writer) {
	out.WriteString(xmlHeader)
	fmt.Fprintf(out, `<worksheet xmlns="%s" xmlns:r="%s">`, typeMainUrl, typeRelUrl)
	if !w.opts.FastMode {
		ref := "A1"
		if w.bounds.Starts.Valid() {
			ref = w.bounds.String()
		}
		fmt.Fprintf(out, `<dimension ref="%s"/>`, ref)
	}
	out.WriteString(`<sheetViews><sheetView workbookViewId="0"`)
	if w.spec.Active {
		out.WriteString(` tabSelected="1"`)
	}
	if w.spec.FreezeHeader {
		out.WriteString(`><pane ySplit="1" topLeftCell="A2" activePane="bottomLeft" state="frozen"/>`)
		out.WriteString(`<selection pane="bottomLeft"/></sheetView>`)
	} else {
		out.WriteString(`/>`)
	}
	out.WriteString(`</sheetViews>`)
	out.WriteString(`<sheetFormatPr defaultRowHeight="15"/>`)
	w.writeColumns(out)
}

func (w *sheetWriter) writeColumns(out *bufio.Writer) {
	hidden := make(map[int64]bool)
	for i, c := range w.spec.Columns {
		if c.Hidden {
			hidden[w.columns[i]] = true
		}
	}
	if w.widths.Len() == 0 && len(hidden) == 0 {
		return
	}
	out.WriteString("<cols>")
	for i := 0; i < w.widths.Len(); i++ {
		col := i + 1
		width := strconv.FormatFloat(w.widths.Width(i), 'f', -1, 64)
		fmt.Fprintf(out, `<col min="%d" max="%[1]d" width="%s" customWidth="1"`, col, width)
		if hidden[int64(col)] {
			out.WriteString(` hidden="1"`)
		}
		out.WriteString("/>")
	}
	out.WriteString("</cols>")
}

func (w *sheetWriter) writeTail(out *bufio.Writer) {
	if w.spec.AutoFilter && w.header {
		first, last := w.columns[0], w.columns[0]
		for _, c := range w.columns {
			first, last = min(first, c), max(last, c)
		}
		rg := layout.NewRange(layout.NewPosition(1, first), layout.NewPosition(max(w.line, 1), last))
		fmt.Fprintf(out, `<autoFilter ref="%s"/>`, rg)
		w.sheet.filter = fmt.Sprintf("'%s'!$%s$%d:$%s$%d", w.sheet.Name, layout.ColumnName(first), 1, layout.ColumnName(last), rg.Ends.Line)
	}
	if len(w.spec.Merges) > 0 {
		fmt.Fprintf(out, `<mergeCells count="%d">`, len(w.spec.Merges))
		for _, m := range w.spec.Merges {
			fmt.Fprintf(out, `<mergeCell ref="%s"/>`, m.Normalize())
		}
		out.WriteString("</mergeCells>")
	}
	out.WriteString(`<pageMargins left="0.7" right="0.7" top="0.75" bottom="0.75" header="0.3" footer="0.3"/>`)
	if w.sheet.drawing != "" {
		out.WriteString(`<drawing r:id="rId1"/>`)
	}
	out.WriteString("</worksheet>")
}

// writeDrawing stores the images of the sheet with the drawing part and the
// relationships linking them to the worksheet.
func (w *sheetWriter) writeDrawing() error {
	if w.sheet.drawing == "" {
		return nil
	}
	rels := xmlRelations{
		Xmlns: typePackageUrl,
	}
	for i := range w.media {
		w.Writer.media++
		name := fmt.Sprintf("image%d.%s", w.Writer.media, w.media[i].Ext)
		target := w.createTarget("media", name)
		out, err := w.archive.Create(target)
		if err != nil {
			return err
		}
		if _, err := out.Write(w.media[i].Data); err != nil {
			return err
		}
		w.media[i].relation = fmt.Sprintf("rId%d", i+1)
		w.media[i].target = target
		w.sheet.media = append(w.sheet.media, target)
		rx := xmlRelation{
			Id:     w.media[i].relation,
			Type:   typeImageUrl,
			Target: "../media/" + name,
		}
		rels.Relations = append(rels.Relations, rx)
	}
	out, err := w.archive.Create(w.sheet.drawing)
	if err != nil {
		return err
	}
	if err := writeDrawing(out, w.media); err != nil {
		return err
	}
	w.encodeXML(relsPath(w.sheet.drawing), &rels)

	_, file := splitPart(w.sheet.drawing)
	sheetRels := xmlRelations{
		Xmlns: typePackageUrl,
		Relations: []xmlRelation{
			{
				Id:     "rId1",
				Type:   typeDrawingUrl,
				Target: "../drawings/" + file,
			},
		},
	}
	w.encodeXML(relsPath(w.sheet.Path), &sheetRels)
	return w.err
}

func (w *sheetWriter) release() {
	if w.spool == nil {
		return
	}
	w.spool.Close()
	os.Remove(w.spool.Name())
	w.spool = nil
}

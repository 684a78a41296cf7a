package oxml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/midbel/xlstream/format"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
)

const (
	TypeSharedStr = "s"
	TypeInlineStr = "inlineStr"
	TypeFormula   = "str"
	TypeDate      = "d"
	TypeError     = "e"
	TypeBool      = "b"
	TypeNumber    = "n"
)

type Cell struct {
	layout.Position
	Type    string
	Style   int
	Value   value.Value
	Formula string
}

type Row struct {
	Line   int64
	Hidden bool
	Cells  []Cell
}

// Values gives the values of the row indexed by column, starting at column
// A. Missing cells are blank.
func (r *Row) Values() []value.Value {
	var list []value.Value
	for _, c := range r.Cells {
		for int64(len(list)) < c.Column-1 {
			list = append(list, value.Empty())
		}
		list = append(list, c.Value)
	}
	return list
}

// SheetReader pulls the rows of a worksheet one at a time. Only the cells of
// the current row are kept in memory.
type SheetReader struct {
	ctx   context.Context
	file  *File
	sheet *Sheet
	rc    io.ReadCloser
	dec   *xml.Decoder

	row    *Row
	line   int64
	merges []*layout.Range
	err    error

	inData bool
	done   bool
	closed bool
}

func readSheet(ctx context.Context, file *File, sheet *Sheet, rc io.ReadCloser) *SheetReader {
	return &SheetReader{
		ctx:   ctx,
		file:  file,
		sheet: sheet,
		rc:    rc,
		dec:   xml.NewDecoder(rc),
	}
}

func (r *SheetReader) Sheet() Sheet {
	return *r.sheet
}

func (r *SheetReader) Next() bool {
	if r.done || r.err != nil || r.closed {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.fail(0, 0, fmt.Errorf("%w: %s", ErrCancelled, err))
		return false
	}
	r.row = nil
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			r.done = true
			return false
		}
		if err != nil {
			r.fail(r.lastLine(), 0, fmt.Errorf("%w: %s", ErrMalformed, err))
			return false
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "sheetData":
				r.inData = true
			case "dimension":
				if rg, err := layout.ParseRange(getAttr(el, "ref")); err == nil {
					r.sheet.Size = layout.Dimension{
						Lines:   rg.Ends.Line,
						Columns: rg.Ends.Column,
					}
				}
			case "row":
				if !r.inData {
					break
				}
				row, err := r.readRow(el)
				if err != nil {
					r.fail(row.Line, 0, err)
					return false
				}
				r.row = row
				return true
			case "mergeCell":
				rg, err := layout.ParseRange(getAttr(el, "ref"))
				if err != nil {
					r.fail(0, 0, fmt.Errorf("%w: invalid merge cell: %s", ErrMalformed, err))
					return false
				}
				r.merges = append(r.merges, rg)
			default:
			}
		case xml.EndElement:
			if el.Name.Local == "sheetData" {
				r.inData = false
			}
		default:
		}
	}
}

func (r *SheetReader) Row() *Row {
	return r.row
}

func (r *SheetReader) Err() error {
	return r.err
}

// Merges gives the merged regions of the sheet. The list is complete once
// Next has returned false.
func (r *SheetReader) Merges() []*layout.Range {
	return r.merges
}

func (r *SheetReader) Rows() iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		for r.Next() {
			if !yield(r.Row(), nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *SheetReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}

func (r *SheetReader) fail(line, column int64, err error) {
	r.err = sheetError(r.sheet.Name, line, column, err)
	r.Close()
	r.file.dispose()
}

func (r *SheetReader) lastLine() int64 {
	if r.row == nil {
		return 0
	}
	return r.row.Line
}

func (r *SheetReader) readRow(start xml.StartElement) (*Row, error) {
	var row Row
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "r":
			n, err := strconv.ParseInt(a.Value, 10, 64)
			if err != nil || n <= 0 {
				return &row, fmt.Errorf("%w: invalid row number %q", ErrMalformed, a.Value)
			}
			row.Line = n
		case "hidden":
			row.Hidden = a.Value == "1" || a.Value == "true"
		default:
		}
	}
	if row.Line == 0 {
		row.Line = r.line + 1
	}
	r.line = row.Line
	var column int64
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return &row, fmt.Errorf("%w: unexpected end of part in row", ErrMalformed)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "c" {
				if err := r.dec.Skip(); err != nil {
					return &row, fmt.Errorf("%w: %s", ErrMalformed, err)
				}
				break
			}
			cell, err := r.readCell(el, row.Line, column+1)
			if err != nil {
				return &row, sheetError(r.sheet.Name, cell.Line, cell.Column, err)
			}
			column = cell.Column
			row.Cells = append(row.Cells, cell)
		case xml.EndElement:
			if el.Name.Local == "row" {
				return &row, nil
			}
		default:
		}
	}
}

func (r *SheetReader) readCell(start xml.StartElement, line, column int64) (Cell, error) {
	cell := Cell{
		Position: layout.NewPosition(line, column),
	}
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "r":
			pos, err := layout.ParsePosition(a.Value)
			if err != nil {
				return cell, fmt.Errorf("%w: %s", ErrMalformed, err)
			}
			cell.Position = pos
		case "t":
			cell.Type = a.Value
		case "s":
			n, err := strconv.Atoi(a.Value)
			if err != nil {
				return cell, fmt.Errorf("%w: invalid style %q", ErrMalformed, a.Value)
			}
			cell.Style = n
		default:
		}
	}
	var (
		raw    strings.Builder
		inline strings.Builder
		target *strings.Builder
		depth  int
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return cell, fmt.Errorf("%w: unexpected end of part in cell", ErrMalformed)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "v":
				target = &raw
			case "f":
				var f string
				if err := r.dec.DecodeElement(&f, &el); err != nil {
					return cell, fmt.Errorf("%w: %s", ErrMalformed, err)
				}
				cell.Formula = f
			case "t":
				if depth == 0 {
					target = &inline
				}
			case "rPh":
				depth++
			default:
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "c":
				return cell, r.resolve(&cell, raw.String(), inline.String())
			case "v", "t":
				target = nil
			case "rPh":
				depth--
			default:
			}
		case xml.CharData:
			if target != nil {
				target.Write(el)
			}
		default:
		}
	}
}

func (r *SheetReader) resolve(cell *Cell, raw, inline string) error {
	date, err := r.file.styles.isDate(cell.Style)
	if err != nil {
		return err
	}
	switch cell.Type {
	case TypeSharedStr:
		ix, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid shared string index %q", ErrMalformed, raw)
		}
		str, err := r.file.sst.At(ix)
		if err != nil {
			return err
		}
		cell.Value = value.Text(str)
	case TypeInlineStr:
		cell.Value = value.Text(inline)
	case TypeFormula:
		cell.Value = value.Text(raw)
	case TypeBool:
		cell.Value = value.Boolean(raw == "1" || raw == "true")
	case TypeError:
		cell.Value = value.Error(raw)
	case TypeDate:
		when, err := parseISODate(raw)
		if err != nil {
			return err
		}
		cell.Value = value.Date(when)
	case TypeNumber, "":
		if raw == "" {
			cell.Value = value.Empty()
			break
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid number %q", ErrMalformed, raw)
		}
		if date {
			cell.Value = value.Date(format.FromSerial(n, r.file.date1904))
		} else {
			cell.Value = value.Float(n)
		}
	default:
		return fmt.Errorf("%w: unknown cell type %q", ErrMalformed, cell.Type)
	}
	return nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"15:04:05",
}

func parseISODate(str string) (time.Time, error) {
	for _, pattern := range isoLayouts {
		if t, err := time.Parse(pattern, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrMalformed, str)
}

type Record struct {
	Line   int64
	names  []string
	values []value.Value
}

func newRecord(row *Row, names []string) Record {
	rec := Record{
		Line:   row.Line,
		names:  names,
		values: row.Values(),
	}
	if rec.names == nil {
		for i := range rec.values {
			rec.names = append(rec.names, layout.ColumnName(int64(i+1)))
		}
	}
	return rec
}

func (r Record) Get(name string) (value.Value, error) {
	for i, n := range r.names {
		if n != name {
			continue
		}
		if i >= len(r.values) {
			return value.Empty(), nil
		}
		return r.values[i], nil
	}
	return nil, fmt.Errorf("%w: %s (line %d)", ErrColumn, name, r.Line)
}

func (r Record) Names() []string {
	return r.names
}

func (r Record) Values() []value.Value {
	return r.values
}

func (r Record) Float(name string) (float64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	f, err := value.CastToFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s (line %d): %w", name, r.Line, err)
	}
	return float64(f), nil
}

func (r Record) Text(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	str, err := value.CastToText(v)
	if err != nil {
		return "", fmt.Errorf("%s (line %d): %w", name, r.Line, err)
	}
	return string(str), nil
}

// Date gives the value of a date cell or of a text cell holding an ISO
// date.
func (r Record) Date(name string) (time.Time, error) {
	v, err := r.Get(name)
	if err != nil {
		return time.Time{}, err
	}
	d, err := value.CastToDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s (line %d): %w", name, r.Line, err)
	}
	return d.Time(), nil
}

package oxml

import (
	"cmp"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"slices"
	"time"

	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
	"github.com/rs/zerolog"
)

// elements following mergeCells in a worksheet
var afterMerges = []string{
	"phoneticPr",
	"conditionalFormatting",
	"dataValidations",
	"hyperlinks",
	"printOptions",
	"pageMargins",
	"pageSetup",
	"headerFooter",
	"rowBreaks",
	"colBreaks",
	"customProperties",
	"cellWatches",
	"ignoredErrors",
	"smartTags",
	"drawing",
	"legacyDrawing",
	"legacyDrawingHF",
	"picture",
	"oleObjects",
	"controls",
	"webPublishItems",
	"tableParts",
	"extLst",
}

func MergeSameCellsFile(ctx context.Context, src, dst string, opts Options, sheets ...string) error {
	f, err := Open(src, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := CreateArchive(dst)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := f.MergeSameCells(ctx, a, sheets...); err != nil {
		return err
	}
	return a.Finalize()
}

func (f *File) MergeSameCellsAsync(ctx context.Context, a *Archive, sheets ...string) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- f.MergeSameCells(ctx, a, sheets...)
	}()
	return ch
}

// MergeSameCells merges the vertical runs of cells having the same value in
// the given sheets, or in all sheets when none is given, and copies the
// package into a. Existing merged regions are kept and new regions
// overlapping them are ignored. The archive is not finalized.
func (f *File) MergeSameCells(ctx context.Context, a *Archive, sheets ...string) error {
	if f.pkg.closed {
		return ErrClosed
	}
	defer f.pkg.Rollback()

	var (
		start  = time.Now()
		logger = zerolog.Ctx(ctx)
	)
	list, err := f.selectSheets(sheets)
	if err != nil {
		return err
	}
	for _, sh := range list {
		existing, created, err := f.detectMerges(ctx, sh)
		if err != nil {
			f.dispose()
			return err
		}
		logger.Debug().
			Str("sheet", sh.Name).
			Int("existing", len(existing)).
			Int("created", len(created)).
			Msg("merge regions detected")
		if len(created) == 0 {
			continue
		}
		m := merger{
			merges: append(existing, created...),
		}
		if err := rewritePart(ctx, f.pkg, sh.Path, m.rewrite); err != nil {
			f.dispose()
			return sheetError(sh.Name, 0, 0, err)
		}
	}
	if err := f.pkg.Commit(ctx, a); err != nil {
		f.dispose()
		return err
	}
	logger.Debug().Int("sheets", len(list)).Dur("elapsed", elapsed(start)).Msg("merge done")
	return nil
}

func (f *File) selectSheets(names []string) ([]*Sheet, error) {
	if len(names) == 0 {
		return f.sheets, nil
	}
	var list []*Sheet
	for _, n := range names {
		sh, err := f.sheet(n)
		if err != nil {
			return nil, err
		}
		list = append(list, sh)
	}
	return list, nil
}

type mergeRun struct {
	starts int64
	last   int64
	value  value.Value
}

func (r mergeRun) region(column int64) *layout.Range {
	return layout.NewRange(layout.NewPosition(r.starts, column), layout.NewPosition(r.last, column))
}

// detectMerges reads a sheet and returns its merged regions and the regions
// made of runs of at least two equal values in a column.
func (f *File) detectMerges(ctx context.Context, sh *Sheet) ([]*layout.Range, []*layout.Range, error) {
	rs, err := f.ReadSheet(ctx, sh.Name)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()

	var (
		runs    = make(map[int64]*mergeRun)
		created []*layout.Range
	)
	closeRun := func(col int64, run *mergeRun) {
		if run.last > run.starts {
			created = append(created, run.region(col))
		}
	}
	for rs.Next() {
		row := rs.Row()
		for _, c := range row.Cells {
			if value.IsBlank(c.Value) {
				continue
			}
			run, ok := runs[c.Column]
			if ok && run.last == row.Line-1 && value.Equal(run.value, c.Value) {
				run.last = row.Line
				continue
			}
			if ok {
				closeRun(c.Column, run)
			}
			runs[c.Column] = &mergeRun{
				starts: row.Line,
				last:   row.Line,
				value:  c.Value,
			}
		}
	}
	if err := rs.Err(); err != nil {
		return nil, nil, err
	}
	for col, run := range runs {
		closeRun(col, run)
	}
	existing := rs.Merges()
	created = slices.DeleteFunc(created, func(rg *layout.Range) bool {
		return slices.ContainsFunc(existing, rg.Overlaps)
	})
	slices.SortFunc(created, func(a, b *layout.Range) int {
		if c := cmp.Compare(a.Starts.Line, b.Starts.Line); c != 0 {
			return c
		}
		return cmp.Compare(a.Starts.Column, b.Starts.Column)
	})
	return existing, created, nil
}

type merger struct {
	merges  []*layout.Range
	written bool
}

// rewrite replaces the mergeCells element of the sheet or inserts a new one
// before the first element that must follow it.
func (m *merger) rewrite(dec *xml.Decoder, out *rawWriter) error {
	var (
		depth  int
		prefix string
	)
	for {
		tok, err := nextToken(dec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				prefix = el.Name.Space
			}
			if depth == 2 && !m.written {
				if el.Name.Local == "mergeCells" {
					if _, err := readElement(dec, el); err != nil {
						return err
					}
					depth--
					m.flush(out, prefix)
					continue
				}
				if slices.Contains(afterMerges, el.Name.Local) {
					m.flush(out, prefix)
				}
			}
		case xml.EndElement:
			if depth == 1 && !m.written {
				m.flush(out, prefix)
			}
			depth--
		default:
		}
		out.Write(tok)
	}
}

func (m *merger) flush(out *rawWriter, prefix string) {
	writeMerges(out, prefix, m.merges)
	m.written = true
}

package oxml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	sax "github.com/midbel/codecs/xml"
	"github.com/midbel/xlstream/layout"
	"github.com/rs/zerolog"
)

// File is a workbook opened for reading. Only the workbook level parts are
// loaded when the file is opened, worksheets are read on demand.
type File struct {
	pkg  *Package
	opts Options

	workbook  string
	relations xmlRelations
	sheets    []*Sheet
	sst       *SharedStrings
	styles    *styleIndex
	date1904  bool
}

func Open(file string, opts Options) (*File, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	pkg, err := OpenPackage(file)
	if err != nil {
		return nil, err
	}
	return openFile(pkg, opts)
}

func OpenReader(r io.ReaderAt, size int64, opts Options) (*File, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	pkg, err := ReadPackage(r, size)
	if err != nil {
		return nil, err
	}
	return openFile(pkg, opts)
}

func openFile(pkg *Package, opts Options) (*File, error) {
	pkg.tempDir = opts.TempDir
	rs := reader{
		pkg: pkg,
	}
	file, err := rs.ReadFile()
	if err != nil {
		pkg.Close()
		return nil, err
	}
	file.opts = opts
	return file, nil
}

func (f *File) Close() error {
	return f.pkg.Close()
}

func (f *File) Sheets() []Sheet {
	var list []Sheet
	for _, s := range f.sheets {
		list = append(list, *s)
	}
	return list
}

func (f *File) Sheet(name string) (Sheet, error) {
	s, err := f.sheet(name)
	if err != nil {
		return Sheet{}, err
	}
	return *s, nil
}

func (f *File) ActiveSheet() (Sheet, error) {
	ix := slices.IndexFunc(f.sheets, func(s *Sheet) bool {
		return s.Active
	})
	if ix < 0 {
		if len(f.sheets) == 0 {
			return Sheet{}, fmt.Errorf("active sheet: %w", ErrFound)
		}
		ix = 0
	}
	return *f.sheets[ix], nil
}

func (f *File) Date1904() bool {
	return f.date1904
}

func (f *File) SharedStrings() *SharedStrings {
	return f.sst
}

// ReadSheet opens a worksheet for reading. An empty name selects the active
// sheet.
func (f *File) ReadSheet(ctx context.Context, name string) (*SheetReader, error) {
	if f.pkg.closed {
		return nil, ErrClosed
	}
	sh, err := f.sheet(name)
	if err != nil {
		return nil, err
	}
	rc, err := f.pkg.Open(sh.Path)
	if err != nil {
		return nil, sheetError(sh.Name, 0, 0, err)
	}
	zerolog.Ctx(ctx).Debug().Str("sheet", sh.Name).Str("part", sh.Path).Msg("reading sheet")
	return readSheet(ctx, f, sh, rc), nil
}

func (f *File) Rows(ctx context.Context, name string) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		rs, err := f.ReadSheet(ctx, name)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rs.Close()
		for row, err := range rs.Rows() {
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// Records reads a sheet as a sequence of records. With header set, the
// first row gives the names of the columns, otherwise columns are named
// with their letters.
func (f *File) Records(ctx context.Context, name string, header bool) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var (
			names []string
			done  = !header
		)
		for row, err := range f.Rows(ctx, name) {
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !done {
				for _, v := range row.Values() {
					names = append(names, v.String())
				}
				done = true
				continue
			}
			rec := newRecord(row, names)
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (f *File) sheet(name string) (*Sheet, error) {
	if name == "" {
		s, err := f.ActiveSheet()
		if err != nil {
			return nil, err
		}
		name = s.Name
	}
	ix := slices.IndexFunc(f.sheets, func(s *Sheet) bool {
		return strings.EqualFold(s.Name, name)
	})
	if ix < 0 {
		return nil, fmt.Errorf("sheet %s: %w", name, ErrFound)
	}
	return f.sheets[ix], nil
}

func (f *File) dispose() {
	f.pkg.Close()
}

type reader struct {
	pkg *Package
	err error
}

func (r *reader) ReadFile() (*File, error) {
	file := File{
		pkg: r.pkg,
	}
	file.workbook = r.readWorkbookLocation()
	r.readWorkbook(&file)
	r.readRelations(&file)
	r.readSharedStrings(&file)
	r.readStyles(&file)
	r.readDimensions(&file)
	return &file, r.err
}

func (r *reader) readWorkbookLocation() string {
	if r.invalid() {
		return ""
	}
	var root xmlRelations
	if err := r.decodeXML("_rels/.rels", &root); err != nil {
		return ""
	}
	rel, ok := root.find(relDocument)
	if !ok {
		r.err = fmt.Errorf("%w: no workbook relationship", ErrPackage)
		return ""
	}
	return resolveTarget("", rel.Target)
}

func (r *reader) readWorkbook(file *File) {
	if r.invalid() {
		return
	}
	var root xmlWorkbook
	if err := r.decodeXML(file.workbook, &root); err != nil {
		return
	}
	active := 0
	if len(root.Views) > 0 {
		active = root.Views[0].ActiveTab
	}
	file.date1904 = root.Properties.Date1904 == "1" || root.Properties.Date1904 == "true"
	for i, xs := range root.Sheets {
		s := Sheet{
			Id:     xs.relation(),
			Name:   xs.Name,
			Index:  xs.Index,
			State:  xs.State,
			Active: i == active,
		}
		file.sheets = append(file.sheets, &s)
	}
}

func (r *reader) readRelations(file *File) {
	if r.invalid() {
		return
	}
	if err := r.decodeXML(relsPath(file.workbook), &file.relations); err != nil {
		return
	}
	dir, _ := splitPart(file.workbook)
	for _, s := range file.sheets {
		rel, ok := file.relations.get(s.Id)
		if !ok || !strings.HasSuffix(rel.Type, relSheet) {
			r.err = fmt.Errorf("%w: sheet %s has no worksheet part", ErrPackage, s.Name)
			return
		}
		s.Path = resolveTarget(dir, rel.Target)
	}
}

func (r *reader) readSharedStrings(file *File) {
	if r.invalid() {
		return
	}
	file.sst = NewSharedStrings()
	rel, ok := file.relations.find(relShared)
	if !ok {
		return
	}
	dir, _ := splitPart(file.workbook)
	rc, err := r.pkg.Open(resolveTarget(dir, rel.Target))
	if err != nil {
		r.err = err
		return
	}
	defer rc.Close()
	file.sst, r.err = readSharedStrings(rc)
}

func (r *reader) readStyles(file *File) {
	if r.invalid() {
		return
	}
	rel, ok := file.relations.find(relStyles)
	if !ok {
		return
	}
	dir, _ := splitPart(file.workbook)
	rc, err := r.pkg.Open(resolveTarget(dir, rel.Target))
	if err != nil {
		r.err = err
		return
	}
	defer rc.Close()
	file.styles, r.err = readStyles(rc)
}

// readDimensions looks for the dimension element found at the top of each
// worksheet. Parsing stops at the sheet data.
func (r *reader) readDimensions(file *File) {
	for _, s := range file.sheets {
		if r.invalid() {
			return
		}
		rc, err := r.pkg.Open(s.Path)
		if err != nil {
			r.err = err
			return
		}
		s.Size = scanDimension(rc)
		rc.Close()
	}
}

var errDimension = errors.New("dimension found")

func scanDimension(r io.Reader) layout.Dimension {
	var (
		dim layout.Dimension
		rs  = sax.NewReader(r)
	)
	rs.Element(sax.LocalName("dimension"), func(_ *sax.Reader, el sax.E) error {
		rg, err := layout.ParseRange(el.GetAttributeValue("ref"))
		if err == nil {
			dim.Lines = rg.Ends.Line
			dim.Columns = rg.Ends.Column
		}
		return errDimension
	})
	rs.Element(sax.LocalName("sheetData"), func(_ *sax.Reader, _ sax.E) error {
		return errDimension
	})
	rs.Start()
	return dim
}

func (r *reader) decodeXML(name string, ptr any) error {
	if r.invalid() {
		return r.err
	}
	rs, err := r.pkg.Open(name)
	if err != nil {
		if errors.Is(err, ErrFound) {
			err = fmt.Errorf("%w: %s missing", ErrPackage, name)
		}
		r.err = err
		return r.err
	}
	defer rs.Close()
	if err := xml.NewDecoder(rs).Decode(ptr); err != nil {
		r.err = fmt.Errorf("%w: fail to read data from %s: %s", ErrMalformed, name, err)
	}
	return r.err
}

func (r *reader) invalid() bool {
	return r.err != nil
}

func getAttr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

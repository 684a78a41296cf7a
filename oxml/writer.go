package oxml

import (
	"compress/flate"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Writer produces a workbook sheet by sheet. The workbook level parts are
// written when the writer is closed.
type Writer struct {
	archive *Archive
	opts    Options

	sst    *SharedStrings
	styles *StyleSheet
	sheets []*writtenSheet
	names  map[string]int

	headerStyle int
	dateStyle   int
	media       int

	closed bool
	err    error
}

type writtenSheet struct {
	Sheet
	filter  string
	drawing string
	media   []string
}

func Create(file string, opts Options) (*Writer, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	a, err := CreateArchive(file)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(a, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return w, nil
}

// NewWriter writes a workbook to w. w is not closed by the writer.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return newWriter(NewArchive(w), opts)
}

func newWriter(a *Archive, opts Options) (*Writer, error) {
	if opts.FastMode {
		a.setLevel(flate.BestSpeed)
	}
	w := Writer{
		archive: a,
		opts:    opts,
		sst:     NewSharedStrings(),
		styles:  NewStyleSheet(),
		names:   make(map[string]int),
	}
	var err error
	if w.headerStyle, err = w.styles.Register(HeaderStyle()); err != nil {
		return nil, err
	}
	if w.dateStyle, err = w.styles.Register(Style{NumFmt: opts.DateFormat}); err != nil {
		return nil, err
	}
	return &w, nil
}

// WriteSheetAsync runs WriteSheet in its own goroutine. The returned channel
// receives the result of the write.
func (w *Writer) WriteSheetAsync(ctx context.Context, spec SheetSpec) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- w.WriteSheet(ctx, spec)
	}()
	return ch
}

// Close writes the workbook level parts and finalizes the archive.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	if w.err != nil {
		w.abort()
		return w.err
	}
	w.writeSharedStrings()
	w.writeStyles()
	w.writeWorkbook()
	w.writeRelationForSheets()
	w.writeRelations()
	w.writeContentTypes()
	if w.invalid() {
		w.abort()
		return w.err
	}
	w.closed = true
	return w.archive.Finalize()
}

// Abort drops the workbook. Nothing is written to the destination.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.abort()
}

func (w *Writer) abort() {
	w.closed = true
	w.archive.Close()
}

func (w *Writer) fail(ctx context.Context, err error) error {
	w.err = err
	zerolog.Ctx(ctx).Debug().Err(err).Msg("write aborted")
	w.abort()
	return err
}

func (w *Writer) sheetName(name string) string {
	if name == "" {
		name = fmt.Sprintf("Sheet%d", len(w.sheets)+1)
	}
	base := name
	for {
		key := strings.ToLower(name)
		n, ok := w.names[key]
		w.names[key] = n + 1
		if !ok {
			return name
		}
		suffix := fmt.Sprintf("_%03d", n)
		if runes := []rune(base); len(runes)+len(suffix) > maxSheetName {
			base = string(runes[:maxSheetName-len(suffix)])
		}
		name = base + suffix
	}
}

const maxSheetName = 31

// checkSheetName applies the rules spreadsheet applications enforce on the
// names of the sheets.
func checkSheetName(name string) error {
	if name == "" {
		return nil
	}
	if n := utf8.RuneCountInString(name); n > maxSheetName {
		return fmt.Errorf("%w: %q has %d characters (max %d)", ErrSheetName, name, n, maxSheetName)
	}
	if ix := strings.IndexAny(name, `[]:*?/\`); ix >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrSheetName, name, name[ix])
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrSheetName, name)
	}
	if strings.EqualFold(name, "history") {
		return fmt.Errorf("%w: %q is reserved", ErrSheetName, name)
	}
	return nil
}

func (w *Writer) writeContentTypes() {
	if w.invalid() {
		return
	}
	root := xmlContentTypes{
		Xmlns: typeContentUrl,
		Defaults: []xmlDefault{
			{
				Extension:   "rels",
				ContentType: mimeRels,
			},
			{
				Extension:   "xml",
				ContentType: mimeXml,
			},
		},
		Overrides: []xmlOverride{
			{
				PartName:    "/xl/workbook.xml",
				ContentType: mimeWorkbook,
			},
			{
				PartName:    "/xl/sharedStrings.xml",
				ContentType: mimeSharedString,
			},
			{
				PartName:    "/xl/styles.xml",
				ContentType: mimeStyle,
			},
		},
	}
	var exts []string
	for _, s := range w.sheets {
		ox := xmlOverride{
			PartName:    "/" + s.Path,
			ContentType: mimeWorksheet,
		}
		root.Overrides = append(root.Overrides, ox)
		if s.drawing == "" {
			continue
		}
		ox = xmlOverride{
			PartName:    "/" + s.drawing,
			ContentType: mimeDrawing,
		}
		root.Overrides = append(root.Overrides, ox)
		for _, m := range s.media {
			ext := m[strings.LastIndexByte(m, '.')+1:]
			if !slices.Contains(exts, ext) {
				exts = append(exts, ext)
			}
		}
	}
	for _, e := range exts {
		dx := xmlDefault{
			Extension:   e,
			ContentType: mediaTypes[e],
		}
		root.Defaults = append(root.Defaults, dx)
	}
	w.encodeXML(contentTypesFile, &root)
}

func (w *Writer) writeStyles() {
	if w.invalid() {
		return
	}
	w.writePart(w.createTarget("styles.xml"), w.styles)
}

func (w *Writer) writeSharedStrings() {
	if w.invalid() {
		return
	}
	w.writePart(w.createTarget("sharedStrings.xml"), w.sst)
}

func (w *Writer) writeRelations() {
	if w.invalid() {
		return
	}
	root := xmlRelations{
		Xmlns: typePackageUrl,
		Relations: []xmlRelation{
			{
				Id:     "rId1",
				Type:   typeDocUrl,
				Target: w.createTarget("workbook.xml"),
			},
		},
	}
	w.encodeXML("_rels/.rels", &root)
}

func (w *Writer) writeRelationForSheets() {
	if w.invalid() {
		return
	}
	root := xmlRelations{
		Xmlns: typePackageUrl,
	}
	for _, sh := range w.sheets {
		rx := xmlRelation{
			Id:     sh.Id,
			Type:   typeSheetUrl,
			Target: w.fromBase(sh.Path),
		}
		root.Relations = append(root.Relations, rx)
	}
	others := []xmlRelation{
		{
			Type:   typeSharedUrl,
			Target: "sharedStrings.xml",
		},
		{
			Type:   typeStyleUrl,
			Target: "styles.xml",
		},
	}
	for _, rx := range others {
		rx.Id = fmt.Sprintf("rId%d", len(root.Relations)+1)
		root.Relations = append(root.Relations, rx)
	}
	w.encodeXML(w.createTarget("_rels", "workbook.xml.rels"), &root)
}

func (w *Writer) writeWorkbook() {
	if w.invalid() {
		return
	}

	type xmlSheet struct {
		XMLName xml.Name   `xml:"sheet"`
		Name    string     `xml:"name,attr"`
		Index   int        `xml:"sheetId,attr"`
		State   SheetState `xml:"state,attr"`
		Id      string     `xml:"r:id,attr"`
	}

	type xmlDefinedName struct {
		XMLName xml.Name `xml:"definedName"`
		Name    string   `xml:"name,attr"`
		Sheet   int      `xml:"localSheetId,attr"`
		Hidden  int      `xml:"hidden,attr"`
		Ref     string   `xml:",chardata"`
	}

	root := struct {
		XMLName    xml.Name `xml:"workbook"`
		Xmlns      string   `xml:"xmlns,attr"`
		RelXmlns   string   `xml:"xmlns:r,attr"`
		Properties struct {
			Date int `xml:"date1904,attr,omitempty"`
		} `xml:"workbookPr"`
		Views struct {
			View struct {
				ActiveTab int `xml:"activeTab,attr"`
			} `xml:"workbookView"`
		} `xml:"bookViews"`
		Sheets []xmlSheet `xml:"sheets>sheet"`
		Names  *struct {
			List []xmlDefinedName `xml:"definedName"`
		} `xml:"definedNames"`
	}{
		Xmlns:    typeMainUrl,
		RelXmlns: typeRelUrl,
	}
	if w.opts.Date1904 {
		root.Properties.Date++
	}
	for i, s := range w.sheets {
		if s.Active {
			root.Views.View.ActiveTab = i
		}
		xs := xmlSheet{
			Id:    s.Id,
			Index: s.Index,
			Name:  s.Name,
			State: s.State,
		}
		root.Sheets = append(root.Sheets, xs)
		if s.filter == "" {
			continue
		}
		dn := xmlDefinedName{
			Name:   "_xlnm._FilterDatabase",
			Sheet:  i,
			Hidden: 1,
			Ref:    s.filter,
		}
		if root.Names == nil {
			root.Names = &struct {
				List []xmlDefinedName `xml:"definedName"`
			}{}
		}
		root.Names.List = append(root.Names.List, dn)
	}
	w.encodeXML(w.createTarget("workbook.xml"), &root)
}

func (w *Writer) writePart(name string, part io.WriterTo) {
	out, err := w.archive.Create(name)
	if err != nil {
		w.err = err
		return
	}
	if _, err := part.WriteTo(out); err != nil {
		w.err = fmt.Errorf("%w: fail to write data to %s", err, name)
	}
}

func (w *Writer) encodeXML(name string, ptr any) {
	out, err := w.archive.Create(name)
	if err != nil {
		w.err = err
		return
	}
	io.WriteString(out, xmlHeader)
	if err := xml.NewEncoder(out).Encode(ptr); err != nil {
		w.err = fmt.Errorf("%w: fail to write data to %s", err, name)
	}
}

func (w *Writer) createTarget(parts ...string) string {
	parts = append([]string{wbBaseDir}, parts...)
	return strings.Join(parts, "/")
}

func (w *Writer) fromBase(target string) string {
	parts := strings.Split(target, "/")
	ix := slices.Index(parts, wbBaseDir)
	if ix < 0 {
		return target
	}
	return strings.Join(parts[ix+1:], "/")
}

func (w *Writer) invalid() bool {
	return w.err != nil
}

func elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}

package oxml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/midbel/xlstream/format"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
	"github.com/rs/zerolog"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
)

// ApplyTemplateFile fills the template src with data and writes the result
// to dst.
func ApplyTemplateFile(ctx context.Context, src, dst string, data map[string]any, opts Options) error {
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
	if err := f.ApplyTemplate(ctx, data, a); err != nil {
		return err
	}
	return a.Finalize()
}

func (f *File) ApplyTemplateAsync(ctx context.Context, data map[string]any, a *Archive) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- f.ApplyTemplate(ctx, data, a)
	}()
	return ch
}

// ApplyTemplate replaces the placeholders found in the cells of every sheet
// with values from data and copies the package into a. A placeholder
// {{key}} is replaced by the value of key. A row containing a placeholder
// {{list.field}}, where list is a sequence in data, is repeated once per
// item of the list and the rows below it are moved down. The archive is not
// finalized.
func (f *File) ApplyTemplate(ctx context.Context, data map[string]any, a *Archive) error {
	if f.pkg.closed {
		return ErrClosed
	}
	defer f.pkg.Rollback()

	var (
		start   = time.Now()
		logger  = zerolog.Ctx(ctx)
		dates   = dateStyler{ctx: ctx, file: f}
		changed int
	)
	for _, sh := range f.sheets {
		plan, err := f.planTemplate(ctx, sh, data)
		if err != nil {
			f.dispose()
			return err
		}
		if !plan.found {
			continue
		}
		t := templater{
			file:  f,
			sheet: sh,
			plan:  plan,
			data:  data,
			dates: &dates,
		}
		if err := rewritePart(ctx, f.pkg, sh.Path, t.rewrite); err != nil {
			f.dispose()
			return sheetError(sh.Name, 0, 0, err)
		}
		logger.Debug().
			Str("sheet", sh.Name).
			Int("repeated", len(plan.lines)).
			Msg("template applied")
		changed++
	}
	if changed > 0 {
		if err := f.dropCalcChain(ctx); err != nil {
			f.dispose()
			return err
		}
	}
	if err := f.pkg.Commit(ctx, a); err != nil {
		f.dispose()
		return err
	}
	logger.Debug().Int("sheets", changed).Dur("elapsed", elapsed(start)).Msg("template done")
	return nil
}

type templatePlan struct {
	*rowPlan
	found  bool
	lists  map[int64]map[string][]any
	merges []*layout.Range
}

// planTemplate reads a sheet once to find the rows to repeat.
func (f *File) planTemplate(ctx context.Context, sh *Sheet, data map[string]any) (*templatePlan, error) {
	plan := templatePlan{
		rowPlan: newRowPlan(),
		lists:   make(map[int64]map[string][]any),
	}
	rs, err := f.ReadSheet(ctx, sh.Name)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	for rs.Next() {
		row := rs.Row()
		for _, c := range row.Cells {
			str, ok := c.Value.(value.Text)
			if !ok || !strings.Contains(string(str), openMarker) {
				continue
			}
			for _, key := range placeholders(string(str)) {
				plan.found = true
				name, _, ok := strings.Cut(key, ".")
				if !ok {
					continue
				}
				list, ok := lookupList(data, name)
				if !ok {
					continue
				}
				if plan.lists[row.Line] == nil {
					plan.lists[row.Line] = make(map[string][]any)
				}
				plan.lists[row.Line][name] = list
				count := max(len(list), plan.copies[row.Line])
				plan.repeat(row.Line, count)
			}
		}
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	for _, m := range rs.Merges() {
		count, ok := plan.copies[m.Starts.Line]
		if !ok || m.Starts.Line != m.Ends.Line {
			plan.merges = append(plan.merges, plan.shiftRange(m))
			continue
		}
		first := plan.Shift(m.Starts.Line)
		for i := 0; i < count; i++ {
			x := *m
			x.Starts.Line = first + int64(i)
			x.Ends.Line = x.Starts.Line
			plan.merges = append(plan.merges, &x)
		}
	}
	return &plan, nil
}

type templater struct {
	file  *File
	sheet *Sheet
	plan  *templatePlan
	data  map[string]any
	dates *dateStyler
}

func (t *templater) rewrite(dec *xml.Decoder, out *rawWriter) error {
	var line int64
	for {
		tok, err := nextToken(dec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			out.Write(tok)
			continue
		}
		switch el.Name.Local {
		case "row":
			tokens, err := readElement(dec, el)
			if err != nil {
				return err
			}
			if line, err = t.rewriteRow(out, tokens, line); err != nil {
				return err
			}
		case "mergeCells":
			if _, err := readElement(dec, el); err != nil {
				return err
			}
			writeMerges(out, el.Name.Space, t.plan.merges)
		case "dimension":
			out.Write(t.shiftAttrs(el, "ref"))
		default:
			out.Write(t.shiftAttrs(el, "ref", "sqref"))
		}
	}
}

func (t *templater) shiftAttrs(el xml.StartElement, names ...string) xml.StartElement {
	for _, a := range el.Attr {
		if a.Name.Space != "" {
			continue
		}
		for _, n := range names {
			if a.Name.Local == n {
				el = withAttr(el, n, t.plan.shiftRefs(a.Value))
			}
		}
	}
	return el
}

func (t *templater) rewriteRow(out *rawWriter, tokens []xml.Token, prev int64) (int64, error) {
	start := tokens[0].(xml.StartElement)
	line := prev + 1
	if r := getAttr(start, "r"); r != "" {
		n, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return prev, fmt.Errorf("%w: invalid row number %q", ErrMalformed, r)
		}
		line = n
	}
	base := t.plan.Shift(line)
	count, repeated := t.plan.copies[line]
	if !repeated {
		count = 1
	}
	for i := 0; i < count; i++ {
		target := base + int64(i)
		item := -1
		if repeated {
			item = i
		}
		move := func(n int64, end bool) int64 {
			if repeated && n == line {
				return target
			}
			if end {
				return t.plan.ShiftEnd(n)
			}
			return t.plan.Shift(n)
		}
		out.Write(withAttr(start, "r", strconv.FormatInt(target, 10)))
		for j := 1; j < len(tokens)-1; j++ {
			el, ok := tokens[j].(xml.StartElement)
			if !ok || el.Name.Local != "c" {
				out.Write(tokens[j])
				continue
			}
			end := closing(tokens, j)
			if err := t.rewriteCell(out, tokens[j:end+1], target, line, item, move); err != nil {
				return prev, err
			}
			j = end
		}
		out.Write(tokens[len(tokens)-1])
	}
	return line, nil
}

func (t *templater) rewriteCell(out *rawWriter, tokens []xml.Token, target, line int64, item int, move func(int64, bool) int64) error {
	start := tokens[0].(xml.StartElement)
	if r := getAttr(start, "r"); r != "" {
		pos, err := layout.ParsePosition(r)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		pos.Line = target
		start = withAttr(start, "r", pos.Addr())
	}

	text, ok, err := t.cellText(tokens)
	if err != nil {
		return err
	}
	if ok && strings.Contains(text, openMarker) {
		val := t.substitute(text, line, item)
		if _, ok := val.(value.Date); ok {
			if start, err = t.dates.apply(start); err != nil {
				return err
			}
		}
		writeValueCell(out, start, val, t.file.date1904)
		return nil
	}
	out.Write(start)
	inFormula := false
	for _, tok := range tokens[1:] {
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "f" {
				inFormula = true
				if ref := getAttr(el, "ref"); ref != "" {
					el = withAttr(el, "ref", t.plan.shiftRefs(ref))
				}
			}
			out.Write(el)
		case xml.EndElement:
			if el.Name.Local == "f" {
				inFormula = false
			}
			out.Write(el)
		case xml.CharData:
			if inFormula {
				out.Write(xml.CharData(shiftFormula(string(el), t.sheet.Name, move)))
			} else {
				out.Write(el)
			}
		default:
			out.Write(tok)
		}
	}
	return nil
}

// cellText returns the text of a string cell.
func (t *templater) cellText(tokens []xml.Token) (string, bool, error) {
	start := tokens[0].(xml.StartElement)
	var (
		kind   = getAttr(start, "t")
		str    strings.Builder
		inText bool
	)
	if kind != TypeSharedStr && kind != TypeInlineStr {
		return "", false, nil
	}
	for _, tok := range tokens[1:] {
		switch el := tok.(type) {
		case xml.StartElement:
			inText = (kind == TypeSharedStr && el.Name.Local == "v") || (kind == TypeInlineStr && el.Name.Local == "t")
		case xml.EndElement:
			inText = false
		case xml.CharData:
			if inText {
				str.Write(el)
			}
		default:
		}
	}
	if kind == TypeInlineStr {
		return str.String(), true, nil
	}
	ix, err := strconv.Atoi(strings.TrimSpace(str.String()))
	if err != nil {
		return "", false, fmt.Errorf("%w: invalid shared string index %q", ErrMalformed, str.String())
	}
	text, err := t.file.sst.At(ix)
	return text, err == nil, err
}

// substitute evaluates the placeholders of a cell. A cell made of a single
// placeholder takes the type of the value, otherwise the values are joined
// into a text.
func (t *templater) substitute(text string, line int64, item int) value.Value {
	keys := placeholders(text)
	trimmed := strings.TrimSpace(text)
	if len(keys) == 1 && isSinglePlaceholder(trimmed) {
		v, _ := value.Of(t.resolve(keys[0], line, item))
		if v == nil {
			return value.Empty()
		}
		return v
	}
	var (
		str  strings.Builder
		rest = text
	)
	for {
		ix := strings.Index(rest, openMarker)
		if ix < 0 {
			str.WriteString(rest)
			break
		}
		end := strings.Index(rest[ix:], closeMarker)
		if end < 0 {
			str.WriteString(rest)
			break
		}
		str.WriteString(rest[:ix])
		key := strings.TrimSpace(rest[ix+len(openMarker) : ix+end])
		if v, err := value.Of(t.resolve(key, line, item)); err == nil {
			str.WriteString(v.String())
		}
		rest = rest[ix+end+len(closeMarker):]
	}
	return value.Text(str.String())
}

func (t *templater) resolve(key string, line int64, item int) any {
	name, rest, _ := strings.Cut(key, ".")
	if item >= 0 {
		if list, ok := t.plan.lists[line][name]; ok {
			if item >= len(list) {
				return nil
			}
			if rest == "" {
				return list[item]
			}
			v, _ := lookup(list[item], strings.Split(rest, "."))
			return v
		}
	}
	v, _ := lookup(t.data, strings.Split(key, "."))
	return v
}

func isSinglePlaceholder(str string) bool {
	if !strings.HasPrefix(str, openMarker) || !strings.HasSuffix(str, closeMarker) {
		return false
	}
	inner := str[len(openMarker) : len(str)-len(closeMarker)]
	return !strings.Contains(inner, openMarker) && !strings.Contains(inner, closeMarker)
}

func placeholders(str string) []string {
	var list []string
	for {
		ix := strings.Index(str, openMarker)
		if ix < 0 {
			break
		}
		end := strings.Index(str[ix:], closeMarker)
		if end < 0 {
			break
		}
		key := strings.TrimSpace(str[ix+len(openMarker) : ix+end])
		if key != "" {
			list = append(list, key)
		}
		str = str[ix+end+len(closeMarker):]
	}
	return list
}

func lookupList(data map[string]any, name string) ([]any, bool) {
	v, ok := data[name]
	if !ok || v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// lookup follows path in nested maps and structs.
func lookup(v any, path []string) (any, bool) {
	for _, key := range path {
		if v == nil {
			return nil, false
		}
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, false
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Map:
			var kv reflect.Value
			switch rv.Type().Key().Kind() {
			case reflect.String:
				kv = reflect.ValueOf(key).Convert(rv.Type().Key())
			case reflect.Interface:
				kv = reflect.ValueOf(key)
			default:
				return nil, false
			}
			x := rv.MapIndex(kv)
			if !x.IsValid() {
				return nil, false
			}
			v = x.Interface()
		case reflect.Struct:
			x := rv.FieldByName(key)
			if !x.IsValid() || !x.CanInterface() {
				return nil, false
			}
			v = x.Interface()
		default:
			return nil, false
		}
	}
	return v, true
}

func closing(tokens []xml.Token, start int) int {
	depth := 0
	for i := start; i < len(tokens); i++ {
		switch tokens[i].(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return i
			}
		default:
		}
	}
	return len(tokens) - 1
}

// writeValueCell writes a cell holding val. The style of the original cell
// is kept.
func writeValueCell(out *rawWriter, start xml.StartElement, val value.Value, date1904 bool) {
	var (
		prefix = start.Name.Space
		attrs  []xml.Attr
	)
	for _, a := range start.Attr {
		if a.Name.Space == "" && a.Name.Local == "t" {
			continue
		}
		attrs = append(attrs, a)
	}
	start.Attr = attrs
	name := func(local string) string {
		return qualified(xml.Name{Space: prefix, Local: local})
	}
	switch x := val.(type) {
	case value.Blank:
		out.Write(start)
		out.Write(xml.EndElement{Name: start.Name})
	case value.Text:
		out.Write(withAttr(start, "t", TypeInlineStr))
		var str strings.Builder
		str.WriteString("<" + name("is") + ">")
		if needPreserve(string(x)) {
			str.WriteString("<" + name("t") + ` xml:space="preserve">`)
		} else {
			str.WriteString("<" + name("t") + ">")
		}
		escapeText(&str, string(x))
		str.WriteString("</" + name("t") + "></" + name("is") + ">")
		out.WriteString(str.String())
		out.Write(xml.EndElement{Name: start.Name})
	default:
		var kind, raw string
		switch x := val.(type) {
		case value.Float:
			raw = x.String()
		case value.Boolean:
			kind, raw = TypeBool, "0"
			if x {
				raw = "1"
			}
		case value.Date:
			raw = strconv.FormatFloat(format.ToSerial(x.Time(), date1904), 'f', -1, 64)
		case value.Error:
			kind, raw = TypeError, string(x)
		default:
			kind, raw = TypeInlineStr, val.String()
		}
		if kind != "" {
			start = withAttr(start, "t", kind)
		}
		out.Write(start)
		out.WriteString("<" + name("v") + ">")
		out.Write(xml.CharData(raw))
		out.WriteString("</" + name("v") + ">")
		out.Write(xml.EndElement{Name: start.Name})
	}
}

func writeMerges(out *rawWriter, prefix string, merges []*layout.Range) {
	if len(merges) == 0 {
		return
	}
	name := func(local string) string {
		return qualified(xml.Name{Space: prefix, Local: local})
	}
	var str strings.Builder
	fmt.Fprintf(&str, `<%s count="%d">`, name("mergeCells"), len(merges))
	for _, m := range merges {
		fmt.Fprintf(&str, `<%s ref="%s"/>`, name("mergeCell"), m)
	}
	fmt.Fprintf(&str, `</%s>`, name("mergeCells"))
	out.WriteString(str.String())
}

// dropCalcChain removes the calculation chain of the workbook. Cells have
// moved so the chain no longer matches the formulas.
func (f *File) dropCalcChain(ctx context.Context) error {
	rel, ok := f.relations.find(relCalc)
	if !ok {
		return nil
	}
	dir, _ := splitPart(f.workbook)
	part := resolveTarget(dir, rel.Target)
	if f.pkg.Has(part) {
		if err := f.pkg.Remove(part); err != nil {
			return err
		}
	}
	var rels []xmlRelation
	for _, r := range f.relations.Relations {
		if r.Id != rel.Id {
			rels = append(rels, r)
		}
	}
	root := xmlRelations{
		Xmlns:     typePackageUrl,
		Relations: rels,
	}
	if err := f.updateXML(relsPath(f.workbook), &root); err != nil {
		return err
	}
	var types xmlContentTypes
	rc, err := f.pkg.Open(contentTypesFile)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(&types); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrMalformed, contentTypesFile, err)
	}
	var overrides []xmlOverride
	for _, o := range types.Overrides {
		if !strings.EqualFold(strings.TrimPrefix(o.PartName, "/"), part) {
			overrides = append(overrides, o)
		}
	}
	types.Overrides = overrides
	types.Xmlns = typeContentUrl
	zerolog.Ctx(ctx).Debug().Str("part", part).Msg("calculation chain removed")
	return f.updateXML(contentTypesFile, &types)
}

func (f *File) updateXML(name string, ptr any) error {
	w, err := f.pkg.Update(name)
	if err != nil {
		return err
	}
	io.WriteString(w, xmlHeader)
	return xml.NewEncoder(w).Encode(ptr)
}

// dateStyler gives a date format to the cells receiving a date when their
// own style would show it as a number. The styles part is extended at most
// once, with Options.DateFormat, when no entry of cellXfs already uses it.
type dateStyler struct {
	ctx   context.Context
	file  *File
	done  bool
	style int
	ok    bool
	err   error
}

func (d *dateStyler) apply(start xml.StartElement) (xml.StartElement, error) {
	var style int
	if str := getAttr(start, "s"); str != "" {
		n, err := strconv.Atoi(str)
		if err != nil {
			return start, fmt.Errorf("%w: invalid style %q", ErrMalformed, str)
		}
		style = n
	}
	date, err := d.file.styles.isDate(style)
	if err != nil || date {
		return start, err
	}
	if !d.done {
		d.done = true
		d.style, d.ok, d.err = d.file.registerDateStyle(d.ctx)
	}
	if d.err != nil || !d.ok {
		return start, d.err
	}
	return withAttr(start, "s", strconv.Itoa(d.style)), nil
}

// registerDateStyle returns the entry of cellXfs formatting dates with
// Options.DateFormat, adding it to the styles part when missing. Workbooks
// without styles part are left as is.
func (f *File) registerDateStyle(ctx context.Context) (int, bool, error) {
	rel, ok := f.relations.find(relStyles)
	if !ok || f.styles == nil {
		return 0, false, nil
	}
	code := f.opts.DateFormat
	if ix, ok := f.styles.find(code); ok {
		return ix, true, nil
	}
	id, builtin := format.Builtin(code)
	if !builtin {
		id = f.styles.nextFmt
	}
	ed := styleEditor{
		code:    code,
		numFmt:  id,
		custom:  !builtin,
		formats: f.styles.formats,
		xfs:     len(f.styles.dates),
	}
	dir, _ := splitPart(f.workbook)
	if err := rewritePart(ctx, f.pkg, resolveTarget(dir, rel.Target), ed.rewrite); err != nil {
		return 0, false, err
	}
	zerolog.Ctx(ctx).Debug().Str("format", code).Int("style", ed.xfs).Msg("date style added")
	return ed.xfs, true, nil
}

// styleEditor appends one number format and one cell format to a styles
// part.
type styleEditor struct {
	code    string
	numFmt  int
	custom  bool
	formats int
	xfs     int
}

func (e *styleEditor) rewrite(dec *xml.Decoder, out *rawWriter) error {
	var (
		depth   int
		fmtSeen bool
		written bool
	)
	for {
		tok, err := nextToken(dec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				switch el.Name.Local {
				case "numFmts":
					fmtSeen = true
					if e.custom {
						el = withAttr(el, "count", strconv.Itoa(e.formats+1))
					}
				case "cellXfs":
					el = withAttr(el, "count", strconv.Itoa(e.xfs+1))
				default:
					if e.custom && !fmtSeen {
						fmtSeen = true
						prefix := el.Name.Space
						out.WriteString(fmt.Sprintf(`<%s count="1">`, qualified(xml.Name{Space: prefix, Local: "numFmts"})))
						e.writeNumFmt(out, prefix)
						out.WriteString(fmt.Sprintf(`</%s>`, qualified(xml.Name{Space: prefix, Local: "numFmts"})))
					}
				}
			}
			out.Write(el)
		case xml.EndElement:
			if depth == 2 {
				switch el.Name.Local {
				case "numFmts":
					if e.custom {
						e.writeNumFmt(out, el.Name.Space)
					}
				case "cellXfs":
					out.WriteString(fmt.Sprintf(`<%s numFmtId="%d" fontId="0" fillId="0" borderId="0" xfId="0" applyNumberFormat="1"/>`,
						qualified(xml.Name{Space: el.Name.Space, Local: "xf"}), e.numFmt))
					written = true
				default:
				}
			}
			depth--
			out.Write(el)
		default:
			out.Write(tok)
		}
	}
	if !written {
		return fmt.Errorf("%w: styles without cell formats", ErrCorrupted)
	}
	return nil
}

func (e *styleEditor) writeNumFmt(out *rawWriter, prefix string) {
	var str strings.Builder
	fmt.Fprintf(&str, `<%s numFmtId="%d" formatCode="`, qualified(xml.Name{Space: prefix, Local: "numFmt"}), e.numFmt)
	escapeAttr(&str, e.code)
	str.WriteString(`"/>`)
	out.WriteString(str.String())
}

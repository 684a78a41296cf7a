package oxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/xlstream/format"
)

const (
	defaultFontName = "Calibri"
	defaultFontSize = 11
	headerFill      = "D9D9D9"
)

type Font struct {
	Name      string
	Size      float64
	Bold      bool
	Italic    bool
	Underline bool
	Color     string
}

type Fill struct {
	Pattern string
	Color   string
}

// Border applies the same line to the four sides of a cell.
type Border struct {
	Style string
	Color string
}

type Alignment struct {
	Horizontal string
	Vertical   string
	Wrap       bool
}

type Style struct {
	NumFmt    string
	Font      *Font
	Fill      *Fill
	Border    *Border
	Alignment *Alignment
}

func HeaderStyle() Style {
	return Style{
		Font: &Font{
			Name: defaultFontName,
			Size: defaultFontSize,
			Bold: true,
		},
		Fill: &Fill{
			Pattern: "solid",
			Color:   headerFill,
		},
		Border: &Border{
			Style: "thin",
		},
		Alignment: &Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	}
}

type numFmt struct {
	Id   int
	Code string
}

type cellXf struct {
	NumFmt    int
	Font      int
	Fill      int
	Border    int
	Alignment Alignment
	Aligned   bool
}

// StyleSheet registers the styles used by the cells of a workbook. Every
// dimension of a style is deduplicated in its own table and each distinct
// combination gets its own index in cellXfs.
type StyleSheet struct {
	formats []numFmt
	fonts   []Font
	fills   []Fill
	borders []Border
	xfs     []cellXf
}

func NewStyleSheet() *StyleSheet {
	s := StyleSheet{
		fonts: []Font{
			{Name: defaultFontName, Size: defaultFontSize},
		},
		fills: []Fill{
			{Pattern: "none"},
			{Pattern: "gray125"},
		},
		borders: []Border{{}},
		xfs:     []cellXf{{}},
	}
	return &s
}

func (s *StyleSheet) Register(style Style) (int, error) {
	var (
		xf  cellXf
		err error
	)
	if style.NumFmt != "" {
		if xf.NumFmt, err = s.RegisterFormat(style.NumFmt); err != nil {
			return 0, err
		}
	}
	if style.Font != nil {
		f := *style.Font
		if f.Name == "" {
			f.Name = defaultFontName
		}
		if f.Size <= 0 {
			f.Size = defaultFontSize
		}
		f.Color = normalizeColor(f.Color)
		xf.Font = register(&s.fonts, f)
	}
	if style.Fill != nil {
		f := *style.Fill
		if f.Pattern == "" {
			f.Pattern = "solid"
		}
		f.Color = normalizeColor(f.Color)
		xf.Fill = register(&s.fills, f)
	}
	if style.Border != nil {
		b := *style.Border
		b.Color = normalizeColor(b.Color)
		xf.Border = register(&s.borders, b)
	}
	if style.Alignment != nil {
		xf.Alignment = *style.Alignment
		xf.Aligned = true
	}
	return register(&s.xfs, xf), nil
}

// RegisterFormat returns the identifier of a number format. Built-in formats
// keep their identifier, custom ones are validated and numbered from 164.
func (s *StyleSheet) RegisterFormat(code string) (int, error) {
	if id, ok := format.Builtin(code); ok {
		return id, nil
	}
	if err := format.Validate(code); err != nil {
		return 0, err
	}
	ix := slices.IndexFunc(s.formats, func(f numFmt) bool {
		return f.Code == code
	})
	if ix >= 0 {
		return s.formats[ix].Id, nil
	}
	f := numFmt{
		Id:   format.CustomID + len(s.formats),
		Code: code,
	}
	s.formats = append(s.formats, f)
	return f.Id, nil
}

func (s *StyleSheet) Len() int {
	return len(s.xfs)
}

func register[T comparable](list *[]T, item T) int {
	if ix := slices.Index(*list, item); ix >= 0 {
		return ix
	}
	*list = append(*list, item)
	return len(*list) - 1
}

func normalizeColor(str string) string {
	str = strings.ToUpper(strings.TrimPrefix(str, "#"))
	if len(str) == 6 {
		str = "FF" + str
	}
	return str
}

type xmlColor struct {
	Rgb     string `xml:"rgb,attr,omitempty"`
	Indexed string `xml:"indexed,attr,omitempty"`
}

type xmlVal struct {
	Val string `xml:"val,attr"`
}

type xmlFont struct {
	XMLName   xml.Name  `xml:"font"`
	Bold      *struct{} `xml:"b"`
	Italic    *struct{} `xml:"i"`
	Underline *struct{} `xml:"u"`
	Size      xmlVal    `xml:"sz"`
	Color     *xmlColor `xml:"color"`
	Name      xmlVal    `xml:"name"`
	Family    xmlVal    `xml:"family"`
}

type xmlFill struct {
	XMLName xml.Name `xml:"fill"`
	Pattern struct {
		Type string    `xml:"patternType,attr"`
		Fg   *xmlColor `xml:"fgColor"`
		Bg   *xmlColor `xml:"bgColor"`
	} `xml:"patternFill"`
}

type xmlBorderLine struct {
	Style string    `xml:"style,attr,omitempty"`
	Color *xmlColor `xml:"color"`
}

type xmlBorder struct {
	XMLName  xml.Name      `xml:"border"`
	Left     xmlBorderLine `xml:"left"`
	Right    xmlBorderLine `xml:"right"`
	Top      xmlBorderLine `xml:"top"`
	Bottom   xmlBorderLine `xml:"bottom"`
	Diagonal xmlBorderLine `xml:"diagonal"`
}

type xmlAlignment struct {
	Horizontal string `xml:"horizontal,attr,omitempty"`
	Vertical   string `xml:"vertical,attr,omitempty"`
	Wrap       int    `xml:"wrapText,attr,omitempty"`
}

type xmlXf struct {
	XMLName        xml.Name      `xml:"xf"`
	NumFmt         int           `xml:"numFmtId,attr"`
	Font           int           `xml:"fontId,attr"`
	Fill           int           `xml:"fillId,attr"`
	Border         int           `xml:"borderId,attr"`
	Xf             *int          `xml:"xfId,attr"`
	ApplyNumFmt    int           `xml:"applyNumberFormat,attr,omitempty"`
	ApplyFont      int           `xml:"applyFont,attr,omitempty"`
	ApplyFill      int           `xml:"applyFill,attr,omitempty"`
	ApplyBorder    int           `xml:"applyBorder,attr,omitempty"`
	ApplyAlignment int           `xml:"applyAlignment,attr,omitempty"`
	Alignment      *xmlAlignment `xml:"alignment"`
}

type xmlNumFmt struct {
	XMLName xml.Name `xml:"numFmt"`
	Id      int      `xml:"numFmtId,attr"`
	Code    string   `xml:"formatCode,attr"`
}

type xmlList[T any] struct {
	Count int `xml:"count,attr"`
	Items []T
}

type xmlCellStyle struct {
	XMLName xml.Name `xml:"cellStyle"`
	Name    string   `xml:"name,attr"`
	Xf      int      `xml:"xfId,attr"`
	Builtin int      `xml:"builtinId,attr"`
}

func (s *StyleSheet) WriteTo(w io.Writer) (int64, error) {
	root := struct {
		XMLName      xml.Name              `xml:"styleSheet"`
		Xmlns        string                `xml:"xmlns,attr"`
		NumFmts      *xmlList[xmlNumFmt]   `xml:"numFmts"`
		Fonts        xmlList[xmlFont]      `xml:"fonts"`
		Fills        xmlList[xmlFill]      `xml:"fills"`
		Borders      xmlList[xmlBorder]    `xml:"borders"`
		CellStyleXfs xmlList[xmlXf]        `xml:"cellStyleXfs"`
		CellXfs      xmlList[xmlXf]        `xml:"cellXfs"`
		CellStyles   xmlList[xmlCellStyle] `xml:"cellStyles"`
	}{
		Xmlns: typeMainUrl,
	}
	if len(s.formats) > 0 {
		root.NumFmts = &xmlList[xmlNumFmt]{}
		for _, f := range s.formats {
			root.NumFmts.Items = append(root.NumFmts.Items, xmlNumFmt{Id: f.Id, Code: f.Code})
		}
		root.NumFmts.Count = len(root.NumFmts.Items)
	}
	for _, f := range s.fonts {
		root.Fonts.Items = append(root.Fonts.Items, f.xml())
	}
	root.Fonts.Count = len(root.Fonts.Items)
	for _, f := range s.fills {
		root.Fills.Items = append(root.Fills.Items, f.xml())
	}
	root.Fills.Count = len(root.Fills.Items)
	for _, b := range s.borders {
		root.Borders.Items = append(root.Borders.Items, b.xml())
	}
	root.Borders.Count = len(root.Borders.Items)
	root.CellStyleXfs.Items = []xmlXf{{}}
	root.CellStyleXfs.Count = 1
	for _, x := range s.xfs {
		root.CellXfs.Items = append(root.CellXfs.Items, x.xml())
	}
	root.CellXfs.Count = len(root.CellXfs.Items)
	root.CellStyles.Items = []xmlCellStyle{{Name: "Normal"}}
	root.CellStyles.Count = 1

	cw := countWriter{Writer: w}
	io.WriteString(&cw, xmlHeader)
	err := xml.NewEncoder(&cw).Encode(&root)
	return cw.n, err
}

func (f Font) xml() xmlFont {
	x := xmlFont{
		Size:   xmlVal{Val: strconv.FormatFloat(f.Size, 'f', -1, 64)},
		Name:   xmlVal{Val: f.Name},
		Family: xmlVal{Val: "2"},
	}
	if f.Bold {
		x.Bold = &struct{}{}
	}
	if f.Italic {
		x.Italic = &struct{}{}
	}
	if f.Underline {
		x.Underline = &struct{}{}
	}
	if f.Color != "" {
		x.Color = &xmlColor{Rgb: f.Color}
	}
	return x
}

func (f Fill) xml() xmlFill {
	var x xmlFill
	x.Pattern.Type = f.Pattern
	if f.Color != "" {
		x.Pattern.Fg = &xmlColor{Rgb: f.Color}
		x.Pattern.Bg = &xmlColor{Indexed: "64"}
	}
	return x
}

func (b Border) xml() xmlBorder {
	var (
		x    xmlBorder
		line = xmlBorderLine{Style: b.Style}
	)
	if b.Style != "" {
		line.Color = &xmlColor{Indexed: "64"}
		if b.Color != "" {
			line.Color = &xmlColor{Rgb: b.Color}
		}
		x.Left, x.Right, x.Top, x.Bottom = line, line, line, line
	}
	return x
}

func (c cellXf) xml() xmlXf {
	var zero int
	x := xmlXf{
		NumFmt: c.NumFmt,
		Font:   c.Font,
		Fill:   c.Fill,
		Border: c.Border,
		Xf:     &zero,
	}
	if c.NumFmt > 0 {
		x.ApplyNumFmt = 1
	}
	if c.Font > 0 {
		x.ApplyFont = 1
	}
	if c.Fill > 0 {
		x.ApplyFill = 1
	}
	if c.Border > 0 {
		x.ApplyBorder = 1
	}
	if c.Aligned {
		x.ApplyAlignment = 1
		x.Alignment = &xmlAlignment{
			Horizontal: c.Alignment.Horizontal,
			Vertical:   c.Alignment.Vertical,
		}
		if c.Alignment.Wrap {
			x.Alignment.Wrap = 1
		}
	}
	return x
}

// styleIndex tells for each entry of cellXfs whether it formats its value
// as a date, and with which number format code.
type styleIndex struct {
	dates   []bool
	codes   []string
	formats int
	nextFmt int
}

func readStyles(r io.Reader) (*styleIndex, error) {
	var root struct {
		XMLName xml.Name `xml:"styleSheet"`
		NumFmts []struct {
			Id   int    `xml:"numFmtId,attr"`
			Code string `xml:"formatCode,attr"`
		} `xml:"numFmts>numFmt"`
		Xfs []struct {
			NumFmt int `xml:"numFmtId,attr"`
		} `xml:"cellXfs>xf"`
	}
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: styles: %s", ErrMalformed, err)
	}
	ix := styleIndex{
		formats: len(root.NumFmts),
		nextFmt: format.CustomID,
	}
	customs := make(map[int]string)
	for _, f := range root.NumFmts {
		customs[f.Id] = f.Code
		ix.nextFmt = max(ix.nextFmt, f.Id+1)
	}
	for _, x := range root.Xfs {
		code, ok := customs[x.NumFmt]
		if !ok {
			code, _ = format.BuiltinCode(x.NumFmt)
		}
		date := format.IsBuiltinDate(x.NumFmt)
		if ok {
			date = format.IsDateFormat(code)
		}
		ix.dates = append(ix.dates, date)
		ix.codes = append(ix.codes, code)
	}
	return &ix, nil
}

// find gives the first entry of cellXfs formatting its value with code.
func (s *styleIndex) find(code string) (int, bool) {
	if s == nil {
		return 0, false
	}
	ix := slices.IndexFunc(s.codes, func(c string) bool {
		return strings.EqualFold(c, code)
	})
	return ix, ix >= 0
}

func (s *styleIndex) isDate(style int) (bool, error) {
	if s == nil || (style == 0 && len(s.dates) == 0) {
		return false, nil
	}
	if style < 0 || style >= len(s.dates) {
		return false, fmt.Errorf("%w: style %d out of range (%d styles)", ErrCorrupted, style, len(s.dates))
	}
	return s.dates[style], nil
}

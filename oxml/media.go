package oxml

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	emuPerPixel   = 9525
	columnPixels  = 64
	linePixels    = 20
	drawingBaseId = 2
)

type AnchorMode int8

const (
	OneCellAnchor AnchorMode = iota
	TwoCellAnchor
	AbsoluteAnchor
)

func ParseAnchorMode(str string) (AnchorMode, error) {
	switch strings.ToLower(str) {
	case "", "one", "onecell":
		return OneCellAnchor, nil
	case "two", "twocell":
		return TwoCellAnchor, nil
	case "absolute", "abs":
		return AbsoluteAnchor, nil
	default:
		return 0, fmt.Errorf("%w: unknown anchor %q", ErrMedia, str)
	}
}

// Media is an image placed on a worksheet. Line and Column give the cell of
// its top left corner. Width and Height are in pixels and default to the
// size of the image.
type Media struct {
	Id     string
	Data   []byte
	Ext    string
	Line   int64
	Column int64
	Anchor AnchorMode
	Width  int
	Height int
}

var mediaTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

func (m *Media) prepare() error {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(m.Data))
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrMedia, m.Id, err)
	}
	if m.Ext == "" {
		m.Ext = name
	}
	m.Ext = strings.ToLower(strings.TrimPrefix(m.Ext, "."))
	if _, ok := mediaTypes[m.Ext]; !ok {
		return fmt.Errorf("%w: %s: extension %s", ErrMedia, m.Id, m.Ext)
	}
	if m.Width <= 0 {
		m.Width = cfg.Width
	}
	if m.Height <= 0 {
		m.Height = cfg.Height
	}
	m.Line = max(m.Line, 1)
	m.Column = max(m.Column, 1)
	return nil
}

type drawingEntry struct {
	Media
	relation string
	target   string
}

func writeDrawing(w io.Writer, list []drawingEntry) error {
	var str strings.Builder
	str.WriteString(xmlHeader)
	fmt.Fprintf(&str, `<xdr:wsDr xmlns:xdr="%s" xmlns:a="%s" xmlns:r="%s">`, typeSpreadDrawUrl, typeDrawingMainUrl, typeRelUrl)
	for i, m := range list {
		var (
			col = m.Column - 1
			row = m.Line - 1
			cx  = int64(m.Width) * emuPerPixel
			cy  = int64(m.Height) * emuPerPixel
		)
		switch m.Anchor {
		case TwoCellAnchor:
			str.WriteString(`<xdr:twoCellAnchor editAs="oneCell">`)
			writeMarker(&str, "from", col, 0, row, 0)
			var (
				toCol  = col + int64(m.Width/columnPixels)
				toRow  = row + int64(m.Height/linePixels)
				colOff = int64(m.Width%columnPixels) * emuPerPixel
				rowOff = int64(m.Height%linePixels) * emuPerPixel
			)
			writeMarker(&str, "to", toCol, colOff, toRow, rowOff)
		case AbsoluteAnchor:
			str.WriteString(`<xdr:absoluteAnchor>`)
			fmt.Fprintf(&str, `<xdr:pos x="%d" y="%d"/>`, col*columnPixels*emuPerPixel, row*linePixels*emuPerPixel)
			fmt.Fprintf(&str, `<xdr:ext cx="%d" cy="%d"/>`, cx, cy)
		default:
			str.WriteString(`<xdr:oneCellAnchor>`)
			writeMarker(&str, "from", col, 0, row, 0)
			fmt.Fprintf(&str, `<xdr:ext cx="%d" cy="%d"/>`, cx, cy)
		}
		writePicture(&str, i+drawingBaseId, m, cx, cy)
		str.WriteString(`<xdr:clientData/>`)
		switch m.Anchor {
		case TwoCellAnchor:
			str.WriteString(`</xdr:twoCellAnchor>`)
		case AbsoluteAnchor:
			str.WriteString(`</xdr:absoluteAnchor>`)
		default:
			str.WriteString(`</xdr:oneCellAnchor>`)
		}
	}
	str.WriteString(`</xdr:wsDr>`)
	_, err := io.WriteString(w, str.String())
	return err
}

func writeMarker(str *strings.Builder, name string, col, colOff, row, rowOff int64) {
	fmt.Fprintf(str, `<xdr:%s><xdr:col>%d</xdr:col><xdr:colOff>%d</xdr:colOff><xdr:row>%d</xdr:row><xdr:rowOff>%d</xdr:rowOff></xdr:%[1]s>`, name, col, colOff, row, rowOff)
}

func writePicture(str *strings.Builder, id int, m drawingEntry, cx, cy int64) {
	name := m.Id
	if name == "" {
		name = fmt.Sprintf("Picture %d", id-1)
	}
	str.WriteString(`<xdr:pic><xdr:nvPicPr>`)
	fmt.Fprintf(str, `<xdr:cNvPr id="%d" name="`, id)
	escapeAttr(str, name)
	str.WriteString(`"/><xdr:cNvPicPr><a:picLocks noChangeAspect="1"/></xdr:cNvPicPr></xdr:nvPicPr>`)
	fmt.Fprintf(str, `<xdr:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></xdr:blipFill>`, m.relation)
	fmt.Fprintf(str, `<xdr:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, cx, cy)
	str.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></xdr:spPr></xdr:pic>`)
}

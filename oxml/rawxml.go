package oxml

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// rawWriter writes back the tokens returned by xml.Decoder.RawToken. Names
// keep the prefix found in the source document.
type rawWriter struct {
	w       *bufio.Writer
	pending *xml.StartElement
}

func newRawWriter(w io.Writer) *rawWriter {
	return &rawWriter{
		w: bufio.NewWriter(w),
	}
}

func (w *rawWriter) Write(tok xml.Token) {
	if end, ok := tok.(xml.EndElement); ok && w.pending != nil && w.pending.Name == end.Name {
		w.writeStart(*w.pending, true)
		w.pending = nil
		return
	}
	w.flushPending()
	switch el := tok.(type) {
	case xml.StartElement:
		el = el.Copy()
		w.pending = &el
	case xml.EndElement:
		w.w.WriteString("</")
		w.w.WriteString(qualified(el.Name))
		w.w.WriteByte('>')
	case xml.CharData:
		escapeText(w.w, string(el))
	case xml.Comment:
		w.w.WriteString("<!--")
		w.w.Write(el)
		w.w.WriteString("-->")
	case xml.ProcInst:
		w.w.WriteString("<?")
		w.w.WriteString(el.Target)
		if len(el.Inst) > 0 {
			w.w.WriteByte(' ')
			w.w.Write(el.Inst)
		}
		w.w.WriteString("?>")
	case xml.Directive:
		w.w.WriteString("<!")
		w.w.Write(el)
		w.w.WriteByte('>')
	default:
	}
}

// WriteString writes an already serialized fragment.
func (w *rawWriter) WriteString(str string) {
	w.flushPending()
	w.w.WriteString(str)
}

func (w *rawWriter) Flush() error {
	w.flushPending()
	return w.w.Flush()
}

func (w *rawWriter) flushPending() {
	if w.pending == nil {
		return
	}
	w.writeStart(*w.pending, false)
	w.pending = nil
}

func (w *rawWriter) writeStart(el xml.StartElement, empty bool) {
	w.w.WriteByte('<')
	w.w.WriteString(qualified(el.Name))
	for _, a := range el.Attr {
		w.w.WriteByte(' ')
		w.w.WriteString(qualified(a.Name))
		w.w.WriteString(`="`)
		escapeText(w.w, a.Value)
		w.w.WriteByte('"')
	}
	if empty {
		w.w.WriteString("/>")
	} else {
		w.w.WriteByte('>')
	}
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func withAttr(el xml.StartElement, local, value string) xml.StartElement {
	el = el.Copy()
	for i := range el.Attr {
		if el.Attr[i].Name.Local == local && el.Attr[i].Name.Space == "" {
			el.Attr[i].Value = value
			return el
		}
	}
	el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: local}, Value: value})
	return el
}

func escapeText(w io.Writer, str string) {
	xml.EscapeText(w, []byte(str))
}

func escapeAttr(w io.Writer, str string) {
	xml.EscapeText(w, []byte(str))
}

// readElement collects the tokens of the element opened by start, including
// start and its matching end.
func readElement(dec *xml.Decoder, start xml.StartElement) ([]xml.Token, error) {
	var (
		list  = []xml.Token{start.Copy()}
		depth = 1
	)
	for depth > 0 {
		tok, err := dec.RawToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformed, start.Name.Local, err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		default:
		}
		list = append(list, xml.CopyToken(tok))
	}
	return list, nil
}

// rewritePart replaces the content of a part with the tokens produced by fn
// while reading the current content.
func rewritePart(ctx context.Context, pkg *Package, name string, fn func(*xml.Decoder, *rawWriter) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrCancelled, err)
	}
	rc, err := pkg.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	w, err := pkg.Update(name)
	if err != nil {
		return err
	}
	var (
		dec = xml.NewDecoder(rc)
		out = newRawWriter(w)
	)
	if err := fn(dec, out); err != nil {
		return err
	}
	return out.Flush()
}

func nextToken(dec *xml.Decoder) (xml.Token, error) {
	tok, err := dec.RawToken()
	if err == nil || errors.Is(err, io.EOF) {
		return tok, err
	}
	return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
}

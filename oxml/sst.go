package oxml

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// SharedStrings is the table of unique strings referenced by the cells of a
// workbook. Indices follow the order in which strings are first seen.
type SharedStrings struct {
	index  map[string]int
	values []string
	count  int
}

func NewSharedStrings() *SharedStrings {
	return &SharedStrings{
		index: make(map[string]int),
	}
}

func (s *SharedStrings) Intern(str string) int {
	s.count++
	if ix, ok := s.index[str]; ok {
		return ix
	}
	ix := len(s.values)
	s.index[str] = ix
	s.values = append(s.values, str)
	return ix
}

func (s *SharedStrings) At(ix int) (string, error) {
	if ix < 0 || ix >= len(s.values) {
		return "", fmt.Errorf("%w: shared string %d out of range (%d strings)", ErrCorrupted, ix, len(s.values))
	}
	return s.values[ix], nil
}

func (s *SharedStrings) Len() int {
	return len(s.values)
}

func (s *SharedStrings) WriteTo(w io.Writer) (int64, error) {
	var (
		cw = countWriter{Writer: w}
		bw = bufio.NewWriter(&cw)
	)
	bw.WriteString(xmlHeader)
	bw.WriteString(`<sst xmlns="`)
	bw.WriteString(typeMainUrl)
	bw.WriteString(`" count="`)
	bw.WriteString(strconv.Itoa(max(s.count, len(s.values))))
	bw.WriteString(`" uniqueCount="`)
	bw.WriteString(strconv.Itoa(len(s.values)))
	bw.WriteString(`">`)
	for _, str := range s.values {
		bw.WriteString("<si>")
		writeText(bw, str)
		bw.WriteString("</si>")
	}
	bw.WriteString("</sst>")
	err := bw.Flush()
	return cw.n, err
}

func writeText(w *bufio.Writer, str string) {
	if needPreserve(str) {
		w.WriteString(`<t xml:space="preserve">`)
	} else {
		w.WriteString("<t>")
	}
	xml.EscapeText(w, []byte(str))
	w.WriteString("</t>")
}

func needPreserve(str string) bool {
	if str == "" {
		return false
	}
	if strings.TrimSpace(str) != str {
		return true
	}
	return strings.ContainsAny(str, "\n\t")
}

// readSharedStrings builds the table from a sharedStrings part. Rich text
// runs are concatenated and phonetic runs are ignored.
func readSharedStrings(r io.Reader) (*SharedStrings, error) {
	var (
		rs       = xml.NewDecoder(r)
		sst      = SharedStrings{index: make(map[string]int)}
		str      strings.Builder
		inItem   bool
		inText   bool
		phonetic int
	)
	for {
		tok, err := rs.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: shared strings: %s", ErrMalformed, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "si":
				inItem = true
				str.Reset()
			case "rPh":
				phonetic++
			case "t":
				inText = inItem && phonetic == 0
			default:
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "si":
				v := str.String()
				if _, ok := sst.index[v]; !ok {
					sst.index[v] = len(sst.values)
				}
				sst.values = append(sst.values, v)
				inItem = false
			case "rPh":
				phonetic--
			case "t":
				inText = false
			default:
			}
		case xml.CharData:
			if inText {
				str.Write(el)
			}
		default:
		}
	}
	if inItem {
		return nil, fmt.Errorf("%w: shared strings: unexpected end of part", ErrMalformed)
	}
	sst.count = len(sst.values)
	return &sst, nil
}

type countWriter struct {
	io.Writer
	n int64
}

func (w *countWriter) Write(b []byte) (int, error) {
	n, err := w.Writer.Write(b)
	w.n += int64(n)
	return n, err
}

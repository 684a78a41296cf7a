package oxml

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"io"
	"iter"
	"strconv"

	"github.com/midbel/xlstream/csv"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
)

// Encoder exports the rows of a sheet in another format.
type Encoder interface {
	EncodeSheet(iter.Seq2[*Row, error]) error
}

type csvEncoder struct {
	writer io.Writer
	comma  byte
}

func EncodeCSV(w io.Writer, comma byte) Encoder {
	if comma == 0 {
		comma = ','
	}
	return &csvEncoder{
		writer: w,
		comma:  comma,
	}
}

func (e *csvEncoder) EncodeSheet(rows iter.Seq2[*Row, error]) error {
	writer := csv.NewWriter(e.writer)
	writer.Comma = e.comma
	for row, err := range rows {
		if err != nil {
			return err
		}
		values := row.Values()
		fields := make([]string, 0, len(values))
		for i := range values {
			fields = append(fields, values[i].String())
		}
		if err := writer.Write(fields); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// jsonEncoder writes an array of objects. The first row gives the keys.
type jsonEncoder struct {
	writer io.Writer
}

func EncodeJSON(w io.Writer) Encoder {
	return &jsonEncoder{
		writer: w,
	}
}

func (e *jsonEncoder) EncodeSheet(rows iter.Seq2[*Row, error]) error {
	var (
		ws    = bufio.NewWriter(e.writer)
		names []string
		count int
	)
	ws.WriteString("[")
	for row, err := range rows {
		if err != nil {
			return err
		}
		if names == nil {
			for _, v := range row.Values() {
				names = append(names, v.String())
			}
			continue
		}
		obj := make(map[string]any)
		for i, v := range row.Values() {
			key := layout.ColumnName(int64(i + 1))
			if i < len(names) && names[i] != "" {
				key = names[i]
			}
			obj[key] = jsonValue(v)
		}
		buf, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if count > 0 {
			ws.WriteString(",")
		}
		ws.Write(buf)
		count++
	}
	ws.WriteString("]\n")
	return ws.Flush()
}

func jsonValue(v value.Value) any {
	if d, ok := v.(value.Date); ok {
		return d.String()
	}
	return v.Scalar()
}

type xmlEncoder struct {
	writer io.Writer
}

func EncodeXML(w io.Writer) Encoder {
	return &xmlEncoder{
		writer: w,
	}
}

func (e *xmlEncoder) EncodeSheet(rows iter.Seq2[*Row, error]) error {
	enc := xml.NewEncoder(e.writer)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "sheet"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for row, err := range rows {
		if err != nil {
			return err
		}
		el := xml.StartElement{
			Name: xml.Name{Local: "row"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "line"}, Value: strconv.FormatInt(row.Line, 10)},
			},
		}
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		for _, c := range row.Cells {
			cell := struct {
				XMLName xml.Name `xml:"cell"`
				Ref     string   `xml:"ref,attr"`
				Kind    string   `xml:"kind,attr"`
				Value   string   `xml:",chardata"`
			}{
				Ref:   c.Addr(),
				Kind:  c.Value.Kind().String(),
				Value: c.Value.String(),
			}
			if err := enc.Encode(cell); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

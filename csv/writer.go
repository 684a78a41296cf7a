package csv

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// Writer writes records separated by Comma. Fields are quoted only when
// needed unless ForceQuote is set. Line breaks inside a quoted field are
// written with the same terminator as the records.
//
// The first error is kept: every later call returns it.
type Writer struct {
	out *bufio.Writer
	buf []byte
	err error

	ForceQuote bool
	UseCRLF    bool
	Comma      byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		out:   bufio.NewWriter(w),
		Comma: ',',
	}
}

// WriteAll writes every record of data then flushes the writer.
func (w *Writer) WriteAll(data [][]string) error {
	for _, rec := range data {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteRecords drains seq. The sequence is not consumed further once the
// writer is in error.
func (w *Writer) WriteRecords(seq iter.Seq[[]string]) error {
	for rec := range seq {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (w *Writer) Write(record []string) error {
	if w.err != nil {
		return w.err
	}
	w.buf = w.buf[:0]
	for i, field := range record {
		if i > 0 {
			w.buf = append(w.buf, w.Comma)
		}
		w.appendField(field)
	}
	w.buf = append(w.buf, w.eol()...)
	_, w.err = w.out.Write(w.buf)
	return w.err
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.out.Flush()
	return w.err
}

func (w *Writer) Error() error {
	return w.err
}

func (w *Writer) appendField(field string) {
	if !w.ForceQuote && !w.mustQuote(field) {
		w.buf = append(w.buf, field...)
		return
	}
	w.buf = append(w.buf, quote)
	for len(field) > 0 {
		ix := strings.IndexAny(field, "\"\r\n")
		if ix < 0 {
			w.buf = append(w.buf, field...)
			break
		}
		w.buf = append(w.buf, field[:ix]...)
		switch field[ix] {
		case quote:
			w.buf = append(w.buf, quote, quote)
		case nl:
			w.buf = append(w.buf, w.eol()...)
		default:
			// cr is dropped, the terminator is added with the newline
		}
		field = field[ix+1:]
	}
	w.buf = append(w.buf, quote)
}

func (w *Writer) mustQuote(field string) bool {
	if field == "" {
		return false
	}
	if field[0] == space {
		return true
	}
	return strings.IndexByte(field, w.Comma) >= 0 || strings.ContainsAny(field, "\"\r\n")
}

func (w *Writer) eol() string {
	if w.UseCRLF {
		return "\r\n"
	}
	return "\n"
}

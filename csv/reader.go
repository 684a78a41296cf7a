package csv

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

type Reader struct {
	inner         *bufio.Reader
	Comma         byte
	FieldsPerLine int
	TrimSpace     bool

	line  int
	atEOF bool
}

func NewReader(r io.Reader) *Reader {
	rs := Reader{
		inner: bufio.NewReader(r),
		Comma: ',',
	}
	return &rs
}

func (r *Reader) Line() int {
	return r.line
}

func (r *Reader) Done() bool {
	return r.atEOF
}

func (r *Reader) ReadAll() ([][]string, error) {
	var all [][]string
	for {
		rs, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		all = append(all, rs)
	}
	return all, nil
}

func (r *Reader) Read() ([]string, error) {
	if r.Done() {
		return nil, io.EOF
	}
	line, err := r.inner.ReadBytes(nl)
	if len(line) == 0 && errors.Is(err, io.EOF) {
		r.atEOF = true
		return nil, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	r.line++
	if r.line == 1 {
		line = bytes.TrimPrefix(line, bom)
	}
	line = trimEOL(line)

	var res []string
	for i := 0; ; {
		var (
			field []byte
			size  int
			err   error
		)
		if i < len(line) && line[i] == quote {
			for {
				field, size, err = r.readQuotedField(line[i:])
				if !errors.Is(err, errUnterminated) {
					break
				}
				next, err1 := r.inner.ReadBytes(nl)
				if len(next) == 0 {
					return nil, fmt.Errorf("line %d: %w", r.line, ErrQuote)
				}
				if err1 != nil && !errors.Is(err1, io.EOF) {
					return nil, err1
				}
				line = append(line, '\n')
				line = append(line, trimEOL(next)...)
			}
		} else {
			field, size, err = r.readDefaultField(line[i:])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if r.TrimSpace {
			field = bytes.TrimSpace(field)
		}
		res = append(res, string(field))
		i += size
		if i >= len(line) {
			break
		}
		if line[i] != r.Comma {
			return nil, fmt.Errorf("line %d: unexpected character %q after field", r.line, line[i])
		}
		i++
	}
	if r.FieldsPerLine > 0 && len(res) != r.FieldsPerLine {
		return nil, fmt.Errorf("line %d: %w: want %d - got %d", r.line, ErrFields, r.FieldsPerLine, len(res))
	}
	return res, nil
}

func (r *Reader) readQuotedField(line []byte) ([]byte, int, error) {
	var (
		field  []byte
		offset = 1
	)
	for offset < len(line) {
		if line[offset] == quote {
			if offset+1 < len(line) && line[offset+1] == quote {
				field = append(field, quote)
				offset += 2
				continue
			}
			return field, offset + 1, nil
		}
		field = append(field, line[offset])
		offset++
	}
	return nil, 0, errUnterminated
}

func (r *Reader) readDefaultField(line []byte) ([]byte, int, error) {
	var offset int
	for offset < len(line) {
		switch line[offset] {
		case quote:
			return nil, 0, ErrQuote
		case cr:
			return nil, 0, ErrLine
		case r.Comma:
			return line[:offset], offset, nil
		default:
			offset++
		}
	}
	return line[:offset], offset, nil
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{nl})
	return bytes.TrimSuffix(line, []byte{cr})
}

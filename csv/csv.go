package csv

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

const (
	quote = '"'
	nl    = '\n'
	cr    = '\r'
	space = ' '
)

var (
	ErrQuote  = errors.New("misplaced quote")
	ErrFields = errors.New("invalid number of fields")
	ErrLine   = errors.New("carriage return only allowed before newline")

	errUnterminated = errors.New("unterminated")
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Records iterates over the records of r.
func Records(r *Reader) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Sniff guesses the delimiter used in the first line of r. The returned
// reader gives the full content of r.
func Sniff(r io.Reader) (byte, io.Reader) {
	rs := bufio.NewReader(r)
	line, _ := rs.Peek(4096)
	if ix := bytes.IndexByte(line, nl); ix >= 0 {
		line = line[:ix]
	}
	var (
		comma = byte(',')
		count int
	)
	for _, c := range []byte{',', ';', '\t', '|'} {
		if n := countOutsideQuotes(line, c); n > count {
			comma, count = c, n
		}
	}
	return comma, rs
}

func countOutsideQuotes(line []byte, c byte) int {
	var (
		n      int
		quoted bool
	)
	for _, b := range line {
		switch {
		case b == quote:
			quoted = !quoted
		case b == c && !quoted:
			n++
		default:
		}
	}
	return n
}

package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrAddress = errors.New("invalid address")

const (
	// column ZZZ
	MaxColumn int64 = 26 + 26*26 + 26*26*26
	MaxLine   int64 = 1 << 40

	maxLetters = 3
)

type Position struct {
	Sheet  string
	Line   int64
	Column int64
}

func NewPosition(line, column int64) Position {
	return Position{
		Line:   line,
		Column: column,
	}
}

// ParsePosition parses a cell address made of column letters followed by a
// line number (eg: A1, zz42). Sheet prefixes and $ markers are rejected, see
// ParseReference for those.
func ParsePosition(addr string) (Position, error) {
	var pos Position
	col, offset, err := parseColumn(addr)
	if err != nil {
		return pos, err
	}
	line, err := parseLine(addr[offset:])
	if err != nil {
		return pos, fmt.Errorf("%w: %q", err, addr)
	}
	pos.Line = line
	pos.Column = col
	return pos, nil
}

func (p Position) Valid() bool {
	return p.Line > 0 && p.Line <= MaxLine && p.Column > 0 && p.Column <= MaxColumn
}

func (p Position) Equal(other Position) bool {
	return p.Line == other.Line && p.Column == other.Column
}

func (p Position) Addr() string {
	var str strings.Builder
	if p.Sheet != "" {
		str.WriteString(p.Sheet)
		str.WriteByte('!')
	}
	str.WriteString(ColumnName(p.Column))
	str.WriteString(strconv.FormatInt(p.Line, 10))
	return str.String()
}

func (p Position) String() string {
	return p.Addr()
}

func (p Position) Update(other Position) Position {
	if p.Line == 0 {
		p.Line = other.Line
	}
	if p.Column == 0 {
		p.Column = other.Column
	}
	return p
}

func (p Position) Offset(lines, columns int64) Position {
	p.Line += lines
	p.Column += columns
	return p
}

func IsAddress(addr string) bool {
	_, err := ParsePosition(addr)
	return err == nil
}

// ColumnName renders a 1-based column index with the bijective base-26
// alphabet used by spreadsheets: 1 is A, 26 is Z, 27 is AA.
func ColumnName(ix int64) string {
	if ix <= 0 {
		return ""
	}
	var (
		buf [16]byte
		pos = len(buf)
	)
	for ix > 0 {
		ix--
		pos--
		buf[pos] = byte('A' + ix%26)
		ix /= 26
	}
	return string(buf[pos:])
}

func ColumnIndex(name string) (int64, error) {
	ix, offset, err := parseColumn(name)
	if err != nil {
		return 0, err
	}
	if offset != len(name) {
		return 0, fmt.Errorf("%w: %q is not a column", ErrAddress, name)
	}
	return ix, nil
}

func parseColumn(str string) (int64, int, error) {
	var (
		index  int64
		offset int
	)
	for offset < len(str) && isLetter(str[offset]) {
		if offset >= maxLetters {
			return 0, 0, fmt.Errorf("%w: column out of range in %q", ErrAddress, str)
		}
		index = index*26 + int64(toUpper(str[offset])-'A'+1)
		offset++
	}
	if offset == 0 {
		return 0, 0, fmt.Errorf("%w: %q does not start with a column", ErrAddress, str)
	}
	return index, offset, nil
}

func parseLine(str string) (int64, error) {
	if str == "" {
		return 0, fmt.Errorf("%w: missing line number", ErrAddress)
	}
	if str[0] == '0' {
		return 0, fmt.Errorf("%w: line number can not start with 0", ErrAddress)
	}
	for i := 0; i < len(str); i++ {
		if !isDigit(str[i]) {
			return 0, fmt.Errorf("%w: unexpected character %q", ErrAddress, str[i])
		}
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil || n > MaxLine {
		return 0, fmt.Errorf("%w: line number out of range", ErrAddress)
	}
	return n, nil
}

func toUpper(c byte) byte {
	if isLower(c) {
		return c - 'a' + 'A'
	}
	return c
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return isLower(c) || isUpper(c)
}

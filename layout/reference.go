package layout

import (
	"fmt"
	"strings"
)

// Reference is a cell address as found in formulas, where either part can be
// anchored with a $ sign.
type Reference struct {
	Position
	AbsLine   bool
	AbsColumn bool
}

func ParseReference(str string) (Reference, error) {
	var ref Reference
	if ix := strings.LastIndexByte(str, '!'); ix >= 0 {
		ref.Sheet = strings.Trim(str[:ix], "'")
		str = str[ix+1:]
	}
	if strings.HasPrefix(str, "$") {
		ref.AbsColumn = true
		str = str[1:]
	}
	col, offset, err := parseColumn(str)
	if err != nil {
		return ref, err
	}
	str = str[offset:]
	if strings.HasPrefix(str, "$") {
		ref.AbsLine = true
		str = str[1:]
	}
	line, err := parseLine(str)
	if err != nil {
		return ref, fmt.Errorf("%w: %q", err, str)
	}
	ref.Line = line
	ref.Column = col
	return ref, nil
}

func (r Reference) String() string {
	var str strings.Builder
	if r.Sheet != "" {
		str.WriteString(r.Sheet)
		str.WriteByte('!')
	}
	if r.AbsColumn {
		str.WriteByte('$')
	}
	str.WriteString(ColumnName(r.Column))
	if r.AbsLine {
		str.WriteByte('$')
	}
	fmt.Fprintf(&str, "%d", r.Line)
	return str.String()
}

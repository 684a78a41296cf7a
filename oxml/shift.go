package oxml

import (
	"slices"
	"strings"

	"github.com/midbel/xlstream/layout"
)

// rowPlan records the rows of a sheet that are repeated and gives the new
// location of the other rows.
type rowPlan struct {
	copies map[int64]int
	lines  []int64
}

func newRowPlan() *rowPlan {
	return &rowPlan{
		copies: make(map[int64]int),
	}
}

func (p *rowPlan) repeat(line int64, count int) {
	if _, ok := p.copies[line]; !ok {
		p.lines = append(p.lines, line)
		slices.Sort(p.lines)
	}
	p.copies[line] = count
}

func (p *rowPlan) empty() bool {
	return len(p.lines) == 0
}

// Shift gives the new line of the start of a reference: only the rows located
// strictly above line move it.
func (p *rowPlan) Shift(line int64) int64 {
	return line + p.delta(line, false)
}

// ShiftEnd gives the new line of the end of a range: a range ending on a
// repeated row grows to cover all its copies.
func (p *rowPlan) ShiftEnd(line int64) int64 {
	return line + p.delta(line, true)
}

func (p *rowPlan) delta(line int64, inclusive bool) int64 {
	var delta int64
	for _, n := range p.lines {
		if n > line || (n == line && !inclusive) {
			break
		}
		delta += int64(p.copies[n] - 1)
	}
	return delta
}

func (p *rowPlan) shiftRange(rg *layout.Range) *layout.Range {
	x := *rg
	x.Starts.Line = p.Shift(rg.Starts.Line)
	x.Ends.Line = p.ShiftEnd(rg.Ends.Line)
	if x.Ends.Line < x.Starts.Line {
		x.Ends.Line = x.Starts.Line
	}
	return &x
}

// shiftRefs rewrites a space separated list of ranges as found in ref and
// sqref attributes. Items that can not be parsed are kept as is.
func (p *rowPlan) shiftRefs(str string) string {
	parts := strings.Fields(str)
	for i, ref := range parts {
		rg, err := layout.ParseRange(ref)
		if err != nil {
			continue
		}
		rg = p.shiftRange(rg)
		if strings.Contains(ref, ":") && rg.Single() {
			parts[i] = rg.Starts.Addr() + ":" + rg.Ends.Addr()
		} else {
			parts[i] = rg.String()
		}
	}
	return strings.Join(parts, " ")
}

// shiftFormula moves the cell references found in a formula. References
// qualified with the name of another sheet are left untouched.
func shiftFormula(expr, sheet string, move func(line int64, end bool) int64) string {
	var (
		str  strings.Builder
		prev byte
	)
	for i := 0; i < len(expr); {
		c := expr[i]
		if c == '"' {
			end := strings.IndexByte(expr[i+1:], '"')
			if end < 0 {
				str.WriteString(expr[i:])
				break
			}
			str.WriteString(expr[i : i+end+2])
			prev = '"'
			i += end + 2
			continue
		}
		if c == '\'' || isIdentStart(c) || c == '$' {
			if isIdentChar(prev) || prev == '.' {
				str.WriteByte(c)
				prev = c
				i++
				continue
			}
			qualifier, n := scanQualifier(expr[i:])
			ref, m := scanReference(expr[i+n:])
			if m > 0 && (qualifier == "" || strings.EqualFold(qualifier, sheet)) {
				end := prev == ':'
				ref.Line = move(ref.Line, end)
				str.WriteString(expr[i : i+n])
				str.WriteString(ref.String())
				i += n + m
				prev = expr[i-1]
				continue
			}
			if n+m > 0 {
				str.WriteString(expr[i : i+n+m])
				i += n + m
				prev = expr[i-1]
				continue
			}
		}
		str.WriteByte(c)
		prev = c
		i++
	}
	return str.String()
}

func scanQualifier(str string) (string, int) {
	if strings.HasPrefix(str, "'") {
		end := strings.Index(str[1:], "'!")
		if end < 0 {
			return "", 0
		}
		return str[1 : end+1], end + 3
	}
	ix := strings.IndexByte(str, '!')
	if ix <= 0 {
		return "", 0
	}
	for i := 0; i < ix; i++ {
		if !isIdentChar(str[i]) {
			return "", 0
		}
	}
	return str[:ix], ix + 1
}

// scanReference reads a cell reference at the start of str. It fails when
// the reference is followed by a character that makes it part of a name or a
// function call.
func scanReference(str string) (layout.Reference, int) {
	var i int
	if i < len(str) && str[i] == '$' {
		i++
	}
	start := i
	for i < len(str) && isAlpha(str[i]) {
		i++
	}
	if i == start || i-start > 3 {
		return layout.Reference{}, 0
	}
	if i < len(str) && str[i] == '$' {
		i++
	}
	digits := i
	for i < len(str) && str[i] >= '0' && str[i] <= '9' {
		i++
	}
	if i == digits {
		return layout.Reference{}, 0
	}
	if i < len(str) && (isIdentChar(str[i]) || str[i] == '(' || str[i] == '!') {
		return layout.Reference{}, 0
	}
	ref, err := layout.ParseReference(str[:i])
	if err != nil {
		return layout.Reference{}, 0
	}
	return ref, i
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentStart(c byte) bool {
	return isAlpha(c) || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}

package layout

import (
	"fmt"
	"strings"
)

type Range struct {
	Starts Position
	Ends   Position
}

func NewRange(starts, ends Position) *Range {
	rg := Range{
		Starts: starts,
		Ends:   ends,
	}
	return rg.Normalize()
}

func ParseRange(str string) (*Range, error) {
	fst, lst, ok := strings.Cut(str, ":")
	starts, err := ParsePosition(strings.ReplaceAll(fst, "$", ""))
	if err != nil {
		return nil, err
	}
	ends := starts
	if ok {
		ends, err = ParsePosition(strings.ReplaceAll(lst, "$", ""))
		if err != nil {
			return nil, err
		}
	}
	return NewRange(starts, ends), nil
}

func (r *Range) Contains(pos Position) bool {
	ok := pos.Line >= r.Starts.Line && pos.Line <= r.Ends.Line
	if !ok {
		return false
	}
	return pos.Column >= r.Starts.Column && pos.Column <= r.Ends.Column
}

func (r *Range) Overlaps(other *Range) bool {
	if r.Ends.Line < other.Starts.Line || other.Ends.Line < r.Starts.Line {
		return false
	}
	return r.Starts.Column <= other.Ends.Column && other.Starts.Column <= r.Ends.Column
}

func (r *Range) Width() int64 {
	return r.Ends.Column - r.Starts.Column + 1
}

func (r *Range) Height() int64 {
	return r.Ends.Line - r.Starts.Line + 1
}

func (r *Range) Single() bool {
	return r.Starts.Equal(r.Ends)
}

func (r *Range) String() string {
	if r.Single() {
		return r.Starts.Addr()
	}
	return fmt.Sprintf("%s:%s", r.Starts.Addr(), r.Ends.Addr())
}

func (r *Range) Normalize() *Range {
	x := *r
	x.Starts.Line = min(r.Starts.Line, r.Ends.Line)
	x.Starts.Column = min(r.Starts.Column, r.Ends.Column)
	x.Ends.Line = max(r.Starts.Line, r.Ends.Line)
	x.Ends.Column = max(r.Starts.Column, r.Ends.Column)
	return &x
}

// Expand grows the range so that it covers pos.
func (r *Range) Expand(pos Position) {
	if r.Starts.Line == 0 || pos.Line < r.Starts.Line {
		r.Starts.Line = pos.Line
	}
	if r.Starts.Column == 0 || pos.Column < r.Starts.Column {
		r.Starts.Column = pos.Column
	}
	r.Ends.Line = max(r.Ends.Line, pos.Line)
	r.Ends.Column = max(r.Ends.Column, pos.Column)
}

func (r *Range) Dimension() Dimension {
	return Dimension{
		Lines:   r.Height(),
		Columns: r.Width(),
	}
}

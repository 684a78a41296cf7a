package layout

import (
	"fmt"
	"strings"
)

// Selection is a set of columns given as letters, spans (A:C) or both
// separated by commas (A,C:E).
type Selection struct {
	spans [][2]int64
}

func ParseSelection(str string) (*Selection, error) {
	var sel Selection
	if strings.TrimSpace(str) == "" {
		return &sel, nil
	}
	for _, part := range strings.Split(str, ",") {
		fst, lst, ok := strings.Cut(strings.TrimSpace(part), ":")
		lo, err := ColumnIndex(fst)
		if err != nil {
			return nil, fmt.Errorf("selection: %w", err)
		}
		hi := lo
		if ok {
			if hi, err = ColumnIndex(lst); err != nil {
				return nil, fmt.Errorf("selection: %w", err)
			}
		}
		sel.spans = append(sel.spans, [2]int64{min(lo, hi), max(lo, hi)})
	}
	return &sel, nil
}

func (s *Selection) All() bool {
	return s == nil || len(s.spans) == 0
}

func (s *Selection) Has(col int64) bool {
	if s.All() {
		return true
	}
	for _, sp := range s.spans {
		if col >= sp[0] && col <= sp[1] {
			return true
		}
	}
	return false
}

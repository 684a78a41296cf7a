package oxml

import (
	"math"
	"unicode/utf8"
)

// ApproximateWidth gives the width of a column able to display n characters
// of the default font.
func ApproximateWidth(n int) float64 {
	w := float64(n)*1.2 + 2
	return math.Round(w*100) / 100
}

// ColumnWidths tracks the width of the columns of a sheet while its rows are
// written. Widths only grow and never go beyond the configured maximum.
type ColumnWidths struct {
	widths []float64
	min    float64
	max    float64
}

func NewColumnWidths(min, max float64) *ColumnWidths {
	return &ColumnWidths{
		min: min,
		max: max,
	}
}

// Set defines the initial width of a column. A zero width keeps the minimum.
func (c *ColumnWidths) Set(ix int, width float64) {
	c.grow(ix)
	if width > 0 {
		c.widths[ix] = min(width, c.max)
	}
}

func (c *ColumnWidths) Observe(ix int, str string) {
	c.Fit(ix, utf8.RuneCountInString(str))
}

func (c *ColumnWidths) Fit(ix, n int) {
	c.grow(ix)
	w := min(ApproximateWidth(n), c.max)
	c.widths[ix] = max(c.widths[ix], w)
}

func (c *ColumnWidths) Width(ix int) float64 {
	if ix < 0 || ix >= len(c.widths) {
		return c.min
	}
	return c.widths[ix]
}

func (c *ColumnWidths) Len() int {
	return len(c.widths)
}

func (c *ColumnWidths) grow(ix int) {
	for len(c.widths) <= ix {
		c.widths = append(c.widths, c.min)
	}
}

package oxml

import (
	"testing"

	"github.com/midbel/xlstream/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowPlan(t *testing.T) {
	plan := newRowPlan()
	assert.True(t, plan.empty())

	plan.repeat(5, 3)
	plan.repeat(2, 2)

	tests := []struct {
		Line  int64
		Start int64
		End   int64
	}{
		{Line: 1, Start: 1, End: 1},
		{Line: 2, Start: 2, End: 3},
		{Line: 3, Start: 4, End: 4},
		{Line: 5, Start: 6, End: 8},
		{Line: 6, Start: 9, End: 9},
	}
	for _, c := range tests {
		assert.Equal(t, c.Start, plan.Shift(c.Line), "shift line %d", c.Line)
		assert.Equal(t, c.End, plan.ShiftEnd(c.Line), "shift end line %d", c.Line)
	}

	assert.Equal(t, "A1:C8 D9", plan.shiftRefs("A1:C5 D6"))
	assert.Equal(t, "A1:A1", plan.shiftRefs("A1:A1"))
	assert.Equal(t, "foo", plan.shiftRefs("foo"))

	rg, err := layout.ParseRange("B3:D6")
	require.NoError(t, err)
	assert.Equal(t, "B4:D9", plan.shiftRange(rg).String())
}

func TestRowPlanRemove(t *testing.T) {
	plan := newRowPlan()
	plan.repeat(3, 0)

	assert.Equal(t, int64(3), plan.Shift(4))
	assert.Equal(t, int64(2), plan.ShiftEnd(3))

	rg, err := layout.ParseRange("A3:B3")
	require.NoError(t, err)
	got := plan.shiftRange(rg)
	assert.Equal(t, got.Starts.Line, got.Ends.Line)
}

func TestShiftFormula(t *testing.T) {
	plan := newRowPlan()
	plan.repeat(3, 2)
	move := func(line int64, end bool) int64 {
		if end {
			return plan.ShiftEnd(line)
		}
		return plan.Shift(line)
	}
	tests := []struct {
		Expr string
		Want string
	}{
		{Expr: "SUM(B3:B3)", Want: "SUM(B3:B4)"},
		{Expr: "A5*2", Want: "A6*2"},
		{Expr: "$A$5+B$1", Want: "$A$6+B$1"},
		{Expr: "Data!A5+Other!A5", Want: "Data!A6+Other!A5"},
		{Expr: "'Data'!C7&\"A5\"", Want: "'Data'!C8&\"A5\""},
		{Expr: "LOG10(A4)", Want: "LOG10(A5)"},
		{Expr: "my_name.A5+A5", Want: "my_name.A5+A6"},
		{Expr: "SUM(A1:A2)", Want: "SUM(A1:A2)"},
	}
	for _, c := range tests {
		got := shiftFormula(c.Expr, "Data", move)
		assert.Equal(t, c.Want, got, c.Expr)
	}
}

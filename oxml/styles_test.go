package oxml

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleSheetRegister(t *testing.T) {
	sheet := NewStyleSheet()
	assert.Equal(t, 1, sheet.Len())

	header, err := sheet.Register(HeaderStyle())
	require.NoError(t, err)
	again, err := sheet.Register(HeaderStyle())
	require.NoError(t, err)
	assert.Equal(t, header, again)

	plain, err := sheet.Register(Style{})
	require.NoError(t, err)
	assert.Equal(t, 0, plain)

	red, err := sheet.Register(Style{Font: &Font{Color: "#ff0000"}})
	require.NoError(t, err)
	other, err := sheet.Register(Style{Font: &Font{Name: "Calibri", Size: 11, Color: "FFFF0000"}})
	require.NoError(t, err)
	assert.Equal(t, red, other)

	_, err = sheet.Register(Style{NumFmt: "[Red"})
	assert.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, 3, sheet.Len())
}

func TestStyleSheetFormats(t *testing.T) {
	sheet := NewStyleSheet()
	tests := []struct {
		Code string
		Id   int
	}{
		{Code: "General", Id: 0},
		{Code: "0.00", Id: 2},
		{Code: "0.000", Id: 164},
		{Code: "yyyy-mm-dd hh:mm", Id: 165},
		{Code: "0.000", Id: 164},
	}
	for _, c := range tests {
		id, err := sheet.RegisterFormat(c.Code)
		require.NoError(t, err, c.Code)
		assert.Equal(t, c.Id, id, c.Code)
	}
}

func TestStyleSheetDates(t *testing.T) {
	sheet := NewStyleSheet()
	number, err := sheet.Register(Style{NumFmt: "#,##0.000"})
	require.NoError(t, err)
	date, err := sheet.Register(Style{NumFmt: "dd/mm/yyyy"})
	require.NoError(t, err)
	builtin, err := sheet.Register(Style{NumFmt: "m/d/yy h:mm"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = sheet.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `<numFmt numFmtId="164" formatCode="#,##0.000"></numFmt>`)

	index, err := readStyles(&buf)
	require.NoError(t, err)
	for style, want := range map[int]bool{0: false, number: false, date: true, builtin: true} {
		got, err := index.isDate(style)
		require.NoError(t, err)
		assert.Equal(t, want, got, "style %d", style)
	}
	_, err = index.isDate(10)
	assert.ErrorIs(t, err, ErrCorrupted)
}

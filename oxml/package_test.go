package oxml

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPackageInvalid(t *testing.T) {
	tests := []struct {
		Name string
		Data []byte
	}{
		{Name: "empty", Data: nil},
		{Name: "zeros", Data: []byte{0x00, 0x00}},
		{Name: "text", Data: []byte("name,age\nfoo,42\n")},
		{Name: "truncated", Data: []byte("PK\x03\x04garbage")},
	}
	for _, c := range tests {
		_, err := ReadPackage(bytes.NewReader(c.Data), int64(len(c.Data)))
		assert.ErrorIs(t, err, ErrPackage, c.Name)
	}
}

func TestReadPackageWithoutContentTypes(t *testing.T) {
	file := writeFixture(t, []part{
		{Name: "_rels/.rels", Content: fixtureRootRels},
	})
	_, err := OpenPackage(file)
	assert.ErrorIs(t, err, ErrPackage)
}

func TestPackageCommit(t *testing.T) {
	src := writeFixture(t, workbookParts(`<row r="1"><c r="A1" t="s"><v>0</v></c></row>`))
	pkg, err := OpenPackage(src)
	require.NoError(t, err)
	defer pkg.Close()

	w, err := pkg.Update("xl/sharedStrings.xml")
	require.NoError(t, err)
	io.WriteString(w, "<sst/>")

	w, err = pkg.Create("docProps/app.xml")
	require.NoError(t, err)
	io.WriteString(w, "<Properties/>")

	require.NoError(t, pkg.Remove("xl/workbook.xml"))

	dst := filepath.Join(t.TempDir(), "result.xlsx")
	a, err := CreateArchive(dst)
	require.NoError(t, err)
	require.NoError(t, pkg.Commit(context.Background(), a))
	require.NoError(t, a.Finalize())

	before := readEntries(t, src)
	after := readEntries(t, dst)

	assert.NotContains(t, after, "xl/workbook.xml")
	assert.Equal(t, "<sst/>", readEntry(t, after["xl/sharedStrings.xml"]))
	assert.Equal(t, "<Properties/>", readEntry(t, after["docProps/app.xml"]))
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "xl/worksheets/sheet1.xml"} {
		require.Contains(t, after, name)
		assert.Equal(t, before[name].CRC32, after[name].CRC32, name)
		assert.Equal(t, before[name].CompressedSize64, after[name].CompressedSize64, name)
		assert.Equal(t, readEntry(t, before[name]), readEntry(t, after[name]), name)
	}
}

func TestPackageUpdateMissing(t *testing.T) {
	pkg, err := OpenPackage(writeFixture(t, workbookParts("")))
	require.NoError(t, err)
	defer pkg.Close()

	_, err = pkg.Update("xl/styles.xml")
	assert.ErrorIs(t, err, ErrFound)
	assert.ErrorIs(t, pkg.Remove("xl/styles.xml"), ErrFound)
	assert.True(t, pkg.Has("XL/Workbook.xml"))
}

func TestPackageClose(t *testing.T) {
	pkg, err := OpenPackage(writeFixture(t, workbookParts("")))
	require.NoError(t, err)

	require.NoError(t, pkg.Close())
	require.NoError(t, pkg.Close())

	_, err = pkg.Open("xl/workbook.xml")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = pkg.Update("xl/workbook.xml")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestArchiveClose(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "aborted.xlsx")
	a, err := CreateArchive(dst)
	require.NoError(t, err)

	w, err := a.Create("xl/workbook.xml")
	require.NoError(t, err)
	io.WriteString(w, "<workbook/>")

	_, err = a.Create("xl/workbook.xml")
	assert.ErrorIs(t, err, ErrPackage)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Finalize(), ErrClosed)

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

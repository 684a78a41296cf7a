package oxml

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type part struct {
	Name    string
	Content string
}

const (
	fixtureTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
</Types>`

	fixtureRootRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`

	fixtureWorkbook = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Data" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

	fixtureWorkbookRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>
</Relationships>`

	fixtureStrings = `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2">
<si><t>foo</t></si><si><r><t>ba</t></r><r><t>r</t></r><rPh><t>x</t></rPh></si>
</sst>`
)

// workbookParts gives the parts of a workbook with a single sheet named Data
// holding the given sheetData content.
func workbookParts(data string) []part {
	sheet := `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` + data + `</sheetData></worksheet>`
	return []part{
		{Name: "[Content_Types].xml", Content: fixtureTypes},
		{Name: "_rels/.rels", Content: fixtureRootRels},
		{Name: "xl/workbook.xml", Content: fixtureWorkbook},
		{Name: "xl/_rels/workbook.xml.rels", Content: fixtureWorkbookRels},
		{Name: "xl/sharedStrings.xml", Content: fixtureStrings},
		{Name: "xl/worksheets/sheet1.xml", Content: sheet},
	}
}

func writeFixture(t *testing.T, parts []part) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "fixture.xlsx")
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()

	z := zip.NewWriter(f)
	for _, p := range parts {
		w, err := z.Create(p.Name)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.Content)
		require.NoError(t, err)
	}
	require.NoError(t, z.Close())
	return file
}

func readEntries(t *testing.T, file string) map[string]*zip.File {
	t.Helper()
	z, err := zip.OpenReader(file)
	require.NoError(t, err)
	t.Cleanup(func() {
		z.Close()
	})
	files := make(map[string]*zip.File)
	for _, f := range z.File {
		files[f.Name] = f
	}
	return files
}

func readEntry(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	buf, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(buf)
}

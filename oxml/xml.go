package oxml

import (
	"encoding/xml"
	"strings"
)

const wbBaseDir = "xl"

const (
	typeSheetUrl   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	typeDocUrl     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	typeMainUrl    = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	typeSharedUrl  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	typeStyleUrl   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	typeDrawingUrl = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/drawing"
	typeImageUrl   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	typeRelUrl     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	typePackageUrl = "http://schemas.openxmlformats.org/package/2006/relationships"
	typeContentUrl = "http://schemas.openxmlformats.org/package/2006/content-types"

	typeDrawingMainUrl = "http://schemas.openxmlformats.org/drawingml/2006/main"
	typeSpreadDrawUrl  = "http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing"
)

// relationship types are matched on their last segment so that the strict
// namespaces are accepted too
const (
	relDocument = "/officeDocument"
	relSheet    = "/worksheet"
	relShared   = "/sharedStrings"
	relStyles   = "/styles"
	relCalc     = "/calcChain"
)

const (
	mimeRels         = "application/vnd.openxmlformats-package.relationships+xml"
	mimeXml          = "application/xml"
	mimeWorkbook     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	mimeWorksheet    = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	mimeStyle        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	mimeSharedString = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	mimeDrawing      = "application/vnd.openxmlformats-officedocument.drawing+xml"
	mimeCalcChain    = "application/vnd.openxmlformats-officedocument.spreadsheetml.calcChain+xml"
)

type xmlWorkbook struct {
	XMLName    xml.Name `xml:"workbook"`
	Properties struct {
		Date1904 string `xml:"date1904,attr"`
	} `xml:"workbookPr"`
	Views  []xmlWorkbookView `xml:"bookViews>workbookView"`
	Sheets []xmlSheet        `xml:"sheets>sheet"`
}

type xmlWorkbookView struct {
	ActiveTab int `xml:"activeTab,attr"`
}

type xmlSheet struct {
	XMLName xml.Name   `xml:"sheet"`
	Name    string     `xml:"name,attr"`
	Index   int        `xml:"sheetId,attr"`
	State   SheetState `xml:"state,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
}

// relation returns the value of the r:id attribute whatever the namespace
// used by the producer of the workbook.
func (x xmlSheet) relation() string {
	for _, a := range x.Attrs {
		if a.Name.Local == "id" && a.Name.Space != "" {
			return a.Value
		}
	}
	return ""
}

type xmlRelations struct {
	XMLName   xml.Name      `xml:"Relationships"`
	Xmlns     string        `xml:"xmlns,attr"`
	Relations []xmlRelation `xml:"Relationship"`
}

func (x xmlRelations) find(suffix string) (xmlRelation, bool) {
	for _, r := range x.Relations {
		if strings.HasSuffix(r.Type, suffix) {
			return r, true
		}
	}
	return xmlRelation{}, false
}

func (x xmlRelations) get(id string) (xmlRelation, bool) {
	for _, r := range x.Relations {
		if r.Id == id {
			return r, true
		}
	}
	return xmlRelation{}, false
}

type xmlRelation struct {
	XMLName    xml.Name `xml:"Relationship"`
	Target     string   `xml:",attr"`
	Id         string   `xml:",attr"`
	Type       string   `xml:",attr"`
	TargetMode string   `xml:",attr,omitempty"`
}

type xmlContentTypes struct {
	XMLName   xml.Name      `xml:"Types"`
	Xmlns     string        `xml:"xmlns,attr"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	XMLName     xml.Name `xml:"Default"`
	Extension   string   `xml:"Extension,attr"`
	ContentType string   `xml:"ContentType,attr"`
}

type xmlOverride struct {
	XMLName     xml.Name `xml:"Override"`
	PartName    string   `xml:"PartName,attr"`
	ContentType string   `xml:"ContentType,attr"`
}

// resolveTarget resolves the target of a relationship defined in the part
// located in dir.
func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	parts := strings.Split(dir, "/")
	if dir == "" {
		parts = nil
	}
	for _, p := range strings.Split(target, "/") {
		switch p {
		case ".", "":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// relsPath gives the location of the relationships part of a part.
func relsPath(part string) string {
	dir, file := splitPart(part)
	if dir == "" {
		return "_rels/" + file + ".rels"
	}
	return dir + "/_rels/" + file + ".rels"
}

func splitPart(part string) (string, string) {
	ix := strings.LastIndexByte(part, '/')
	if ix < 0 {
		return "", part
	}
	return part[:ix], part[ix+1:]
}

package oxml

import (
	"encoding/xml"

	"github.com/midbel/xlstream/layout"
)

type SheetState int8

const (
	StateVisible SheetState = iota
	StateHidden
	StateVeryHidden
)

func ParseSheetState(str string) SheetState {
	var s SheetState
	s.UnmarshalXMLAttr(xml.Attr{Value: str})
	return s
}

func (s SheetState) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateVeryHidden:
		return "veryHidden"
	default:
		return "visible"
	}
}

func (s SheetState) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	var attr xml.Attr
	if s == StateVisible {
		return attr, nil
	}
	attr.Name = name
	attr.Value = s.String()
	return attr, nil
}

func (s *SheetState) UnmarshalXMLAttr(attr xml.Attr) error {
	switch attr.Value {
	case "hidden":
		(*s) = StateHidden
	case "veryHidden":
		(*s) = StateVeryHidden
	default:
		(*s) = StateVisible
	}
	return nil
}

type Sheet struct {
	Id     string
	Name   string
	Index  int
	State  SheetState
	Active bool
	Path   string
	Size   layout.Dimension
}

func (s Sheet) Visible() bool {
	return s.State == StateVisible
}

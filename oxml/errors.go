package oxml

import (
	"errors"
	"fmt"

	"github.com/midbel/xlstream/format"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/value"
)

var (
	ErrPackage   = errors.New("invalid package")
	ErrMalformed = errors.New("malformed xml")
	ErrCorrupted = errors.New("corrupted workbook")
	ErrColumn    = errors.New("unknown column")
	ErrCancelled = errors.New("operation cancelled")
	ErrFound     = errors.New("not found")
	ErrClosed    = errors.New("already closed")
	ErrMedia     = errors.New("unsupported media")
	ErrSheetName = errors.New("invalid sheet name")

	ErrAddress    = layout.ErrAddress
	ErrFormat     = format.ErrFormat
	ErrConversion = value.ErrCast
)

// SheetError locates a failure inside a worksheet. Line and Column are 0
// when unknown.
type SheetError struct {
	Sheet  string
	Line   int64
	Column int64
	Err    error
}

func sheetError(sheet string, line, column int64, err error) error {
	if err == nil {
		return nil
	}
	var se *SheetError
	if errors.As(err, &se) {
		return err
	}
	return &SheetError{
		Sheet:  sheet,
		Line:   line,
		Column: column,
		Err:    err,
	}
}

func (e *SheetError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		addr := layout.NewPosition(e.Line, e.Column)
		return fmt.Sprintf("%s!%s: %s", e.Sheet, addr.Addr(), e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s!%d: %s", e.Sheet, e.Line, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Sheet, e.Err)
	}
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

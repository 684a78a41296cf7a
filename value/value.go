package value

import (
	"fmt"
)

type ValueKind int8

const (
	KindBlank ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindDate
	KindError
)

func (k ValueKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is the content of a cell. The set of implementations is closed: Blank,
// Text, Float, Boolean, Date and Error.
type Value interface {
	fmt.Stringer
	Kind() ValueKind
	Scalar() any

	sealed()
}

func IsBlank(v Value) bool {
	return v == nil || v.Kind() == KindBlank
}

func Equal(a, b Value) bool {
	if IsBlank(a) || IsBlank(b) {
		return IsBlank(a) && IsBlank(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Date:
		return x.Time().Equal(b.(Date).Time())
	case Float:
		return x == b.(Float)
	default:
		return a.String() == b.String()
	}
}

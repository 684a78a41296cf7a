package value

import (
	"strconv"
	"time"
)

type Blank struct{}

func Empty() Value {
	return Blank{}
}

func (Blank) Kind() ValueKind {
	return KindBlank
}

func (Blank) String() string {
	return ""
}

func (Blank) Scalar() any {
	return nil
}

func (Blank) sealed() {}

type Text string

func (Text) Kind() ValueKind {
	return KindText
}

func (t Text) String() string {
	return string(t)
}

func (t Text) Scalar() any {
	return string(t)
}

func (Text) sealed() {}

type Float float64

func (Float) Kind() ValueKind {
	return KindNumber
}

func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

func (f Float) Scalar() any {
	return float64(f)
}

func (Float) sealed() {}

type Boolean bool

func (Boolean) Kind() ValueKind {
	return KindBool
}

func (b Boolean) String() string {
	return strconv.FormatBool(bool(b))
}

func (b Boolean) Scalar() any {
	return bool(b)
}

func (Boolean) sealed() {}

type Date time.Time

func (Date) Kind() ValueKind {
	return KindDate
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func (d Date) String() string {
	t := d.Time()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

func (d Date) Scalar() any {
	return d.Time()
}

func (Date) sealed() {}

package value

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestOf(t *testing.T) {
	when := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		Input any
		Kind  ValueKind
		Want  string
	}{
		{Input: nil, Kind: KindBlank, Want: ""},
		{Input: "foobar", Kind: KindText, Want: "foobar"},
		{Input: 42, Kind: KindNumber, Want: "42"},
		{Input: int64(-7), Kind: KindNumber, Want: "-7"},
		{Input: uint8(8), Kind: KindNumber, Want: "8"},
		{Input: 3.14, Kind: KindNumber, Want: "3.14"},
		{Input: true, Kind: KindBool, Want: "true"},
		{Input: when, Kind: KindDate, Want: "2024-03-15 10:30:00"},
		{Input: time.Duration(90) * time.Second, Kind: KindText, Want: "1m30s"},
		{Input: ErrDiv0, Kind: KindError, Want: "#DIV/0!"},
	}
	for _, c := range tests {
		got, err := Of(c.Input)
		if err != nil {
			t.Errorf("%v: unexpected error: %s", c.Input, err)
			continue
		}
		if got.Kind() != c.Kind {
			t.Errorf("%v: kind mismatched! want %s - got %s", c.Input, c.Kind, got.Kind())
		}
		if got.String() != c.Want {
			t.Errorf("%v: results mismatched! want %s - got %s", c.Input, c.Want, got)
		}
	}
}

func TestOfInvalid(t *testing.T) {
	tests := []any{
		math.NaN(),
		math.Inf(1),
		struct{}{},
		[]int{1, 2},
	}
	for _, in := range tests {
		if _, err := Of(in); !errors.Is(err, ErrCast) {
			t.Errorf("%v: expected conversion error, got %v", in, err)
		}
	}
}

func TestEqual(t *testing.T) {
	when := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		A, B Value
		Want bool
	}{
		{A: Text("a"), B: Text("a"), Want: true},
		{A: Text("1"), B: Float(1), Want: false},
		{A: Float(1.5), B: Float(1.5), Want: true},
		{A: Blank{}, B: nil, Want: true},
		{A: Blank{}, B: Text(""), Want: false},
		{A: Date(when), B: Date(when.In(time.FixedZone("x", 3600))), Want: true},
		{A: Boolean(true), B: Boolean(false), Want: false},
	}
	for _, c := range tests {
		if got := Equal(c.A, c.B); got != c.Want {
			t.Errorf("%v == %v: results mismatched! want %t - got %t", c.A, c.B, c.Want, got)
		}
	}
}

func TestCast(t *testing.T) {
	if f, err := CastToFloat(Boolean(true)); err != nil || f != 1 {
		t.Errorf("bool to float: results mismatched! want 1 - got %v (%v)", f, err)
	}
	if f, err := CastToFloat(Float(2.5)); err != nil || f != 2.5 {
		t.Errorf("float: results mismatched! want 2.5 - got %v (%v)", f, err)
	}
	for _, v := range []Value{Text("12"), Empty(), nil} {
		if _, err := CastToFloat(v); !errors.Is(err, ErrCast) {
			t.Errorf("%v to float: expected ErrCast, got %v", v, err)
		}
	}
	if str, err := CastToText(Float(42)); err != nil || str != "42" {
		t.Errorf("float to text: results mismatched! want 42 - got %s (%v)", str, err)
	}
	if str, err := CastToText(nil); err != nil || str != "" {
		t.Errorf("nil to text: results mismatched! want empty - got %s (%v)", str, err)
	}
	if _, err := CastToText(ErrNA); !errors.Is(err, ErrCast) {
		t.Errorf("error to text: expected ErrCast, got %v", err)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, v := range []Value{Date(want), Text("2024-03-15")} {
		d, err := CastToDate(v)
		if err != nil || !d.Time().Equal(want) {
			t.Errorf("%v to date: results mismatched! want %s - got %s (%v)", v, want, d.Time(), err)
		}
	}
	for _, v := range []Value{Text("15/03/2024"), Float(45366), nil} {
		if _, err := CastToDate(v); !errors.Is(err, ErrCast) {
			t.Errorf("%v to date: expected ErrCast, got %v", v, err)
		}
	}
}

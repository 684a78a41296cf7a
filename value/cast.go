package value

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrCast = errors.New("type conversion error")

// Of converts a Go value into a cell value. It is the only place where
// dynamically typed input is inspected.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Blank{}, nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(x), nil
	case time.Time:
		return Date(x), nil
	case bool:
		return Boolean(x), nil
	case int:
		return Float(x), nil
	case int8:
		return Float(x), nil
	case int16:
		return Float(x), nil
	case int32:
		return Float(x), nil
	case int64:
		return Float(x), nil
	case uint:
		return Float(x), nil
	case uint8:
		return Float(x), nil
	case uint16:
		return Float(x), nil
	case uint32:
		return Float(x), nil
	case uint64:
		return Float(x), nil
	case float32:
		return checkFloat(float64(x))
	case float64:
		return checkFloat(x)
	case *time.Time:
		if x == nil {
			return Blank{}, nil
		}
		return Date(*x), nil
	case error:
		return Error(x.Error()), nil
	case fmt.Stringer:
		return Text(x.String()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrCast, v)
	}
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v can not be stored in a cell", ErrCast, f)
	}
	return Float(f), nil
}

func CastToFloat(val Value) (Float, error) {
	switch v := val.(type) {
	case Float:
		return v, nil
	case Boolean:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s to number", ErrCast, kindOf(val))
	}
}

func CastToText(val Value) (Text, error) {
	if val == nil {
		return "", nil
	}
	if e, ok := val.(Error); ok {
		return "", fmt.Errorf("%w: error %s to text", ErrCast, e)
	}
	return Text(val.String()), nil
}

func CastToDate(val Value) (Date, error) {
	switch v := val.(type) {
	case Date:
		return v, nil
	case Text:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			t, err := time.Parse(layout, string(v))
			if err == nil {
				return Date(t), nil
			}
		}
		return Date{}, fmt.Errorf("%w: %q to date", ErrCast, v)
	default:
		return Date{}, fmt.Errorf("%w: %s to date", ErrCast, kindOf(val))
	}
}

func kindOf(val Value) string {
	if val == nil {
		return KindBlank.String()
	}
	return val.Kind().String()
}

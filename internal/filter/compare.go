package filter

import (
	"reflect"
	"time"
)

// toFloat64 converts any numeric kind to float64; used by Range, the geo
// conditions and the Match family so every condition agrees on numeric
// coercion.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		formats := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, val); err == nil {
				return t, true
			}
		}
	case int64:
		return time.Unix(val, 0), true
	}
	return time.Time{}, false
}

// valuesEqual compares two JSON-decoded values using type-specific
// predicates: numeric types compare across width, strings compare
// literally, everything else falls back to reflect.DeepEqual.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if aNum, aOk := toFloat64(a); aOk {
		if bNum, bOk := toFloat64(b); bOk {
			return aNum == bNum
		}
	}
	if aStr, aOk := a.(string); aOk {
		if bStr, bOk := b.(string); bOk {
			return aStr == bStr
		}
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered returns -1/0/1 comparing a against b across numeric,
// string or time.Time domains; 0 is also returned when the pair isn't
// comparable, matching the range filter's permissive legacy behavior.
func compareOrdered(a, b interface{}) int {
	if aNum, aOk := toFloat64(a); aOk {
		if bNum, bOk := toFloat64(b); bOk {
			switch {
			case aNum < bNum:
				return -1
			case aNum > bNum:
				return 1
			default:
				return 0
			}
		}
	}
	if aStr, aOk := a.(string); aOk {
		if bStr, bOk := b.(string); bOk {
			switch {
			case aStr < bStr:
				return -1
			case aStr > bStr:
				return 1
			default:
				return 0
			}
		}
	}
	if aTime, aOk := toTime(a); aOk {
		if bTime, bOk := toTime(b); bOk {
			switch {
			case aTime.Before(bTime):
				return -1
			case aTime.After(bTime):
				return 1
			default:
				return 0
			}
		}
	}
	return 0
}

// toSlice coerces a metadata value into []interface{}; a scalar becomes a
// single-element slice so containment/values-count conditions work
// uniformly over both arrays and bare fields.
func toSlice(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{v}
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

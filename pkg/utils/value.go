package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Field accessors over loosely typed request blocks. Clients send numeric
// fields either as JSON numbers or as numeric strings, so every accessor
// coerces both forms and reports a missing or uncoercible field as absent
// instead of failing.

// GetStr returns the string form of a field. Numbers are formatted to their
// literal representation; anything other than a string or number is absent.
func GetStr(form gjson.Result, key string) (string, bool) {
	field := form.Get(key)
	switch field.Type {
	case gjson.String:
		return field.Str, true
	case gjson.Number:
		return field.String(), true
	default:
		return "", false
	}
}

// GetInt returns the integer form of a field. Strings are parsed base 10,
// numbers must be integral.
func GetInt(form gjson.Result, key string) (int64, bool) {
	field := form.Get(key)
	switch field.Type {
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(field.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case gjson.Number:
		f := field.Float()
		n := field.Int()
		if float64(n) != f {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// GetBool returns the boolean form of a field. Strings are compared
// case-insensitively against "true"; a missing field is false.
func GetBool(form gjson.Result, key string) bool {
	field := form.Get(key)
	switch field.Type {
	case gjson.True:
		return true
	case gjson.String:
		return strings.EqualFold(strings.TrimSpace(field.Str), "true")
	default:
		return false
	}
}

// IsNumeric reports whether a field holds an integral number or a string of
// decimal digits.
func IsNumeric(form gjson.Result, key string) bool {
	field := form.Get(key)
	switch field.Type {
	case gjson.Number:
		return float64(field.Int()) == field.Float()
	case gjson.String:
		s := strings.TrimSpace(field.Str)
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsEmpty reports whether a string is empty or whitespace only.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TimeInMillis returns the current time as milliseconds since the Unix epoch.
func TimeInMillis() int64 {
	return time.Now().UnixMilli()
}

package deserialize

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pasqal-io/frost/describe"
	"github.com/pasqal-io/frost/value"
)

// The literal date formats, by priority. The first match wins.
//
// In order: `yyyy-MM-dd HH:mm:ss`, `yyyy-MM-ddTHH:mm:ss`, `yyyy-MM-d H:mm:ss`,
// `yyyy-MM-ddTHH:mm:ssZ`, `yyyy-MM-dd HH:mm:ssZ`, `yyyy-MM-ddTHHmmss`.
var DateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-2 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05Z",
	"2006-01-02T150405",
}

// Formats attempted if none of `DateLayouts` matches.
var freeFormLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.UnixDate,
	time.ANSIC,
}

// Parse a date.
//
// Dates without a zone are read in `loc`. Layouts ending with a literal `Z`
// are read in UTC.
func ParseTime(source string, loc *time.Location) (time.Time, error) {
	t, _, err := parseTime(source, loc)
	return t, err
}

// Same as `ParseTime`, also return the index of the layout in `DateLayouts`,
// or -1 for the free-form fallback.
func parseTime(source string, loc *time.Location) (time.Time, int, error) {
	for i, layout := range DateLayouts {
		in := loc
		if strings.HasSuffix(layout, "Z") {
			in = time.UTC
		}
		if t, err := time.ParseInLocation(layout, source, in); err == nil {
			return t, i, nil
		}
	}
	for _, layout := range freeFormLayouts {
		if t, err := time.ParseInLocation(layout, source, loc); err == nil {
			return t, -1, nil
		}
	}
	return time.Time{}, -1, fmt.Errorf("unrecognized date %q", source)
}

// Accumulate decimal digits from left to right.
//
// A `-` anywhere makes the result negative, a `+` anywhere cancels
// this. There is no overflow check: the result wraps around.
func accumulate(digits string) int64 {
	var num int64
	neg := false
	for i := 0; i < len(digits); i++ {
		switch c := digits[i]; c {
		case '-':
			neg = true
		case '+':
			neg = false
		default:
			num *= 10
			num += int64(c - '0')
		}
	}
	if neg {
		num = -num
	}
	return num
}

// True if `s` is an optional sign followed by at least one digit.
func isDigitString(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var errNotInteger = errors.New("not an integer")

// Read an integer from a number or a digit string.
func toInt64(in value.Value) (int64, error) {
	if literal, ok := in.AsNumber(); ok {
		if strings.ContainsAny(literal, ".eE") {
			f, err := strconv.ParseFloat(literal, 64)
			if err != nil {
				return 0, err //nolint:wrapcheck
			}
			return int64(f), nil
		}
		return accumulate(literal), nil
	}
	if s, ok := in.AsString(); ok && isDigitString(s) {
		return accumulate(s), nil
	}
	return 0, errNotInteger
}

// Decode a GUID.
//
// Long strings are read as hyphenated text, short strings as base64.
func ParseGUID(source string) (uuid.UUID, error) {
	if len(source) > 30 { //nolint:mnd
		return uuid.Parse(source) //nolint:wrapcheck
	}
	buf, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid base64 guid:\n\t * %w", err)
	}
	return uuid.FromBytes(buf) //nolint:wrapcheck
}

// Convert a scalar and write it to `slot`.
func (c *call) bindScalar(path string, in value.Value, slot reflect.Value, d *describe.Descriptor) error {
	typ := d.Type
	switch d.Kind {
	case describe.Bool:
		v, ok := in.AsBool()
		if !ok {
			return mismatch(path, "a boolean", in, nil)
		}
		slot.SetBool(v)
	case describe.Int:
		n, err := toInt64(in)
		if err != nil {
			return mismatch(path, typeName(typ), in, nil)
		}
		slot.SetInt(n)
	case describe.Uint:
		n, err := toInt64(in)
		if err != nil {
			return mismatch(path, typeName(typ), in, nil)
		}
		slot.SetUint(uint64(n))
	case describe.Float:
		var literal string
		if n, ok := in.AsNumber(); ok {
			literal = n
		} else if s, ok := in.AsString(); ok {
			literal = s
		} else {
			return mismatch(path, typeName(typ), in, nil)
		}
		f, err := strconv.ParseFloat(literal, typ.Bits())
		if err != nil {
			return mismatch(path, typeName(typ), in, err)
		}
		slot.SetFloat(f)
	case describe.String:
		if s, ok := in.AsString(); ok {
			slot.SetString(s)
		} else if n, ok := in.AsNumber(); ok {
			slot.SetString(n)
		} else {
			return mismatch(path, "a string", in, nil)
		}
	case describe.Enum:
		if name, ok := in.AsString(); ok {
			v, ok := d.Enum.Value(name)
			if !ok {
				return mismatch(path, fmt.Sprintf("one of the names of %s", typeName(typ)), in, fmt.Errorf("unknown name %q", name))
			}
			slot.Set(v)
			return nil
		}
		if _, ok := in.AsNumber(); ok && typ.Kind() != reflect.String {
			n, err := toInt64(in)
			if err != nil {
				return mismatch(path, typeName(typ), in, err)
			}
			if typ.Kind() >= reflect.Uint && typ.Kind() <= reflect.Uintptr {
				slot.SetUint(uint64(n))
			} else {
				slot.SetInt(n)
			}
			return nil
		}
		return mismatch(path, fmt.Sprintf("the name of a %s", typeName(typ)), in, nil)
	case describe.GUID:
		s, ok := in.AsString()
		if !ok {
			return mismatch(path, "a guid", in, nil)
		}
		guid, err := ParseGUID(s)
		if err != nil {
			return mismatch(path, "a guid", in, err)
		}
		slot.Set(reflect.ValueOf(guid))
	case describe.Bytes:
		s, ok := in.AsString()
		if !ok {
			return mismatch(path, "a base64 string", in, nil)
		}
		buf, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return mismatch(path, "a base64 string", in, err)
		}
		slot.SetBytes(buf)
	case describe.Time:
		s, ok := in.AsString()
		if !ok {
			return mismatch(path, "a date", in, nil)
		}
		t, err := ParseTime(s, c.location)
		if err != nil {
			return mismatch(path, "a date", in, err)
		}
		slot.Set(reflect.ValueOf(t))
	default:
		panic(fmt.Sprintf("at %s, %s is not a scalar kind", path, d.Kind))
	}
	return nil
}

// Represent a scalar that was already bound as a Value, for `$map`.
func scalarToValue(v reflect.Value) (value.Value, bool) {
	switch v.Kind() {
	case reflect.String:
		return value.MakeString(v.String()), true
	case reflect.Bool:
		return value.MakeBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.MakeNumber(strconv.FormatInt(v.Int(), 10)), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.MakeNumber(strconv.FormatUint(v.Uint(), 10)), true
	case reflect.Float32, reflect.Float64:
		return value.MakeNumber(strconv.FormatFloat(v.Float(), 'g', -1, 64)), true
	default:
		return value.Value{}, false //nolint:exhaustruct
	}
}

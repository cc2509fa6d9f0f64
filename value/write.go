package value

import (
	"github.com/goccy/go-json"
)

// Append `s` to `dst` as a quoted JSON string.
//
// HTML characters are not escaped. Invalid UTF-8 is replaced by U+FFFD.
func AppendQuoted(dst []byte, s string) []byte {
	quoted, err := json.MarshalNoEscape(s)
	if err != nil {
		// Strings always marshal.
		panic(err)
	}
	return append(dst, quoted...)
}

// Append the compact JSON text of `v` to `dst`.
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.kind {
	case Bool:
		if v.boolean {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case Number:
		return append(dst, v.text...)
	case String:
		return AppendQuoted(dst, v.text)
	case Array:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = item.AppendJSON(dst)
		}
		return append(dst, ']')
	case Object:
		dst = append(dst, '{')
		for i, m := range v.members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendQuoted(dst, m.Key)
			dst = append(dst, ':')
			dst = m.Value.AppendJSON(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

// The compact JSON text of `v`.
func (v Value) String() string {
	return string(v.AppendJSON(nil))
}

func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil), nil
}

func (v *Value) UnmarshalJSON(buf []byte) error {
	parsed, err := DecodeBytes(buf)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

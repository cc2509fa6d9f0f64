// The generic representation of a JSON document.
//
// A `Value` is what the parser produces and what the binder consumes. It
// is a small tagged union: exactly one of the accessors `AsBool`, `AsNumber`,
// `AsString`, `AsArray`, `AsObject` succeeds, unless the value is `null`.
//
// Object members keep the order in which they were written. That order is
// never significant to the binder, except that reserved keys (`$type`,
// `$types`, `$map`) are looked up before anything else.
package value

import (
	"strconv"
	"strings"
)

// The kind of a JSON value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "invalid kind " + strconv.Itoa(int(k))
	}
}

// A single (key, value) entry of an object.
type Member struct {
	Key   string
	Value Value
}

// A JSON value.
//
// The zero Value is `null`.
type Value struct {
	kind    Kind
	boolean bool

	// The contents of a string, or the literal text of a number.
	text string

	items   []Value
	members []Member
}

func MakeNull() Value {
	return Value{} //nolint:exhaustruct
}

func MakeBool(b bool) Value {
	return Value{kind: Bool, boolean: b} //nolint:exhaustruct
}

// Make a number from its literal representation, e.g. "-12.5e3".
//
// The literal is not checked.
func MakeNumber(literal string) Value {
	return Value{kind: Number, text: literal} //nolint:exhaustruct
}

func MakeString(s string) Value {
	return Value{kind: String, text: s} //nolint:exhaustruct
}

func MakeArray(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, items: items} //nolint:exhaustruct
}

// Make an object.
//
// If `members` contains the same key more than once, the last value wins
// but keeps the position of the first occurrence.
func MakeObject(members []Member) Value {
	result := make([]Member, 0, len(members))
	for _, m := range members {
		result = setMember(result, nil, m.Key, m.Value)
	}
	return Value{kind: Object, members: result} //nolint:exhaustruct
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == Null
}

func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == Bool
}

// Return the literal text of a number.
func (v Value) AsNumber() (string, bool) {
	if v.kind != Number {
		return "", false
	}
	return v.text, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.text, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	return v.items, true
}

func (v Value) AsObject() ([]Member, bool) {
	if v.kind != Object {
		return nil, false
	}
	return v.members, true
}

// Lookup a key in an object, with an exact match.
//
// Returns false if `v` is not an object or the key is absent.
func (v Value) Lookup(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false //nolint:exhaustruct
}

// The keys of an object, in document order.
func (v Value) Keys() []string {
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Convert to the de facto untyped Go representation.
//
// Objects become `map[string]any`, arrays `[]any`, integer literals that
// fit become `int64` and all other numbers `float64`.
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.boolean
	case Number:
		return NumberInterface(v.text)
	case String:
		return v.text
	case Array:
		result := make([]any, len(v.items))
		for i, item := range v.items {
			result[i] = item.Interface()
		}
		return result
	case Object:
		result := make(map[string]any, len(v.members))
		for _, m := range v.members {
			result[m.Key] = m.Value.Interface()
		}
		return result
	default:
		return nil
	}
}

// Convert a number literal into `int64` if it is an integer that fits,
// `float64` otherwise.
func NumberInterface(literal string) any {
	if !strings.ContainsAny(literal, ".eE") {
		if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
			return i
		}
	}
	f, _ := strconv.ParseFloat(literal, 64)
	return f
}

// Insert or replace `key` in `members`.
//
// `index` is an optional accelerator for large objects, kept in sync.
func setMember(members []Member, index map[string]int, key string, val Value) []Member {
	if index != nil {
		if i, ok := index[key]; ok {
			members[i].Value = val
			return members
		}
		index[key] = len(members)
		return append(members, Member{Key: key, Value: val})
	}
	for i := range members {
		if members[i].Key == key {
			members[i].Value = val
			return members
		}
	}
	return append(members, Member{Key: key, Value: val})
}

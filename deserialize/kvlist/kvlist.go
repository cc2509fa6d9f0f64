// Key/value lists, as found in query strings and form data.
//
// A key/value list carries no type information: every value is a string and
// every key may be repeated. To bind it, we first convert it to a document
// shaped after the destination type, then hand it to the binder.
package kvlist

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"

	"github.com/pasqal-io/frost/describe"
	"github.com/pasqal-io/frost/deserialize"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/value"
)

// The type of a (key, value list) store.
type KVList map[string][]string

// Parse a query string, e.g. `page=2&tag=a&tag=b`.
func FromQuery(query string) (KVList, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query:\n\t * %w", err)
	}
	return KVList(values), nil
}

// Convert to a document shaped after the struct `typ`.
//
// Keys bound to slice or array members become arrays. Other keys keep their
// last value. Booleans are converted, other scalars are left as strings, which
// the binder converts as needed.
func (list KVList) ToValue(typ reflect.Type, ignoreCase bool, reg *registry.Registry) (value.Value, error) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	d, err := describe.Describe(typ, ignoreCase, reg)
	if err != nil {
		return value.Value{}, err //nolint:exhaustruct,wrapcheck
	}
	keys := make([]string, 0, len(list))
	for k := range list {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	members := make([]value.Member, 0, len(keys))
	for _, key := range keys {
		entries := list[key]
		if len(entries) == 0 {
			continue
		}
		kind := describe.String
		var elem reflect.Type
		if m, ok := d.Lookup(key); ok {
			elem = m.Type
			for elem.Kind() == reflect.Pointer {
				elem = elem.Elem()
			}
			kind = describe.Classify(elem, reg)
		}
		var converted value.Value
		switch kind {
		case describe.Slice, describe.Array:
			inner := describe.Classify(elem.Elem(), reg)
			items := make([]value.Value, len(entries))
			for i, entry := range entries {
				items[i] = scalar(inner, entry)
			}
			converted = value.MakeArray(items)
		default:
			converted = scalar(kind, entries[len(entries)-1])
		}
		members = append(members, value.Member{Key: key, Value: converted})
	}
	return value.MakeObject(members), nil
}

func scalar(kind describe.Kind, entry string) value.Value {
	if kind == describe.Bool {
		if b, err := strconv.ParseBool(entry); err == nil {
			return value.MakeBool(b)
		}
	}
	return value.MakeString(entry)
}

// Bind a key/value list to a `T`.
//
// Returns `nil, nil` if the list shares no key with `T`.
func Defrost[T any](list KVList, options deserialize.Options) (*T, error) {
	reg := options.Registry
	if reg == nil {
		reg = registry.Default
	}
	deserializer, err := deserialize.MakeDeserializer[T](options)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	tree, err := list.ToValue(reflect.TypeOf((*T)(nil)).Elem(), options.IgnoreCase, reg)
	if err != nil {
		return nil, err
	}
	return deserializer.DeserializeValue(tree) //nolint:wrapcheck
}

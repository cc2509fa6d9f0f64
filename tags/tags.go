// Parsing of struct tags.
//
// A field tagged `json:"name,opt1,opt2"` is bound under the public name
// "name" and carries options "opt1" and "opt2". Recognized options:
//
//   - `readonly`: the field is emitted (if requested) but never written
//     by the binder;
//   - `omitempty`: the field is skipped when emitting a zero value;
//   - `inline`: for a struct, its members are pulled from the containing
//     object; for a `map[string]T`, the map receives all keys that do not
//     match any other member.
//
// For compatibility, a standalone `flatten:""` tag is equivalent to `inline`.
//
// Two more tags give a value to members that a document leaves out:
//
//   - `default:"..."`: JSON text, e.g. `default:"42"`, `default:"[]"` or
//     `default:"nil"`. Text that is not JSON is taken as a string;
//   - `orMethod:"Name"`: a method `func (*T) Name() (F, error)` of the
//     containing struct.
package tags

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pasqal-io/frost/assertions/initialized"
)

const (
	ReadOnly  = "readonly"
	OmitEmpty = "omitempty"
	Inline    = "inline"
)

// A representation of the tags for a given field.
type Tags struct {
	// For each tag, the public name followed by the options.
	tags    map[string][]string
	witness initialized.IsInitialized
}

func Empty() Tags {
	return Tags{
		tags:    make(map[string][]string),
		witness: initialized.Make(),
	}
}

// Parse the tag associated to a struct field, according to the specs
// of Go tags.
func Parse(tag reflect.StructTag) (Tags, error) {
	tags := make(map[string][]string)
	// Adapted from Go's type.go.
	for tag != "" {
		// Skip leading space.
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		// Scan to colon. A space, a quote or a control character is a syntax error.
		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			// Give up on parsing.
			break
		}
		name := string(tag[:i])
		if name == "" {
			return Tags{}, errors.New("invalid tag with empty name")
		}
		if _, exists := tags[name]; exists {
			return Tags{}, fmt.Errorf("invalid tag, name %s should only be defined once", name)
		}

		tag = tag[i+1:]

		// Scan quoted string to find value.
		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		qvalue := string(tag[:i+1])
		tag = tag[i+1:]

		list, err := strconv.Unquote(qvalue)
		if err != nil {
			return Tags{}, fmt.Errorf("ill-formed tag %s:\n\t * %w", name, err)
		}

		// Default values are taken verbatim.
		if name == "default" {
			tags[name] = []string{list}
			continue
		}

		// The first entry is the name, possibly empty. Options follow.
		split := strings.Split(list, ",")
		entries := []string{strings.TrimSpace(split[0])}
		for _, s := range split[1:] {
			if t := strings.TrimSpace(s); t != "" {
				entries = append(entries, t)
			}
		}
		tags[name] = entries
	}
	return Tags{
		tags:    tags,
		witness: initialized.Make(),
	}, nil
}

// Return the a default value that may be used to initialize a
// field if no value is provided.
//
// This is tag `default`. Conflicts with `orMethod`.
func (tags Tags) Default() *string {
	tags.witness.Assert()
	result, ok := tags.tags["default"]
	if !ok || len(result) == 0 {
		return nil
	}
	return &result[0]
}

// Return the name of a method that may be used to initialize
// a field if no value is provided.
//
// This is tag `orMethod`. Conflicts with `default`.
func (tags Tags) MethodName() *string {
	tags.witness.Assert()
	result, ok := tags.tags["orMethod"]
	if !ok || len(result) == 0 || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Return the public field name for a field.
//
// e.g. for json, if there's a tag `json:"foo"`, this means
// that the field should be bound as `foo`.
//
// Returns nil if there is no such tag or if it doesn't specify a name.
func (tags Tags) PublicFieldName(key string) *string {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	if !ok || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Return `true` if tag `key` carries option `option`.
func (tags Tags) HasOption(key string, option string) bool {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	if !ok {
		return false
	}
	for _, opt := range result[1:] {
		if opt == option {
			return true
		}
	}
	return false
}

// Return `true` if this field is marked as inlined, e.g.
//
//	type Flattening struct {
//	    A string
//	    B struct {
//	        C string
//	        D string
//	    } `json:",inline"`
//	}
//
// should be bound from the following JSON
//
//	{
//	   "A": "aaaaa",
//	   // no field B
//	   "C": "ccccc",
//	   "D": "ddddd"
//	}
func (tags Tags) IsInlined(key string) bool {
	tags.witness.Assert()
	if _, ok := tags.tags["flatten"]; ok {
		return true
	}
	return tags.HasOption(key, Inline)
}

// Lookup a key.
func (tags Tags) Lookup(key string) ([]string, bool) {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	return result, ok
}

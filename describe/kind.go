package describe

import (
	"encoding"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/value"
)

// How values of a type are bound and emitted.
type Kind uint8

const (
	// A type we cannot bind, e.g. a `chan` or a `func`.
	Invalid Kind = iota
	Bool
	Int
	Uint
	Float
	String
	// An integer or string type registered with `registry.Enum`.
	Enum
	// `uuid.UUID`.
	GUID
	// `[]byte`.
	Bytes
	// `time.Time`.
	Time
	// A fixed-size array.
	Array
	// A slice other than `[]byte`.
	Slice
	// A map with string keys.
	Map
	// A map with non-string keys, as a list of `{"k": ..., "v": ...}`.
	PairMap
	Struct
	// A pointer, i.e. a nullable wrapper around its element.
	Pointer
	Interface
	// `value.Value`, passed through untouched.
	Raw
	// A type implementing `json.Marshaler` or `json.Unmarshaler`.
	Custom
)

var kindNames = [...]string{
	Invalid:   "invalid",
	Bool:      "bool",
	Int:       "int",
	Uint:      "uint",
	Float:     "float",
	String:    "string",
	Enum:      "enum",
	GUID:      "guid",
	Bytes:     "bytes",
	Time:      "time",
	Array:     "array",
	Slice:     "slice",
	Map:       "map",
	PairMap:   "pair map",
	Struct:    "struct",
	Pointer:   "pointer",
	Interface: "interface",
	Raw:       "raw",
	Custom:    "custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// True for kinds that hold other values.
func (k Kind) IsContainer() bool {
	switch k {
	case Array, Slice, Map, PairMap, Struct:
		return true
	default:
		return false
	}
}

// True for kinds bound from a single JSON scalar.
func (k Kind) IsScalar() bool {
	switch k {
	case Bool, Int, Uint, Float, String, Enum, GUID, Bytes, Time:
		return true
	default:
		return false
	}
}

var (
	guidType        = reflect.TypeOf(uuid.UUID{})
	timeType        = reflect.TypeOf(time.Time{})
	rawType         = reflect.TypeOf(value.Value{}) //nolint:exhaustruct
	marshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textType        = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Classify a type.
//
// Enumerations are only recognized if they are registered in `reg`.
func Classify(typ reflect.Type, reg *registry.Registry) Kind {
	switch typ {
	case guidType:
		return GUID
	case timeType:
		return Time
	case rawType:
		return Raw
	}
	if _, ok := reg.Enum(typ); ok {
		return Enum
	}
	if typ.Kind() != reflect.Pointer && typ.Kind() != reflect.Interface {
		ptr := reflect.PointerTo(typ)
		if typ.Implements(marshalerType) || ptr.Implements(unmarshalerType) {
			return Custom
		}
	}
	switch typ.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.String:
		return String
	case reflect.Array:
		return Array
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(typ.Elem()).Implements(textType) {
			return Bytes
		}
		return Slice
	case reflect.Map:
		if typ.Key().Kind() == reflect.String {
			return Map
		}
		return PairMap
	case reflect.Struct:
		return Struct
	case reflect.Pointer:
		return Pointer
	case reflect.Interface:
		return Interface
	default:
		return Invalid
	}
}

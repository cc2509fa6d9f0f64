package registry

import (
	"fmt"
	"reflect"
)

// The names of the values of an enumeration.
//
// Enumerations are emitted by name and bound by case-sensitive name.
type EnumTable struct {
	typ     reflect.Type
	byName  map[string]reflect.Value
	byValue map[any]string
}

// Register the names of an enumeration type.
//
// `T` must have an integer or string underlying type.
func Enum[T comparable](r *Registry, names map[string]T) error {
	reflected := make(map[string]reflect.Value, len(names))
	for name, v := range names {
		reflected[name] = reflect.ValueOf(v)
	}
	return r.RegisterEnum(reflect.TypeOf((*T)(nil)).Elem(), reflected)
}

// Same as `Enum`, but panic in case of error.
func MustEnum[T comparable](r *Registry, names map[string]T) {
	if err := Enum[T](r, names); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterEnum(typ reflect.Type, names map[string]reflect.Value) error {
	table := &EnumTable{
		typ:     typ,
		byName:  make(map[string]reflect.Value, len(names)),
		byValue: make(map[any]string, len(names)),
	}
	for name, v := range names {
		if v.Type() != typ {
			return fmt.Errorf("enum %s: value %s has type %s", TypeName(typ), name, v.Type())
		}
		key, ok := enumKey(v)
		if !ok {
			return fmt.Errorf("enum %s must have an integer or string underlying type", TypeName(typ))
		}
		if existing, ok := table.byValue[key]; ok {
			return fmt.Errorf("enum %s: names %s and %s designate the same value", TypeName(typ), existing, name)
		}
		table.byName[name] = v
		table.byValue[key] = name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enums[typ]; ok {
		return fmt.Errorf("enum %s is already registered", TypeName(typ))
	}
	r.enums[typ] = table
	return nil
}

// The enumeration table for `typ`, if it was registered.
func (r *Registry) Enum(typ reflect.Type) (*EnumTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.enums[typ]
	return table, ok
}

// The name of a value, if it has one.
func (table *EnumTable) Name(v reflect.Value) (string, bool) {
	key, ok := enumKey(v)
	if !ok {
		return "", false
	}
	name, ok := table.byValue[key]
	return name, ok
}

// The value of a name, case-sensitive.
func (table *EnumTable) Value(name string) (reflect.Value, bool) {
	v, ok := table.byName[name]
	return v, ok
}

// A key that works even for values read from unexported fields.
func enumKey(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.String:
		return v.String(), true
	default:
		return nil, false
	}
}

// An explicit registry of the types that may be named in a document.
//
// Go cannot instantiate a type from its name, so polymorphic documents
// (objects tagged with `$type`) can only be bound to types that the
// application has registered beforehand:
//
//	registry.MustAdd[geometry.Point](registry.Default, "Point")
//
// Each type is known under its canonical name, `<pkg>.<Name>, <import path>`
// (e.g. `geometry.Point, github.com/acme/geometry`), and under any number of
// aliases. Lookups are cached by the literal name.
package registry

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// The process-wide registry, used unless the caller provides its own.
var Default = New()

// A registry of types, constructors and enumerations.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// Every name (canonical or alias) under which a type is known.
	byName map[string]reflect.Type

	// The types, in registration order, for scans.
	entries []entry

	// The name used when emitting a type.
	primary map[reflect.Type]string

	constructors map[reflect.Type]reflect.Value
	enums        map[reflect.Type]*EnumTable

	// Cache of `Resolve`, by literal name. Cleared by every registration,
	// which may change what a name resolves to. Written under `mu`.
	resolved sync.Map
}

type entry struct {
	typ       reflect.Type
	canonical string
}

// Create a registry, pre-populated with the scalar types that may be used
// in `$map` directives.
func New() *Registry {
	r := &Registry{
		mu:           sync.RWMutex{},
		byName:       make(map[string]reflect.Type),
		entries:      nil,
		primary:      make(map[reflect.Type]string),
		constructors: make(map[reflect.Type]reflect.Value),
		enums:        make(map[reflect.Type]*EnumTable),
		resolved:     sync.Map{},
	}
	builtins := []struct {
		typ     reflect.Type
		aliases []string
	}{
		{reflect.TypeOf(uuid.UUID{}), []string{"guid", "uuid"}},
		{reflect.TypeOf(time.Time{}), []string{"datetime", "time"}},
		{reflect.TypeOf([]byte(nil)), []string{"bytes", "[]byte"}},
		{reflect.TypeOf(""), nil},
		{reflect.TypeOf(false), nil},
		{reflect.TypeOf(int(0)), nil},
		{reflect.TypeOf(int64(0)), []string{"long"}},
		{reflect.TypeOf(float64(0)), []string{"double"}},
	}
	for _, builtin := range builtins {
		if err := r.register(builtin.typ, false, builtin.aliases...); err != nil {
			panic(err)
		}
	}
	return r
}

// The canonical name of a type.
//
// Named types are `<pkg>.<Name>, <import path>`, other types are their Go
// syntax, e.g. `[]uint8`.
func TypeName(typ reflect.Type) string {
	if typ.PkgPath() == "" {
		return typ.String()
	}
	return fmt.Sprint(typ.String(), ", ", typ.PkgPath())
}

// Drop anything after the second `,` of a type name.
//
// Type names produced by other implementations may carry version or
// culture information, e.g. `Foo.Bar, Foo, Version=1.0.0.0`; we only ever
// use the first two components.
func Shorten(name string) string {
	first := strings.IndexByte(name, ',')
	if first < 0 {
		return name
	}
	second := strings.IndexByte(name[first+1:], ',')
	if second < 0 {
		return name
	}
	return name[:first+1+second]
}

// Register a type under its canonical name and optional aliases.
//
// The first alias, if any, is the name emitted in `$type`.
func (r *Registry) Register(typ reflect.Type, aliases ...string) error {
	return r.register(typ, true, aliases...)
}

func (r *Registry) register(typ reflect.Type, primaryFromAlias bool, aliases ...string) error {
	if typ == nil {
		return fmt.Errorf("cannot register a nil type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := TypeName(typ)
	names := append([]string{canonical}, aliases...)
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("cannot register %s under an empty name", canonical)
		}
		if existing, ok := r.byName[name]; ok && existing != typ {
			return fmt.Errorf("cannot register %s as %q, this name is already used by %s", canonical, name, TypeName(existing))
		}
	}
	if _, known := r.primary[typ]; !known {
		r.entries = append(r.entries, entry{typ: typ, canonical: canonical})
		r.primary[typ] = canonical
	}
	if primaryFromAlias && len(aliases) > 0 {
		r.primary[typ] = aliases[0]
	}
	for _, name := range names {
		r.byName[name] = typ
	}
	r.resolved.Clear()
	return nil
}

// Register `T` under its canonical name and optional aliases.
func Add[T any](r *Registry, aliases ...string) error {
	return r.Register(reflect.TypeOf((*T)(nil)).Elem(), aliases...)
}

// Same as `Add`, but panic in case of error.
//
// Meant for use in `init()`.
func MustAdd[T any](r *Registry, aliases ...string) {
	if err := Add[T](r, aliases...); err != nil {
		panic(err)
	}
}

// The name under which `typ` should be emitted.
//
// Returns the canonical name and `false` if `typ` was never registered.
func (r *Registry) NameOf(typ reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.primary[typ]; ok {
		return name, true
	}
	return TypeName(typ), false
}

// Find the type designated by `name`.
//
// `name` is shortened (see `Shorten`). If it is qualified by an import path
// (`pkg.Name, import/path`), the search is scoped to that package. Otherwise,
// we scan every registered type for, in order: an exact name, a matching
// `pkg.Name`, a matching `Name`, a canonical name starting with `name`.
func (r *Registry) Resolve(name string) (reflect.Type, bool) {
	if cached, ok := r.resolved.Load(name); ok {
		return cached.(reflect.Type), true //nolint:forcetypeassert
	}
	short := Shorten(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var typ reflect.Type
	if typeName, module, qualified := strings.Cut(short, ","); qualified {
		typ = r.lookupQualified(strings.TrimSpace(typeName), strings.TrimSpace(module))
	} else {
		typ = r.scan(strings.TrimSpace(short))
	}
	if typ == nil {
		return nil, false
	}
	r.resolved.Store(name, typ)
	return typ, true
}

func (r *Registry) lookupQualified(typeName string, module string) reflect.Type {
	if typ, ok := r.byName[fmt.Sprint(typeName, ", ", module)]; ok {
		return typ
	}
	for _, e := range r.entries {
		if e.typ.PkgPath() != module {
			continue
		}
		if e.typ.String() == typeName || e.typ.Name() == typeName {
			return e.typ
		}
	}
	return nil
}

func (r *Registry) scan(name string) reflect.Type {
	if name == "" {
		return nil
	}
	if typ, ok := r.byName[name]; ok {
		return typ
	}
	for _, e := range r.entries {
		if e.typ.String() == name {
			return e.typ
		}
	}
	for _, e := range r.entries {
		if e.typ.Name() == name {
			return e.typ
		}
	}
	for _, e := range r.entries {
		if strings.HasPrefix(e.canonical, name) {
			return e.typ
		}
	}
	return nil
}

//nolint:exhaustruct
package registry_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pasqal-io/frost/registry"
	"gotest.tools/v3/assert"
)

type Point struct {
	X, Y int
}

type Segment struct {
	From, To Point
}

type Color int

const (
	Red Color = iota
	Green
)

type Unit string

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, registry.TypeName(typeOf[Point]()), "registry_test.Point, github.com/pasqal-io/frost/registry_test")
	assert.Equal(t, registry.TypeName(typeOf[[]int]()), "[]int")
	assert.Equal(t, registry.TypeName(typeOf[string]()), "string")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, registry.Shorten("Foo.Bar, Foo, Version=1.0.0.0, Culture=neutral"), "Foo.Bar, Foo")
	assert.Equal(t, registry.Shorten("Foo.Bar, Foo"), "Foo.Bar, Foo")
	assert.Equal(t, registry.Shorten("Foo.Bar"), "Foo.Bar")
}

func TestResolve(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Point", "pt"))
	assert.NilError(t, registry.Add[Segment](reg))

	for _, name := range []string{
		"Point",
		"pt",
		"registry_test.Point",
		"registry_test.Point, github.com/pasqal-io/frost/registry_test",
		"registry_test.Point, github.com/pasqal-io/frost/registry_test, Version=2",
		"Point, github.com/pasqal-io/frost/registry_test",
	} {
		typ, ok := reg.Resolve(name)
		assert.Assert(t, ok, name)
		assert.Equal(t, typ, typeOf[Point](), name)
	}

	// Only the canonical name was registered, the short names are found by scanning.
	typ, ok := reg.Resolve("Segment")
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Segment]())

	// Prefix of a canonical name.
	typ, ok = reg.Resolve("registry_test.Seg")
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Segment]())

	_, ok = reg.Resolve("Polygon")
	assert.Assert(t, !ok)
	_, ok = reg.Resolve("Point, github.com/elsewhere")
	assert.Assert(t, !ok)
	_, ok = reg.Resolve("")
	assert.Assert(t, !ok)
}

func TestBuiltins(t *testing.T) {
	reg := registry.New()
	for name, expected := range map[string]reflect.Type{
		"guid":     typeOf[uuid.UUID](),
		"datetime": typeOf[time.Time](),
		"bytes":    typeOf[[]byte](),
		"string":   typeOf[string](),
		"bool":     typeOf[bool](),
		"int":      typeOf[int](),
		"long":     typeOf[int64](),
		"double":   typeOf[float64](),
	} {
		typ, ok := reg.Resolve(name)
		assert.Assert(t, ok, name)
		assert.Equal(t, typ, expected, name)
	}
}

func TestNameOf(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Point", "pt"))
	assert.NilError(t, registry.Add[Segment](reg))

	name, ok := reg.NameOf(typeOf[Point]())
	assert.Assert(t, ok)
	assert.Equal(t, name, "Point")

	name, ok = reg.NameOf(typeOf[Segment]())
	assert.Assert(t, ok)
	assert.Equal(t, name, registry.TypeName(typeOf[Segment]()))

	name, ok = reg.NameOf(typeOf[Color]())
	assert.Assert(t, !ok)
	assert.Equal(t, name, registry.TypeName(typeOf[Color]()))
}

func TestRegisterConflicts(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Shape"))
	assert.ErrorContains(t, registry.Add[Segment](reg, "Shape"), "already used by")
	assert.ErrorContains(t, registry.Add[Segment](reg, ""), "empty name")

	// Registering again is harmless.
	assert.NilError(t, registry.Add[Point](reg, "Shape"))
	assert.Assert(t, func() (panicked bool) {
		defer func() { panicked = recover() != nil }()
		registry.MustAdd[Segment](reg, "Shape")
		return false
	}())
}

func TestAliases(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Point"))
	aliases := registry.NewAliases()
	aliases.Add("1", "Point")
	assert.Equal(t, aliases.Len(), 1)

	typ, ok := reg.ResolveTag("1", aliases)
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Point]())

	// Tags that are not aliases are type names.
	typ, ok = reg.ResolveTag("Point", aliases)
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Point]())

	// A nil table has no alias.
	_, ok = reg.ResolveTag("1", nil)
	assert.Assert(t, !ok)
	var none *registry.Aliases
	assert.Equal(t, none.Len(), 0)
}

func TestEnums(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Enum(reg, map[string]Color{"Red": Red, "Green": Green}))
	table, ok := reg.Enum(typeOf[Color]())
	assert.Assert(t, ok)

	name, ok := table.Name(reflect.ValueOf(Green))
	assert.Assert(t, ok)
	assert.Equal(t, name, "Green")
	_, ok = table.Name(reflect.ValueOf(Color(7)))
	assert.Assert(t, !ok)

	v, ok := table.Value("Red")
	assert.Assert(t, ok)
	assert.Equal(t, v.Interface(), Red)
	_, ok = table.Value("red")
	assert.Assert(t, !ok)

	assert.ErrorContains(t, registry.Enum(reg, map[string]Color{"Blue": 2}), "already registered")
	assert.ErrorContains(t, registry.Enum(reg, map[string]Unit{"m": "m", "meter": "m"}), "same value")
	assert.ErrorContains(t, registry.Enum(reg, map[string]float64{"pi": 3.14}), "integer or string")
}

type Account struct {
	Owner string
}

func NewAccount(owner string) (*Account, error) {
	if owner == "" {
		return nil, errors.New("no owner")
	}
	return &Account{Owner: owner}, nil
}

func TestConstructors(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, reg.RegisterConstructor(NewAccount))
	fn, ok := reg.Constructor(typeOf[Account]())
	assert.Assert(t, ok)
	assert.Equal(t, fn.Type().NumIn(), 1)

	assert.ErrorContains(t, reg.RegisterConstructor(NewAccount), "already registered")
	assert.ErrorContains(t, reg.RegisterConstructor(42), "must be a function")
	assert.ErrorContains(t, reg.RegisterConstructor(func() (int, int) { return 0, 0 }), "must return")
	assert.ErrorContains(t, reg.RegisterConstructor(func(...int) Point { return Point{} }), "variadic")

	_, ok = reg.Constructor(typeOf[Point]())
	assert.Assert(t, !ok)
}

func TestConcurrentResolve(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Point](reg, "Point"))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			typ, ok := reg.Resolve("registry_test.Point")
			if !ok || typ != typeOf[Point]() {
				t.Error("failed to resolve Point")
			}
		}()
	}
	wg.Wait()
}

// A later registration may change what a name resolves to.
func TestResolveAfterRegister(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Add[Segment](reg))
	typ, ok := reg.Resolve("Segment")
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Segment](), "found by scanning short names")

	assert.NilError(t, registry.Add[Point](reg, "Segment"))
	typ, ok = reg.Resolve("Segment")
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Point](), "the alias takes over")

	// Canonical names are unaffected.
	typ, ok = reg.Resolve(registry.TypeName(typeOf[Segment]()))
	assert.Assert(t, ok)
	assert.Equal(t, typ, typeOf[Segment]())
}

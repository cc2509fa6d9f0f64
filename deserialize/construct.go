package deserialize

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/pasqal-io/frost/registry"
)

// Beyond this depth, we assume that constructor arguments form a cycle.
const maxPlaceholderDepth = 32

// How we obtain fresh instances of a type.
type strategy struct {
	typ reflect.Type

	// A registered constructor, or an invalid Value.
	constructor reflect.Value

	// True if `constructor` takes arguments, which we need to synthesize.
	synthesize bool
}

type strategyKey struct {
	typ reflect.Type
	reg *registry.Registry
}

var strategies sync.Map

// Find or compute the construction strategy for `typ`.
func strategyFor(typ reflect.Type, reg *registry.Registry) *strategy {
	key := strategyKey{typ: typ, reg: reg}
	if cached, ok := strategies.Load(key); ok {
		return cached.(*strategy) //nolint:forcetypeassert
	}
	result := &strategy{
		typ:         typ,
		constructor: reflect.Value{},
		synthesize:  false,
	}
	if fn, ok := reg.Constructor(typ); ok {
		result.constructor = fn
		if fn.Type().NumIn() > 0 {
			result.synthesize = true
			slog.Warn("no parameterless constructor, calling constructor with placeholder arguments", "type", registry.TypeName(typ), "constructor", fn.Type().String())
		}
	}
	actual, _ := strategies.LoadOrStore(key, result)
	return actual.(*strategy) //nolint:forcetypeassert
}

// Construct a fresh instance of `typ`.
//
// The result is addressable.
func construct(path string, typ reflect.Type, reg *registry.Registry) (reflect.Value, error) {
	return constructAt(path, typ, reg, 0)
}

func constructAt(path string, typ reflect.Type, reg *registry.Registry, depth int) (reflect.Value, error) {
	if depth > maxPlaceholderDepth {
		return reflect.Value{}, ConstructionError{
			Path:    path,
			Type:    typ,
			Reason:  "constructor arguments are cyclic",
			Wrapped: nil,
		}
	}
	s := strategyFor(typ, reg)
	if !s.constructor.IsValid() {
		return reflect.New(typ).Elem(), nil
	}

	fnType := s.constructor.Type()
	args := make([]reflect.Value, fnType.NumIn())
	for i := range args {
		argType := fnType.In(i)
		if argType.Kind() == reflect.Pointer {
			arg, err := constructAt(path, argType.Elem(), reg, depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			args[i] = arg.Addr()
		} else {
			args[i] = reflect.Zero(argType)
		}
	}

	out := s.constructor.Call(args)
	if len(out) == 2 && !out[1].IsNil() { //nolint:mnd
		err, _ := out[1].Interface().(error)
		return reflect.Value{}, ConstructionError{
			Path:    path,
			Type:    typ,
			Reason:  "constructor failed",
			Wrapped: err,
		}
	}
	result := out[0]
	if result.Kind() == reflect.Pointer && typ.Kind() != reflect.Pointer {
		if result.IsNil() {
			return reflect.Value{}, ConstructionError{
				Path:    path,
				Type:    typ,
				Reason:  "constructor returned nil",
				Wrapped: nil,
			}
		}
		return result.Elem(), nil
	}
	// Copy into an addressable slot.
	slot := reflect.New(typ).Elem()
	slot.Set(result)
	return slot, nil
}


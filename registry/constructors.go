package registry

import (
	"fmt"
	"reflect"
)

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// Register a constructor.
//
// `fn` must be a function returning `T`, `*T`, `(T, error)` or `(*T, error)`.
// It is registered for `T`. It may take arguments: in that case, the binder
// calls it with placeholder arguments, then overwrites every member of the
// result from the document. This is a compatibility mechanism: prefer
// constructors without arguments, and never register a constructor with
// side effects that depend on its arguments.
func (r *Registry) RegisterConstructor(fn any) error {
	reflected := reflect.ValueOf(fn)
	if reflected.Kind() != reflect.Func || reflected.IsNil() {
		return fmt.Errorf("a constructor must be a function, got %T", fn)
	}
	typ := reflected.Type()
	if typ.IsVariadic() {
		return fmt.Errorf("a constructor cannot be variadic, got %s", typ)
	}
	switch {
	case typ.NumOut() == 1:
	case typ.NumOut() == 2 && typ.Out(1) == errorInterface:
	default:
		return fmt.Errorf("a constructor must return T, *T, (T, error) or (*T, error), got %s", typ)
	}
	out := typ.Out(0)
	if out.Kind() == reflect.Pointer {
		out = out.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[out]; ok {
		return fmt.Errorf("a constructor is already registered for %s", TypeName(out))
	}
	r.constructors[out] = reflected
	return nil
}

// The constructor registered for `typ`, if any.
func (r *Registry) Constructor(typ reflect.Type) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.constructors[typ]
	return fn, ok
}

// Extract typed values from part of a document.
//
// A path is a list of keys separated by `.`, e.g. `order.lines.price`.
// Arrays are transparent: when the walk meets an array, the rest of the
// path is applied to each of its elements.
package extract

import (
	"iter"
	"reflect"
	"strings"

	"github.com/pasqal-io/frost/deserialize"
	"github.com/pasqal-io/frost/value"
)

// The separator between keys of a path.
const Separator = "."

// Split a path into keys. The empty path has no key.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// The nodes reached by following `keys` from `tree`, in document order.
//
// A missing key yields nothing. Nodes that are arrays when the path is
// exhausted are yielded as they are.
func Nodes(tree value.Value, keys []string) iter.Seq[value.Value] {
	return func(yield func(value.Value) bool) {
		walk(tree, keys, yield)
	}
}

// Returns false if the consumer has stopped.
func walk(node value.Value, keys []string, yield func(value.Value) bool) bool {
	if len(keys) == 0 {
		return yield(node)
	}
	switch node.Kind() {
	case value.Object:
		child, ok := node.Lookup(keys[0])
		if !ok {
			return true
		}
		return walk(child, keys[1:], yield)
	case value.Array:
		items, _ := node.AsArray()
		for _, item := range items {
			if !walk(item, keys, yield) {
				return false
			}
		}
		return true
	case value.Null, value.Bool, value.Number, value.String:
	}
	return true
}

// Bind every value found at `path` in `tree` to a `T`.
//
// If a node reached is an array and `T` is not a slice or an array, each
// element is bound separately, recursively. Values that share no key with
// `T` are skipped. The empty path binds the whole document once.
//
// The sequence stops after the first error. It may be iterated again,
// restarting from the top of `tree`.
func All[T any](binder *deserialize.Binder, tree value.Value, path string) (iter.Seq2[T, error], error) {
	aliases, err := binder.ReadAliases(tree)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	keys := Split(path)
	flatten := len(keys) > 0 && typ.Kind() != reflect.Slice && typ.Kind() != reflect.Array
	return func(yield func(T, error) bool) {
		bind := func(node value.Value) bool {
			result, matched, err := binder.BindWithAliases(node, typ, aliases)
			if err != nil {
				var zero T
				yield(zero, err)
				return false
			}
			if !matched {
				return true
			}
			out, _ := result.Interface().(T)
			return yield(out, nil)
		}
		var visit func(node value.Value) bool
		visit = func(node value.Value) bool {
			if items, ok := node.AsArray(); ok && flatten {
				for _, item := range items {
					if !visit(item) {
						return false
					}
				}
				return true
			}
			return bind(node)
		}
		for node := range Nodes(tree, keys) {
			if !visit(node) {
				return
			}
		}
	}, nil
}

// Collect all the values of a sequence, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	result := []T{}
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// Bind untyped JSON documents onto Go types.
//
// Out of the box, Go json cannot bind a document to a type chosen by the
// document itself, nor tell apart a document that "looks like" a type from
// one that does not. This package implements an alternative binder.
//
// # Recommended use
//
// If you have a struct `FooSchema` that you wish to bind:
//
//   - To define default values for fields (in particular private fields), implement `CanInitialize`
//
//     func (result *FooSchema) Initialize() error {
//     result.MyField1 = defaultValue1
//     return nil
//     }
//
//   - To define a validator, implement `CanValidate`
//
//     func (result *FooSchema) Validate() error {
//     if result.MyField1 > 100 {
//     return fmt.Errorf("invalid value for MyField1!") // The error will be visible to end users.
//     }
//     return nil
//     }
//
// (apologies for weird formatting, please blame gofmt)
//
// Same behavior as the standard library:
//   - if a type implements `json.Unmarshaler`, short-circuit binding and use
//     this method instead of anything built-in;
//   - lower-case field names mean that we NEVER accept external data, except in
//     anonymous structs;
//   - enforces `json:"XXXX"` renamings;
//   - a field renamed to `json:"-"` will not accept external data.
//
// Different behavior:
//   - an object carrying `$type` is bound to the registered type of that name, if
//     the destination is an interface;
//   - a document sharing no key with a struct is not bound at all: the struct is
//     reported as unmatched instead of being filled with zero values;
//   - a `$types` table at the root of a document defines aliases for `$type` names,
//     for the duration of a single call;
//   - a `$map` entry re-converts members after the main pass;
//   - members tagged `readonly` never accept external data;
//   - if a value implements `CanInitialize`, we run the initializer before binding
//     the value (this is the only way to provide default values for private fields);
//   - if a value implements `CanValidate`, we run validation during binding
//     and fail if validation rejects the value;
//   - members that the document leaves out take their value from tag
//     `default:"..."` or from the method named by tag `orMethod:"..."`, after
//     the initializer and before `$map`.
//
// # Limitations
//
// Typed slices and arrays are bound element-wise, and every element must fit
// the element type. A nested array where `[]int` expects a number is a
// `ShapeMismatchError`: there is no lossy fallback that flattens or drops the
// nested list. Destinations of type `[]any` keep nested lists as `[]any`.
package deserialize

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/pasqal-io/frost/describe"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/validation"
	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding"
)

// -------- Public API --------

// Reserved keys. They are never bound to members.
const (
	TypeKey   = "$type"
	TypesKey  = "$types"
	MapKey    = "$map"
	SchemaKey = "$schema"
)

// Options for building a binder.
//
// See also JSONOptions for reasonable default values.
type Options struct {
	// The registry used to resolve `$type`, enums and constructors.
	//
	// Optional. If you leave this nil, defaults to `registry.Default`.
	Registry *registry.Registry

	// If true, keys match member names regardless of case.
	IgnoreCase bool

	// If true, dates without a time zone are read as UTC, otherwise as local time.
	UseUTCDateTime bool

	// Human-readable information on the nature of data
	// you'll be binding.
	//
	// Used for error messages.
	//
	// Optional. If you leave this blank, the name of the
	// destination type is used.
	RootPath string
}

// A preset fit for consuming JSON.
//
// Params:
//   - root A human-readable root (e.g. the name of a file). Used only
//     for error reporting. `""` is a perfectly acceptable root.
func JSONOptions(root string) Options {
	return Options{
		Registry:       nil,
		IgnoreCase:     false,
		UseUTCDateTime: false,
		RootPath:       root,
	}
}

func (options Options) registry() *registry.Registry {
	if options.Registry == nil {
		return registry.Default
	}
	return options.Registry
}

// A binder.
//
// A Binder holds no per-document state, so it may be shared between goroutines.
type Binder struct {
	options  Options
	registry *registry.Registry
	location *time.Location
}

func New(options Options) *Binder {
	location := time.Local
	if options.UseUTCDateTime {
		location = time.UTC
	}
	return &Binder{
		options:  options,
		registry: options.registry(),
		location: location,
	}
}

// Read the alias table of a document, from the `$types` of its root.
//
// Returns an empty table if there is no `$types`.
func (b *Binder) ReadAliases(root value.Value) (*registry.Aliases, error) {
	aliases := registry.NewAliases()
	table, ok := root.Lookup(TypesKey)
	if !ok {
		return aliases, nil
	}
	entries, ok := table.AsObject()
	if !ok {
		return nil, mismatch(TypesKey, "an object", table, nil)
	}
	for _, entry := range entries {
		name, ok := entry.Value.AsString()
		if !ok {
			return nil, mismatch(fmt.Sprint(TypesKey, ".", entry.Key), "a type name", entry.Value, nil)
		}
		aliases.Add(entry.Key, name)
	}
	return aliases, nil
}

// Bind a document to a fresh instance of `typ`.
//
// Returns `false` if the document shares no key with `typ` (see package
// documentation), in which case the result is the zero value.
func (b *Binder) Bind(in value.Value, typ reflect.Type) (reflect.Value, bool, error) {
	aliases, err := b.ReadAliases(in)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return b.BindWithAliases(in, typ, aliases)
}

// Bind a node to a fresh instance of `typ`, using the alias table of its document.
//
// The result is addressable.
func (b *Binder) BindWithAliases(in value.Value, typ reflect.Type, aliases *registry.Aliases) (reflect.Value, bool, error) {
	c := call{
		Binder:  b,
		aliases: aliases,
	}
	path := b.options.RootPath
	if path == "" {
		path = typeName(typ)
	}
	slot := reflect.New(typ).Elem()
	matched, err := c.bindTo(path, in, slot)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if !matched {
		return reflect.New(typ).Elem(), false, nil
	}
	return slot, true, nil
}

// A deserializer from strings, buffers, streams or value trees.
type Deserializer[To any] interface {
	DeserializeString(string) (*To, error)
	DeserializeBytes([]byte) (*To, error)

	// Read from a stream. If `enc` is nil, assume UTF-8 unless there is a BOM.
	DeserializeReader(r io.Reader, enc encoding.Encoding) (*To, error)

	// Bind a single value. Returns `nil, nil` if the value does not match `To`.
	DeserializeValue(value.Value) (*To, error)

	// Bind a list of values, skipping values that do not match `To`.
	DeserializeList([]value.Value) ([]To, error)
}

// Create a deserializer.
//
// Errors in the declaration of `T` (e.g. hooks implemented on the wrong
// receiver) are reported here rather than during deserialization.
func MakeDeserializer[T any](options Options) (Deserializer[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if _, err := describe.Describe(typ, options.IgnoreCase, options.registry()); err != nil {
		return nil, fmt.Errorf("could not generate a deserializer for %s:\n\t * %w", typeName(typ), err)
	}
	return deserializer[T]{
		binder: New(options),
		typ:    typ,
	}, nil
}

// ----------------- Private

type deserializer[T any] struct {
	binder *Binder
	typ    reflect.Type
}

func (me deserializer[T]) DeserializeString(source string) (*T, error) {
	tree, err := value.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize source:\n\t * %w", err)
	}
	return me.DeserializeValue(tree)
}

func (me deserializer[T]) DeserializeBytes(source []byte) (*T, error) {
	tree, err := value.DecodeBytes(source)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize source:\n\t * %w", err)
	}
	return me.DeserializeValue(tree)
}

func (me deserializer[T]) DeserializeReader(r io.Reader, enc encoding.Encoding) (*T, error) {
	tree, err := value.DecodeReader(r, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize source:\n\t * %w", err)
	}
	return me.DeserializeValue(tree)
}

func (me deserializer[T]) DeserializeValue(tree value.Value) (*T, error) {
	result, matched, err := me.binder.Bind(tree, me.typ)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, nil //nolint:nilnil
	}
	out, ok := result.Addr().Interface().(*T)
	if !ok {
		panic(fmt.Sprintf("binding produced a %s, expected a %s", result.Type(), me.typ))
	}
	return out, nil
}

func (me deserializer[T]) DeserializeList(list []value.Value) ([]T, error) {
	result := []T{}
	for i, entry := range list {
		out, err := me.DeserializeValue(entry)
		if err != nil {
			return []T{}, fmt.Errorf("failed to deserialize entry %d:\n\t * %w", i, err)
		}
		if out != nil {
			result = append(result, *out)
		}
	}
	return result, nil
}

// The state of a single call: the options and the alias table of one document.
type call struct {
	*Binder
	aliases *registry.Aliases
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func isReserved(key string) bool {
	switch key {
	case TypeKey, TypesKey, MapKey, SchemaKey:
		return true
	default:
		return false
	}
}

// Bind `in` and write the result to `slot`.
//
// Returns `false` if `in` is an object that shares no key with the type of `slot`.
// In that case, `slot` is left untouched.
func (c *call) bindTo(path string, in value.Value, slot reflect.Value) (bool, error) {
	typ := slot.Type()
	d, err := describe.Describe(typ, c.options.IgnoreCase, c.registry)
	if err != nil {
		return false, fmt.Errorf("at %s, could not describe %s:\n\t * %w", path, typeName(typ), err)
	}
	if d.Kind == describe.Raw {
		slot.Set(reflect.ValueOf(in))
		return true, nil
	}
	if in.IsNull() {
		slot.SetZero()
		return true, nil
	}
	switch d.Kind {
	case describe.Bool, describe.Int, describe.Uint, describe.Float, describe.String,
		describe.Enum, describe.GUID, describe.Bytes, describe.Time:
		return true, c.bindScalar(path, in, slot, d)
	case describe.Pointer:
		return c.bindPointer(path, in, slot)
	case describe.Struct:
		return c.bindStruct(path, in, slot, d)
	case describe.Interface:
		return c.bindInterface(path, in, slot)
	case describe.Array, describe.Slice:
		return true, c.bindList(path, in, slot)
	case describe.Map:
		return true, c.bindMap(path, in, slot)
	case describe.PairMap:
		return true, c.bindPairMap(path, in, slot)
	case describe.Custom:
		return true, c.bindCustom(path, in, slot)
	case describe.Raw, describe.Invalid:
	}
	return false, ConstructionError{
		Path:    path,
		Type:    typ,
		Reason:  fmt.Sprintf("values of kind %s cannot be bound", typ.Kind()),
		Wrapped: nil,
	}
}

func (c *call) bindPointer(path string, in value.Value, slot reflect.Value) (bool, error) {
	// Structs are constructed by `bindStruct`.
	elem := reflect.New(slot.Type().Elem()).Elem()
	matched, err := c.bindTo(path, in, elem)
	if err != nil || !matched {
		return false, err
	}
	slot.Set(elem.Addr())
	return true, nil
}

func (c *call) bindStruct(path string, in value.Value, slot reflect.Value, d *describe.Descriptor) (bool, error) {
	members, ok := in.AsObject()
	if !ok {
		return false, mismatch(path, fmt.Sprint("an object of type ", typeName(d.Type)), in, nil)
	}
	instance, err := construct(path, d.Type, c.registry)
	if err != nil {
		return false, err
	}

	// If possible, perform pre-initialization with default values.
	if d.CanInitialize {
		if initializer, ok := instance.Addr().Interface().(validation.CanInitialize); ok {
			if err = initializer.Initialize(); err != nil {
				err = fmt.Errorf("at %s, encountered an error while initializing optional fields:\n\t * %w", path, err)
				slog.Error("Internal error during deserialization", "error", err)
				return false, CustomDeserializerError{
					Wrapped:   err,
					Operation: "initializer",
					Structure: "struct",
				}
			}
		}
	}

	keys := 0
	matched := false
	var bound map[*describe.Member]bool
	if d.HasFallbacks {
		bound = make(map[*describe.Member]bool, len(d.Members))
	}
	for _, entry := range members {
		if isReserved(entry.Key) {
			continue
		}
		keys++
		member, ok := d.Lookup(entry.Key)
		if !ok {
			if d.Indexer == nil {
				// Unmatched keys are ignored.
				continue
			}
			matched = true
			if err = c.bindIndexed(path, entry, d.Indexer, instance); err != nil {
				return false, err
			}
			continue
		}
		matched = true
		if bound != nil {
			bound[member] = true
		}
		if member.ReadOnly {
			continue
		}
		if _, err = c.bindTo(fmt.Sprint(path, ".", member.Name), entry.Value, member.Slot(instance)); err != nil {
			return false, err
		}
	}
	if keys > 0 && !matched && !d.IsMapShaped() {
		return false, nil
	}

	if bound != nil {
		if err = c.applyFallbacks(path, d, instance, bound); err != nil {
			return false, err
		}
	}

	if directive, ok := in.Lookup(MapKey); ok {
		if err = c.applyMap(path, directive, d, instance); err != nil {
			return false, err
		}
	}

	if d.CanValidate {
		if validator, ok := instance.Addr().Interface().(validation.CanValidate); ok {
			if err = validator.Validate(); err != nil {
				return false, validation.WrapError(path, err)
			}
		}
	}
	slot.Set(instance)
	return true, nil
}

// Fill the members that the document left out, from tags `default` and `orMethod`.
func (c *call) applyFallbacks(path string, d *describe.Descriptor, instance reflect.Value, bound map[*describe.Member]bool) error {
	for _, member := range d.Members {
		if bound[member] {
			continue
		}
		memberPath := fmt.Sprint(path, ".", member.Name)
		switch {
		case member.Default != nil:
			if _, err := c.bindTo(memberPath, *member.Default, member.Slot(instance)); err != nil {
				return fmt.Errorf("at %s, invalid `default` value:\n\t * %w", memberPath, err)
			}
		case member.OrMethod != "":
			result, err := member.CallOrMethod(instance)
			if err != nil {
				err = fmt.Errorf("error in optional value at %s\n\t * %w", memberPath, err)
				slog.Error("Internal error during deserialization", "error", err)
				return CustomDeserializerError{
					Wrapped:   err,
					Operation: "orMethod",
					Structure: "struct",
				}
			}
			member.Slot(instance).Set(result)
		}
	}
	return nil
}

// Store an unmatched key in the inlined map of a struct.
func (c *call) bindIndexed(path string, entry value.Member, indexer *describe.Member, instance reflect.Value) error {
	if indexer.ReadOnly {
		return nil
	}
	target := indexer.Slot(instance)
	if target.IsNil() {
		target.Set(reflect.MakeMap(indexer.Type))
	}
	elem := reflect.New(indexer.Type.Elem()).Elem()
	if _, err := c.bindTo(fmt.Sprint(path, ".", entry.Key), entry.Value, elem); err != nil {
		return err
	}
	target.SetMapIndex(reflect.ValueOf(entry.Key).Convert(indexer.Type.Key()), elem)
	return nil
}

// Re-convert members after the main pass, as instructed by `$map`.
func (c *call) applyMap(path string, directive value.Value, d *describe.Descriptor, instance reflect.Value) error {
	mapPath := fmt.Sprint(path, ".", MapKey)
	entries, ok := directive.AsObject()
	if !ok {
		return mismatch(mapPath, "an object", directive, nil)
	}
	for _, entry := range entries {
		member, ok := d.Lookup(entry.Key)
		if !ok || member.ReadOnly {
			continue
		}
		entryPath := fmt.Sprint(mapPath, ".", entry.Key)
		name, ok := entry.Value.AsString()
		if !ok {
			return mismatch(entryPath, "a type name", entry.Value, nil)
		}
		target, ok := c.registry.ResolveTag(name, c.aliases)
		if !ok {
			return UnresolvableTypeError{
				Path: entryPath,
				Name: name,
			}
		}

		slot := member.Slot(instance)
		current := slot
		if current.Kind() == reflect.Interface || current.Kind() == reflect.Pointer {
			if current.IsNil() {
				continue
			}
			current = current.Elem()
		}
		source, ok := scalarToValue(current)
		if !ok {
			return ShapeMismatchError{
				Path:     entryPath,
				Expected: fmt.Sprint("a scalar member to convert to ", typeName(target)),
				Got:      value.Object,
				Wrapped:  nil,
			}
		}

		converted := reflect.New(target).Elem()
		if _, err := c.bindTo(fmt.Sprint(path, ".", member.Name), source, converted); err != nil {
			return err
		}
		switch {
		case converted.Type().AssignableTo(slot.Type()):
			slot.Set(converted)
		case slot.Kind() == reflect.Pointer && converted.Type().AssignableTo(slot.Type().Elem()):
			slot.Set(converted.Addr())
		default:
			return mismatch(entryPath, fmt.Sprintf("a member able to hold a %s", typeName(target)), source, nil)
		}
	}
	return nil
}

func (c *call) bindInterface(path string, in value.Value, slot reflect.Value) (bool, error) {
	typ := slot.Type()
	tag, hasTag := in.Lookup(TypeKey)
	if !hasTag {
		if typ.NumMethod() != 0 {
			return false, ConstructionError{
				Path:    path,
				Type:    typ,
				Reason:  fmt.Sprintf("the document does not specify a %s", TypeKey),
				Wrapped: nil,
			}
		}
		loose, err := c.bindLoose(path, in)
		if err != nil {
			return false, err
		}
		if loose == nil {
			slot.SetZero()
		} else {
			slot.Set(reflect.ValueOf(loose))
		}
		return true, nil
	}

	name, ok := tag.AsString()
	if !ok {
		return false, mismatch(fmt.Sprint(path, ".", TypeKey), "a type name", tag, nil)
	}
	resolved, ok := c.registry.ResolveTag(name, c.aliases)
	if !ok {
		return false, UnresolvableTypeError{
			Path: path,
			Name: name,
		}
	}
	byPointer := false
	switch {
	case resolved.AssignableTo(typ):
	case reflect.PointerTo(resolved).AssignableTo(typ):
		byPointer = true
	default:
		return false, mismatch(path, fmt.Sprintf("a type implementing %s, but %s does not", typ, typeName(resolved)), in, nil)
	}
	instance := reflect.New(resolved).Elem()
	matched, err := c.bindTo(path, in, instance)
	if err != nil || !matched {
		return false, err
	}
	if byPointer {
		slot.Set(instance.Addr())
	} else {
		slot.Set(instance)
	}
	return true, nil
}

// Best-effort conversion for open destinations.
//
// Objects become `map[string]any` unless they carry `$type`, arrays become `[]any`.
func (c *call) bindLoose(path string, in value.Value) (any, error) {
	switch in.Kind() {
	case value.Object:
		members, _ := in.AsObject()
		result := make(map[string]any, len(members))
		for _, entry := range members {
			if isReserved(entry.Key) {
				continue
			}
			elem := reflect.New(anyType).Elem()
			if _, err := c.bindTo(fmt.Sprint(path, ".", entry.Key), entry.Value, elem); err != nil {
				return nil, err
			}
			result[entry.Key] = elem.Interface()
		}
		return result, nil
	case value.Array:
		items, _ := in.AsArray()
		result := make([]any, len(items))
		for i, item := range items {
			elem := reflect.New(anyType).Elem()
			if _, err := c.bindTo(fmt.Sprintf("%s[%d]", path, i), item, elem); err != nil {
				return nil, err
			}
			result[i] = elem.Interface()
		}
		return result, nil
	case value.Null, value.Bool, value.Number, value.String:
	}
	return in.Interface(), nil
}

// Bind fixed arrays and slices, element-wise.
func (c *call) bindList(path string, in value.Value, slot reflect.Value) error {
	typ := slot.Type()
	items, ok := in.AsArray()
	if !ok {
		return mismatch(path, fmt.Sprint("an array of ", typeName(typ.Elem())), in, nil)
	}
	var result reflect.Value
	if typ.Kind() == reflect.Array {
		if typ.Len() != len(items) {
			return mismatch(path, fmt.Sprintf("an array of length %d", typ.Len()), in, fmt.Errorf("got %d elements", len(items)))
		}
		result = reflect.New(typ).Elem()
	} else {
		result = reflect.MakeSlice(typ, len(items), len(items))
	}
	for i, item := range items {
		if _, err := c.bindTo(fmt.Sprintf("%s[%d]", path, i), item, result.Index(i)); err != nil {
			return err
		}
	}
	slot.Set(result)
	return nil
}

// Bind string-keyed maps.
func (c *call) bindMap(path string, in value.Value, slot reflect.Value) error {
	typ := slot.Type()
	members, ok := in.AsObject()
	if !ok {
		return mismatch(path, fmt.Sprint("an object of type ", typeName(typ)), in, nil)
	}
	result := reflect.MakeMapWithSize(typ, len(members))
	for _, entry := range members {
		if isReserved(entry.Key) {
			continue
		}
		elem := reflect.New(typ.Elem()).Elem()
		if _, err := c.bindTo(fmt.Sprint(path, ".", entry.Key), entry.Value, elem); err != nil {
			return err
		}
		result.SetMapIndex(reflect.ValueOf(entry.Key).Convert(typ.Key()), elem)
	}
	slot.Set(result)
	return nil
}

// Keys of the objects representing entries of maps with non-string keys.
const (
	PairKey   = "k"
	PairValue = "v"
)

// Bind maps with non-string keys, from a list of `{"k": ..., "v": ...}`.
func (c *call) bindPairMap(path string, in value.Value, slot reflect.Value) error {
	typ := slot.Type()
	items, ok := in.AsArray()
	if !ok {
		return mismatch(path, "an array of key/value pairs", in, nil)
	}
	result := reflect.MakeMapWithSize(typ, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		k, hasKey := item.Lookup(PairKey)
		v, hasValue := item.Lookup(PairValue)
		if !hasKey || !hasValue {
			return mismatch(itemPath, fmt.Sprintf("an object with keys %q and %q", PairKey, PairValue), item, nil)
		}
		key := reflect.New(typ.Key()).Elem()
		if _, err := c.bindTo(fmt.Sprint(itemPath, ".", PairKey), k, key); err != nil {
			return err
		}
		elem := reflect.New(typ.Elem()).Elem()
		if _, err := c.bindTo(fmt.Sprint(itemPath, ".", PairValue), v, elem); err != nil {
			return err
		}
		result.SetMapIndex(key, elem)
	}
	slot.Set(result)
	return nil
}

// Delegate to the `UnmarshalJSON` of the type.
func (c *call) bindCustom(path string, in value.Value, slot reflect.Value) error {
	typ := slot.Type()
	target := reflect.New(typ)
	if err := gojson.Unmarshal(in.AppendJSON(nil), target.Interface()); err != nil {
		return mismatch(path, typeName(typ), in, err)
	}
	slot.Set(target.Elem())
	return nil
}

// Return a (mostly) human-readable type name for a Go type.
//
// This type name is used for user error messages.
func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	fullName := typ.Name()
	if fullName == "" {
		return typ.String()
	}
	pkgName := fmt.Sprint(typ.PkgPath(), ".")
	return strings.ReplaceAll(fullName, pkgName, "")
}

// Type descriptors: what the binder and the serializer need to know about a type.
//
// A descriptor is built on first use of a (type, case mode, registry) triple
// and cached for the lifetime of the process. Building is safe to race:
// concurrent builders produce identical descriptors and one of them wins.
package describe

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/pasqal-io/frost/registry"
	tagsPkg "github.com/pasqal-io/frost/tags"
	"github.com/pasqal-io/frost/validation"
	"github.com/pasqal-io/frost/value"
)

// The tag used for renamings and options.
const TagName = "json"

// A bindable member of a struct.
type Member struct {
	// The public name, i.e. the key in documents.
	Name string

	// The Go name of the field.
	Field string

	Kind Kind
	Type reflect.Type

	// A read-only member is never written from the document. It is only
	// emitted if the caller asks for read-only members.
	ReadOnly bool

	// Skip zero values when emitting.
	OmitEmpty bool

	// Bound to the member if the document does not mention it. From tag `default`.
	Default *value.Value

	// If the document does not mention the member, call this method of the
	// struct declaring it, with signature `func (*S) Name() (T, error)`.
	// From tag `orMethod`.
	OrMethod string

	// Path of field indices from the outer struct, as for `reflect.Value.FieldByIndex`.
	index    []int
	exported bool

	// Path to the struct declaring the member, empty unless inlined.
	owner []int
}

// A description of a type.
type Descriptor struct {
	Type reflect.Type
	Kind Kind

	// For structs, the members in declaration order, with inlined structs flattened.
	Members []*Member

	// For structs, an inlined `map[string]T` receiving the keys that match
	// no member. Structs with an indexer are map-shaped.
	Indexer *Member

	// A struct type without a name, e.g. `struct{ X int }`. Anonymous types
	// never carry type metadata, and their private fields are bindable.
	Anonymous bool

	// For enums.
	Enum *registry.EnumTable

	// `*T` implements `validation.CanInitialize`.
	CanInitialize bool

	// `*T` implements `validation.CanValidate`.
	CanValidate bool

	// Some member has a `Default` or an `OrMethod`.
	HasFallbacks bool

	ignoreCase bool
	byName     map[string]*Member
}

// Find the member bound to `key`.
func (d *Descriptor) Lookup(key string) (*Member, bool) {
	if d.ignoreCase {
		key = strings.ToLower(key)
	}
	m, ok := d.byName[key]
	return m, ok
}

// True for structs with an indexer and for string-keyed maps.
func (d *Descriptor) IsMapShaped() bool {
	return d.Kind == Map || d.Indexer != nil
}

type cacheKey struct {
	typ        reflect.Type
	ignoreCase bool
	reg        *registry.Registry
}

var cache sync.Map

// Describe a type.
//
// If `ignoreCase`, `Lookup` is case-insensitive.
func Describe(typ reflect.Type, ignoreCase bool, reg *registry.Registry) (*Descriptor, error) {
	key := cacheKey{typ: typ, ignoreCase: ignoreCase, reg: reg}
	if cached, ok := cache.Load(key); ok {
		return cached.(*Descriptor), nil //nolint:forcetypeassert
	}
	descriptor, err := build(typ, ignoreCase, reg)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(key, descriptor)
	return actual.(*Descriptor), nil //nolint:forcetypeassert
}

var (
	initializerInterface = reflect.TypeOf((*validation.CanInitialize)(nil)).Elem()
	validatorInterface   = reflect.TypeOf((*validation.CanValidate)(nil)).Elem()
)

func build(typ reflect.Type, ignoreCase bool, reg *registry.Registry) (*Descriptor, error) {
	kind := Classify(typ, reg)
	result := &Descriptor{
		Type:          typ,
		Kind:          kind,
		Members:       nil,
		Indexer:       nil,
		Anonymous:     typ.Kind() == reflect.Struct && typ.Name() == "",
		Enum:          nil,
		CanInitialize: false,
		CanValidate:   false,
		HasFallbacks:  false,
		ignoreCase:    ignoreCase,
		byName:        make(map[string]*Member),
	}
	if kind == Enum {
		result.Enum, _ = reg.Enum(typ)
	}
	var err error
	if result.CanInitialize, err = canInterface(typ, initializerInterface); err != nil {
		return nil, err
	}
	if result.CanValidate, err = canInterface(typ, validatorInterface); err != nil {
		return nil, err
	}
	if kind != Struct {
		return result, nil
	}

	members, indexer, err := collect(typ, nil, result.Anonymous, reg)
	if err != nil {
		return nil, err
	}
	result.Indexer = indexer
	for _, m := range members {
		key := m.Name
		if ignoreCase {
			key = strings.ToLower(key)
		}
		if _, taken := result.byName[key]; taken {
			// A shallower member with the same name shadows this one.
			continue
		}
		result.byName[key] = m
		result.Members = append(result.Members, m)
		if m.Default != nil || m.OrMethod != "" {
			result.HasFallbacks = true
		}
	}
	return result, nil
}

// Collect the members of a struct, recursing into inlined structs.
func collect(typ reflect.Type, prefix []int, anonymous bool, reg *registry.Registry) ([]*Member, *Member, error) {
	var direct, nested []*Member
	var indexer *Member
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tags, err := tagsPkg.Parse(field.Tag)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse tags at %s.%s:\n\t * %w", typ, field.Name, err)
		}
		index := append(append([]int{}, prefix...), i)
		fieldKind := Classify(field.Type, reg)

		// By Go convention, a field with lower-case name is private. We only bind
		// it if the struct is anonymous. Exported fields of a private embedded
		// struct are promoted, as with `encoding/json`.
		embedded := field.Anonymous && fieldKind == Struct && tags.PublicFieldName(TagName) == nil
		if !field.IsExported() && !anonymous && !embedded {
			continue
		}

		inlined := embedded || tags.IsInlined(TagName)
		if inlined && fieldKind == Map && field.Type.Key().Kind() == reflect.String {
			if indexer != nil {
				return nil, nil, fmt.Errorf("struct %s has more than one inlined map: %s and %s", typ, indexer.Field, field.Name)
			}
			indexer = &Member{
				Name:      field.Name,
				Field:     field.Name,
				Kind:      fieldKind,
				Type:      field.Type,
				ReadOnly:  tags.HasOption(TagName, tagsPkg.ReadOnly),
				OmitEmpty: false,
				Default:   nil,
				OrMethod:  "",
				index:     index,
				exported:  field.IsExported(),
				owner:     prefix,
			}
			continue
		}
		if inlined && fieldKind == Struct {
			inner, innerIndexer, err := collect(field.Type, index, anonymous, reg)
			if err != nil {
				return nil, nil, err
			}
			nested = append(nested, inner...)
			if indexer == nil {
				indexer = innerIndexer
			}
			continue
		}

		publicName := tags.PublicFieldName(TagName)
		if publicName != nil && *publicName == "-" {
			continue
		}
		if publicName == nil {
			publicName = &field.Name
		}
		if fieldKind == Invalid {
			continue
		}
		defaultValue, orMethod, err := fallbacks(typ, field, fieldKind, tags)
		if err != nil {
			return nil, nil, err
		}
		direct = append(direct, &Member{
			Name:      *publicName,
			Field:     field.Name,
			Kind:      fieldKind,
			Type:      field.Type,
			ReadOnly:  tags.HasOption(TagName, tagsPkg.ReadOnly),
			OmitEmpty: tags.HasOption(TagName, tagsPkg.OmitEmpty),
			Default:   defaultValue,
			OrMethod:  orMethod,
			index:     index,
			exported:  field.IsExported(),
			owner:     prefix,
		})
	}
	return append(direct, nested...), indexer, nil
}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// Read tags `default` and `orMethod` of a field declared by struct `typ`.
func fallbacks(typ reflect.Type, field reflect.StructField, kind Kind, tags tagsPkg.Tags) (*value.Value, string, error) {
	source := tags.Default()
	methodName := tags.MethodName()
	switch {
	case source != nil && methodName != nil:
		return nil, "", fmt.Errorf("struct %s contains a field \"%s\" that has both a `default` and a `orMethod` declaration. Please specify only one", typ, field.Name)
	case source != nil:
		var result value.Value
		parsed, err := value.Decode(*source)
		switch {
		case *source == "nil":
			result = value.MakeNull()
		case err != nil:
			result = value.MakeString(*source)
		case parsed.Kind() != value.String && (kind == String || kind == GUID || kind == Time):
			// e.g. `default:"42"` on a string.
			result = value.MakeString(*source)
		default:
			result = parsed
		}
		return &result, "", nil
	case methodName != nil:
		method, ok := reflect.PointerTo(typ).MethodByName(*methodName)
		if !ok {
			return nil, "", fmt.Errorf("method %s provided with `orMethod` on %s.%s doesn't seem to exist - note that the method must be public and have a pointer receiver", *methodName, typ, field.Name)
		}
		// The receiver counts as an argument.
		signature := method.Type
		switch {
		case signature.NumIn() != 1:
			return nil, "", fmt.Errorf("the method provided with `orMethod` MUST take no argument but takes %d arguments", signature.NumIn()-1)
		case signature.NumOut() != 2: //nolint:mnd
			return nil, "", fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns %d value(s)", field.Type, signature.NumOut())
		case !signature.Out(0).ConvertibleTo(field.Type):
			return nil, "", fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns (%s, _) which is not convertible to `%s`", field.Type, signature.Out(0), field.Type)
		case signature.Out(1) != errorInterface:
			return nil, "", fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns (_, %s)", field.Type, signature.Out(1))
		}
		return nil, *methodName, nil
	default:
		return nil, "", nil
	}
}

// Call the `OrMethod` of the member, on the struct declaring it in `container`.
//
// `container` must be addressable.
func (m *Member) CallOrMethod(container reflect.Value) (reflect.Value, error) {
	owner := container.FieldByIndex(m.owner)
	//nolint:gosec
	receiver := reflect.NewAt(owner.Type(), unsafe.Pointer(owner.UnsafeAddr()))
	out := receiver.MethodByName(m.OrMethod).Call(nil)
	if err, ok := out[1].Interface().(error); ok && err != nil {
		return reflect.Value{}, err
	}
	return out[0].Convert(m.Type), nil
}

// Access the member in `container`.
//
// If `container` is addressable, the result is addressable and settable,
// even for private fields of anonymous structs.
func (m *Member) Slot(container reflect.Value) reflect.Value {
	field := container.FieldByIndex(m.index)
	if !m.exported && field.CanAddr() {
		//nolint:gosec
		return reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
	}
	return field
}

// Check that a type implements an interface *on pointers*.
func canInterface(typ reflect.Type, interfaceType reflect.Type) (bool, error) {
	if typ.Kind() == reflect.Pointer || typ.Kind() == reflect.Interface {
		return false, nil
	}
	if typ.Implements(interfaceType) {
		return false, fmt.Errorf("type %s implements %s - it should be implemented by pointer type *%s instead", typ, interfaceType, typ)
	}
	return reflect.PointerTo(typ).Implements(interfaceType), nil
}

// Emit Go values as JSON documents that the binder can read back.
//
// The serializer walks the same type descriptors as the binder, so renamings,
// inlined members and read-only members are handled symmetrically. It can
// either build the complete document in memory or write it incrementally to
// a stream, in any text encoding.
package serialize

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pasqal-io/frost/describe"
	"github.com/pasqal-io/frost/deserialize"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding"
)

// Options for building a serializer.
type Options struct {
	// The registry providing type names and enum names.
	//
	// Optional. If you leave this nil, defaults to `registry.Default`.
	Registry *registry.Registry

	// Emit `$type` on every named struct.
	UseExtensions bool

	// Emit `$type` as a short alias, and the table of aliases as `$types`
	// at the end of the root object.
	//
	// If the root is not an object, full type names are emitted instead.
	UseGlobalTypes bool

	// Never emit type metadata.
	EnableAnonymousTypes bool

	// Emit members tagged `readonly`.
	ShowReadOnly bool

	// Emit GUIDs as base64 rather than as hyphenated text.
	UseFastGUID bool

	// Emit dates in UTC rather than local time.
	UseUTCDateTime bool

	// Emit members whose value is null. Otherwise, skip them.
	SerializeNullValues bool
}

// The options used when nothing else is specified.
func DefaultOptions() Options {
	return Options{
		Registry:             nil,
		UseExtensions:        false,
		UseGlobalTypes:       false,
		EnableAnonymousTypes: false,
		ShowReadOnly:         false,
		UseFastGUID:          true,
		UseUTCDateTime:       false,
		SerializeNullValues:  true,
	}
}

// A serializer. It holds no per-document state and may be shared between goroutines.
type Serializer struct {
	options  Options
	registry *registry.Registry
}

func New(options Options) *Serializer {
	reg := options.Registry
	if reg == nil {
		reg = registry.Default
	}
	return &Serializer{
		options:  options,
		registry: reg,
	}
}

// Serialize `v` to a string.
func (s *Serializer) Serialize(v any) (string, error) {
	buf, err := s.Append(nil, v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Append the serialization of `v` to `dst`.
func (s *Serializer) Append(dst []byte, v any) ([]byte, error) {
	out := &emitter{buf: dst, w: nil}
	if err := s.run(out, v); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// Write the serialization of `v` to `w`, with encoding `enc`.
//
// If `enc` is nil, write UTF-8. The document is never materialized as a whole.
func (s *Serializer) SerializeTo(w io.Writer, enc encoding.Encoding, v any) error {
	encoded := value.EncodeWriter(w, enc)
	buffered := bufio.NewWriter(encoded)
	out := &emitter{buf: make([]byte, 0, flushThreshold), w: buffered}
	if err := s.run(out, v); err != nil {
		return err
	}
	if err := out.flush(); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to write document:\n\t * %w", err)
	}
	if err := encoded.Close(); err != nil {
		return fmt.Errorf("failed to write document:\n\t * %w", err)
	}
	return nil
}

func (s *Serializer) run(out *emitter, v any) error {
	if v == nil {
		out.buf = append(out.buf, "null"...)
		return nil
	}
	root := addressable(reflect.ValueOf(v))
	state := &walk{
		Serializer: s,
		out:        out,
		types:      nil,
		depth:      0,
	}
	if s.options.UseGlobalTypes && !s.options.EnableAnonymousTypes && isObject(root) {
		state.types = newInterner()
	}
	return state.emit(rootPath(root.Type()), root, true)
}

// ----------------- Private

// Above this size, buffered output is handed to the writer.
const flushThreshold = 4096

// Beyond this depth, we assume that the value is cyclic.
const maxDepth = value.MaxDepth

type emitter struct {
	buf []byte

	// If nil, everything stays in `buf`.
	w io.Writer
}

func (e *emitter) maybeFlush() error {
	if e.w == nil || len(e.buf) < flushThreshold {
		return nil
	}
	return e.flush()
}

func (e *emitter) flush() error {
	if e.w == nil || len(e.buf) == 0 {
		return nil
	}
	if _, err := e.w.Write(e.buf); err != nil {
		return fmt.Errorf("failed to write document:\n\t * %w", err)
	}
	e.buf = e.buf[:0]
	return nil
}

// Assign short aliases to type names, in order of first use.
type interner struct {
	aliases map[string]string
	names   []string
}

func newInterner() *interner {
	return &interner{
		aliases: make(map[string]string),
		names:   nil,
	}
}

func (in *interner) alias(name string) string {
	if alias, ok := in.aliases[name]; ok {
		return alias
	}
	in.names = append(in.names, name)
	alias := strconv.Itoa(len(in.names))
	in.aliases[name] = alias
	return alias
}

// The state of a single call.
type walk struct {
	*Serializer
	out   *emitter
	types *interner
	depth int
}

// Make sure that `v` is addressable, copying it if necessary.
//
// Private fields of addressable structs can be read without restriction.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	copied := reflect.New(v.Type()).Elem()
	copied.Set(v)
	return copied
}

// True if `v` is, or points to, a struct.
func isObject(v reflect.Value) bool {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Struct
}

func rootPath(typ reflect.Type) string {
	if typ.Name() != "" {
		return typ.Name()
	}
	return typ.String()
}

func (w *walk) emit(path string, v reflect.Value, root bool) error {
	w.depth++
	defer func() { w.depth-- }()
	if w.depth > maxDepth {
		return fmt.Errorf("at %s, maximum nesting depth %d exceeded, the value may be cyclic", path, maxDepth)
	}

	typ := v.Type()
	d, err := describe.Describe(typ, false, w.registry)
	if err != nil {
		return fmt.Errorf("at %s, could not describe %s:\n\t * %w", path, typ, err)
	}
	out := w.out
	switch d.Kind {
	case describe.Bool:
		out.buf = strconv.AppendBool(out.buf, v.Bool())
	case describe.Int:
		out.buf = strconv.AppendInt(out.buf, v.Int(), 10)
	case describe.Uint:
		out.buf = strconv.AppendUint(out.buf, v.Uint(), 10)
	case describe.Float:
		return w.emitFloat(path, v.Float(), typ.Bits())
	case describe.String:
		out.buf = value.AppendQuoted(out.buf, v.String())
	case describe.Enum:
		if name, ok := d.Enum.Name(v); ok {
			out.buf = value.AppendQuoted(out.buf, name)
		} else if v.Kind() == reflect.String {
			out.buf = value.AppendQuoted(out.buf, v.String())
		} else if v.CanInt() {
			out.buf = strconv.AppendInt(out.buf, v.Int(), 10)
		} else {
			out.buf = strconv.AppendUint(out.buf, v.Uint(), 10)
		}
	case describe.GUID:
		w.emitGUID(v.Interface().(uuid.UUID)) //nolint:forcetypeassert
	case describe.Bytes:
		if v.IsNil() {
			out.buf = append(out.buf, "null"...)
		} else {
			out.buf = append(out.buf, '"')
			out.buf = base64.StdEncoding.AppendEncode(out.buf, v.Bytes())
			out.buf = append(out.buf, '"')
		}
	case describe.Time:
		w.emitTime(v.Interface().(time.Time)) //nolint:forcetypeassert
	case describe.Raw:
		raw := v.Interface().(value.Value) //nolint:forcetypeassert
		out.buf = raw.AppendJSON(out.buf)
	case describe.Pointer, describe.Interface:
		if v.IsNil() {
			out.buf = append(out.buf, "null"...)
			return nil
		}
		return w.emit(path, addressable(v.Elem()), root)
	case describe.Array, describe.Slice:
		return w.emitList(path, v)
	case describe.Map:
		return w.emitMap(path, v)
	case describe.PairMap:
		return w.emitPairMap(path, v)
	case describe.Struct:
		return w.emitStruct(path, v, d, root)
	case describe.Custom:
		return w.emitCustom(path, v)
	case describe.Invalid:
		return fmt.Errorf("at %s, values of kind %s cannot be serialized", path, typ.Kind())
	}
	return nil
}

func (w *walk) emitFloat(path string, f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("at %s, unsupported float value %v", path, f)
	}
	// Same format as `encoding/json`.
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	w.out.buf = strconv.AppendFloat(w.out.buf, f, format, -1, bits)
	return nil
}

func (w *walk) emitGUID(guid uuid.UUID) {
	w.out.buf = append(w.out.buf, '"')
	if w.options.UseFastGUID {
		w.out.buf = base64.StdEncoding.AppendEncode(w.out.buf, guid[:])
	} else {
		w.out.buf = append(w.out.buf, guid.String()...)
	}
	w.out.buf = append(w.out.buf, '"')
}

// Dates are emitted with the first layout accepted by the binder.
func (w *walk) emitTime(t time.Time) {
	if w.options.UseUTCDateTime {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	w.out.buf = append(w.out.buf, '"')
	w.out.buf = t.AppendFormat(w.out.buf, deserialize.DateLayouts[0])
	w.out.buf = append(w.out.buf, '"')
}

func (w *walk) emitList(path string, v reflect.Value) error {
	if v.Kind() == reflect.Slice && v.IsNil() {
		w.out.buf = append(w.out.buf, "null"...)
		return nil
	}
	w.out.buf = append(w.out.buf, '[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			w.out.buf = append(w.out.buf, ',')
		}
		if err := w.emit(fmt.Sprintf("%s[%d]", path, i), addressable(v.Index(i)), false); err != nil {
			return err
		}
		if err := w.out.maybeFlush(); err != nil {
			return err
		}
	}
	w.out.buf = append(w.out.buf, ']')
	return nil
}

// Keys of a string-keyed map, sorted.
func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (w *walk) emitMap(path string, v reflect.Value) error {
	if v.IsNil() {
		w.out.buf = append(w.out.buf, "null"...)
		return nil
	}
	w.out.buf = append(w.out.buf, '{')
	if _, err := w.emitEntries(path, v, false); err != nil {
		return err
	}
	w.out.buf = append(w.out.buf, '}')
	return nil
}

// Emit the entries of a string-keyed map as object members, without braces.
//
// Returns true if at least one member was emitted.
func (w *walk) emitEntries(path string, v reflect.Value, comma bool) (bool, error) {
	emitted := false
	for _, key := range sortedKeys(v) {
		entry := addressable(v.MapIndex(key))
		if !w.options.SerializeNullValues && isNull(entry) {
			continue
		}
		if comma {
			w.out.buf = append(w.out.buf, ',')
		}
		comma = true
		emitted = true
		w.out.buf = value.AppendQuoted(w.out.buf, key.String())
		w.out.buf = append(w.out.buf, ':')
		if err := w.emit(fmt.Sprint(path, ".", key.String()), entry, false); err != nil {
			return emitted, err
		}
		if err := w.out.maybeFlush(); err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

// Order keys of any comparable type.
func lessKey(a, b reflect.Value) bool {
	switch {
	case a.CanInt():
		return a.Int() < b.Int()
	case a.CanUint():
		return a.Uint() < b.Uint()
	case a.CanFloat():
		return a.Float() < b.Float()
	case a.Kind() == reflect.String:
		return a.String() < b.String()
	default:
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	}
}

func (w *walk) emitPairMap(path string, v reflect.Value) error {
	if v.IsNil() {
		w.out.buf = append(w.out.buf, "null"...)
		return nil
	}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
	w.out.buf = append(w.out.buf, '[')
	for i, key := range keys {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if i > 0 {
			w.out.buf = append(w.out.buf, ',')
		}
		w.out.buf = append(w.out.buf, '{')
		w.out.buf = value.AppendQuoted(w.out.buf, deserialize.PairKey)
		w.out.buf = append(w.out.buf, ':')
		if err := w.emit(fmt.Sprint(itemPath, ".", deserialize.PairKey), addressable(key), false); err != nil {
			return err
		}
		w.out.buf = append(w.out.buf, ',')
		w.out.buf = value.AppendQuoted(w.out.buf, deserialize.PairValue)
		w.out.buf = append(w.out.buf, ':')
		if err := w.emit(fmt.Sprint(itemPath, ".", deserialize.PairValue), addressable(v.MapIndex(key)), false); err != nil {
			return err
		}
		w.out.buf = append(w.out.buf, '}')
		if err := w.out.maybeFlush(); err != nil {
			return err
		}
	}
	w.out.buf = append(w.out.buf, ']')
	return nil
}

// True if `v` would be emitted as `null`.
func isNull(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

func (w *walk) emitStruct(path string, v reflect.Value, d *describe.Descriptor, root bool) error {
	out := w.out
	out.buf = append(out.buf, '{')
	comma := false
	if w.shouldTag(d) {
		name, _ := w.registry.NameOf(d.Type)
		if w.types != nil {
			name = w.types.alias(name)
		}
		out.buf = value.AppendQuoted(out.buf, deserialize.TypeKey)
		out.buf = append(out.buf, ':')
		out.buf = value.AppendQuoted(out.buf, name)
		comma = true
	}
	for _, member := range d.Members {
		if member.ReadOnly && !w.options.ShowReadOnly {
			continue
		}
		field := member.Slot(v)
		if member.OmitEmpty && field.IsZero() {
			continue
		}
		if !w.options.SerializeNullValues && isNull(field) {
			continue
		}
		if comma {
			out.buf = append(out.buf, ',')
		}
		comma = true
		out.buf = value.AppendQuoted(out.buf, member.Name)
		out.buf = append(out.buf, ':')
		if err := w.emit(fmt.Sprint(path, ".", member.Name), field, false); err != nil {
			return err
		}
		if err := out.maybeFlush(); err != nil {
			return err
		}
	}
	if d.Indexer != nil && (!d.Indexer.ReadOnly || w.options.ShowReadOnly) {
		indexed := d.Indexer.Slot(v)
		if !indexed.IsNil() {
			emitted, err := w.emitEntries(path, indexed, comma)
			if err != nil {
				return err
			}
			comma = comma || emitted
		}
	}
	if root && w.types != nil && len(w.types.names) > 0 {
		if comma {
			out.buf = append(out.buf, ',')
		}
		out.buf = value.AppendQuoted(out.buf, deserialize.TypesKey)
		out.buf = append(out.buf, ':', '{')
		for i, name := range w.types.names {
			if i > 0 {
				out.buf = append(out.buf, ',')
			}
			out.buf = value.AppendQuoted(out.buf, strconv.Itoa(i+1))
			out.buf = append(out.buf, ':')
			out.buf = value.AppendQuoted(out.buf, name)
		}
		out.buf = append(out.buf, '}')
	}
	out.buf = append(out.buf, '}')
	return nil
}

// Anonymous structs never carry type metadata.
func (w *walk) shouldTag(d *describe.Descriptor) bool {
	if d.Anonymous || w.options.EnableAnonymousTypes {
		return false
	}
	return w.options.UseExtensions || w.options.UseGlobalTypes
}

// Delegate to the `MarshalJSON` of the type.
func (w *walk) emitCustom(path string, v reflect.Value) error {
	target := v.Interface()
	if _, ok := target.(gojson.Marshaler); !ok {
		target = v.Addr().Interface()
	}
	buf, err := gojson.Marshal(target)
	if err != nil {
		return fmt.Errorf("at %s, failed to serialize a %s:\n\t * %w", path, v.Type(), err)
	}
	w.out.buf = append(w.out.buf, buf...)
	return nil
}

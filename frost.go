// Freeze Go values to JSON, and defrost them back.
//
// A `Codec` bundles a serializer and a binder configured from the same
// `Options`. Package-level functions use `Default`.
//
// Concrete types of interface members travel in the document as `$type`
// and must be registered in the codec's `registry.Registry`, e.g.
//
//	registry.MustAdd[Point](registry.Default, "Point")
//	text, err := frost.Freeze(Drawing{Shapes: []Shape{Point{X: 1}}})
//	drawing, err := frost.DefrostAs[Drawing](frost.Default, text)
package frost

import (
	"fmt"
	"io"
	"iter"
	"os"
	"reflect"

	"github.com/pasqal-io/frost/assertions/initialized"
	"github.com/pasqal-io/frost/beautify"
	"github.com/pasqal-io/frost/deserialize"
	"github.com/pasqal-io/frost/extract"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/serialize"
	"github.com/pasqal-io/frost/validation"
	"github.com/pasqal-io/frost/value"
	"golang.org/x/text/encoding"
	"gopkg.in/yaml.v3"
)

type (
	ParseError            = value.ParseError
	UnresolvableTypeError = deserialize.UnresolvableTypeError
	ConstructionError     = deserialize.ConstructionError
	ShapeMismatchError    = deserialize.ShapeMismatchError
	ValidationError       = validation.Error
)

// Options shared by freezing and defrosting.
//
// Options may be loaded from YAML, see `LoadOptions`.
type Options struct {
	// Where to look up type names and enum names.
	//
	// Optional. If you leave this nil, defaults to `registry.Default`.
	Registry *registry.Registry `yaml:"-"`

	// Emit `$type` on named structs.
	UseExtensions bool `yaml:"useExtensions"`

	// Emit `$type` as short aliases, defined once in `$types`.
	UseGlobalTypes bool `yaml:"useGlobalTypes"`

	// Never emit type metadata.
	EnableAnonymousTypes bool `yaml:"enableAnonymousTypes"`

	// Emit members tagged `readonly`.
	ShowReadOnly bool `yaml:"showReadOnlyProperties"`

	// Match keys to members regardless of case.
	IgnoreCase bool `yaml:"ignoreCaseOnDeserialize"`

	// Read dates without a zone as UTC and write dates in UTC.
	// Otherwise, use local time.
	UseUTCDateTime bool `yaml:"useUtcDateTime"`

	// Emit GUIDs as base64 rather than hyphenated text.
	UseFastGUID bool `yaml:"useFastGuid"`

	// Emit members whose value is null.
	SerializeNullValues bool `yaml:"serializeNullValues"`

	// The indentation used by `Beautify`.
	Indent string `yaml:"indent"`
}

func DefaultOptions() Options {
	return Options{
		Registry:             nil,
		UseExtensions:        false,
		UseGlobalTypes:       false,
		EnableAnonymousTypes: false,
		ShowReadOnly:         false,
		IgnoreCase:           false,
		UseUTCDateTime:       false,
		UseFastGUID:          true,
		SerializeNullValues:  true,
		Indent:               beautify.DefaultIndent,
	}
}

// Load options from a YAML file.
//
// Keys missing from the file keep their value from `DefaultOptions()`.
func LoadOptions(path string) (Options, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options %s:\n\t * %w", path, err) //nolint:exhaustruct
	}
	options := DefaultOptions()
	if err := yaml.Unmarshal(buf, &options); err != nil {
		return Options{}, fmt.Errorf("failed to parse options %s:\n\t * %w", path, err) //nolint:exhaustruct
	}
	return options, nil
}

func (options Options) serializeOptions() serialize.Options {
	return serialize.Options{
		Registry:             options.Registry,
		UseExtensions:        options.UseExtensions,
		UseGlobalTypes:       options.UseGlobalTypes,
		EnableAnonymousTypes: options.EnableAnonymousTypes,
		ShowReadOnly:         options.ShowReadOnly,
		UseFastGUID:          options.UseFastGUID,
		UseUTCDateTime:       options.UseUTCDateTime,
		SerializeNullValues:  options.SerializeNullValues,
	}
}

func (options Options) deserializeOptions() deserialize.Options {
	result := deserialize.JSONOptions("")
	result.Registry = options.Registry
	result.IgnoreCase = options.IgnoreCase
	result.UseUTCDateTime = options.UseUTCDateTime
	return result
}

// A codec. It holds no per-document state and may be shared between goroutines.
//
// Always create codecs with `New`.
type Codec struct {
	options    Options
	serializer *serialize.Serializer
	binder     *deserialize.Binder
	witness    initialized.IsInitialized
}

func New(options Options) *Codec {
	return &Codec{
		options:    options,
		serializer: serialize.New(options.serializeOptions()),
		binder:     deserialize.New(options.deserializeOptions()),
		witness:    initialized.Make(),
	}
}

func (c *Codec) Options() Options {
	return c.options
}

// Serialize a value to JSON text.
func (c *Codec) Freeze(v any) (string, error) {
	c.witness.Assert()
	return c.serializer.Serialize(v) //nolint:wrapcheck
}

// Serialize a value to a stream, without holding the whole text in memory.
//
// `enc` may be nil, for UTF-8.
func (c *Codec) FreezeTo(w io.Writer, v any, enc encoding.Encoding) error {
	c.witness.Assert()
	return c.serializer.SerializeTo(w, enc, v) //nolint:wrapcheck
}

// Parse text into a tree of values.
func (c *Codec) Parse(source string) (value.Value, error) {
	return value.Decode(source) //nolint:wrapcheck
}

// Defrost without a destination type.
//
// Objects carrying a registered `$type` become instances of that type,
// other objects become `map[string]any`, arrays become `[]any`.
func (c *Codec) Defrost(source string) (any, error) {
	return c.DefrostType(source, anyType)
}

func (c *Codec) DefrostBytes(source []byte) (any, error) {
	return c.DefrostTypeBytes(source, anyType)
}

func (c *Codec) DefrostReader(r io.Reader, enc encoding.Encoding) (any, error) {
	return c.DefrostTypeReader(r, enc, anyType)
}

// Defrost into a fresh instance of a type known only at runtime.
//
// Returns `nil, nil` if the document shares no key with `typ`.
func (c *Codec) DefrostType(source string, typ reflect.Type) (any, error) {
	tree, err := value.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return c.DefrostValue(tree, typ)
}

func (c *Codec) DefrostTypeBytes(source []byte, typ reflect.Type) (any, error) {
	tree, err := value.DecodeBytes(source)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return c.DefrostValue(tree, typ)
}

func (c *Codec) DefrostTypeReader(r io.Reader, enc encoding.Encoding, typ reflect.Type) (any, error) {
	tree, err := value.DecodeReader(r, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return c.DefrostValue(tree, typ)
}

// Bind a tree of values to a fresh instance of `typ`.
func (c *Codec) DefrostValue(tree value.Value, typ reflect.Type) (any, error) {
	c.witness.Assert()
	result, matched, err := c.binder.Bind(tree, typ)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if !matched {
		return nil, nil //nolint:nilnil
	}
	return result.Interface(), nil
}

// Reformat a document, using the codec's indentation.
func (c *Codec) Beautify(source string) string {
	return beautify.String(source, c.options.Indent)
}

// Reformat a stream in a single pass. `inEnc` and `outEnc` may be nil, for UTF-8.
func (c *Codec) BeautifyStream(in io.Reader, inEnc encoding.Encoding, out io.Writer, outEnc encoding.Encoding) error {
	return beautify.Stream(in, inEnc, out, outEnc, c.options.Indent) //nolint:wrapcheck
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// ------ Generic entry points

// Defrost into a `T`.
//
// Returns `nil, nil` if the document shares no key with `T`.
func DefrostAs[T any](c *Codec, source string) (*T, error) {
	tree, err := value.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return DefrostValueAs[T](c, tree)
}

func DefrostBytesAs[T any](c *Codec, source []byte) (*T, error) {
	tree, err := value.DecodeBytes(source)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return DefrostValueAs[T](c, tree)
}

func DefrostReaderAs[T any](c *Codec, r io.Reader, enc encoding.Encoding) (*T, error) {
	tree, err := value.DecodeReader(r, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return DefrostValueAs[T](c, tree)
}

func DefrostValueAs[T any](c *Codec, tree value.Value) (*T, error) {
	c.witness.Assert()
	typ := reflect.TypeOf((*T)(nil)).Elem()
	result, matched, err := c.binder.Bind(tree, typ)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if !matched {
		return nil, nil //nolint:nilnil
	}
	out, ok := result.Addr().Interface().(*T)
	if !ok {
		panic(fmt.Sprintf("binding produced a %s, expected a %s", result.Type(), typ))
	}
	return out, nil
}

// Defrost every `T` found at a dotted path of a document.
//
// Arrays met along the path are traversed, see package `extract`.
// The empty path is the same as `DefrostAs`.
func DefrostFromPath[T any](c *Codec, path string, source string) (iter.Seq2[T, error], error) {
	c.witness.Assert()
	tree, err := value.Decode(source)
	if err != nil {
		return nil, fmt.Errorf("failed to defrost source:\n\t * %w", err)
	}
	return extract.All[T](c.binder, tree, path) //nolint:wrapcheck
}

// Deep-copy a value by freezing then defrosting it.
//
// Only exported state, as seen by `Freeze`, survives the copy.
func Clone[T any](c *Codec, v T) (T, error) {
	var zero T
	text, err := c.Freeze(v)
	if err != nil {
		return zero, fmt.Errorf("failed to clone:\n\t * %w", err)
	}
	result, err := DefrostAs[T](c, text)
	if err != nil {
		return zero, fmt.Errorf("failed to clone:\n\t * %w", err)
	}
	if result == nil {
		return zero, nil
	}
	return *result, nil
}

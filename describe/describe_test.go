//nolint:exhaustruct
package describe_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pasqal-io/frost/describe"
	"github.com/pasqal-io/frost/registry"
	"github.com/pasqal-io/frost/value"
	"gotest.tools/v3/assert"
)

type Level int

type Temperature float64

func (t Temperature) MarshalJSON() ([]byte, error) {
	return []byte("0"), nil
}

type Base struct {
	ID      int
	Created time.Time
}

type Record struct {
	Base
	Name     string            `json:"name"`
	Secret   string            `json:"-"`
	Version  int               `json:"version,readonly"`
	Note     string            `json:"note,omitempty"`
	Extra    map[string]string `json:",inline"`
	Callback func()
	private  int
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func TestClassify(t *testing.T) {
	reg := registry.New()
	assert.NilError(t, registry.Enum(reg, map[string]Level{"Low": 0}))
	for typ, expected := range map[reflect.Type]describe.Kind{
		typeOf[bool]():           describe.Bool,
		typeOf[int8]():           describe.Int,
		typeOf[uint64]():         describe.Uint,
		typeOf[float32]():        describe.Float,
		typeOf[string]():         describe.String,
		typeOf[Level]():          describe.Enum,
		typeOf[uuid.UUID]():      describe.GUID,
		typeOf[[]byte]():         describe.Bytes,
		typeOf[time.Time]():      describe.Time,
		typeOf[[3]int]():         describe.Array,
		typeOf[[]string]():       describe.Slice,
		typeOf[map[string]int](): describe.Map,
		typeOf[map[Level]int]():  describe.PairMap,
		typeOf[Record]():         describe.Struct,
		typeOf[*Record]():        describe.Pointer,
		typeOf[any]():            describe.Interface,
		typeOf[value.Value]():    describe.Raw,
		typeOf[Temperature]():    describe.Custom,
		typeOf[chan int]():       describe.Invalid,
		typeOf[func()]():         describe.Invalid,
	} {
		assert.Equal(t, describe.Classify(typ, reg), expected, typ.String())
	}

	// Without registration, an enum is just an integer.
	assert.Equal(t, describe.Classify(typeOf[Level](), registry.New()), describe.Int)

	assert.Assert(t, describe.Struct.IsContainer())
	assert.Assert(t, !describe.Pointer.IsContainer())
	assert.Assert(t, describe.Time.IsScalar())
	assert.Assert(t, !describe.Raw.IsScalar())
	assert.Equal(t, describe.PairMap.String(), "pair map")
}

func TestDescribeStruct(t *testing.T) {
	d, err := describe.Describe(typeOf[Record](), false, registry.New())
	assert.NilError(t, err)
	assert.Equal(t, d.Kind, describe.Struct)
	assert.Assert(t, !d.Anonymous)
	assert.Assert(t, d.IsMapShaped())
	assert.Equal(t, d.Indexer.Field, "Extra")

	names := []string{}
	for _, m := range d.Members {
		names = append(names, m.Name)
	}
	// Own members first, then members of inlined structs.
	assert.DeepEqual(t, names, []string{"name", "version", "note", "ID", "Created"})

	version, ok := d.Lookup("version")
	assert.Assert(t, ok)
	assert.Assert(t, version.ReadOnly)
	note, ok := d.Lookup("note")
	assert.Assert(t, ok)
	assert.Assert(t, note.OmitEmpty)

	_, ok = d.Lookup("Name")
	assert.Assert(t, !ok)
	_, ok = d.Lookup("Secret")
	assert.Assert(t, !ok)
	_, ok = d.Lookup("private")
	assert.Assert(t, !ok)

	// Slots reach into inlined structs.
	record := Record{Base: Base{ID: 3}}
	id, ok := d.Lookup("ID")
	assert.Assert(t, ok)
	slot := id.Slot(reflect.ValueOf(&record).Elem())
	assert.Equal(t, slot.Interface(), 3)
	slot.SetInt(4)
	assert.Equal(t, record.ID, 4)
}

func TestDescribeIgnoreCase(t *testing.T) {
	d, err := describe.Describe(typeOf[Record](), true, registry.New())
	assert.NilError(t, err)
	m, ok := d.Lookup("NAME")
	assert.Assert(t, ok)
	assert.Equal(t, m.Field, "Name")
}

func TestDescribeAnonymous(t *testing.T) {
	type inner = struct {
		hidden int
		Shown  string
	}
	d, err := describe.Describe(typeOf[inner](), false, registry.New())
	assert.NilError(t, err)
	assert.Assert(t, d.Anonymous)
	m, ok := d.Lookup("hidden")
	assert.Assert(t, ok)

	instance := inner{}
	m.Slot(reflect.ValueOf(&instance).Elem()).SetInt(7)
	assert.Equal(t, instance.hidden, 7)
}

type TwoMaps struct {
	A map[string]int `json:",inline"`
	B map[string]int `json:",inline"`
}

type BadInit struct{}

func (BadInit) Initialize() error {
	return nil
}

type GoodInit struct{}

func (*GoodInit) Initialize() error {
	return nil
}

func (*GoodInit) Validate() error {
	return nil
}

func TestDescribeErrors(t *testing.T) {
	_, err := describe.Describe(typeOf[TwoMaps](), false, registry.New())
	assert.ErrorContains(t, err, "more than one inlined map")

	_, err = describe.Describe(typeOf[BadInit](), false, registry.New())
	assert.ErrorContains(t, err, "should be implemented by pointer type")

	d, err := describe.Describe(typeOf[GoodInit](), false, registry.New())
	assert.NilError(t, err)
	assert.Assert(t, d.CanInitialize)
	assert.Assert(t, d.CanValidate)
}

func TestDescribeCache(t *testing.T) {
	reg := registry.New()
	var wg sync.WaitGroup
	results := make([]*describe.Descriptor, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := describe.Describe(typeOf[Base](), false, reg)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = d
		}()
	}
	wg.Wait()
	for _, d := range results {
		assert.Assert(t, d == results[0])
	}
}
